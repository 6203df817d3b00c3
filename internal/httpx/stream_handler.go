package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/realtime"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/topics"
)

// StreamHandler exposes the realtime channel over SSE. Query parameters map
// onto the channel's subscription control messages: role+restaurant_id is
// join:role, table_id is join:table, order_id is join:order. Closing the
// stream purges every membership of the connection.
type StreamHandler struct {
	Hub      *realtime.Hub
	Registry *topics.Registry
	Log      *slog.Logger
}

func (h *StreamHandler) Register(r chi.Router) {
	// no timeout middleware here, streams are long-lived
	r.Get("/stream", h.stream)
}

func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var subs []topics.Topic
	q := r.URL.Query()
	if role := topics.Role(q.Get("role")); role != "" {
		restaurantID := q.Get("restaurant_id")
		if !topics.ValidRole(role) || restaurantID == "" {
			http.Error(w, "role requires a valid role and restaurant_id", http.StatusBadRequest)
			return
		}
		subs = append(subs, topics.ForRole(restaurantID, role))
	}
	if tableID := q.Get("table_id"); tableID != "" {
		subs = append(subs, topics.ForTable(tableID))
	}
	if orderID := q.Get("order_id"); orderID != "" {
		subs = append(subs, topics.ForOrder(orderID))
	}
	if len(subs) == 0 {
		http.Error(w, "nothing to subscribe to", http.StatusBadRequest)
		return
	}

	conn := h.Hub.Register()
	defer h.Hub.Unregister(conn.ID)
	for _, t := range subs {
		h.Registry.Subscribe(conn.ID, t)
	}
	h.Log.Debug("stream opened", slog.String("conn_id", conn.ID), slog.Int("subscriptions", len(subs)))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: connected\ndata: {\"conn_id\":%q}\n\n", conn.ID)
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-conn.Events():
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Payload)
			flusher.Flush()
		}
	}
}
