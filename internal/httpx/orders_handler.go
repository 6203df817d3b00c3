package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/orders"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/promo"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/redisx"
)

type OrdersHandler struct {
	Ledger *orders.Ledger
	Redis  *redis.Client
	Log    *slog.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/status", h.updateStatus)
		r.Put("/orders/{id}/items", h.editItems)
		r.Post("/orders/{id}/promotion", h.applyPromotion)
	})
}

type CreateOrderReq struct {
	RestaurantID string            `json:"restaurant_id"`
	TableID      string            `json:"table_id"`
	Actor        string            `json:"actor,omitempty"`
	Items        []orders.LineItem `json:"items"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Ledger.PlaceOrder(ctx, orders.PlaceOrderInput{
		RestaurantID: req.RestaurantID,
		TableID:      req.TableID,
		Actor:        orders.Actor(req.Actor),
		Items:        req.Items,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheSnapshot(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache fast path; reconnecting clients re-fetch through here
	key := fmt.Sprintf(redisx.KeyOrderSnapshot, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	o, err := h.Ledger.GetOrder(ctx, orderID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheSnapshot(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

type UpdateStatusReq struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if !orders.ValidStatus(orders.Status(req.Status)) || !orders.ValidActor(orders.Actor(req.Actor)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status or actor"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Ledger.Transition(ctx, chi.URLParam(r, "id"), orders.Actor(req.Actor), orders.Status(req.Status))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheSnapshot(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

type EditItemsReq struct {
	Items []orders.LineItem `json:"items"`
}

func (h *OrdersHandler) editItems(w http.ResponseWriter, r *http.Request) {
	var req EditItemsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Ledger.EditItems(ctx, chi.URLParam(r, "id"), req.Items)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheSnapshot(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

// ApplyPromotionReq carries the promotion reference and the tip. The
// discount/tax/total fields some clients send along are display hints only;
// the ledger recomputes them and they are deliberately not decoded here.
type ApplyPromotionReq struct {
	PromotionID   string `json:"promotion_id,omitempty"`
	PromotionCode string `json:"promotion_code,omitempty"`
	TipCents      *int64 `json:"tip_cents,omitempty"`
}

func (h *OrdersHandler) applyPromotion(w http.ResponseWriter, r *http.Request) {
	var req ApplyPromotionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Ledger.ApplyPromotion(ctx, orders.ApplyPromotionInput{
		OrderID:       chi.URLParam(r, "id"),
		PromotionID:   req.PromotionID,
		PromotionCode: req.PromotionCode,
		TipCents:      req.TipCents,
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheSnapshot(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheSnapshot(ctx context.Context, o *orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderSnapshot, o.ID)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLSnapshot).Err(); err != nil {
		h.Log.Warn("snapshot cache write failed", slog.String("order_id", o.ID), slog.Any("error", err))
	}
}

func (h *OrdersHandler) writeErr(w http.ResponseWriter, err error) {
	var invalid *orders.InvalidTransitionError
	var pinv *promo.InvalidError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          "invalid transition",
			"current_status": string(invalid.From),
			"target_status":  string(invalid.To),
		})
	case errors.Is(err, orders.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "concurrent modification, retry with fresh state"})
	case errors.Is(err, orders.ErrNotEditable), errors.Is(err, orders.ErrOrderClosed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &pinv):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "promotion invalid",
			"reason": string(pinv.Reason),
		})
	case errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
