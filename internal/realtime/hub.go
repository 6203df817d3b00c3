package realtime

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/notify"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/topics"
)

var (
	ErrConnGone     = errors.New("connection gone")
	ErrSlowConsumer = errors.New("connection buffer full")
)

// Conn is one live realtime connection. Events are read from Events() until
// the channel is closed on unregister.
type Conn struct {
	ID string
	ch chan notify.Event
}

func (c *Conn) Events() <-chan notify.Event { return c.ch }

// Hub owns the live connections and implements notify.Sender. Sends are
// non-blocking: a full per-connection buffer counts as a failed delivery,
// the event is dropped for that connection only.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	reg   *topics.Registry
	log   *slog.Logger
}

func NewHub(reg *topics.Registry, log *slog.Logger) *Hub {
	return &Hub{conns: make(map[string]*Conn), reg: reg, log: log}
}

func (h *Hub) Register() *Conn {
	c := &Conn{ID: uuid.NewString(), ch: make(chan notify.Event, 32)}
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	h.log.Debug("connection registered", slog.String("conn_id", c.ID))
	return c
}

// Unregister tears the connection down and removes all its topic
// memberships.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
		close(c.ch)
	}
	h.mu.Unlock()
	if ok {
		h.reg.PurgeConnection(connID)
		h.log.Debug("connection unregistered", slog.String("conn_id", connID))
	}
}

func (h *Hub) Send(connID string, ev notify.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	if !ok {
		return ErrConnGone
	}
	select {
	case c.ch <- ev:
		return nil
	default:
		return ErrSlowConsumer
	}
}
