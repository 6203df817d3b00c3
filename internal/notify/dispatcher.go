package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/kafkax"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/orders"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/topics"
)

// Event is one realtime message addressed to a connection.
type Event struct {
	Name    string
	Payload []byte
}

// Sender delivers an event to a single connection. A failed send means the
// connection is gone or too slow; the dispatcher logs it and moves on.
type Sender interface {
	Send(connID string, ev Event) error
}

// Dispatcher translates committed ledger operations into topic-addressed
// messages. It is best-effort and fire-and-forget: it never blocks, retries,
// or reports failure back to the ledger.
type Dispatcher struct {
	Registry *topics.Registry
	Sender   Sender
	Stream   *kafkax.Producer // optional outbound event stream
	Producer string           // envelope producer name
	Log      *slog.Logger
}

func NewDispatcher(reg *topics.Registry, sender Sender, stream *kafkax.Producer, producer string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{Registry: reg, Sender: sender, Stream: stream, Producer: producer, Log: log}
}

func (d *Dispatcher) OrderCreated(o *orders.Order) {
	msg := fmt.Sprintf("New order %s placed at table %s", o.Number, o.TableID)
	d.emit(orders.EventOrderNew, msg, o,
		topics.ForRole(o.RestaurantID, topics.RoleWaiter),
	)
	d.publishStream(orders.EventOrderNew, msg, o)
}

func (d *Dispatcher) OrderStatusChanged(o *orders.Order) {
	msg := statusMessage(o)
	table := topics.ForTable(o.TableID)
	waiter := topics.ForRole(o.RestaurantID, topics.RoleWaiter)
	kitchen := topics.ForRole(o.RestaurantID, topics.RoleKitchen)
	byOrder := topics.ForOrder(o.ID)

	streamEvent := orders.EventOrderStatusUpdate
	switch o.Status {
	case orders.StatusAccepted:
		// the kitchen learns about new work through its own event name
		d.emit(orders.EventOrderAccepted, msg, o, kitchen)
		d.emit(orders.EventOrderStatusUpdate, msg, o, table, waiter, byOrder)
		streamEvent = orders.EventOrderAccepted
	case orders.StatusPreparing, orders.StatusReady:
		d.emit(orders.EventOrderStatusUpdate, msg, o, table, waiter, kitchen, byOrder)
	case orders.StatusRejected, orders.StatusCompleted, orders.StatusCancelled:
		d.emit(orders.EventOrderStatusUpdate, msg, o, table, waiter, byOrder)
	default:
		d.Log.Warn("no fan-out rule for status", slog.String("status", string(o.Status)))
		return
	}
	d.publishStream(streamEvent, msg, o)
}

// emit sends one event to the deduplicated union of the target topics'
// current members: each connected client receives it at most once even when
// subscribed to several of the targets.
func (d *Dispatcher) emit(name, msg string, o *orders.Order, targets ...topics.Topic) {
	payload := kafkax.MustMarshal(orders.StatusEventPayload{Message: msg, Order: o})
	ev := Event{Name: name, Payload: payload}

	seen := make(map[string]struct{})
	for _, t := range targets {
		for _, connID := range d.Registry.MembersOf(t) {
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			if err := d.Sender.Send(connID, ev); err != nil {
				d.Log.Warn("dropped realtime delivery",
					slog.String("event", name),
					slog.String("conn_id", connID),
					slog.String("order_id", o.ID),
					slog.Any("error", err))
			}
		}
	}
}

func (d *Dispatcher) publishStream(eventType, msg string, o *orders.Order) {
	if d.Stream == nil {
		return
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.Producer,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.StatusEventPayload{Message: msg, Order: o}),
	}
	d.Stream.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func statusMessage(o *orders.Order) string {
	switch o.Status {
	case orders.StatusAccepted:
		return fmt.Sprintf("Order %s accepted", o.Number)
	case orders.StatusPreparing:
		return fmt.Sprintf("Order %s is being prepared", o.Number)
	case orders.StatusReady:
		return fmt.Sprintf("Order %s is ready", o.Number)
	case orders.StatusCompleted:
		return fmt.Sprintf("Order %s completed", o.Number)
	case orders.StatusRejected:
		return fmt.Sprintf("Order %s rejected", o.Number)
	case orders.StatusCancelled:
		return fmt.Sprintf("Order %s cancelled", o.Number)
	default:
		return fmt.Sprintf("Order %s updated", o.Number)
	}
}
