package orders

import (
	"encoding/json"
	"time"
)

// Realtime channel event names delivered to subscribed connections.
const (
	EventOrderNew          = "order:new"
	EventOrderAccepted     = "order:accepted"
	EventOrderStatusUpdate = "order:statusUpdate"
)

// Kafka topic for the outbound order event stream consumed by reporting and
// display services outside this core.
const TopicOrderEvents = "orders.events"

// Partition key = order id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

// Envelope wraps every message on the order event stream.
type Envelope struct {
	EventID       string          `json:"event_id"` // uuid
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "order-core"
	CorrelationID string          `json:"correlation_id"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// StatusEventPayload is the payload of both realtime and stream events: a
// human-readable line plus the full current order snapshot. Clients that miss
// intermediate events converge on the next delivered one.
type StatusEventPayload struct {
	Message string `json:"message"`
	Order   *Order `json:"order"`
}
