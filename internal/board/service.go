package board

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/kafkax"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/orders"
	"github.com/eNKay2408/Smart-Restaurant-sub003/internal/redisx"
)

// Service maintains a per-restaurant board of live orders in Redis, fed from
// the order event stream. Dashboards read the hash directly instead of
// hitting Postgres.
type Service struct {
	Redis *redis.Client
	Log   *slog.Logger
}

// Entry is one row on the board, keyed by order number.
type Entry struct {
	OrderID    string        `json:"order_id"`
	Number     string        `json:"number"`
	TableID    string        `json:"table_id"`
	Status     orders.Status `json:"status"`
	TotalCents int64         `json:"total_cents"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// HandleOrderEvent is the consumer handler for the order event stream.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	switch env.EventType {
	case orders.EventOrderNew, orders.EventOrderAccepted, orders.EventOrderStatusUpdate:
	default:
		return nil // ignore
	}

	// dedup by event id, the stream may redeliver
	dkey := fmt.Sprintf(redisx.KeyDedup, "board", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.StatusEventPayload](env.Payload)
	if err != nil {
		return err
	}
	o := p.Order
	if o == nil {
		return nil
	}

	key := fmt.Sprintf(redisx.KeyBoard, o.RestaurantID)
	if orders.IsTerminal(o.Status) {
		if err := s.Redis.HDel(ctx, key, o.Number).Err(); err != nil {
			return err
		}
		s.Log.Debug("board entry removed", slog.String("number", o.Number), slog.String("status", string(o.Status)))
		return nil
	}

	entry := kafkax.MustMarshal(Entry{
		OrderID:    o.ID,
		Number:     o.Number,
		TableID:    o.TableID,
		Status:     o.Status,
		TotalCents: o.TotalCents,
		UpdatedAt:  env.OccurredAt,
	})
	if err := s.Redis.HSet(ctx, key, o.Number, entry).Err(); err != nil {
		return err
	}
	s.Log.Debug("board entry updated", slog.String("number", o.Number), slog.String("status", string(o.Status)))
	return nil
}
