// Package stockfeed applies stock level snapshots published by the warehouse system.
package stockfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/sailsteel/order-desk/internal/kafka"
	"github.com/sailsteel/order-desk/internal/orders"
)

// Deduper remembers processed event ids. MarkOnce reports true the first time it sees key.
type Deduper interface {
	MarkOnce(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Stock orders.StockStore
	Dedup Deduper // optional
}

// HandleStockLevel is installed as the consumer handler.
func (s *Service) HandleStockLevel(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.Header(m, kafkax.HeaderEventType); t != "" && t != orders.EventStockLevelUpdated {
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// a message that never decodes must not block the partition
		log.Printf("stockfeed: drop undecodable message offset=%d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventStockLevelUpdated {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.StockLevelPayload](env.Payload)
	if err != nil {
		log.Printf("stockfeed: drop event=%s: %v", env.EventID, err)
		return nil
	}
	if p.Quantity.IsNegative() || p.Specification.Grade == "" {
		log.Printf("stockfeed: drop event=%s: invalid stock level", env.EventID)
		return nil
	}

	if s.Dedup != nil && env.EventID != "" {
		first, err := s.Dedup.MarkOnce(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup %s: %w", env.EventID, err)
		}
		if !first {
			return nil
		}
	}

	rec, err := s.Stock.UpsertStock(ctx, orders.StockRecord{
		Specification: p.Specification,
		Quantity:      p.Quantity,
	})
	if err != nil {
		// let a redelivery try again
		if s.Dedup != nil && env.EventID != "" {
			_ = s.Dedup.Forget(ctx, env.EventID)
		}
		return fmt.Errorf("upsert stock %s: %w", orders.SpecKey(p.Specification), err)
	}
	log.Printf("stockfeed: %s qty=%s", orders.SpecKey(rec.Specification), rec.Quantity)
	return nil
}
