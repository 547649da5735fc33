package stockfeed

import (
	"context"
	"errors"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/sailsteel/order-desk/internal/kafka"
	"github.com/sailsteel/order-desk/internal/orders"
)

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDedup) MarkOnce(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

func stockMessage(eventID, eventType string, spec orders.Specification, qty string) kafkago.Message {
	env := orders.Envelope{
		EventID:      eventID,
		EventType:    eventType,
		EventVersion: 1,
		Payload: kafkax.MustMarshal(orders.StockLevelPayload{
			Specification: spec,
			Quantity:      decimal.RequireFromString(qty),
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func quantityOf(t *testing.T, store orders.StockFinder, spec orders.Specification) decimal.Decimal {
	t.Helper()
	recs, err := store.FindStock(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	return recs[0].Quantity
}

func TestHandleStockLevel_Upserts(t *testing.T) {
	store := orders.NewMemoryStore(orders.DemoStock())
	require.NoError(t, store.Initialize(context.Background()))
	svc := &Service{Stock: store, Dedup: &memDedup{}}
	spec := orders.DemoStock().Specification

	require.NoError(t, svc.HandleStockLevel(context.Background(), stockMessage("e1", orders.EventStockLevelUpdated, spec, "42")))
	assert.True(t, quantityOf(t, store, spec).Equal(decimal.NewFromInt(42)))

	other := spec
	other.Grade = "316"
	require.NoError(t, svc.HandleStockLevel(context.Background(), stockMessage("e2", orders.EventStockLevelUpdated, other, "3.5")))
	assert.True(t, quantityOf(t, store, other).Equal(decimal.RequireFromString("3.5")))
}

func TestHandleStockLevel_DuplicateEventIgnored(t *testing.T) {
	store := orders.NewMemoryStore(orders.DemoStock())
	require.NoError(t, store.Initialize(context.Background()))
	svc := &Service{Stock: store, Dedup: &memDedup{}}
	spec := orders.DemoStock().Specification

	require.NoError(t, svc.HandleStockLevel(context.Background(), stockMessage("e1", orders.EventStockLevelUpdated, spec, "42")))
	require.NoError(t, svc.HandleStockLevel(context.Background(), stockMessage("e2", orders.EventStockLevelUpdated, spec, "7")))
	// redelivery of e1 must not roll the level back
	require.NoError(t, svc.HandleStockLevel(context.Background(), stockMessage("e1", orders.EventStockLevelUpdated, spec, "42")))

	assert.True(t, quantityOf(t, store, spec).Equal(decimal.NewFromInt(7)))
}

func TestHandleStockLevel_Skips(t *testing.T) {
	store := orders.NewMemoryStore(orders.DemoStock())
	require.NoError(t, store.Initialize(context.Background()))
	svc := &Service{Stock: store}
	spec := orders.DemoStock().Specification

	assert.NoError(t, svc.HandleStockLevel(context.Background(), kafkago.Message{Value: []byte("{not json")}))
	assert.NoError(t, svc.HandleStockLevel(context.Background(), stockMessage("e1", orders.EventOrderCreated, spec, "1")))
	assert.NoError(t, svc.HandleStockLevel(context.Background(), stockMessage("e2", orders.EventStockLevelUpdated, spec, "-4")))

	assert.True(t, quantityOf(t, store, spec).Equal(decimal.NewFromInt(10)))
}

func TestHandleStockLevel_SkipsByHeader(t *testing.T) {
	store := orders.NewMemoryStore(orders.DemoStock())
	require.NoError(t, store.Initialize(context.Background()))
	svc := &Service{Stock: store}
	spec := orders.DemoStock().Specification

	other := stockMessage("e1", orders.EventStockLevelUpdated, spec, "99")
	other.Headers = kafkax.EventHeaders(orders.EventOrderCreated, 1)
	require.NoError(t, svc.HandleStockLevel(context.Background(), other))
	assert.True(t, quantityOf(t, store, spec).Equal(decimal.NewFromInt(10)))

	tagged := stockMessage("e2", orders.EventStockLevelUpdated, spec, "12")
	tagged.Headers = kafkax.EventHeaders(orders.EventStockLevelUpdated, 1)
	require.NoError(t, svc.HandleStockLevel(context.Background(), tagged))
	assert.True(t, quantityOf(t, store, spec).Equal(decimal.NewFromInt(12)))
}

type failingStock struct{ orders.StockStore }

func (failingStock) UpsertStock(context.Context, orders.StockRecord) (orders.StockRecord, error) {
	return orders.StockRecord{}, orders.ErrPersistence
}

func TestHandleStockLevel_FailureAllowsRedelivery(t *testing.T) {
	dedup := &memDedup{}
	svc := &Service{Stock: failingStock{}, Dedup: dedup}
	msg := stockMessage("e1", orders.EventStockLevelUpdated, orders.DemoStock().Specification, "5")

	err := svc.HandleStockLevel(context.Background(), msg)
	assert.ErrorIs(t, err, orders.ErrPersistence)
	assert.False(t, dedup.seen["e1"])
}

func TestHandleStockLevel_DedupError(t *testing.T) {
	store := orders.NewMemoryStore()
	svc := &Service{Stock: store, Dedup: &memDedup{err: errors.New("redis down")}}
	msg := stockMessage("e1", orders.EventStockLevelUpdated, orders.DemoStock().Specification, "5")

	assert.Error(t, svc.HandleStockLevel(context.Background(), msg))
}
