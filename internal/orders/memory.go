package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps stock and orders in process. It backs local runs and tests.
type MemoryStore struct {
	*Initializer

	mu     sync.RWMutex
	stock  []StockRecord
	orders []Order
	byID   map[string]int
	seed   []StockRecord
}

// NewMemoryStore returns a store that loads seed into stock on Initialize.
func NewMemoryStore(seed ...StockRecord) *MemoryStore {
	m := &MemoryStore{byID: map[string]int{}, seed: seed}
	m.Initializer = NewInitializer(m.load)
	return m
}

// DemoStock is the record the storefront ships with.
func DemoStock() StockRecord {
	return StockRecord{
		ID: "1",
		Specification: Specification{
			Grade:     "304",
			Thickness: decimal.RequireFromString("2.0"),
			Width:     decimal.NewFromInt(1000),
			Length:    decimal.NewFromInt(2000),
			Finish:    "2B",
			Quality:   "Prime",
			Edge:      "Mill",
		},
		Quantity:  decimal.NewFromInt(10),
		CreatedAt: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *MemoryStore) load(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.seed {
		m.upsertLocked(rec)
	}
	return nil
}

func (m *MemoryStore) FindStock(_ context.Context, spec Specification) ([]StockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []StockRecord{}
	for _, rec := range m.stock {
		if rec.Matches(spec) {
			out = append(out, rec)
		}
	}
	SortStock(out)
	return out, nil
}

func (m *MemoryStore) UpsertStock(_ context.Context, rec StockRecord) (StockRecord, error) {
	if rec.Quantity.IsNegative() {
		return StockRecord{}, fmt.Errorf("%w: negative quantity", ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(rec), nil
}

func (m *MemoryStore) upsertLocked(rec StockRecord) StockRecord {
	for i, cur := range m.stock {
		if cur.Matches(rec.Specification) {
			m.stock[i].Quantity = rec.Quantity
			return m.stock[i]
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.stock = append(m.stock, rec)
	return rec
}

func (m *MemoryStore) CreateOrder(_ context.Context, o Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, o.Status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[o.ID]; ok {
		return fmt.Errorf("%w: %w: %s", ErrPersistence, ErrDuplicateID, o.ID)
	}
	m.byID[o.ID] = len(m.orders)
	m.orders = append(m.orders, o)
	return nil
}

func (m *MemoryStore) GetOrder(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return m.orders[i], nil
}

// ListOrders returns newest first. Orders sharing a timestamp keep reverse insertion order.
func (m *MemoryStore) ListOrders(_ context.Context) ([]Order, error) {
	m.mu.RLock()
	out := make([]Order, len(m.orders))
	for i, o := range m.orders {
		out[len(m.orders)-1-i] = o
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}
