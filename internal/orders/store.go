package orders

import (
	"context"
	"sort"
)

type StockFinder interface {
	// FindStock returns every record whose specification matches exactly, most stock first.
	// No match is an empty result, not an error.
	FindStock(ctx context.Context, spec Specification) ([]StockRecord, error)
}

type StockStore interface {
	StockFinder
	UpsertStock(ctx context.Context, rec StockRecord) (StockRecord, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
}

// Store is what the service binaries run against.
type Store interface {
	StockStore
	OrderStore
	Initialize(ctx context.Context) error
}

// SortStock puts the record with the largest quantity first. Remaining ties go to the
// oldest record, then the smallest id, so selection is stable across engines.
func SortStock(recs []StockRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if c := a.Quantity.Cmp(b.Quantity); c != 0 {
			return c > 0
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func sortNewestFirst(list []Order) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*Repo)(nil)
)
