package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sailsteel/order-desk/internal/auth"
	"github.com/sailsteel/order-desk/internal/orders"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error {
	args := m.Called(ctx, key, value, headers)
	return args.Error(0)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) CreateOrder(ctx context.Context, o orders.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderStore) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(orders.Order), args.Error(1)
}

func (m *MockOrderStore) ListOrders(ctx context.Context) ([]orders.Order, error) {
	args := m.Called(ctx)
	return args.Get(0).([]orders.Order), args.Error(1)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]orders.Order
	puts int
}

func (c *mapCache) Get(_ context.Context, id string) (orders.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.data[id]
	return o, ok
}

func (c *mapCache) Put(_ context.Context, o orders.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]orders.Order{}
	}
	c.data[o.ID] = o
	c.puts++
	return nil
}

var fixedNow = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *orders.MemoryStore) {
	t.Helper()
	store := orders.NewMemoryStore(orders.DemoStock())
	require.NoError(t, store.Initialize(context.Background()))
	svc := NewService(store, store, "order-desk-test")
	svc.Now = func() time.Time { return fixedNow }
	return svc, store
}

func demoRequest(qty int64) Request {
	return Request{
		Specification:    orders.DemoStock().Specification,
		Customer:         "ABC Corp",
		RequiredQuantity: decimal.NewFromInt(qty),
	}
}

func TestCreateOrder_DeliveryDays(t *testing.T) {
	tests := []struct {
		name string
		qty  int64
		want int
	}{
		{"covered by stock", 5, 1},
		{"exactly the stock", 10, 1},
		{"exceeds stock", 20, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)

			o, err := svc.CreateOrder(context.Background(), demoRequest(tt.qty), auth.Anonymous)
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.DeliveryDays)
			assert.Equal(t, orders.StatusPending, o.Status)
			assert.Equal(t, orders.AnonymousUser, o.UserID)
			assert.Equal(t, fixedNow, o.CreatedAt)

			stored, err := store.GetOrder(context.Background(), o.ID)
			require.NoError(t, err)
			assert.Equal(t, o, stored)
		})
	}
}

func TestCreateOrder_OwnerFromIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	o, err := svc.CreateOrder(context.Background(), demoRequest(1), auth.Identity{ID: "u-42"})
	require.NoError(t, err)
	assert.Equal(t, "u-42", o.UserID)

	o, err = svc.CreateOrder(context.Background(), demoRequest(1), auth.Identity{})
	require.NoError(t, err)
	assert.Equal(t, orders.AnonymousUser, o.UserID)
}

func TestCreateOrder_MissingFields(t *testing.T) {
	cases := map[string]func(*Request){
		"grade":             func(r *Request) { r.Grade = "" },
		"thickness":         func(r *Request) { r.Thickness = decimal.Zero },
		"width":             func(r *Request) { r.Width = decimal.Zero },
		"length":            func(r *Request) { r.Length = decimal.Zero },
		"finish":            func(r *Request) { r.Finish = " " },
		"quality":           func(r *Request) { r.Quality = "" },
		"edge":              func(r *Request) { r.Edge = "" },
		"customer":          func(r *Request) { r.Customer = "" },
		"required quantity": func(r *Request) { r.RequiredQuantity = decimal.Zero },
		"negative quantity": func(r *Request) { r.RequiredQuantity = decimal.NewFromInt(-3) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, store := newTestService(t)
			req := demoRequest(5)
			mutate(&req)

			_, err := svc.CreateOrder(context.Background(), req, auth.Anonymous)
			assert.ErrorIs(t, err, ErrMissingFields)
			assert.ErrorIs(t, err, orders.ErrValidation)

			list, err := store.ListOrders(context.Background())
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestCreateOrder_NoMatchingStock(t *testing.T) {
	svc, store := newTestService(t)
	req := demoRequest(5)
	req.Grade = "999"

	_, err := svc.CreateOrder(context.Background(), req, auth.Anonymous)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	list, err := store.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateOrder_UsesLargestMatchingStock(t *testing.T) {
	stock := []orders.StockRecord{
		{ID: "small", Specification: orders.DemoStock().Specification, Quantity: decimal.NewFromInt(2)},
		{ID: "large", Specification: orders.DemoStock().Specification, Quantity: decimal.NewFromInt(50)},
	}
	store := orders.NewMemoryStore()
	svc := NewService(stubFinder(stock), store, "test")

	o, err := svc.CreateOrder(context.Background(), demoRequest(20), auth.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, 1, o.DeliveryDays)
}

type stubFinder []orders.StockRecord

func (s stubFinder) FindStock(_ context.Context, spec orders.Specification) ([]orders.StockRecord, error) {
	out := []orders.StockRecord{}
	for _, r := range s {
		if r.Matches(spec) {
			out = append(out, r)
		}
	}
	orders.SortStock(out)
	return out, nil
}

func TestCreateOrder_PersistenceFailure(t *testing.T) {
	store := orders.NewMemoryStore(orders.DemoStock())
	require.NoError(t, store.Initialize(context.Background()))
	failing := new(MockOrderStore)
	failing.On("CreateOrder", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	pub := new(MockPublisher)

	svc := NewService(store, failing, "test")
	svc.Publisher = pub

	_, err := svc.CreateOrder(context.Background(), demoRequest(5), auth.Anonymous)
	assert.ErrorIs(t, err, orders.ErrPersistence)
	failing.AssertExpectations(t)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrder_PublishesOrderCreated(t *testing.T) {
	svc, _ := newTestService(t)
	svc.NewID = func() string { return "order-1" }
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, []byte("order-1"), mock.Anything, mock.Anything).Return(nil)
	svc.Publisher = pub

	_, err := svc.CreateOrder(context.Background(), demoRequest(5), auth.Anonymous)
	require.NoError(t, err)
	pub.AssertExpectations(t)

	value := pub.Calls[0].Arguments.Get(2).([]byte)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(value, &env))
	assert.Equal(t, orders.EventOrderCreated, env.EventType)
	assert.Equal(t, "order-1", env.CorrelationID)

	var p orders.OrderCreatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, 1, p.DeliveryDays)
	assert.True(t, fixedNow.AddDate(0, 0, 1).Equal(p.ExpectedDelivery))
}

func TestCreateOrder_PublishFailureKeepsOrder(t *testing.T) {
	svc, store := newTestService(t)
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))
	svc.Publisher = pub

	o, err := svc.CreateOrder(context.Background(), demoRequest(5), auth.Anonymous)
	require.NoError(t, err)

	_, err = store.GetOrder(context.Background(), o.ID)
	assert.NoError(t, err)
}

func TestCreateOrder_ResubmitCreatesDistinctOrders(t *testing.T) {
	svc, store := newTestService(t)

	a, err := svc.CreateOrder(context.Background(), demoRequest(5), auth.Anonymous)
	require.NoError(t, err)
	b, err := svc.CreateOrder(context.Background(), demoRequest(5), auth.Anonymous)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	list, err := store.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreateOrder_ConcurrentIDsAreUnique(t *testing.T) {
	store := orders.NewMemoryStore(orders.DemoStock())
	require.NoError(t, store.Initialize(context.Background()))
	svc := NewService(store, store, "test")

	const n = 100
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := svc.CreateOrder(context.Background(), demoRequest(5), auth.Anonymous)
			if assert.NoError(t, err) {
				ids <- o.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		_, err := svc.GetOrder(context.Background(), id)
		assert.NoError(t, err)
	}
	assert.Len(t, seen, n)
}

func TestGetOrder(t *testing.T) {
	svc, _ := newTestService(t)
	o, err := svc.CreateOrder(context.Background(), demoRequest(5), auth.Anonymous)
	require.NoError(t, err)

	first, err := svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	second, err := svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = svc.GetOrder(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingOrderID)

	_, err = svc.GetOrder(context.Background(), "nope")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestGetOrder_ReadThroughCache(t *testing.T) {
	backing := new(MockOrderStore)
	want := orders.Order{ID: "o-1", Status: orders.StatusPending}
	backing.On("GetOrder", mock.Anything, "o-1").Return(want, nil).Once()

	svc := NewService(stubFinder(nil), backing, "test")
	cache := &mapCache{}
	svc.Cache = cache

	for i := 0; i < 3; i++ {
		got, err := svc.GetOrder(context.Background(), "o-1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	backing.AssertExpectations(t)
	assert.Equal(t, 1, cache.puts)
}

func TestListOrders_PropagatesFailure(t *testing.T) {
	backing := new(MockOrderStore)
	backing.On("ListOrders", mock.Anything).Return([]orders.Order(nil), fmt.Errorf("%w: timeout", orders.ErrPersistence))

	svc := NewService(stubFinder(nil), backing, "test")
	_, err := svc.ListOrders(context.Background())
	assert.ErrorIs(t, err, orders.ErrPersistence)
}

func TestCheckStock(t *testing.T) {
	svc, _ := newTestService(t)

	rec, days, err := svc.CheckStock(context.Background(), orders.DemoStock().Specification, decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.Equal(t, "1", rec.ID)
	assert.Equal(t, 7, days)

	spec := orders.DemoStock().Specification
	spec.Edge = "Trim"
	_, _, err = svc.CheckStock(context.Background(), spec, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrStockNotFound)
}
