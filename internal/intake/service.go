// Package intake turns order form submissions into persisted orders and serves them back
// for the confirmation page.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sailsteel/order-desk/internal/auth"
	kafkax "github.com/sailsteel/order-desk/internal/kafka"
	"github.com/sailsteel/order-desk/internal/orders"
)

const instrumentation = "github.com/sailsteel/order-desk/internal/intake"

var (
	ErrMissingFields  = fmt.Errorf("%w: Missing required fields", orders.ErrValidation)
	ErrMissingOrderID = fmt.Errorf("%w: Order ID is required", orders.ErrValidation)
	ErrStockNotFound  = fmt.Errorf("%w: Stock data not found for the specified parameters", orders.ErrNotFound)
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// OrderCache is satisfied by *redisx.OrderCache.
type OrderCache interface {
	Get(ctx context.Context, id string) (orders.Order, bool)
	Put(ctx context.Context, o orders.Order) error
}

type Request struct {
	orders.Specification
	Customer         string
	RequiredQuantity decimal.Decimal

	BQuantity   string
	SSPROID     string
	ReleaseDate string
	MOU         string
	Remarks     string
}

// Validate checks that every field the estimate depends on is present. Numbers must be positive.
func (r Request) Validate() error {
	for _, s := range []string{r.Grade, r.Finish, r.Quality, r.Edge, r.Customer} {
		if strings.TrimSpace(s) == "" {
			return ErrMissingFields
		}
	}
	for _, d := range []decimal.Decimal{r.Thickness, r.Width, r.Length, r.RequiredQuantity} {
		if !d.IsPositive() {
			return ErrMissingFields
		}
	}
	return nil
}

type Service struct {
	Stock     orders.StockFinder
	Orders    orders.OrderStore
	Publisher Publisher  // optional
	Cache     OrderCache // optional
	Producer  string     // event producer name

	Now   func() time.Time
	NewID func() string

	tracer  trace.Tracer
	created metric.Int64Counter
}

func NewService(stock orders.StockFinder, store orders.OrderStore, producer string) *Service {
	s := &Service{
		Stock:    stock,
		Orders:   store,
		Producer: producer,
		Now:      func() time.Time { return time.Now().UTC() },
		NewID:    uuid.NewString,
		tracer:   otel.Tracer(instrumentation),
	}
	created, err := otel.Meter(instrumentation).Int64Counter("orders_created",
		metric.WithDescription("Orders persisted by the intake service"))
	if err != nil {
		log.Printf("intake: orders_created counter: %v", err)
	}
	s.created = created
	return s
}

// CreateOrder validates the request, estimates delivery from the best matching stock record
// and stores a new pending order. Stock is not reserved or decremented.
func (s *Service) CreateOrder(ctx context.Context, req Request, who auth.Identity) (orders.Order, error) {
	ctx, span := s.tracer.Start(ctx, "intake.CreateOrder")
	defer span.End()

	o, err := s.createOrder(ctx, req, who)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return orders.Order{}, err
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.delivery_days", o.DeliveryDays),
	)
	if s.created != nil {
		s.created.Add(ctx, 1, metric.WithAttributes(attribute.Int("delivery_days", o.DeliveryDays)))
	}
	return o, nil
}

func (s *Service) createOrder(ctx context.Context, req Request, who auth.Identity) (orders.Order, error) {
	if err := req.Validate(); err != nil {
		return orders.Order{}, err
	}

	stock, err := s.Stock.FindStock(ctx, req.Specification)
	if err != nil {
		return orders.Order{}, fmt.Errorf("lookup stock: %w", err)
	}
	if len(stock) == 0 {
		return orders.Order{}, ErrStockNotFound
	}

	owner := who.ID
	if who.IsAnonymous() {
		owner = orders.AnonymousUser
	}
	o := orders.Order{
		ID:               s.NewID(),
		Specification:    req.Specification,
		Customer:         strings.TrimSpace(req.Customer),
		RequiredQuantity: req.RequiredQuantity,
		DeliveryDays:     orders.EstimateDeliveryDays(stock[0].Quantity, req.RequiredQuantity),
		Status:           orders.StatusPending,
		UserID:           owner,
		CreatedAt:        s.Now(),
		BQuantity:        req.BQuantity,
		SSPROID:          req.SSPROID,
		ReleaseDate:      req.ReleaseDate,
		MOU:              req.MOU,
		Remarks:          req.Remarks,
	}
	if err := s.Orders.CreateOrder(ctx, o); err != nil {
		if !errors.Is(err, orders.ErrPersistence) {
			err = fmt.Errorf("%w: %w", orders.ErrPersistence, err)
		}
		return orders.Order{}, err
	}

	s.publishCreated(ctx, o)
	return o, nil
}

// publishCreated is best effort: the order is already committed.
func (s *Service) publishCreated(ctx context.Context, o orders.Order) {
	if s.Publisher == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    s.Now(),
		Producer:      s.Producer,
		TraceID:       trace.SpanContextFromContext(ctx).TraceID().String(),
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.NewOrderCreatedPayload(o)),
	}
	err := s.Publisher.Publish(ctx, orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventOrderCreated, ev.EventVersion)...)
	if err != nil {
		log.Printf("publish %s order=%s: %v", orders.EventOrderCreated, o.ID, err)
	}
}

func (s *Service) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return orders.Order{}, ErrMissingOrderID
	}
	if s.Cache != nil {
		if o, ok := s.Cache.Get(ctx, id); ok {
			return o, nil
		}
	}
	o, err := s.Orders.GetOrder(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	if s.Cache != nil {
		if err := s.Cache.Put(ctx, o); err != nil {
			log.Printf("cache order=%s: %v", id, err)
		}
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return s.Orders.ListOrders(ctx)
}

// CheckStock reports the best matching stock record and the lead time for quantity.
func (s *Service) CheckStock(ctx context.Context, spec orders.Specification, quantity decimal.Decimal) (orders.StockRecord, int, error) {
	stock, err := s.Stock.FindStock(ctx, spec)
	if err != nil {
		return orders.StockRecord{}, 0, fmt.Errorf("lookup stock: %w", err)
	}
	if len(stock) == 0 {
		return orders.StockRecord{}, 0, ErrStockNotFound
	}
	return stock[0], orders.EstimateDeliveryDays(stock[0].Quantity, quantity), nil
}
