package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated      = "OrderCreated"
	EventStockLevelUpdated = "StockLevelUpdated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id or stock spec key
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID          string          `json:"order_id"`
	UserID           string          `json:"user_id"`
	Customer         string          `json:"customer"`
	Specification    Specification   `json:"specification"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	DeliveryDays     int             `json:"delivery_days"`
	ExpectedDelivery time.Time       `json:"expected_delivery_date"`
}

func NewOrderCreatedPayload(o Order) OrderCreatedPayload {
	return OrderCreatedPayload{
		OrderID:          o.ID,
		UserID:           o.UserID,
		Customer:         o.Customer,
		Specification:    o.Specification,
		RequiredQuantity: o.RequiredQuantity,
		DeliveryDays:     o.DeliveryDays,
		ExpectedDelivery: o.ExpectedDeliveryDate(),
	}
}

// StockLevelPayload carries the absolute on-hand quantity for one specification.
type StockLevelPayload struct {
	Specification Specification   `json:"specification"`
	Quantity      decimal.Decimal `json:"quantity"`
}
