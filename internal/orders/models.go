package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnonymousUser is the owner recorded for orders submitted without a verified identity.
const AnonymousUser = "anonymous"

// Specification identifies one steel product variant. Dimensions are in millimetres.
type Specification struct {
	Grade     string          `json:"grade"`
	Thickness decimal.Decimal `json:"thickness"`
	Width     decimal.Decimal `json:"width"`
	Length    decimal.Decimal `json:"length"`
	Finish    string          `json:"finish"`
	Quality   string          `json:"quality"`
	Edge      string          `json:"edge"`
}

// Matches reports whether every field is equal. Decimals compare by value, so 2 and 2.0 match.
func (s Specification) Matches(o Specification) bool {
	return s.Grade == o.Grade &&
		s.Thickness.Equal(o.Thickness) &&
		s.Width.Equal(o.Width) &&
		s.Length.Equal(o.Length) &&
		s.Finish == o.Finish &&
		s.Quality == o.Quality &&
		s.Edge == o.Edge
}

type StockRecord struct {
	ID string `json:"id"`
	Specification
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

type Order struct {
	ID string `json:"id"`
	Specification
	Customer         string          `json:"customer"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	DeliveryDays     int             `json:"delivery_days"`
	Status           Status          `json:"status"`
	UserID           string          `json:"user_id"`
	CreatedAt        time.Time       `json:"created_at"`

	// optional intake fields carried through from the order form
	BQuantity   string `json:"b_quantity,omitempty"`
	SSPROID     string `json:"ssp_ro_id,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	MOU         string `json:"mou,omitempty"`
	Remarks     string `json:"remarks,omitempty"`
}

// ExpectedDeliveryDate is derived from the creation time, it is never stored.
func (o Order) ExpectedDeliveryDate() time.Time {
	return o.CreatedAt.AddDate(0, 0, o.DeliveryDays)
}

// OrderView is the JSON shape served to the confirmation page.
type OrderView struct {
	Order
	ExpectedDeliveryDate time.Time `json:"expected_delivery_date"`
}

func (o Order) View() OrderView {
	return OrderView{Order: o, ExpectedDeliveryDate: o.ExpectedDeliveryDate()}
}

func Views(list []Order) []OrderView {
	out := make([]OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, o.View())
	}
	return out
}
