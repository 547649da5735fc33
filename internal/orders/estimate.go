package orders

import "github.com/shopspring/decimal"

const (
	ExStockDays     = 1 // shipped next day from inventory
	MakeToOrderDays = 7
)

// EstimateDeliveryDays is a two-tier rule: ex-stock when the on-hand quantity covers the request,
// make-to-order otherwise. Partial fulfilment is not considered.
func EstimateDeliveryDays(available, required decimal.Decimal) int {
	if available.GreaterThanOrEqual(required) {
		return ExStockDays
	}
	return MakeToOrderDays
}
