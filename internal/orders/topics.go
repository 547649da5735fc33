package orders

import "strings"

const (
	TopicOrderCreated      = "steel.order.created"
	TopicStockLevelUpdated = "steel.stock.level.updated"
)

// Partition key = order id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

// SpecKey is a stable text key for a specification, used to label stock updates in logs and errors.
func SpecKey(s Specification) string {
	return strings.Join([]string{
		s.Grade, s.Thickness.String(), s.Width.String(), s.Length.String(), s.Finish, s.Quality, s.Edge,
	}, "|")
}
