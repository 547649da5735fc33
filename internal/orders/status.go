package orders

type Status string

// Orders are only ever created as pending; later states are handled outside this service.
const StatusPending Status = "pending"

func (s Status) Valid() bool {
	return s == StatusPending
}
