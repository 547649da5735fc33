package orders

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
	ErrDuplicateID = errors.New("order id already exists")
)
