package store

import "errors"

// Errors returned by the store.
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict is returned by UpdateOrderStatus when the order's
	// current status no longer matches what the caller read. The write is
	// not applied; the caller re-reads and decides.
	ErrStatusConflict = errors.New("order status changed concurrently")

	// ErrDuplicate is returned when inserting a record whose key already exists.
	ErrDuplicate = errors.New("record already exists")
)
