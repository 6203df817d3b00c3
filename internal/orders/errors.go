package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the order (or promotion) does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrConcurrentModification means a concurrent writer won the race for
	// this order; the caller should re-read and retry.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrNotEditable means line items may no longer be changed.
	ErrNotEditable = errors.New("order items can only be edited while pending")

	// ErrOrderClosed means the order reached a terminal status and no
	// promotion can be applied anymore.
	ErrOrderClosed = errors.New("order is closed")
)

// InvalidTransitionError carries the attempted and current statuses of a
// rejected state change. The order is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}
