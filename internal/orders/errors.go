package orders

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindUnavailable       Kind = "service_unavailable"
	KindValidation        Kind = "validation_error"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

var (
	// ErrStockOrphaned: remote stock was adjusted, the order write failed and
	// compensation did not close the gap. Operators must reconcile.
	ErrStockOrphaned = errors.New("stock_adjusted_order_not_persisted")
	// ErrOrderNotPersisted: the order write failed after a stock adjustment
	// that was then compensated.
	ErrOrderNotPersisted = errors.New("order_not_persisted_stock_restored")
)

// Error is what every Service operation returns on failure.
type Error struct {
	Kind      Kind
	Reason    string
	Available int // set for KindInsufficientStock
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. Anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func validationError(reason string) error {
	return &Error{Kind: KindValidation, Reason: reason}
}

func insufficientStock(available int) error {
	return &Error{
		Kind:      KindInsufficientStock,
		Reason:    fmt.Sprintf("insufficient stock, available: %d", available),
		Available: available,
	}
}

func orderNotFound() error {
	return &Error{Kind: KindNotFound, Reason: "order not found"}
}

func internal(reason string, err error) error {
	return &Error{Kind: KindInternal, Reason: reason, Err: err}
}
