package service

import "errors"

var (
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrNotAuthenticated     = errors.New("checkout requires an authenticated user")
	ErrAgreementsNotChecked = errors.New("all checkout agreements must be accepted")
	ErrInvalidFulfillment   = errors.New("unknown fulfillment selection")
	ErrIllegalTransition    = errors.New("illegal transition of checkout status")
)

// PartialFailureError reports an order whose header was created but where
// one or more item writes were rejected. The failed lines stay in the cart
// so the caller can retry them.
type PartialFailureError struct {
	OrderID     int64
	OrderNumber string
	FailedItems []int64
}

func (e *PartialFailureError) Error() string {
	return "order created but some order items failed"
}
