package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutStatus string

const (
	CheckoutStatusInitiated       CheckoutStatus = "INITIATED"
	CheckoutStatusOrderCreated    CheckoutStatus = "ORDER_CREATED"
	CheckoutStatusCompleted       CheckoutStatus = "COMPLETED"
	CheckoutStatusPartiallyFailed CheckoutStatus = "PARTIALLY_FAILED"
	CheckoutStatusFailed          CheckoutStatus = "FAILED"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted || s == CheckoutStatusFailed || s == CheckoutStatusPartiallyFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusInitiated:    {CheckoutStatusOrderCreated, CheckoutStatusFailed},
	CheckoutStatusOrderCreated: {CheckoutStatusCompleted, CheckoutStatusPartiallyFailed},
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CartSnapshotItem is an item with the price captured at checkout time.
type CartSnapshotItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartSnapshot is the full cart state at checkout time, kept on the
// checkout session so a replayed request sees exactly what was charged.
type CartSnapshot struct {
	Items            []CartSnapshotItem `json:"items"`
	Subtotal         decimal.Decimal    `json:"subtotal"`
	DeliveryFee      decimal.Decimal    `json:"delivery_fee"`
	ExpressPickupFee decimal.Decimal    `json:"express_pickup_fee"`
	TotalAmount      decimal.Decimal    `json:"total_amount"`
	Currency         string             `json:"currency"`
	CapturedAt       time.Time          `json:"captured_at"`
}

// CheckoutSession is the server-side record of one checkout attempt.
type CheckoutSession struct {
	ID             string
	IdempotencyKey string
	UserID         string
	OrderType      Fulfillment
	Status         CheckoutStatus
	CartSnapshot   json.RawMessage
	OrderID        int64
	OrderNumber    string
	OrderDate      time.Time
	FailedItems    []int64
	FailureReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
