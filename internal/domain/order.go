package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the local read model of an order the upstream Order API accepted.
// The upstream service owns the record; this mirror feeds order history and
// the admin dashboard.
type Order struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	OrderDate   time.Time       `json:"order_date"`
	UserID      string          `json:"user_id"`
	OrderType   Fulfillment     `json:"order_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
