package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        string     `json:"-"`
	UserID    string     `json:"user_id"`
	Items     []CartLine `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartLine is one product entry in the cart with its own quantity.
// Prices are the ones captured when the product was first added; later
// catalog changes do not touch an existing line.
type CartLine struct {
	ProductID       int64           `json:"product_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	Spec            string          `json:"spec"`
	Style           string          `json:"style"`
	Quantity        int             `json:"quantity"`
	AddedAt         time.Time       `json:"added_at"`
}

// NewCartLine copies a product into a fresh line with quantity 1. The
// ingredients text is not carried into the cart.
func NewCartLine(p Product, now time.Time) CartLine {
	return CartLine{
		ProductID:       p.ID,
		Name:            p.Name,
		Price:           p.Price,
		DiscountedPrice: p.DiscountedPrice,
		Spec:            p.Spec,
		Style:           p.Style,
		Quantity:        1,
		AddedAt:         now,
	}
}

// Line returns the line for productID, or nil.
func (c *Cart) Line(productID int64) *CartLine {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}
