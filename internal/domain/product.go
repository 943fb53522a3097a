package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product styles as stored in the catalog.
const (
	StyleMarinated   = "marinated"
	StyleProcessed   = "processed"
	StyleUnprocessed = "unprocessed"
)

func ValidStyle(s string) bool {
	return s == StyleMarinated || s == StyleProcessed || s == StyleUnprocessed
}

type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	Spec            string          `json:"spec"`
	Style           string          `json:"style"`
	Ingredients     string          `json:"ingredients,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
