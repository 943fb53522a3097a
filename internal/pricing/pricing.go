// Package pricing derives order totals from a cart and a fulfillment
// selection. Everything here is a pure function over decimals; callers
// recompute a quote whenever the cart or the selection changes.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"meatline/internal/domain"
)

var (
	// Flat fee for delivery orders regardless of weight.
	deliveryFlatFee = decimal.NewFromInt(25)
	// Express pickup is charged per pound of total cart weight.
	expressRatePerLb = decimal.RequireFromString("0.25")
)

// Quote is the derived money breakdown for one cart + fulfillment pair.
type Quote struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	TotalWeight      decimal.Decimal `json:"total_weight"`
	DeliveryFee      decimal.Decimal `json:"delivery_fee"`
	ExpressPickupFee decimal.Decimal `json:"express_pickup_fee"`
	FinalTotal       decimal.Decimal `json:"final_total"`
}

// EffectiveUnitPrice is the price actually charged per unit: the discounted
// price when it is positive, the list price otherwise.
func EffectiveUnitPrice(line domain.CartLine) decimal.Decimal {
	if line.DiscountedPrice.IsPositive() {
		return line.DiscountedPrice
	}
	if line.Price.IsNegative() {
		return decimal.Zero
	}
	return line.Price
}

// Subtotal sums effective unit price times quantity over every line.
func Subtotal(items []domain.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range items {
		sum = sum.Add(EffectiveUnitPrice(line).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum
}

// TotalWeight sums quantity times per-unit weight over every line.
func TotalWeight(items []domain.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range items {
		sum = sum.Add(WeightFor(line.Spec).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum
}

// Compute derives the full quote. Exactly one of the two fees is nonzero,
// except for pickup where both are zero. An empty cart with delivery selected
// still quotes the flat fee; that matches the storefront's established
// behavior and is handled by the empty-cart guard at checkout instead.
func Compute(items []domain.CartLine, f domain.Fulfillment) Quote {
	q := Quote{
		Subtotal:         Subtotal(items),
		TotalWeight:      TotalWeight(items),
		DeliveryFee:      decimal.Zero,
		ExpressPickupFee: decimal.Zero,
	}

	switch f {
	case domain.FulfillmentDelivery:
		q.DeliveryFee = deliveryFlatFee
	case domain.FulfillmentExpressPickup:
		q.ExpressPickupFee = q.TotalWeight.Mul(expressRatePerLb)
	}

	q.FinalTotal = q.Subtotal.Add(q.DeliveryFee).Add(q.ExpressPickupFee)
	return q
}

// Round returns a copy with all money fields rounded to cents. Internal
// arithmetic stays unrounded; only what goes out on the wire is rounded.
func (q Quote) Round() Quote {
	q.Subtotal = q.Subtotal.Round(2)
	q.DeliveryFee = q.DeliveryFee.Round(2)
	q.ExpressPickupFee = q.ExpressPickupFee.Round(2)
	q.FinalTotal = q.FinalTotal.Round(2)
	return q
}

// Snapshot freezes the cart and its quote into the form stored on a checkout
// session and sent to the Order API.
func Snapshot(items []domain.CartLine, q Quote, capturedAt time.Time) domain.CartSnapshot {
	snap := domain.CartSnapshot{
		Currency:   "USD",
		CapturedAt: capturedAt,
		Items:      make([]domain.CartSnapshotItem, 0, len(items)),
	}
	for _, line := range items {
		unit := EffectiveUnitPrice(line)
		snap.Items = append(snap.Items, domain.CartSnapshotItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Subtotal:  unit.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}
	snap.Subtotal = q.Subtotal.Round(2)
	snap.DeliveryFee = q.DeliveryFee.Round(2)
	snap.ExpressPickupFee = q.ExpressPickupFee.Round(2)
	snap.TotalAmount = q.FinalTotal.Round(2)
	return snap
}
