package pricing

import "github.com/shopspring/decimal"

// Per-unit weight in pounds, keyed by the literal pack-size string printed on
// the product. The spec string is free text; anything not in this table
// weighs zero for fee purposes.
var unitWeights = map[string]int64{
	"5 lb pack":               5,
	"10 lb - 5 lb x 2 packs":  10,
	"15 lb - 5 lb x 3 packs":  15,
	"20 lb - 5 lb x 4 packs":  20,
	"30 lb - 5 lb x 6 packs":  30,
	"40 lb - 10 lb x 4 packs": 40,
	"50 lb - 10 lb x 5 packs": 50,
	"60 lb - 10 lb x 6 packs": 60,
}

// WeightFor returns the per-unit weight for a pack-size string, zero when
// the string is unrecognized.
func WeightFor(spec string) decimal.Decimal {
	return decimal.NewFromInt(unitWeights[spec])
}
