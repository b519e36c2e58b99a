package market

import (
	"math"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of decimals every displayed and compared price carries.
const PricePrecision = 2

// RoundPrice rounds to PricePrecision decimals, half away from zero.
func RoundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(PricePrecision).InexactFloat64()
}

// Delta returns the fractional change from one price to another.
func Delta(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return decimal.NewFromFloat(to).Sub(decimal.NewFromFloat(from)).
		Div(decimal.NewFromFloat(from)).InexactFloat64()
}

// MinPrice is the absolute price floor, one cent.
const MinPrice = 0.01

// Bounds returns the price floor and ceiling relative to the base price.
func Bounds(inst *Instrument) (float64, float64) {
	if inst.BasePrice <= 0 {
		return MinPrice, math.Inf(1)
	}
	return math.Max(MinPrice, inst.BasePrice*0.05), inst.BasePrice * 20
}

// Project applies a fractional effect to the current price exactly the way the
// updater does, so that an emitter's expectation always equals the applied price.
func Project(inst *Instrument, effect float64) float64 {
	return settle(inst, inst.Price*(1+effect))
}

func settle(inst *Instrument, raw float64) float64 {
	floor, ceiling := Bounds(inst)
	// A price already under the floor may fall further but is never lifted by a drop.
	if raw < inst.Price {
		floor = math.Min(floor, math.Max(MinPrice, raw))
	}
	return RoundPrice(math.Max(floor, math.Min(ceiling, raw)))
}

// FormatPrice renders a price the way the UI displays it.
func FormatPrice(p float64) string {
	return "$" + decimal.NewFromFloat(p).StringFixed(PricePrecision)
}

// FormatPct renders a fractional change as a signed one-decimal percentage.
func FormatPct(delta float64) string {
	pct := decimal.NewFromFloat(delta).Mul(decimal.NewFromInt(100))
	s := pct.StringFixed(1)
	if pct.Sign() >= 0 {
		s = "+" + s
	}
	return s + "%"
}
