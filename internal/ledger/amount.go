package ledger

import (
	"github.com/govalues/money"
	"github.com/shopspring/decimal"
)

// Amounts travel on the wire as JSON numbers with at most two fractional
// digits and are held internally as minor units (cents). Conversions go
// through shopspring/decimal so no binary-float drift leaks into the ledger.

// MinorFromNumber rounds v to two decimals and returns it in minor units.
func MinorFromNumber(v float64) int64 {
	return decimal.NewFromFloat(v).Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// NumberFromMinor converts minor units back to a decimal-2 wire number.
func NumberFromMinor(minor int64) float64 {
	f, _ := decimal.New(minor, -2).Float64()
	return f
}

// AmountFromMinor builds a money.Amount in the given currency from minor units.
func AmountFromMinor(currency string, minor int64) money.Amount {
	amt, err := money.NewAmountFromMinorUnits(currency, minor)
	if err != nil {
		amt, _ = money.NewAmountFromMinorUnits("USD", minor)
	}
	return amt
}

// Minor returns the minor units of a money.Amount.
func Minor(a money.Amount) int64 {
	units, _ := a.MinorUnits()
	return units
}
