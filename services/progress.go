package services

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CalculateProgress returns completed/total as a percentage rounded to two
// decimals and capped at 100, plus whether the course is complete.
// A course without lessons has zero progress.
func CalculateProgress(completed, total int) (decimal.Decimal, bool) {
	if total <= 0 || completed <= 0 {
		return decimal.Zero, false
	}
	if completed >= total {
		return hundred, true
	}
	pct := decimal.NewFromInt(int64(completed)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(hundred).
		Round(2)
	if pct.GreaterThanOrEqual(hundred) {
		return hundred, true
	}
	return pct, false
}
