package payment

import "github.com/shopspring/decimal"

// ExpectedAmount is the amount a provider reports back for an order of final value,
// given how each provider truncates the fractional part
func ExpectedAmount(kind Kind, final decimal.Decimal) decimal.Decimal {
	switch kind {
	case KindWallet:
		return final.Round(0)
	case KindGateway:
		return final.Floor()
	}
	return final
}

// AmountMatches reports whether a callback amount agrees with the order's final amount
func AmountMatches(o *Outcome, final decimal.Decimal) bool {
	return o.Amount.Equal(ExpectedAmount(o.Kind, final))
}
