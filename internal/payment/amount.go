package payment

import "github.com/shopspring/decimal"

const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

var hundred = decimal.NewFromInt(100)

// MinorUnits converts an amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FormatAmount renders an amount with two decimals, as PayPal expects.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
