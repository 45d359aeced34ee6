package pricing

import "github.com/shopspring/decimal"

// minorUnitExp is the exponent of the minor currency unit (cents).
const minorUnitExp = -2

// FormatMinor renders an amount of minor units in major units, e.g. 1250 -> "12.50".
func FormatMinor(amount int64) string {
	return decimal.New(amount, minorUnitExp).StringFixed(-minorUnitExp)
}
