package money

import "github.com/shopspring/decimal"

// Format renders minor units with two decimal places, e.g. 2000 -> "$20.00".
func Format(minorUnits int64, symbol string) string {
	return symbol + decimal.New(minorUnits, -2).StringFixed(2)
}
