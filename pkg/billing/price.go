package billing

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice renders amount in the given ISO 4217 currency for display.
// Unknown currency codes fall back to "<amount> <code>".
func FormatPrice(amount float64, currencyCode string) string {
	unit, err := currency.ParseISO(strings.ToUpper(currencyCode))
	if err != nil {
		return strconv.FormatFloat(amount, 'f', 2, 64) + " " + currencyCode
	}
	return pricePrinter.Sprint(currency.Symbol(unit.Amount(amount)))
}

// MinorToMajor converts an amount in minor units (cents) to the major unit
// of the currency, using the currency's standard scale.
func MinorToMajor(minor int64, currencyCode string) float64 {
	scale := 2
	if unit, err := currency.ParseISO(strings.ToUpper(currencyCode)); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	return float64(minor) / math.Pow10(scale)
}
