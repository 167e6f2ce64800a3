// Package currency converts catalogue prices, which are stored in the base
// currency, into a visitor's selected display currency using a fixed rate
// table. Rates are multiplicative against the base unit (EUR = 1.0).
package currency

import (
	"fmt"
	"math"
)

// BaseCode is the reference currency all rates are expressed relative to.
const BaseCode = "EUR"

// Info describes a supported display currency.
type Info struct {
	Code       string  `json:"code"`
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Rate       float64 `json:"rate"`        // Multiplicative rate vs the base currency
	MinorUnits int     `json:"minor_units"` // Decimal places shown; 0 for currencies without a minor unit
}

// table is the fixed set of supported currencies with their static rates.
var table = map[string]Info{
	"EUR": {Code: "EUR", Symbol: "€", Name: "Euro", Rate: 1.0, MinorUnits: 2},
	"USD": {Code: "USD", Symbol: "$", Name: "US Dollar", Rate: 1.09, MinorUnits: 2},
	"GBP": {Code: "GBP", Symbol: "£", Name: "British Pound", Rate: 0.86, MinorUnits: 2},
	"CHF": {Code: "CHF", Symbol: "CHF ", Name: "Swiss Franc", Rate: 0.94, MinorUnits: 2},
	"AUD": {Code: "AUD", Symbol: "A$", Name: "Australian Dollar", Rate: 1.65, MinorUnits: 2},
	"JPY": {Code: "JPY", Symbol: "¥", Name: "Japanese Yen", Rate: 163.0, MinorUnits: 0},
}

// codes lists the supported codes in a stable display order.
var codes = []string{"EUR", "USD", "GBP", "CHF", "AUD", "JPY"}

// Get returns the currency info for code, if supported.
func Get(code string) (Info, bool) {
	info, ok := table[code]
	return info, ok
}

// Resolve returns the currency info for code, silently falling back to the
// base currency for unrecognized codes (e.g. a stale persisted selection).
func Resolve(code string) Info {
	if info, ok := table[code]; ok {
		return info
	}
	return table[BaseCode]
}

// All returns all supported currencies in display order.
func All() []Info {
	out := make([]Info, 0, len(codes))
	for _, code := range codes {
		out = append(out, table[code])
	}
	return out
}

// Convert converts an amount in the base currency into this currency,
// rounded to the currency's minor units.
func (i Info) Convert(amount float64) float64 {
	scale := math.Pow(10, float64(i.MinorUnits))
	return math.Round(amount*i.Rate*scale) / scale
}

// Format renders a base-currency amount in this currency: symbol prefix,
// minor-unit precision, and optionally the currency code as a suffix.
func (i Info) Format(amount float64, withCode bool) string {
	converted := i.Convert(amount)
	s := fmt.Sprintf("%s%.*f", i.Symbol, i.MinorUnits, converted)
	if withCode {
		s += " " + i.Code
	}
	return s
}
