// Package core provides money parsing and handling utilities.
//
// This file converts decimal amounts reported by aggregators into signed
// integer minor units. No floating point is involved at any step.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var minorUnitExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "ISK": 0, "JPY": 0, "KRW": 0, "PYG": 0, "UGX": 0, "VND": 0, "XAF": 0, "XOF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// MinorUnitExponent returns the number of decimal digits in one major unit
// of the currency. Unknown codes default to 2.
func MinorUnitExponent(currency string) int32 {
	if exp, ok := minorUnitExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// ParseMinorUnits converts a decimal string to signed minor units.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Digits beyond the
// currency's exponent are rounded half away from zero.
//
// Examples:
//
//	ParseMinorUnits("12.34", "USD")  -> 1234, nil
//	ParseMinorUnits("-0.015", "USD") -> -2, nil
//	ParseMinorUnits("1200", "JPY")   -> 1200, nil
func ParseMinorUnits(s, currency string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return DecimalToMinorUnits(d, currency)
}

// DecimalToMinorUnits scales d by the currency exponent and rounds.
func DecimalToMinorUnits(d decimal.Decimal, currency string) (int64, error) {
	exp := MinorUnitExponent(currency)
	scaled := d.Shift(exp).Round(0)
	if !scaled.IsInteger() || scaled.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrInvalidAmount
	}
	return scaled.IntPart(), nil
}

// FormatMinorUnits renders minor units as a plain decimal string, e.g. "-12.05".
func FormatMinorUnits(amount int64, currency string) string {
	exp := MinorUnitExponent(currency)
	return decimal.New(amount, -exp).StringFixed(exp)
}
