package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places amounts are stored with.
const AmountScale = 2

// MaxAmount is the exclusive upper bound on stored amounts: ten integer
// digits, matching a numeric(12,2) column.
var MaxAmount = decimal.New(1, 10)

// ToMinor converts an amount to integer minor units (cents), rounding half
// away from zero. Values outside the int64 range are a ValidationError.
func ToMinor(d decimal.Decimal) (int64, error) {
	m := d.Round(AmountScale).Shift(AmountScale).BigInt()
	if !m.IsInt64() {
		return 0, Invalidf("amount %s is out of range", d.String())
	}
	return m.Int64(), nil
}

// CheckAmount rejects amounts that round to zero or below, or that have more
// than ten integer digits.
func CheckAmount(d decimal.Decimal) error {
	d = d.Round(AmountScale)
	if !d.IsPositive() {
		return Invalidf("amount must be greater than zero")
	}
	if d.Cmp(MaxAmount) >= 0 {
		return Invalidf("amount is too large (at most 10 digits before the decimal point)")
	}
	return nil
}

// FromMinor converts integer minor units back to an amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -AmountScale)
}

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
}

// FormatMoney renders an amount with two decimals and the currency symbol or code.
func FormatMoney(d decimal.Decimal, currency string) string {
	s := d.StringFixed(AmountScale)
	if sym, ok := currencySymbols[strings.ToUpper(currency)]; ok {
		return s + sym
	}
	if currency == "" {
		return s
	}
	return s + " " + strings.ToUpper(currency)
}

// ParseAmount reads a user-typed amount. It accepts Arabic-Indic and Persian
// digits, the Arabic decimal separator and a comma decimal separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(NormalizeDigits(s))
	s = strings.TrimRight(s, "€$£ ")
	s = strings.ReplaceAll(s, " ", "")
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Invalidf("%q is not a valid amount", s)
	}
	d = d.Round(AmountScale)
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
