// Package money formats monetary amounts for logs and status lines.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"RUB": "₽",
	"USD": "$",
	"EUR": "€",
}

// FormatAmount renders an amount with spaced thousands and a comma decimal
// separator: 1234.5 -> "1 234,50".
func FormatAmount(amount decimal.Decimal, showPlus bool) string {
	s := amount.StringFixed(2)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}

	out := b.String() + "," + fracPart
	if neg {
		return "-" + out
	}
	if showPlus && amount.IsPositive() {
		return "+" + out
	}
	return out
}

// Format appends the currency symbol when it is known, otherwise the code:
// 1234.5, "RUB" -> "1 234,50 ₽".
func Format(amount decimal.Decimal, code string, showPlus bool) string {
	code = strings.ToUpper(code)
	s := FormatAmount(amount, showPlus)
	if sym, ok := currencySymbols[code]; ok {
		return s + " " + sym
	}
	return s + " " + code
}
