// Package symbols normalizes instrument codes between UI and API forms.
package symbols

import "strings"

// Any matches every symbol when used as a subscription key.
const Any = "*"

// Longer quote codes first so USDT is matched before USD.
var knownQuotes = []string{
	"USDT", "USDC",
	"USD", "EUR", "RUB", "GBP", "JPY", "AUD", "NZD", "CAD", "CHF",
	"CNY", "CNH", "TRY", "PLN", "SEK",
}

// API converts any spelling to the venue form: "eur/usdt" -> "EURUSDT".
func API(s string) string {
	s = strings.TrimSpace(s)
	if s == Any {
		return Any
	}
	return strings.ToUpper(strings.ReplaceAll(s, "/", ""))
}

// Split breaks a pair into base and quote: "EURUSDT" -> ("EUR", "USDT").
func Split(s string) (base, quote string) {
	raw := API(s)
	for _, q := range knownQuotes {
		if len(raw) > len(q) && strings.HasSuffix(raw, q) {
			return raw[:len(raw)-len(q)], q
		}
	}
	if len(raw) <= 3 {
		return raw, ""
	}
	return raw[:len(raw)-3], raw[len(raw)-3:]
}

// UI renders the display form: "EURUSDT" -> "EUR/USDT".
func UI(s string) string {
	base, quote := Split(s)
	if quote == "" {
		return base
	}
	return base + "/" + quote
}
