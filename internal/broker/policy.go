package broker

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Venue stake limits per account currency.
var stakeLimits = map[string][2]int64{
	"RUB": {100, 50_000},
	"USD": {1, 700},
}

const defaultCurrency = "RUB"

// StakeRange returns the venue's stake bounds for the account currency.
func StakeRange(currency string) (lo, hi decimal.Decimal) {
	lim, ok := stakeLimits[strings.ToUpper(currency)]
	if !ok {
		lim = stakeLimits[defaultCurrency]
	}
	return decimal.NewFromInt(lim[0]), decimal.NewFromInt(lim[1])
}

// ClampStake bounds a stake into the permitted range.
func ClampStake(currency string, amount decimal.Decimal) decimal.Decimal {
	lo, hi := StakeRange(currency)
	if amount.LessThan(lo) {
		return lo
	}
	if amount.GreaterThan(hi) {
		return hi
	}
	return amount
}

// SprintAllowed reports whether the venue accepts a sprint of m minutes for
// the symbol. BTCUSDT only trades 5..500; everything else 1 or 3..500.
func SprintAllowed(symbol string, m int) bool {
	if symbol == "BTCUSDT" {
		return m >= 5 && m <= 500
	}
	return m == 1 || (m >= 3 && m <= 500)
}

// NormalizeSprint clamps minutes into 1..500 and reports whether the result
// is a permitted sprint duration; ok=false means no valid duration exists
// near the request.
func NormalizeSprint(symbol string, minutes int) (int, bool) {
	m := minutes
	if m < 1 {
		m = 1
	}
	if m > 500 {
		m = 500
	}
	if SprintAllowed(symbol, m) {
		return m, true
	}
	return 0, false
}
