// Package stake decides how much to risk on each trade of a series. The
// engine only sees the Policy interface; progression arithmetic lives behind
// it and is fed settlement outcomes through Observe.
package stake

import (
	"github.com/shopspring/decimal"

	"github.com/qqdanya/intradevor-sub000/internal/broker"
)

// Outcome classifies one settled trade for the policy.
type Outcome int

const (
	// Unknown means the result could not be collected before the bounded
	// wait ran out. Policies should treat it conservatively.
	Unknown Outcome = iota
	Win
	Loss
	// Push is a zero-profit settlement (expiry at the entry price).
	Push
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Loss:
		return "loss"
	case Push:
		return "push"
	default:
		return "unknown"
	}
}

// Classify maps a settled profit onto an outcome.
func Classify(profit decimal.Decimal, ok bool) Outcome {
	switch {
	case !ok:
		return Unknown
	case profit.IsPositive():
		return Win
	case profit.IsNegative():
		return Loss
	default:
		return Push
	}
}

// Result is a settled trade as seen by the policy.
type Result struct {
	Outcome Outcome
	Stake   decimal.Decimal
	Profit  decimal.Decimal
}

// Policy produces the stake for the next trade in a series.
//
// Next returns ok=false when no trade should be placed (budget spent,
// progression cap reached). Observe feeds a settlement back and reports
// whether the series continues with another trade; a false return ends the
// series and the engine goes back to waiting for a fresh signal.
type Policy interface {
	Name() string
	Next(balance decimal.Decimal) (stake decimal.Decimal, ok bool)
	Observe(r Result) (continueSeries bool)
	// Reset returns the policy to the start of a fresh series.
	Reset()
}

// Fixed stakes the same amount on every trade, clamped to the venue's
// limits for the account currency. One trade per signal: the series always
// ends after the first settlement.
type Fixed struct {
	amount   decimal.Decimal
	currency string
}

func NewFixed(amount decimal.Decimal, currency string) *Fixed {
	return &Fixed{amount: broker.ClampStake(currency, amount), currency: currency}
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Next(balance decimal.Decimal) (decimal.Decimal, bool) {
	if f.amount.GreaterThan(balance) {
		return decimal.Zero, false
	}
	return f.amount, true
}

func (f *Fixed) Observe(Result) bool { return false }

func (f *Fixed) Reset() {}

var _ Policy = (*Fixed)(nil)
