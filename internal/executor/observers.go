package executor

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PendingTrade is handed to observers the moment a placement is accepted.
type PendingTrade struct {
	TradeID       string
	Bot           string
	Symbol        string
	Timeframe     string
	Direction     string
	Stake         decimal.Decimal
	Currency      string
	PayoutPercent int
	WaitSeconds   int
	ExpectedEnd   time.Time
	DemoAccount   bool
	Indicator     string
	SeriesLabel   string
}

// TradeResult is handed to observers once the trade settles. Known is false
// when the outcome stayed undetermined after bounded polling.
type TradeResult struct {
	PendingTrade
	Profit decimal.Decimal
	Known  bool
}

// Observers groups the per-bot callbacks. All of them are fire-and-forget:
// a panicking observer is logged and never aborts engine logic. Nil
// callbacks are skipped.
type Observers struct {
	OnStatus       func(text string)
	OnTradePending func(p PendingTrade)
	OnTradeResult  func(r TradeResult)
}

// Status emits a phase-change text, containing any observer panic.
func (o Observers) Status(log zerolog.Logger, text string) {
	if o.OnStatus == nil {
		return
	}
	defer recoverObserver(log, "onStatus")
	o.OnStatus(text)
}

// Pending announces an accepted placement.
func (o Observers) Pending(log zerolog.Logger, p PendingTrade) {
	if o.OnTradePending == nil {
		return
	}
	defer recoverObserver(log, "onTradePending")
	o.OnTradePending(p)
}

// Result announces a settlement.
func (o Observers) Result(log zerolog.Logger, r TradeResult) {
	if o.OnTradeResult == nil {
		return
	}
	defer recoverObserver(log, "onTradeResult")
	o.OnTradeResult(r)
}

func recoverObserver(log zerolog.Logger, name string) {
	if r := recover(); r != nil {
		log.Error().Str("observer", name).Interface("panic", r).Msg("observer panicked")
	}
}
