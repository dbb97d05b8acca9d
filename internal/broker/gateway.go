// Package broker defines the venue gateway the engine trades through, the
// venue rule tables, and gateway decorators (rate limiting, circuit
// breaking) shared by every implementation.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qqdanya/intradevor-sub000/internal/signal"
)

// TradeType selects the expiry model of a binary option.
type TradeType string

const (
	// Sprint expires a fixed number of minutes after placement.
	Sprint TradeType = "sprint"
	// Classic expires at an absolute candle boundary.
	Classic TradeType = "classic"
)

var (
	// ErrTransport marks a network/venue availability failure. The engine
	// treats it as "no result, try later", never as fatal.
	ErrTransport = errors.New("broker: transport failure")
	// ErrRejected marks a business rejection (bad stake, expiry not
	// permitted). Not retried.
	ErrRejected = errors.New("broker: trade rejected")
)

// TradeRequest describes one placement.
type TradeRequest struct {
	Symbol    string
	Direction signal.Direction
	Stake     decimal.Decimal
	Currency  string
	TradeType TradeType
	// Minutes is the sprint duration; classic trades use ExpireAt instead.
	Minutes  int
	ExpireAt time.Time
}

// PayoutQuery asks for the current percent for a prospective trade.
type PayoutQuery struct {
	Symbol    string
	Stake     decimal.Decimal
	Minutes   int
	Currency  string
	TradeType TradeType
}

// Balance is the venue account balance at a point in time.
type Balance struct {
	Amount   decimal.Decimal
	Currency string
}

// Gateway abstracts the trading venue. All calls may fail with ErrTransport;
// implementations own their own HTTP retry/backoff policy.
type Gateway interface {
	// PlaceTrade submits a trade and returns the venue-assigned id.
	PlaceTrade(ctx context.Context, req TradeRequest) (string, error)
	// CheckResult polls until the trade settles or the bounded wait is
	// exhausted. ok=false means the outcome stayed undetermined.
	CheckResult(ctx context.Context, tradeID string, initialWait time.Duration) (profit decimal.Decimal, ok bool, err error)
	// CurrentPayout quotes the payout percent for the given parameters.
	CurrentPayout(ctx context.Context, q PayoutQuery) (int, error)
	// GetBalance returns the current account balance and currency.
	GetBalance(ctx context.Context) (Balance, error)
	// IsDemo reports whether the account is in demo mode.
	IsDemo(ctx context.Context) (bool, error)
}
