package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// Breaking wraps a Gateway in a circuit breaker so a venue outage fails fast
// instead of piling blocked callers onto a dead upstream. Only transport
// failures trip the breaker; business rejections pass through untouched.
type Breaking struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker
}

func NewBreaking(next Gateway, name string) *Breaking {
	return &Breaking{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 2,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// Rejections are venue answers, not outages.
				return err == nil || errors.Is(err, ErrRejected)
			},
		}),
	}
}

func (g *Breaking) exec(fn func() (any, error)) (any, error) {
	v, err := g.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return v, fmt.Errorf("%w: circuit open: %v", ErrTransport, err)
	}
	return v, err
}

func (g *Breaking) PlaceTrade(ctx context.Context, req TradeRequest) (string, error) {
	v, err := g.exec(func() (any, error) { return g.next.PlaceTrade(ctx, req) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type checkOut struct {
	profit decimal.Decimal
	ok     bool
}

func (g *Breaking) CheckResult(ctx context.Context, tradeID string, initialWait time.Duration) (decimal.Decimal, bool, error) {
	v, err := g.exec(func() (any, error) {
		p, ok, err := g.next.CheckResult(ctx, tradeID, initialWait)
		return checkOut{p, ok}, err
	})
	if err != nil {
		return decimal.Zero, false, err
	}
	out := v.(checkOut)
	return out.profit, out.ok, nil
}

func (g *Breaking) CurrentPayout(ctx context.Context, q PayoutQuery) (int, error) {
	v, err := g.exec(func() (any, error) { return g.next.CurrentPayout(ctx, q) })
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (g *Breaking) GetBalance(ctx context.Context) (Balance, error) {
	v, err := g.exec(func() (any, error) { return g.next.GetBalance(ctx) })
	if err != nil {
		return Balance{}, err
	}
	return v.(Balance), nil
}

func (g *Breaking) IsDemo(ctx context.Context) (bool, error) {
	v, err := g.exec(func() (any, error) { return g.next.IsDemo(ctx) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
