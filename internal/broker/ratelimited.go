package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// RateLimited wraps a Gateway so that all bots together respect the venue's
// request budget. The account and its API are shared process-wide, so the
// limiter is too.
type RateLimited struct {
	next    Gateway
	limiter *rate.Limiter
}

func NewRateLimited(next Gateway, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (g *RateLimited) PlaceTrade(ctx context.Context, req TradeRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return g.next.PlaceTrade(ctx, req)
}

func (g *RateLimited) CheckResult(ctx context.Context, tradeID string, initialWait time.Duration) (decimal.Decimal, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return decimal.Zero, false, err
	}
	return g.next.CheckResult(ctx, tradeID, initialWait)
}

func (g *RateLimited) CurrentPayout(ctx context.Context, q PayoutQuery) (int, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return g.next.CurrentPayout(ctx, q)
}

func (g *RateLimited) GetBalance(ctx context.Context) (Balance, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Balance{}, err
	}
	return g.next.GetBalance(ctx)
}

func (g *RateLimited) IsDemo(ctx context.Context) (bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return false, err
	}
	return g.next.IsDemo(ctx)
}
