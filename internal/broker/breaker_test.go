package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// failGateway fails every call with a fixed error.
type failGateway struct{ err error }

func (g failGateway) PlaceTrade(context.Context, TradeRequest) (string, error) { return "", g.err }
func (g failGateway) CheckResult(context.Context, string, time.Duration) (decimal.Decimal, bool, error) {
	return decimal.Zero, false, g.err
}
func (g failGateway) CurrentPayout(context.Context, PayoutQuery) (int, error) { return 0, g.err }
func (g failGateway) GetBalance(context.Context) (Balance, error)            { return Balance{}, g.err }
func (g failGateway) IsDemo(context.Context) (bool, error)                   { return false, g.err }

func TestBreakerOpensOnTransportFailures(t *testing.T) {
	g := NewBreaking(failGateway{err: ErrTransport}, "test")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := g.GetBalance(ctx); !errors.Is(err, ErrTransport) {
			t.Fatalf("call %d: err = %v, want ErrTransport", i, err)
		}
	}
	// Breaker is now open: calls fail fast and still wear the transport
	// sentinel so the engine's retry classification does not change.
	_, err := g.GetBalance(ctx)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("open-state err = %v, want ErrTransport", err)
	}
}

func TestBreakerIgnoresRejections(t *testing.T) {
	g := NewBreaking(failGateway{err: ErrRejected}, "test")
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := g.PlaceTrade(ctx, TradeRequest{})
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("call %d: err = %v, want ErrRejected (breaker must stay closed)", i, err)
		}
	}
}

func TestRateLimitedHonoursContext(t *testing.T) {
	// Zero-rate limiter never grants a token; the call must end with the
	// context, not hang.
	g := NewRateLimited(failGateway{err: ErrTransport}, 0, 1)
	g.limiter.AllowN(time.Now(), 1) // burn the initial burst token

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.GetBalance(ctx)
	if err == nil {
		t.Fatal("expected an error from the exhausted limiter")
	}
}
