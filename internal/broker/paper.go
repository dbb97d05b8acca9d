package broker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Paper is an in-process venue for demo runs and tests. Trades settle at
// their expiry with a configurable win rate; balance bookkeeping mirrors the
// real venue closely enough for the engine not to notice.
type Paper struct {
	mu      sync.Mutex
	balance decimal.Decimal
	ccy     string
	payout  int
	winRate float64
	demo    bool
	trades  map[string]*paperTrade
	rng     *rand.Rand
	log     zerolog.Logger

	// SettleAfter overrides per-trade expiry when >0, keeping tests quick.
	SettleAfter time.Duration
}

type paperTrade struct {
	req      TradeRequest
	placedAt time.Time
	endAt    time.Time
	profit   decimal.Decimal
	settled  bool
}

func NewPaper(balance decimal.Decimal, currency string, payout int, winRate float64, log zerolog.Logger) *Paper {
	return &Paper{
		balance: balance,
		ccy:     currency,
		payout:  payout,
		winRate: winRate,
		demo:    true,
		trades:  make(map[string]*paperTrade),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     log.With().Str("component", "paper").Logger(),
	}
}

func (p *Paper) PlaceTrade(ctx context.Context, req TradeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !req.Direction.Usable() {
		return "", ErrRejected
	}
	lo, hi := StakeRange(req.Currency)
	if req.Stake.LessThan(lo) || req.Stake.GreaterThan(hi) {
		return "", ErrRejected
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if req.Stake.GreaterThan(p.balance) {
		return "", ErrRejected
	}
	p.balance = p.balance.Sub(req.Stake)

	endAt := req.ExpireAt
	if req.TradeType == Sprint || endAt.IsZero() {
		endAt = time.Now().Add(time.Duration(req.Minutes) * time.Minute)
	}
	if p.SettleAfter > 0 {
		endAt = time.Now().Add(p.SettleAfter)
	}

	id := uuid.NewString()
	p.trades[id] = &paperTrade{req: req, placedAt: time.Now(), endAt: endAt}
	p.log.Debug().Str("trade", id).Str("symbol", req.Symbol).Str("stake", req.Stake.String()).Msg("trade placed")
	return id, nil
}

func (p *Paper) CheckResult(ctx context.Context, tradeID string, initialWait time.Duration) (decimal.Decimal, bool, error) {
	p.mu.Lock()
	tr, ok := p.trades[tradeID]
	p.mu.Unlock()
	if !ok {
		return decimal.Zero, false, ErrRejected
	}

	if wait := time.Until(tr.endAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return decimal.Zero, false, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !tr.settled {
		tr.settled = true
		stake := tr.req.Stake
		if p.rng.Float64() < p.winRate {
			tr.profit = stake.Mul(decimal.NewFromInt(int64(p.payout))).Div(decimal.NewFromInt(100))
			p.balance = p.balance.Add(stake).Add(tr.profit)
		} else {
			tr.profit = stake.Neg()
		}
	}
	return tr.profit, true, nil
}

func (p *Paper) CurrentPayout(ctx context.Context, q PayoutQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.payout, nil
}

func (p *Paper) GetBalance(ctx context.Context) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Balance{Amount: p.balance, Currency: p.ccy}, nil
}

func (p *Paper) IsDemo(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.demo, nil
}

// ForceResult pre-seeds the outcome of the next settlement for tradeID.
// Test hook: lets scenarios script wins and losses deterministically.
func (p *Paper) ForceResult(tradeID string, profit decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tr, ok := p.trades[tradeID]; ok {
		tr.profit = profit
		tr.settled = true
		if profit.IsPositive() {
			p.balance = p.balance.Add(tr.req.Stake).Add(profit)
		}
	}
}

var _ Gateway = (*Paper)(nil)
var _ Gateway = (*RateLimited)(nil)
var _ Gateway = (*Breaking)(nil)
