// Package executor runs the placement/settlement cycle for one dispatched
// signal: validate freshness, ask the stake policy, clear the payout and
// balance floors, place through the serialized queue, collect the result
// through the parallel settlement queue, and feed the outcome back to the
// policy until the series ends.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/qqdanya/intradevor-sub000/internal/broker"
	"github.com/qqdanya/intradevor-sub000/internal/journal"
	"github.com/qqdanya/intradevor-sub000/internal/lifecycle"
	"github.com/qqdanya/intradevor-sub000/internal/metrics"
	"github.com/qqdanya/intradevor-sub000/internal/payout"
	"github.com/qqdanya/intradevor-sub000/internal/queue"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
	"github.com/qqdanya/intradevor-sub000/internal/stake"
	"github.com/qqdanya/intradevor-sub000/pkg/money"
)

// Params tunes one bot's execution loop.
type Params struct {
	Bot       string
	TradeType broker.TradeType
	// Minutes is the sprint duration; classic trades derive expiry from the
	// signal's next-candle time.
	Minutes  int
	Currency string
	// PayoutFloor is the minimum acceptable payout percent. Below it the
	// loop waits and re-quotes instead of placing.
	PayoutFloor int
	// BalanceFloor refuses placements that would drop the balance below it.
	BalanceFloor decimal.Decimal
	// PlaceRetries bounds transport-failure retries of one placement.
	PlaceRetries int
	// RetryWait is the pause between placement retries.
	RetryWait time.Duration
	// FloorRetries bounds payout/balance soft waits before giving up on the
	// signal.
	FloorRetries int
	// FloorWait is the pause between soft-wait probes.
	FloorWait time.Duration
	// ResultInitialWait delays the first settlement poll; zero means "until
	// expected expiry".
	ResultInitialWait time.Duration
	SeriesLabel       string
}

func (p *Params) setDefaults() {
	if p.PlaceRetries <= 0 {
		p.PlaceRetries = 3
	}
	if p.RetryWait <= 0 {
		p.RetryWait = time.Second
	}
	if p.FloorRetries <= 0 {
		p.FloorRetries = 12
	}
	if p.FloorWait <= 0 {
		p.FloorWait = 5 * time.Second
	}
	if p.Minutes <= 0 {
		p.Minutes = 1
	}
	if p.Currency == "" {
		p.Currency = "RUB"
	}
	if p.TradeType == "" {
		p.TradeType = broker.Sprint
	}
}

// Settlement is what the result-collection queue yields per trade.
type Settlement struct {
	profit decimal.Decimal
	known  bool
}

// accountAnchor pins the account mode and currency observed on the first
// trade; drift afterwards (relogin into another account, currency switch)
// refuses further trades instead of staking the wrong wallet.
type accountAnchor struct {
	set      bool
	demo     bool
	currency string
}

// Loop executes series of trades for one bot.
type Loop struct {
	gateway broker.Gateway
	payouts *payout.Cache
	placing *queue.Serial[string]
	results *queue.Results[Settlement]
	policy  stake.Policy
	ctl     *lifecycle.Control
	journal *journal.Journal // optional
	obs     Observers
	params  Params
	log     zerolog.Logger

	anchorMu sync.Mutex
	anchor   accountAnchor
}

func NewLoop(
	gw broker.Gateway,
	payouts *payout.Cache,
	placing *queue.Serial[string],
	results *queue.Results[Settlement],
	policy stake.Policy,
	ctl *lifecycle.Control,
	jrnl *journal.Journal,
	obs Observers,
	params Params,
	log zerolog.Logger,
) *Loop {
	params.setDefaults()
	return &Loop{
		gateway: gw,
		payouts: payouts,
		placing: placing,
		results: results,
		policy:  policy,
		ctl:     ctl,
		journal: jrnl,
		obs:     obs,
		params:  params,
		log:     log.With().Str("bot", params.Bot).Logger(),
	}
}

// NewSettlementQueue builds the parallel result-collection queue the loop
// settles through.
func NewSettlementQueue(maxConcurrent, buffer int, log zerolog.Logger) *queue.Results[Settlement] {
	return queue.NewResults[Settlement](maxConcurrent, buffer, log)
}

// Run executes one series for a dispatched signal. It returns nil when the
// series finished (or was skipped as stale), lifecycle.ErrStopped on stop,
// and a transport error when placement could not go through.
func (l *Loop) Run(ctx context.Context, ev signal.Event) error {
	l.policy.Reset()

	for step := 1; ; step++ {
		if err := l.ctl.PausePoint(ctx); err != nil {
			return err
		}
		// Freshness is mandatory before the first placement and re-checked
		// on every progression step: a series can outlive the signal.
		if err := Validate(ev, l.params.TradeType, time.Now()); err != nil {
			if errors.Is(err, ErrStale) {
				l.log.Debug().Uint64("version", ev.Version).Msg(err.Error())
				l.obs.Status(l.log, "signal expired, waiting for the next one")
				metrics.TradesRejected.WithLabelValues(l.params.Bot, "stale").Inc()
				return nil
			}
			return err
		}

		balance, err := l.gateway.GetBalance(ctx)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		if err := l.checkAccountAnchor(ctx, balance.Currency); err != nil {
			l.obs.Status(l.log, err.Error())
			metrics.TradesRejected.WithLabelValues(l.params.Bot, "account").Inc()
			return nil
		}
		amount, ok := l.policy.Next(balance.Amount)
		if !ok {
			l.obs.Status(l.log, "series finished: stake policy declined")
			return nil
		}
		amount = broker.ClampStake(l.params.Currency, amount)

		pct, err := l.clearFloors(ctx, ev, amount, balance.Amount)
		if err != nil {
			return err
		}
		if pct < 0 {
			// Floors never cleared within the retry budget.
			metrics.TradesRejected.WithLabelValues(l.params.Bot, "floor").Inc()
			return nil
		}

		res, err := l.placeAndSettle(ctx, ev, amount, pct, step)
		if err != nil {
			return err
		}
		if !l.policy.Observe(res) {
			l.obs.Status(l.log, "series finished")
			return nil
		}
	}
}

// checkAccountAnchor pins demo/real mode and currency on first use and
// refuses trades once either drifts from the pinned values.
func (l *Loop) checkAccountAnchor(ctx context.Context, currency string) error {
	demo, derr := l.gateway.IsDemo(ctx)

	l.anchorMu.Lock()
	defer l.anchorMu.Unlock()
	if !l.anchor.set {
		l.anchor = accountAnchor{set: true, demo: demo && derr == nil, currency: currency}
		return nil
	}
	if l.anchor.currency != currency {
		return fmt.Errorf("account currency changed %s -> %s, trading refused", l.anchor.currency, currency)
	}
	// Mode unknown this probe: fall back to the currency check alone.
	if derr == nil && l.anchor.demo != demo {
		return fmt.Errorf("account mode changed (demo=%t -> demo=%t), trading refused", l.anchor.demo, demo)
	}
	return nil
}

// clearFloors waits (bounded) until the payout floor and balance floor both
// pass, re-validating signal freshness between probes. Returns the payout
// percent, or -1 when the floors never cleared.
func (l *Loop) clearFloors(ctx context.Context, ev signal.Event, amount, balance decimal.Decimal) (int, error) {
	for attempt := 0; ; attempt++ {
		if err := Validate(ev, l.params.TradeType, time.Now()); err != nil {
			if errors.Is(err, ErrStale) {
				return -1, nil
			}
			return 0, err
		}

		key := payout.Key{
			Symbol:     ev.Meta.Symbol,
			Minutes:    l.params.Minutes,
			Currency:   l.params.Currency,
			TradeType:  string(l.params.TradeType),
			Investment: amount.String(),
		}
		pct, known, err := l.payouts.Get(ctx, key, func(fctx context.Context) (int, error) {
			return l.gateway.CurrentPayout(fctx, broker.PayoutQuery{
				Symbol:    ev.Meta.Symbol,
				Stake:     amount,
				Minutes:   l.params.Minutes,
				Currency:  l.params.Currency,
				TradeType: l.params.TradeType,
			})
		})
		if err != nil {
			return 0, err
		}
		switch {
		case !known:
			metrics.PayoutFetches.WithLabelValues("error").Inc()
		case pct < l.params.PayoutFloor:
			metrics.PayoutFetches.WithLabelValues("venue").Inc()
			if attempt == 0 {
				// Tell the operator once, not every probe.
				l.obs.Status(l.log, fmt.Sprintf("payout %d%% below floor %d%%, waiting", pct, l.params.PayoutFloor))
			}
		case !l.params.BalanceFloor.IsZero() && balance.Sub(amount).LessThan(l.params.BalanceFloor):
			if attempt == 0 {
				l.obs.Status(l.log, fmt.Sprintf("balance %s at floor, waiting", money.Format(balance, l.params.Currency, false)))
			}
		default:
			metrics.PayoutFetches.WithLabelValues("venue").Inc()
			return pct, nil
		}

		if attempt+1 >= l.params.FloorRetries {
			return -1, nil
		}
		if err := l.ctl.Sleep(ctx, l.params.FloorWait); err != nil {
			return 0, err
		}
		b, err := l.gateway.GetBalance(ctx)
		if err != nil {
			return 0, fmt.Errorf("get balance: %w", err)
		}
		balance = b.Amount
	}
}

func (l *Loop) placeAndSettle(ctx context.Context, ev signal.Event, amount decimal.Decimal, pct, step int) (stake.Result, error) {
	var zero stake.Result

	expireAt := ev.Meta.NextCandleTime
	req := broker.TradeRequest{
		Symbol:    ev.Meta.Symbol,
		Direction: ev.Direction,
		Stake:     amount,
		Currency:  l.params.Currency,
		TradeType: l.params.TradeType,
		Minutes:   l.params.Minutes,
		ExpireAt:  expireAt,
	}

	l.obs.Status(l.log, fmt.Sprintf("placing trade, stake %s", money.Format(amount, l.params.Currency, false)))
	tradeID, err := l.place(ctx, ev, req)
	if err != nil {
		if errors.Is(err, ErrStale) {
			metrics.TradesRejected.WithLabelValues(l.params.Bot, "stale").Inc()
			return zero, nil
		}
		if errors.Is(err, broker.ErrRejected) {
			l.obs.Status(l.log, "trade rejected by venue")
			metrics.TradesRejected.WithLabelValues(l.params.Bot, "venue").Inc()
			return zero, nil
		}
		return zero, err
	}

	expectedEnd := expireAt
	if l.params.TradeType == broker.Sprint || expectedEnd.IsZero() {
		expectedEnd = time.Now().Add(time.Duration(l.params.Minutes) * time.Minute)
	}
	demo, derr := l.gateway.IsDemo(ctx)
	if derr != nil {
		demo = false
	}

	pt := PendingTrade{
		TradeID:       tradeID,
		Bot:           l.params.Bot,
		Symbol:        ev.Meta.Symbol,
		Timeframe:     ev.Meta.Timeframe,
		Direction:     ev.Direction.String(),
		Stake:         amount,
		Currency:      l.params.Currency,
		PayoutPercent: pct,
		WaitSeconds:   int(time.Until(expectedEnd) / time.Second),
		ExpectedEnd:   expectedEnd,
		DemoAccount:   demo,
		Indicator:     ev.Meta.Indicator,
		SeriesLabel:   l.seriesLabel(step),
	}
	l.obs.Pending(l.log, pt)
	metrics.TradesPlaced.WithLabelValues(l.params.Bot, ev.Meta.Symbol).Inc()
	l.recordPending(ctx, pt)

	l.obs.Status(l.log, "awaiting result")
	res := l.settle(ctx, pt)
	l.obs.Result(l.log, TradeResult{PendingTrade: pt, Profit: res.Profit, Known: res.Outcome != stake.Unknown})
	metrics.TradesSettled.WithLabelValues(l.params.Bot, res.Outcome.String()).Inc()
	l.recordResult(ctx, pt.TradeID, res)
	return res, nil
}

// place pushes the placement through the serialized queue with bounded
// retries on transport failure only. Freshness is re-validated inside the
// job, immediately before the network call.
func (l *Loop) place(ctx context.Context, ev signal.Event, req broker.TradeRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= l.params.PlaceRetries; attempt++ {
		id, err := l.placing.Enqueue(ctx, "place "+req.Symbol, func(jctx context.Context) (string, error) {
			if verr := Validate(ev, l.params.TradeType, time.Now()); verr != nil {
				return "", verr
			}
			return l.gateway.PlaceTrade(jctx, req)
		})
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, broker.ErrTransport) {
			return "", err
		}
		lastErr = err
		l.log.Warn().Err(err).Int("attempt", attempt).Msg("placement transport failure")
		if attempt < l.params.PlaceRetries {
			if serr := l.ctl.Sleep(ctx, l.params.RetryWait); serr != nil {
				return "", serr
			}
		}
	}
	return "", fmt.Errorf("placement failed after %d attempts: %w", l.params.PlaceRetries, lastErr)
}

// settle collects the trade result through the parallel settlement queue.
// Transport failures and timeouts degrade to an Unknown outcome; the policy
// decides what that means.
func (l *Loop) settle(ctx context.Context, pt PendingTrade) stake.Result {
	initialWait := l.params.ResultInitialWait
	if initialWait <= 0 {
		initialWait = time.Until(pt.ExpectedEnd)
		if initialWait < 0 {
			initialWait = 0
		}
	}
	fut := l.results.Enqueue(ctx, func(jctx context.Context) (Settlement, error) {
		profit, known, err := l.gateway.CheckResult(jctx, pt.TradeID, initialWait)
		if err != nil {
			return Settlement{}, err
		}
		return Settlement{profit: profit, known: known}, nil
	})
	s, err := fut.Wait(ctx)
	if err != nil {
		l.log.Warn().Err(err).Str("trade", pt.TradeID).Msg("settlement undetermined")
		return stake.Result{Outcome: stake.Unknown, Stake: pt.Stake}
	}
	return stake.Result{
		Outcome: stake.Classify(s.profit, s.known),
		Stake:   pt.Stake,
		Profit:  s.profit,
	}
}

func (l *Loop) seriesLabel(step int) string {
	if l.params.SeriesLabel == "" {
		return fmt.Sprintf("%s #%d", l.policy.Name(), step)
	}
	return fmt.Sprintf("%s #%d", l.params.SeriesLabel, step)
}

func (l *Loop) recordPending(ctx context.Context, pt PendingTrade) {
	if l.journal == nil {
		return
	}
	err := l.journal.RecordPending(ctx, journal.Entry{
		ID:        pt.TradeID,
		Bot:       pt.Bot,
		Symbol:    pt.Symbol,
		Timeframe: pt.Timeframe,
		Direction: pt.Direction,
		TradeType: string(l.params.TradeType),
		Minutes:   l.params.Minutes,
		Stake:     pt.Stake,
		Currency:  pt.Currency,
		Payout:    pt.PayoutPercent,
		Indicator: pt.Indicator,
	})
	if err != nil {
		l.log.Error().Err(err).Str("trade", pt.TradeID).Msg("journal pending failed")
	}
}

func (l *Loop) recordResult(ctx context.Context, tradeID string, res stake.Result) {
	if l.journal == nil {
		return
	}
	status := journal.StatusUnknown
	switch res.Outcome {
	case stake.Win:
		status = journal.StatusWin
	case stake.Loss:
		status = journal.StatusLoss
	case stake.Push:
		status = journal.StatusPush
	}
	if err := l.journal.RecordResult(ctx, tradeID, status, res.Profit); err != nil {
		l.log.Error().Err(err).Str("trade", tradeID).Msg("journal result failed")
	}
}
