// Package bot ties one trading strategy together: a lifecycle control, a
// signal listener that tracks bus versions, a per-key coordinator, and the
// execution loop that places and settles trades.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qqdanya/intradevor-sub000/internal/broker"
	"github.com/qqdanya/intradevor-sub000/internal/coordinator"
	"github.com/qqdanya/intradevor-sub000/internal/executor"
	"github.com/qqdanya/intradevor-sub000/internal/journal"
	"github.com/qqdanya/intradevor-sub000/internal/lifecycle"
	"github.com/qqdanya/intradevor-sub000/internal/limits"
	"github.com/qqdanya/intradevor-sub000/internal/metrics"
	"github.com/qqdanya/intradevor-sub000/internal/payout"
	"github.com/qqdanya/intradevor-sub000/internal/queue"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
	"github.com/qqdanya/intradevor-sub000/internal/stake"
)

// Deps are the process-wide collaborators a bot plugs into.
type Deps struct {
	Bus     *signal.Bus
	Gateway broker.Gateway
	Payouts *payout.Cache
	Slots   *limits.SlotLimiter
	// Placing is the process-wide serialized placement queue.
	Placing *queue.Serial[string]
	// Settling is the process-wide parallel settlement queue.
	Settling *queue.Results[executor.Settlement]
	// GlobalLock serializes trades across all bots when AllowParallelTrades
	// is false.
	GlobalLock *sync.Mutex
	// AllowParallelTrades permits concurrent open trades across keys.
	AllowParallelTrades bool
	Journal             *journal.Journal // optional
	Log                 zerolog.Logger
}

// Bot runs one strategy definition against the signal bus.
type Bot struct {
	def       Definition
	deps      Deps
	ctl       *lifecycle.Control
	coordOpts coordinator.Options
	loop      *executor.Loop
	obs       executor.Observers
	log       zerolog.Logger

	mu       sync.Mutex
	coord    *coordinator.Coordinator // nil until first Start
	listener sync.WaitGroup
	cancelFn context.CancelFunc
	started  bool
}

func New(def Definition, deps Deps, obs executor.Observers) *Bot {
	log := deps.Log.With().Str("bot", def.ID).Logger()
	b := &Bot{
		def:  def,
		deps: deps,
		ctl:  lifecycle.New(log),
		obs:  obs,
		log:  log,
	}

	tt := broker.TradeType(def.TradeType)
	b.loop = executor.NewLoop(
		deps.Gateway,
		deps.Payouts,
		deps.Placing,
		deps.Settling,
		stake.NewFixed(def.StakeAmount(), def.Currency),
		b.ctl,
		deps.Journal,
		obs,
		executor.Params{
			Bot:          def.ID,
			TradeType:    tt,
			Minutes:      def.Minutes,
			Currency:     def.Currency,
			PayoutFloor:  def.PayoutFloor,
			BalanceFloor: def.BalanceFloorAmount(),
			SeriesLabel:  def.Name,
		},
		log,
	)

	b.coordOpts = coordinator.Options{
		Slots:               deps.Slots,
		AllowParallelTrades: deps.AllowParallelTrades,
		GlobalLock:          deps.GlobalLock,
		Validate: func(ev signal.Event) error {
			return executor.Validate(ev, tt, time.Now())
		},
		Exec: b.loop.Run,
	}

	b.ctl.OnStop(func() {
		b.obs.Status(log, "stopped")
	})
	return b
}

// ID returns the bot's definition id.
func (b *Bot) ID() string { return b.def.ID }

// Definition returns the bot's definition.
func (b *Bot) Definition() Definition { return b.def }

// State returns the lifecycle state.
func (b *Bot) State() lifecycle.State { return b.ctl.State() }

// Start moves the bot to Running and launches the signal listener.
func (b *Bot) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ctl.Start(); err != nil {
		return err
	}
	// The coordinator is single-shot: Stop closes its lanes for good, so
	// every run gets a freshly armed one.
	b.coord = coordinator.New(b.coordOpts, b.log)
	ctx, cancel := b.ctl.Context(context.Background())
	b.cancelFn = cancel
	b.started = true
	b.listener.Add(1)
	go b.listen(ctx, b.coord)
	metrics.BotsRunning.Inc()
	b.log.Info().Str("symbol", b.def.Symbol).Str("timeframe", b.def.Timeframe).Msg("bot started")
	return nil
}

// Pause gates the execution loop at its next pause point.
func (b *Bot) Pause() {
	wasRunning := b.ctl.State() == lifecycle.Running
	b.ctl.Pause()
	if wasRunning && b.ctl.State() == lifecycle.Paused {
		b.obs.Status(b.log, "paused")
	}
}

// Resume releases a paused bot.
func (b *Bot) Resume() {
	wasPaused := b.ctl.State() == lifecycle.Paused
	b.ctl.Resume()
	if wasPaused && b.ctl.State() == lifecycle.Running {
		b.obs.Status(b.log, "resumed")
	}
}

// Stop terminates the bot and waits for the listener and all execution
// tasks. Idempotent.
func (b *Bot) Stop() {
	b.mu.Lock()
	alreadyStopped := b.ctl.Stopped()
	b.ctl.Stop()
	cancel := b.cancelFn
	b.cancelFn = nil
	wasStarted := b.started
	b.started = false
	coord := b.coord
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.listener.Wait()
	if coord != nil {
		coord.Stop()
	}
	if wasStarted && !alreadyStopped {
		metrics.BotsRunning.Dec()
	}
}

// listen waits on the signal bus and feeds the coordinator. One goroutine
// per run; versions are tracked so no push is observed twice.
func (b *Bot) listen(ctx context.Context, coord *coordinator.Coordinator) {
	defer b.listener.Done()

	var since uint64
	if snap := b.deps.Bus.Peek(b.def.Symbol, b.def.Timeframe); snap.Version > 0 {
		// Start from the current version: only react to future pushes.
		since = snap.Version
	}
	maxAge := b.def.SignalMaxAge()

	b.obs.Status(b.log, "waiting for signal")
	for {
		if err := b.ctl.PausePoint(ctx); err != nil {
			return
		}
		ev, err := b.deps.Bus.Wait(ctx, b.def.Symbol, b.def.Timeframe, signal.WaitOptions{
			SinceVersion: since,
			Timeout:      30 * time.Second,
			MaxAge:       maxAge,
			GraceDelay:   5 * time.Second,
			OnDelay: func(drift time.Duration) {
				metrics.SignalWaitDelays.Inc()
				b.log.Debug().Dur("drift", drift).Msg("signal running late")
			},
		})
		if err != nil {
			if errors.Is(err, signal.ErrTimeout) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, lifecycle.ErrStopped) {
				return
			}
			b.log.Error().Err(err).Msg("signal wait failed")
			continue
		}
		since = ev.Version

		if !ev.Direction.Usable() {
			continue
		}
		if b.def.IndicatorFilter != "" && ev.Meta.Indicator != b.def.IndicatorFilter {
			continue
		}
		coord.Dispatch(ev)
	}
}
