// Package coordinator routes dispatched signals to execution tasks under the
// engine's capacity rules: the process-wide slot limiter, an optional global
// single-trade lock, and per-key serialization with a single-slot pending
// buffer that always keeps the freshest deferred signal.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qqdanya/intradevor-sub000/internal/limits"
	"github.com/qqdanya/intradevor-sub000/internal/metrics"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
)

// ExecFunc runs one execution series for a dispatched signal.
type ExecFunc func(ctx context.Context, ev signal.Event) error

// ValidateFunc re-checks signal freshness at dequeue time; a non-nil error
// drops the signal silently.
type ValidateFunc func(ev signal.Event) error

// Options configure a Coordinator.
type Options struct {
	Slots *limits.SlotLimiter
	// AllowParallelTrades false serializes every execution under one
	// process-wide lock, across all keys.
	AllowParallelTrades bool
	// GlobalLock is the process-wide single-trade lock used when
	// AllowParallelTrades is false. Coordinators sharing an account must
	// share it; nil gets a private lock.
	GlobalLock *sync.Mutex
	// AllowConcurrentPerKey permits several live series on the same key
	// (only meaningful in parallel mode).
	AllowConcurrentPerKey bool
	// LaneBuffer bounds each key's signal queue.
	LaneBuffer int
	Exec       ExecFunc
	Validate   ValidateFunc
}

type lane struct {
	ch      chan signal.Event
	pending Mailbox[signal.Event]

	mu     sync.Mutex
	active int
}

// Coordinator owns one lane (queue + consumer + pending slot) per trade key,
// created lazily on first dispatch.
type Coordinator struct {
	opts Options

	mu     sync.Mutex
	lanes  map[signal.Key]*lane
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

func New(opts Options, log zerolog.Logger) *Coordinator {
	if opts.LaneBuffer <= 0 {
		opts.LaneBuffer = 32
	}
	if opts.Validate == nil {
		opts.Validate = func(signal.Event) error { return nil }
	}
	if opts.GlobalLock == nil {
		opts.GlobalLock = &sync.Mutex{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		opts:   opts,
		lanes:  make(map[signal.Key]*lane),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "coordinator").Logger(),
	}
}

// Dispatch hands a signal to its key's lane, creating the lane on first use.
// A full lane falls back to the pending slot, overwriting any older deferred
// signal.
func (c *Coordinator) Dispatch(ev signal.Event) {
	key := signal.NewKey(ev.Meta.Symbol, ev.Meta.Timeframe)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ln, ok := c.lanes[key]
	if !ok {
		ln = &lane{ch: make(chan signal.Event, c.opts.LaneBuffer)}
		c.lanes[key] = ln
		c.wg.Add(1)
		go c.consume(key, ln)
	}
	c.mu.Unlock()

	select {
	case ln.ch <- ev:
	default:
		if ln.pending.Put(ev) {
			c.log.Debug().Str("key", key.String()).Msg("pending signal replaced")
		}
	}
}

// Stop cancels every consumer and running execution task and waits for them.
// Idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) consume(key signal.Key, ln *lane) {
	defer c.wg.Done()
	for {
		select {
		case ev := <-ln.ch:
			c.handle(key, ln, ev)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Coordinator) handle(key signal.Key, ln *lane, ev signal.Event) {
	// A signal can go stale between enqueue and dequeue.
	if err := c.opts.Validate(ev); err != nil {
		c.log.Debug().Str("key", key.String()).Uint64("version", ev.Version).Err(err).Msg("signal dropped at dequeue")
		return
	}

	if !c.opts.Slots.TryAcquire() {
		c.deferSignal(key, ln, ev, "slots exhausted")
		return
	}
	metrics.TradeSlotsUsed.Set(float64(c.opts.Slots.Used()))

	if !c.opts.AllowParallelTrades {
		if !c.opts.GlobalLock.TryLock() {
			c.release()
			c.deferSignal(key, ln, ev, "global lock held")
			return
		}
		// Serialized mode runs the series on the consumer itself.
		c.runExec(ev)
		c.opts.GlobalLock.Unlock()
		c.release()
		c.drainPending()
		return
	}

	ln.mu.Lock()
	if ln.active > 0 && !c.opts.AllowConcurrentPerKey {
		ln.mu.Unlock()
		c.release()
		c.deferSignal(key, ln, ev, "key busy")
		return
	}
	ln.active++
	ln.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runExec(ev)
		ln.mu.Lock()
		ln.active--
		ln.mu.Unlock()
		c.release()
		c.drainPending()
	}()
}

func (c *Coordinator) runExec(ev signal.Event) {
	if err := c.opts.Exec(c.ctx, ev); err != nil {
		c.log.Warn().Str("symbol", ev.Meta.Symbol).Uint64("version", ev.Version).Err(err).Msg("execution ended with error")
	}
}

// pendingRetryDelay paces redispatch attempts for a deferred signal when no
// local completion wakes it (the blocking resource may belong to another
// coordinator on the same account).
const pendingRetryDelay = 100 * time.Millisecond

func (c *Coordinator) deferSignal(key signal.Key, ln *lane, ev signal.Event, reason string) {
	if ln.pending.Put(ev) {
		c.log.Debug().Str("key", key.String()).Str("reason", reason).Msg("pending signal replaced")
	} else {
		c.log.Debug().Str("key", key.String()).Str("reason", reason).Msg("signal deferred")
	}
	time.AfterFunc(pendingRetryDelay, func() {
		if c.ctx.Err() != nil {
			return
		}
		c.drainLane(ln)
	})
}

func (c *Coordinator) release() {
	c.opts.Slots.Release()
	metrics.TradeSlotsUsed.Set(float64(c.opts.Slots.Used()))
}

// drainPending re-enters dispatch with each lane's buffered signal. A freed
// slot or lock may unblock any key, so every pending slot gets its one
// drain; overwrite semantics already made each the freshest for its key.
func (c *Coordinator) drainPending() {
	c.mu.Lock()
	lanes := make([]*lane, 0, len(c.lanes))
	for _, ln := range c.lanes {
		lanes = append(lanes, ln)
	}
	c.mu.Unlock()

	for _, ln := range lanes {
		c.drainLane(ln)
	}
}

func (c *Coordinator) drainLane(ln *lane) {
	ev, ok := ln.pending.Take()
	if !ok {
		return
	}
	select {
	case ln.ch <- ev:
	default:
		// Lane refilled meanwhile; newer traffic wins.
		ln.pending.Put(ev)
	}
}

// Pending reports whether a key currently has a deferred signal buffered.
func (c *Coordinator) Pending(symbol, tf string) bool {
	c.mu.Lock()
	ln, ok := c.lanes[signal.NewKey(symbol, tf)]
	c.mu.Unlock()
	return ok && ln.pending.Full()
}
