package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/qqdanya/intradevor-sub000/pkg/symbols"
	"github.com/qqdanya/intradevor-sub000/pkg/timeframe"
)

// ErrTimeout reports that a wait elapsed before a qualifying push arrived.
// No version is consumed; the caller may simply wait again.
var ErrTimeout = errors.New("signal: wait timed out")

const defaultHistorySize = 32

// Key addresses one signal lane. Either field may be the wildcard "*".
type Key struct {
	Symbol    string
	Timeframe string
}

// NewKey normalizes raw symbol/timeframe values into a Key.
func NewKey(symbol, tf string) Key {
	return Key{Symbol: symbols.API(symbol), Timeframe: timeframe.Normalize(tf)}
}

func (k Key) String() string { return k.Symbol + " " + k.Timeframe }

// state is the per-key record. version only ever increases, and all fields
// are mutated under mu, so waiters never observe out-of-order versions.
type state struct {
	mu          sync.Mutex
	version     uint64
	latest      Event
	lastArrival time.Time
	tfSec       int
	history     []Event       // ring of usable-direction entries, newest last
	notify      chan struct{} // closed and replaced on every push
}

// Snapshot is a non-blocking view of one key, for status displays.
type Snapshot struct {
	Version        uint64
	Direction      Direction
	Indicator      string
	LastArrival    time.Time
	TimeframeSec   int
	NextCandleTime time.Time
}

// Bus is the process-wide signal distributor. States are created lazily and
// live for the process lifetime.
type Bus struct {
	mu          sync.Mutex
	states      map[Key]*state
	historySize int
	log         zerolog.Logger
}

func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		states:      make(map[Key]*state),
		historySize: defaultHistorySize,
		log:         log.With().Str("component", "signalbus").Logger(),
	}
}

func (b *Bus) state(k Key) *state {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[k]
	if !ok {
		st = &state{notify: make(chan struct{})}
		b.states[k] = st
	}
	return st
}

// fanout lists the keys touched by one push: exact, both half-wildcards and
// the full wildcard. Pushing to a wildcard key directly touches fewer.
func fanout(k Key) []Key {
	seen := make(map[Key]struct{}, 4)
	out := make([]Key, 0, 4)
	for _, cand := range []Key{
		k,
		{Symbol: symbols.Any, Timeframe: k.Timeframe},
		{Symbol: k.Symbol, Timeframe: timeframe.Any},
		{Symbol: symbols.Any, Timeframe: timeframe.Any},
	} {
		if _, dup := seen[cand]; dup {
			continue
		}
		seen[cand] = struct{}{}
		out = append(out, cand)
	}
	return out
}

// Push records a new signal and wakes all waiters on the matching keys.
// A push with an unusable direction still bumps versions (state cleared).
func (b *Bus) Push(symbol, tf string, dir Direction, indicator string, candleTime, nextCandle time.Time) {
	k := NewKey(symbol, tf)
	now := time.Now()
	tfSec := int(timeframe.Duration(k.Timeframe) / time.Second)

	meta := Meta{
		Symbol:         k.Symbol,
		Timeframe:      k.Timeframe,
		Indicator:      indicator,
		CandleTime:     candleTime,
		NextCandleTime: nextCandle,
		TimeframeSec:   tfSec,
	}

	for _, key := range fanout(k) {
		st := b.state(key)
		st.mu.Lock()
		st.version++
		ev := Event{Direction: dir, Version: st.version, Arrived: now, Meta: meta}
		if !dir.Usable() {
			ev.Direction = None
		}
		st.latest = ev
		st.lastArrival = now
		if tfSec > 0 {
			st.tfSec = tfSec
		}
		if ev.Direction.Usable() {
			st.history = append(st.history, ev)
			if len(st.history) > b.historySize {
				st.history = st.history[len(st.history)-b.historySize:]
			}
		}
		close(st.notify)
		st.notify = make(chan struct{})
		st.mu.Unlock()
	}
}

// PushIfFresh drops the push silently when the candle is older than maxAge.
// Returns whether the push was applied.
func (b *Bus) PushIfFresh(symbol, tf string, dir Direction, indicator string, candleTime, nextCandle time.Time, maxAge time.Duration) bool {
	if maxAge > 0 && !candleTime.IsZero() {
		if age := time.Since(candleTime); age > maxAge {
			b.log.Debug().
				Str("key", NewKey(symbol, tf).String()).
				Dur("age", age).
				Msg("stale signal dropped")
			return false
		}
	}
	b.Push(symbol, tf, dir, indicator, candleTime, nextCandle)
	return true
}

// Peek returns the current state of a key without blocking.
func (b *Bus) Peek(symbol, tf string) Snapshot {
	st := b.state(NewKey(symbol, tf))
	st.mu.Lock()
	defer st.mu.Unlock()
	return Snapshot{
		Version:        st.version,
		Direction:      st.latest.Direction,
		Indicator:      st.latest.Meta.Indicator,
		LastArrival:    st.lastArrival,
		TimeframeSec:   st.tfSec,
		NextCandleTime: st.latest.Meta.NextCandleTime,
	}
}

// WaitOptions tunes one Wait call.
type WaitOptions struct {
	// SinceVersion: only events with a strictly greater version qualify.
	// Zero accepts any recorded event.
	SinceVersion uint64
	// Timeout bounds the wait; zero waits until ctx is done.
	Timeout time.Duration
	// MaxAge widens the freshness window: events that arrived up to MaxAge
	// before the wait started still qualify (replay from history).
	MaxAge time.Duration
	// GraceDelay and OnDelay form a diagnostic hook: when the next candle is
	// overdue by more than GraceDelay, OnDelay fires once with the drift.
	GraceDelay time.Duration
	OnDelay    func(drift time.Duration)
}

// Wait blocks until a usable-direction event with Version > SinceVersion and
// an arrival inside the freshness window exists, then returns it. The ctx
// cancels the wait immediately (cooperative stop path).
func (b *Bus) Wait(ctx context.Context, symbol, tf string, opts WaitOptions) (Event, error) {
	st := b.state(NewKey(symbol, tf))
	start := time.Now()

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	delayNotified := false
	for {
		st.mu.Lock()
		if ev, ok := matchHistory(st.history, opts.SinceVersion, start, opts.MaxAge); ok {
			st.mu.Unlock()
			return ev, nil
		}
		notify := st.notify
		lastArrival := st.lastArrival
		tfSec := st.tfSec
		st.mu.Unlock()

		var tick <-chan time.Time
		var ticker *time.Ticker
		if opts.OnDelay != nil && !delayNotified && tfSec > 0 && !lastArrival.IsZero() {
			ticker = time.NewTicker(time.Second)
			tick = ticker.C
		}

		stop := func() {
			if ticker != nil {
				ticker.Stop()
			}
		}

		select {
		case <-notify:
			stop()
		case <-tick:
			stop()
			grace := opts.GraceDelay
			if grace <= 0 {
				grace = 5 * time.Second
			}
			expected := lastArrival.Add(time.Duration(tfSec) * time.Second)
			if drift := time.Since(expected); drift > grace {
				invokeDelay(opts.OnDelay, drift)
				delayNotified = true
			}
		case <-deadline:
			stop()
			return Event{}, ErrTimeout
		case <-ctx.Done():
			stop()
			return Event{}, ctx.Err()
		}
	}
}

// matchHistory returns the oldest entry newer than since and still fresh, so
// a waiter with SinceVersion N-1 observes push N even when N+1 followed.
func matchHistory(history []Event, since uint64, start time.Time, maxAge time.Duration) (Event, bool) {
	cutoff := start.Add(-maxAge)
	for _, ev := range history {
		if ev.Version > since && !ev.Arrived.Before(cutoff) {
			return ev, true
		}
	}
	return Event{}, false
}

func invokeDelay(fn func(time.Duration), drift time.Duration) {
	defer func() { _ = recover() }()
	fn(drift)
}
