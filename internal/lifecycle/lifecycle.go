// Package lifecycle implements the strategy run-state machine and the
// cooperative-cancellation primitives every long-running engine loop uses.
//
// States: Created → Running ⇄ Paused → Stopped. Stopped is terminal for the
// current run but Start rearms the control for a fresh one.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrStopped reports that the control was stopped while a caller was parked
// at a suspension point. It is the engine's cancellation signal and is never
// suppressed below the engine boundary.
var ErrStopped = errors.New("lifecycle: stopped")

type State int32

const (
	Created State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Control is the lifecycle handle shared by a strategy's goroutines.
//
// The pause gate is a channel that is closed while the strategy may run;
// pausing swaps in a fresh open channel. The stop channel closes exactly
// once per run, which makes every suspension point a three-way select.
type Control struct {
	mu     sync.Mutex
	state  State
	gate   chan struct{} // closed = not paused
	stopCh chan struct{} // closed = stopped
	onStop func()
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Control {
	c := &Control{
		state:  Created,
		gate:   make(chan struct{}),
		stopCh: make(chan struct{}),
		log:    log,
	}
	close(c.gate) // not paused initially
	return c
}

// OnStop registers a best-effort hook invoked once per Stop. Panics in the
// hook are logged, never propagated.
func (c *Control) OnStop(fn func()) {
	c.mu.Lock()
	c.onStop = fn
	c.mu.Unlock()
}

func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start transitions Created/Stopped → Running and rearms the signaling
// channels for the new run.
func (c *Control) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Running, Paused:
		return fmt.Errorf("lifecycle: cannot start from %s", c.state)
	}
	c.state = Running
	c.stopCh = make(chan struct{})
	c.gate = make(chan struct{})
	close(c.gate)
	return nil
}

// Pause is idempotent; it only acts in Running.
func (c *Control) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return
	}
	c.state = Paused
	c.gate = make(chan struct{})
}

// Resume is idempotent; it only acts in Paused.
func (c *Control) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return
	}
	c.state = Running
	close(c.gate)
}

// Stop moves to Stopped from any state, wakes everything parked at a
// suspension point and fires the onStop hook. Idempotent.
func (c *Control) Stop() {
	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return
	}
	c.state = Stopped
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	select {
	case <-c.gate:
	default:
		close(c.gate) // open the pause gate so paused loops can observe stop
	}
	hook := c.onStop
	c.mu.Unlock()

	if hook != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Warn().Any("panic", r).Msg("onStop hook panicked")
				}
			}()
			hook()
		}()
	}
}

// Done returns the channel closed when the current run stops.
func (c *Control) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopCh
}

// Stopped reports whether the control is stopped.
func (c *Control) Stopped() bool { return c.State() == Stopped }

// PausePoint blocks while paused and returns ErrStopped once stopped. Loops
// call it at every iteration so pause/stop take effect within one step.
func (c *Control) PausePoint(ctx context.Context) error {
	for {
		c.mu.Lock()
		gate, stopCh := c.gate, c.stopCh
		c.mu.Unlock()

		select {
		case <-stopCh:
			return ErrStopped
		default:
		}

		select {
		case <-gate:
			// Gate may have been opened by Stop; re-check before running on.
			select {
			case <-stopCh:
				return ErrStopped
			default:
				return nil
			}
		case <-stopCh:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sleep waits for d but unwinds immediately on stop or ctx cancellation.
func (c *Control) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return c.Err(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-c.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err reports ErrStopped or the context error without blocking.
func (c *Control) Err(ctx context.Context) error {
	select {
	case <-c.Done():
		return ErrStopped
	default:
	}
	return ctx.Err()
}

// Context derives a context that is cancelled when either parent ends or the
// control stops. The returned cancel must be called to release the watcher.
func (c *Control) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stopCh := c.Done()
	done := make(chan struct{})
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-done:
		}
	}()
	var once sync.Once
	return ctx, func() {
		once.Do(func() { close(done) })
		cancel()
	}
}
