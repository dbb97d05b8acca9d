package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qqdanya/intradevor-sub000/internal/limits"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
)

func sig(symbol, tf string, version uint64) signal.Event {
	return signal.Event{
		Direction: signal.Up,
		Version:   version,
		Arrived:   time.Now(),
		Meta:      signal.Meta{Symbol: symbol, Timeframe: tf, CandleTime: time.Now()},
	}
}

func TestMailboxOverwrite(t *testing.T) {
	var m Mailbox[int]
	if m.Put(1) {
		t.Error("first Put must not report a replacement")
	}
	if !m.Put(2) {
		t.Error("second Put must report a replacement")
	}
	if !m.Put(3) {
		t.Error("third Put must report a replacement")
	}
	v, ok := m.Take()
	if !ok || v != 3 {
		t.Fatalf("Take = %d, %v, want the freshest value 3", v, ok)
	}
	if _, ok := m.Take(); ok {
		t.Fatal("second Take must find the mailbox empty")
	}
}

func TestPendingOverwriteKeepsLatest(t *testing.T) {
	release := make(chan struct{})
	started := make(chan uint64, 8)
	var mu sync.Mutex
	var executed []uint64

	c := New(Options{
		Slots:               limits.NewSlotLimiter(4),
		AllowParallelTrades: true,
		Exec: func(ctx context.Context, ev signal.Event) error {
			started <- ev.Version
			mu.Lock()
			executed = append(executed, ev.Version)
			mu.Unlock()
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}, zerolog.Nop())
	defer c.Stop()

	// v1 occupies the key; later versions get deferred at dequeue and
	// contend for the single pending slot.
	c.Dispatch(sig("EURUSD", "M1", 1))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first signal never started executing")
	}

	c.Dispatch(sig("EURUSD", "M1", 2))
	deadline := time.Now().Add(time.Second)
	for !c.Pending("EURUSD", "M1") {
		if time.Now().After(deadline) {
			t.Fatal("v2 never reached the pending slot")
		}
		time.Sleep(time.Millisecond)
	}

	c.Dispatch(sig("EURUSD", "M1", 3)) // key busy, replaces v2
	c.Dispatch(sig("EURUSD", "M1", 4)) // key busy, replaces v3
	time.Sleep(20 * time.Millisecond)

	close(release) // v1 completes; pending drains exactly one signal

	deadline = time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(executed)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pending signal was never drained")
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(executed) != 2 || executed[0] != 1 || executed[1] != 4 {
		t.Fatalf("executed versions %v, want [1 4]: superseded signals must be discarded", executed)
	}
}

func TestGlobalLockExclusivity(t *testing.T) {
	type span struct{ start, end time.Time }
	var mu sync.Mutex
	var spans []span

	exec := func(ctx context.Context, ev signal.Event) error {
		s := span{start: time.Now()}
		time.Sleep(30 * time.Millisecond)
		s.end = time.Now()
		mu.Lock()
		spans = append(spans, s)
		mu.Unlock()
		return nil
	}

	// Two coordinators sharing one account share the global lock.
	var global sync.Mutex
	slots := limits.NewSlotLimiter(4)
	c1 := New(Options{Slots: slots, GlobalLock: &global, Exec: exec}, zerolog.Nop())
	c2 := New(Options{Slots: slots, GlobalLock: &global, Exec: exec}, zerolog.Nop())
	defer c1.Stop()
	defer c2.Stop()

	c1.Dispatch(sig("EURUSD", "M1", 1))
	c2.Dispatch(sig("GBPUSD", "M5", 1))

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(spans)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("executions completed: %d, want 2", n)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	a, b := spans[0], spans[1]
	if a.start.Before(b.end) && b.start.Before(a.end) {
		t.Fatalf("executions overlapped: %v / %v", a, b)
	}
}

func TestSlotExhaustionDefers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 4)

	c := New(Options{
		Slots:               limits.NewSlotLimiter(1),
		AllowParallelTrades: true,
		Exec: func(ctx context.Context, ev signal.Event) error {
			started <- ev.Meta.Symbol
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}, zerolog.Nop())
	defer c.Stop()

	c.Dispatch(sig("EURUSD", "M1", 1))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first signal never started")
	}

	c.Dispatch(sig("GBPUSD", "M1", 1))
	deadline := time.Now().Add(time.Second)
	for !c.Pending("GBPUSD", "M1") {
		if time.Now().After(deadline) {
			t.Fatal("signal must defer to pending when slots are exhausted")
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	select {
	case sym := <-started:
		if sym != "GBPUSD" {
			t.Fatalf("drained symbol = %s, want GBPUSD", sym)
		}
	case <-time.After(time.Second):
		t.Fatal("deferred signal never ran after the slot freed")
	}
}

func TestValidateDropsAtDequeue(t *testing.T) {
	executed := make(chan uint64, 4)
	c := New(Options{
		Slots:               limits.NewSlotLimiter(4),
		AllowParallelTrades: true,
		Validate: func(ev signal.Event) error {
			if ev.Version == 1 {
				return context.DeadlineExceeded
			}
			return nil
		},
		Exec: func(ctx context.Context, ev signal.Event) error {
			executed <- ev.Version
			return nil
		},
	}, zerolog.Nop())
	defer c.Stop()

	c.Dispatch(sig("EURUSD", "M1", 1))
	c.Dispatch(sig("EURUSD", "M1", 2))

	select {
	case v := <-executed:
		if v != 2 {
			t.Fatalf("executed version %d, want only 2", v)
		}
	case <-time.After(time.Second):
		t.Fatal("valid signal never executed")
	}
	select {
	case v := <-executed:
		t.Fatalf("invalid version %d must not execute", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopWaitsForRunningTasks(t *testing.T) {
	done := make(chan struct{})
	c := New(Options{
		Slots:               limits.NewSlotLimiter(4),
		AllowParallelTrades: true,
		Exec: func(ctx context.Context, ev signal.Event) error {
			<-ctx.Done()
			close(done)
			return ctx.Err()
		},
	}, zerolog.Nop())

	c.Dispatch(sig("EURUSD", "M1", 1))
	time.Sleep(10 * time.Millisecond)

	c.Stop()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Stop returned before the running task finished")
	}
	// Dispatch after stop must be a no-op.
	c.Dispatch(sig("EURUSD", "M1", 2))
}
