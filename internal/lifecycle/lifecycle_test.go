package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newControl() *Control { return New(zerolog.Nop()) }

func TestTransitions(t *testing.T) {
	c := newControl()
	if c.State() != Created {
		t.Fatalf("initial state=%v", c.State())
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(); err == nil {
		t.Fatal("double Start must fail")
	}
	c.Pause()
	if c.State() != Paused {
		t.Fatalf("state=%v after Pause", c.State())
	}
	c.Pause() // idempotent
	c.Resume()
	if c.State() != Running {
		t.Fatalf("state=%v after Resume", c.State())
	}
	c.Resume() // idempotent
	c.Stop()
	if c.State() != Stopped {
		t.Fatalf("state=%v after Stop", c.State())
	}
	c.Stop() // idempotent

	// Stopped → Running again.
	if err := c.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if c.State() != Running {
		t.Fatalf("state=%v after restart", c.State())
	}
}

func TestSleepUnwindsOnStop(t *testing.T) {
	c := newControl()
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- c.Sleep(context.Background(), time.Minute)
	}()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	c.Stop()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("err=%v, want ErrStopped", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Fatalf("sleep unwound after %v, want <50ms", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("sleep never unwound")
	}
}

func TestPausePointBlocksUntilResume(t *testing.T) {
	c := newControl()
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.Pause()

	passed := make(chan error, 1)
	go func() {
		passed <- c.PausePoint(context.Background())
	}()

	select {
	case <-passed:
		t.Fatal("pause point passed while paused")
	case <-time.After(30 * time.Millisecond):
	}

	c.Resume()
	select {
	case err := <-passed:
		if err != nil {
			t.Fatalf("PausePoint after resume: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pause point stuck after resume")
	}
}

func TestPausePointUnwindsOnStopWhilePaused(t *testing.T) {
	c := newControl()
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.Pause()

	errc := make(chan error, 1)
	go func() {
		errc <- c.PausePoint(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	c.Stop()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("err=%v, want ErrStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pause point stuck after stop")
	}
}

func TestOnStopHookPanicContained(t *testing.T) {
	c := newControl()
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.OnStop(func() { panic("hook gone wrong") })
	c.Stop() // must not panic
	if c.State() != Stopped {
		t.Fatalf("state=%v", c.State())
	}
}

func TestContextCancelledByStop(t *testing.T) {
	c := newControl()
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := c.Context(context.Background())
	defer cancel()

	c.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("derived context not cancelled by Stop")
	}
	cancel()
	cancel() // must tolerate repeated calls
}
