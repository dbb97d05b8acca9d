package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestResultsRunInParallel(t *testing.T) {
	q := NewResults[int](8, 8, zerolog.Nop())
	defer q.Stop()

	var running atomic.Int32
	var peak atomic.Int32

	futs := make([]*Future[int], 4)
	for i := range futs {
		futs[i] = q.Enqueue(context.Background(), func(ctx context.Context) (int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			running.Add(-1)
			return 1, nil
		})
	}
	for _, f := range futs {
		if _, err := f.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if peak.Load() < 2 {
		t.Fatalf("peak concurrency=%d, jobs were serialized", peak.Load())
	}
}

func TestResultsStopCancelsEverything(t *testing.T) {
	q := NewResults[int](1, 8, zerolog.Nop())

	started := make(chan struct{})
	runningFut := q.Enqueue(context.Background(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	<-started

	// This one stays queued behind the concurrency limit.
	queuedFut := q.Enqueue(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	if _, err := runningFut.Wait(context.Background()); err == nil {
		t.Fatal("running job must end with cancellation error")
	}
	if _, err := queuedFut.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("queued job err=%v, want ErrClosed", err)
	}

	// After Stop, new work is refused immediately.
	fut := q.Enqueue(context.Background(), func(ctx context.Context) (int, error) { return 0, nil })
	if _, err := fut.Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("post-stop enqueue err=%v, want ErrClosed", err)
	}
}

func TestFutureWaitHonoursContext(t *testing.T) {
	q := NewResults[int](2, 8, zerolog.Nop())
	defer q.Stop()

	fut := q.Enqueue(context.Background(), func(ctx context.Context) (int, error) {
		select {
		case <-time.After(5 * time.Second):
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := fut.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want DeadlineExceeded", err)
	}
}

func TestResultsEnqueueRacingStopCompletesFutures(t *testing.T) {
	for round := 0; round < 50; round++ {
		q := NewResults[int](2, 16, zerolog.Nop())

		const callers = 8
		futs := make(chan *Future[int], callers)
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			go func() {
				<-start
				futs <- q.Enqueue(context.Background(), func(ctx context.Context) (int, error) {
					return 7, nil
				})
			}()
		}
		close(start)
		q.Stop()

		deadline, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		for i := 0; i < callers; i++ {
			f := <-futs
			if _, err := f.Wait(deadline); errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("round %d: future never completed after Stop", round)
			}
		}
		cancel()
	}
}
