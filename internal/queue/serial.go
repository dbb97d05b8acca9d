// Package queue provides the two execution-queue shapes the engine needs:
// a strictly serialized queue for trade placement (the venue processes
// placements one at a time) and a parallel queue for settlement polling
// (one slow poll must never delay another).
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed reports that a queue was stopped before or while handling a job.
var ErrClosed = errors.New("queue: closed")

type outcome[T any] struct {
	val T
	err error
}

type serialJob[T any] struct {
	ctx         context.Context
	fn          func(context.Context) (T, error)
	execTimeout time.Duration
	name        string
	result      chan outcome[T]
}

// Serial executes jobs strictly one at a time, in FIFO order. Enqueue blocks
// until the job completed, failed, or its deadline passed; the passed context
// bounds wait-in-queue plus execution together.
type Serial[T any] struct {
	jobs   chan serialJob[T]
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger
}

func NewSerial[T any](buffer int, log zerolog.Logger) *Serial[T] {
	if buffer <= 0 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Serial[T]{
		jobs:   make(chan serialJob[T], buffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log.With().Str("component", "serialqueue").Logger(),
	}
	go q.worker()
	return q
}

// Enqueue submits fn and waits for its result. ctx bounds queueing plus
// execution; cancelling it also cancels the context handed to fn.
func (q *Serial[T]) Enqueue(ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	return q.EnqueueTimeout(ctx, name, 0, fn)
}

// EnqueueTimeout additionally wraps just the factory call in execTimeout
// (zero disables it). The overall bound still comes from ctx.
func (q *Serial[T]) EnqueueTimeout(ctx context.Context, name string, execTimeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	j := serialJob[T]{
		ctx:         ctx,
		fn:          fn,
		execTimeout: execTimeout,
		name:        name,
		result:      make(chan outcome[T], 1),
	}

	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-q.ctx.Done():
		return zero, ErrClosed
	}

	select {
	case out := <-j.result:
		return out.val, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Stop cancels the worker, the currently running job and every queued job,
// then waits for the worker to exit. No new work is accepted afterwards.
func (q *Serial[T]) Stop() {
	q.cancel()
	<-q.done
}

func (q *Serial[T]) worker() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case j := <-q.jobs:
			q.run(j)
		}
	}
}

// drain fails all queued-but-not-started jobs so no caller stays parked.
func (q *Serial[T]) drain() {
	for {
		select {
		case j := <-q.jobs:
			var zero T
			j.result <- outcome[T]{zero, ErrClosed}
		default:
			return
		}
	}
}

func (q *Serial[T]) run(j serialJob[T]) {
	var zero T
	if j.ctx.Err() != nil {
		// Caller gave up while queued; never invoke the factory.
		j.result <- outcome[T]{zero, j.ctx.Err()}
		return
	}

	runCtx, cancel := context.WithCancel(j.ctx)
	if j.execTimeout > 0 {
		runCtx, cancel = context.WithTimeout(j.ctx, j.execTimeout)
	}
	defer cancel()
	// Queue shutdown propagates into the job currently executing.
	stop := context.AfterFunc(q.ctx, cancel)
	defer stop()

	resc := make(chan outcome[T], 1)
	go func() {
		v, err := call(runCtx, j.fn)
		resc <- outcome[T]{v, err}
	}()

	select {
	case out := <-resc:
		j.result <- out
	case <-runCtx.Done():
		j.result <- outcome[T]{zero, runCtx.Err()}
		// Keep one-at-a-time: the next job starts only once the factory
		// actually returned (it observes the cancelled context).
		<-resc
	}

	if err := runCtx.Err(); err != nil && j.name != "" {
		q.log.Debug().Str("job", j.name).Err(err).Msg("job interrupted")
	}
}

// call invokes fn, converting a panic into an error so a broken factory
// cannot take down the worker.
func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: job panic: %v", r)
		}
	}()
	return fn(ctx)
}
