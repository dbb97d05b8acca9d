package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Future delivers one job result. It completes exactly once; later
// completion attempts are ignored (a job racing queue shutdown may be
// failed by both sides).
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] { return &Future[T]{done: make(chan struct{})} }

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Wait blocks until the job finished or ctx is done. Cancelling ctx abandons
// this waiter only; the job itself keeps running for other observers.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done exposes the completion channel for select loops.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

type resultJob[T any] struct {
	ctx context.Context
	fn  func(context.Context) (T, error)
	fut *Future[T]
}

// Results runs each job in its own goroutine, bounded by a concurrency
// limit. Unlike Serial it never serializes: settlement polling for one trade
// must not block checking another.
type Results[T any] struct {
	mu      sync.Mutex
	stopped bool

	jobs         chan resultJob[T]
	sem          chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
	dispatchDone chan struct{}
	wg           sync.WaitGroup
	log          zerolog.Logger
}

func NewResults[T any](maxConcurrent, buffer int, log zerolog.Logger) *Results[T] {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	if buffer <= 0 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Results[T]{
		jobs:         make(chan resultJob[T], buffer),
		sem:          make(chan struct{}, maxConcurrent),
		ctx:          ctx,
		cancel:       cancel,
		dispatchDone: make(chan struct{}),
		log:          log.With().Str("component", "resultqueue").Logger(),
	}
	go q.dispatch()
	return q
}

// Enqueue submits fn and returns its future immediately. The job context is
// derived from ctx and additionally cancelled when the queue stops.
func (q *Results[T]) Enqueue(ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	fut := newFuture[T]()

	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		var zero T
		fut.complete(zero, ErrClosed)
		return fut
	}

	select {
	case q.jobs <- resultJob[T]{ctx: ctx, fn: fn, fut: fut}:
		// Stop may have finished draining between the check above and the
		// send; fail the future ourselves so no caller waits forever.
		q.mu.Lock()
		stopped = q.stopped
		q.mu.Unlock()
		if stopped {
			var zero T
			fut.complete(zero, ErrClosed)
		}
	case <-q.ctx.Done():
		var zero T
		fut.complete(zero, ErrClosed)
	}
	return fut
}

func (q *Results[T]) dispatch() {
	defer close(q.dispatchDone)
	for {
		select {
		case <-q.ctx.Done():
			return
		case j := <-q.jobs:
			select {
			case q.sem <- struct{}{}:
			case <-q.ctx.Done():
				var zero T
				j.fut.complete(zero, ErrClosed)
				return
			}
			q.wg.Add(1)
			go q.run(j)
		}
	}
}

func (q *Results[T]) run(j resultJob[T]) {
	defer q.wg.Done()
	defer func() { <-q.sem }()

	runCtx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(q.ctx, cancel)
	defer stop()

	v, err := call(runCtx, j.fn)
	j.fut.complete(v, err)
}

// Stop cancels the dispatch loop and every running job, fails all
// queued-but-not-started jobs, and returns once everything wound down.
func (q *Results[T]) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	q.cancel()
	<-q.dispatchDone

	q.drainJobs()
	q.wg.Wait()
	// A racing Enqueue may have slipped a job in after the first drain.
	q.drainJobs()
}

func (q *Results[T]) drainJobs() {
	for {
		select {
		case j := <-q.jobs:
			var zero T
			j.fut.complete(zero, ErrClosed)
		default:
			return
		}
	}
}
