package payout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight(t *testing.T) {
	cache := NewCache(time.Second)
	key := Key{Symbol: "EURUSD", Minutes: 1, Currency: "RUB", TradeType: "sprint", Investment: "100"}

	var calls atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return 80, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, known, err := cache.Get(context.Background(), key, fetch)
			if err != nil || !known {
				t.Errorf("Get: v=%d known=%v err=%v", v, known, err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("fetch called %d times, want 1", n)
	}
	for i, v := range results {
		if v != 80 {
			t.Fatalf("caller %d got %d, want 80", i, v)
		}
	}
}

func TestFreshEntryServedWithoutFetch(t *testing.T) {
	cache := NewCache(time.Minute)
	key := Key{Symbol: "EURUSD", Minutes: 1}

	var calls atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 75, nil
	}

	for i := 0; i < 3; i++ {
		if v, _, _ := cache.Get(context.Background(), key, fetch); v != 75 {
			t.Fatalf("got %d, want 75", v)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fetch called %d times, want 1", n)
	}
}

func TestFailureCachedAsUnknown(t *testing.T) {
	cache := NewCache(20 * time.Millisecond)
	key := Key{Symbol: "BTCUSDT", Minutes: 5}

	var calls atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("transport down")
	}

	_, known, err := cache.Get(context.Background(), key, fetch)
	if err != nil || known {
		t.Fatalf("first: known=%v err=%v", known, err)
	}

	// Inside the TTL the failure is served from cache, no retry.
	_, known, _ = cache.Get(context.Background(), key, fetch)
	if known || calls.Load() != 1 {
		t.Fatalf("failure not cached: known=%v calls=%d", known, calls.Load())
	}

	// After expiry the next caller retries.
	time.Sleep(30 * time.Millisecond)
	_, _, _ = cache.Get(context.Background(), key, fetch)
	if calls.Load() != 2 {
		t.Fatalf("calls=%d after TTL expiry, want 2", calls.Load())
	}
}

func TestGetHonoursContext(t *testing.T) {
	cache := NewCache(time.Second)
	key := Key{Symbol: "EURUSD"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := cache.Get(ctx, key, func(ctx context.Context) (int, error) {
		time.Sleep(time.Second)
		return 80, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestInitiatorCancelDoesNotPoisonWaiters(t *testing.T) {
	c := NewCache(time.Minute)
	key := Key{Symbol: "EURUSD", Minutes: 1, Currency: "RUB", TradeType: "sprint", Investment: "100"}

	var calls int32
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return 80, nil
	}

	initCtx, cancelInit := context.WithCancel(context.Background())
	initDone := make(chan struct{})
	go func() {
		defer close(initDone)
		_, _, err := c.Get(initCtx, key, fetch)
		if err == nil {
			t.Errorf("cancelled initiator got no error")
		}
	}()

	time.Sleep(10 * time.Millisecond) // fetch in flight
	waiterDone := make(chan struct{})
	go func() {
		defer close(waiterDone)
		v, known, err := c.Get(context.Background(), key, fetch)
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
		if !known || v != 80 {
			t.Errorf("waiter got (%d, known=%t), want (80, true)", v, known)
		}
	}()
	time.Sleep(10 * time.Millisecond)
	cancelInit()

	<-initDone
	<-waiterDone
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("fetch ran %d times, want 1", n)
	}

	// The completed fetch must be cached as a known value, not a failure.
	v, known, err := c.Get(context.Background(), key, func(ctx context.Context) (int, error) {
		t.Error("fresh entry refetched")
		return 0, nil
	})
	if err != nil || !known || v != 80 {
		t.Fatalf("cached entry = (%d, known=%t, err=%v), want (80, true, nil)", v, known, err)
	}
}
