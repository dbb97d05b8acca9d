// Package limits caps the number of concurrently open trades.
package limits

import "sync"

// SlotLimiter is a process-wide capacity gate, not a queue: TryAcquire never
// blocks and there is no fairness. Callers that miss a slot defer the work.
type SlotLimiter struct {
	mu   sync.Mutex
	max  int
	used int
}

func NewSlotLimiter(max int) *SlotLimiter {
	if max <= 0 {
		max = 1
	}
	return &SlotLimiter{max: max}
}

// TryAcquire takes a slot if one is free.
func (l *SlotLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used >= l.max {
		return false
	}
	l.used++
	return true
}

// Release returns a slot. Clamped at zero so double-release cannot corrupt
// the count.
func (l *SlotLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used > 0 {
		l.used--
	}
}

func (l *SlotLimiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

func (l *SlotLimiter) Max() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max
}
