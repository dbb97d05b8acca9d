package coordinator

import "sync"

// Mailbox is a single-slot overwrite buffer. Putting while full silently
// replaces the older value, so a reader always drains the freshest one.
type Mailbox[T any] struct {
	mu   sync.Mutex
	val  T
	full bool
}

// Put stores v, replacing any buffered value. It reports whether an older
// value was discarded.
func (m *Mailbox[T]) Put(v T) (replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaced = m.full
	m.val = v
	m.full = true
	return replaced
}

// Take removes and returns the buffered value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if !m.full {
		return zero, false
	}
	v := m.val
	m.val = zero
	m.full = false
	return v, true
}

// Full reports whether a value is buffered.
func (m *Mailbox[T]) Full() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}
