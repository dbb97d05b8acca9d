package bot

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrExists   = errors.New("bot: id already registered")
	ErrNotFound = errors.New("bot: not found")
)

// Manager is the process-wide bot registry.
type Manager struct {
	mu   sync.Mutex
	bots map[string]*Bot
}

func NewManager() *Manager {
	return &Manager{bots: make(map[string]*Bot)}
}

// Add registers a bot. IDs are unique.
func (m *Manager) Add(b *Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bots[b.ID()]; ok {
		return ErrExists
	}
	m.bots[b.ID()] = b
	return nil
}

// Get returns a bot by id.
func (m *Manager) Get(id string) (*Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

// Remove stops a bot and drops it from the registry.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	b, ok := m.bots[id]
	delete(m.bots, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	b.Stop()
	return nil
}

// All returns the registered bots sorted by id.
func (m *Manager) All() []*Bot {
	m.mu.Lock()
	out := make([]*Bot, 0, len(m.bots))
	for _, b := range m.bots {
		out = append(out, b)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// StopAll stops every bot and waits for each.
func (m *Manager) StopAll() {
	for _, b := range m.All() {
		b.Stop()
	}
}
