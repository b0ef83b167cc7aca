package cache

import (
	"sync"

	"finflow/internal/identity"
)

// Resetter is implemented by per-user state that must be dropped when the
// signed-in identity changes (query caches, record stores).
type Resetter interface {
	Reset()
}

// ResetFunc adapts a plain function to Resetter.
type ResetFunc func()

// Reset calls f.
func (f ResetFunc) Reset() { f() }

// Manager handles the lifecycle of per-user caches and stores.
type Manager struct {
	mu      sync.Mutex
	members []Resetter
	stopped bool
	unsubs  []func()
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		members: make([]Resetter, 0),
	}
}

// Register adds a cache or store to the manager.
func (m *Manager) Register(r Resetter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, r)
}

// ResetAll resets every registered member and returns how many were reset.
func (m *Manager) ResetAll() int {
	m.mu.Lock()
	members := append([]Resetter(nil), m.members...)
	m.mu.Unlock()

	for _, r := range members {
		r.Reset()
	}
	return len(members)
}

// WatchIdentity resets all members whenever the user id changes. The
// replayed current identity at subscription time does not trigger a reset.
func (m *Manager) WatchIdentity(p *identity.Provider) {
	var (
		mu      sync.Mutex
		primed  bool
		lastUID int64
		lastOK  bool
	)
	unsub := p.OnChange(func(id identity.Identity) {
		mu.Lock()
		changed := primed && (id.UserID != lastUID || id.Authenticated() != lastOK)
		primed = true
		lastUID, lastOK = id.UserID, id.Authenticated()
		mu.Unlock()

		if changed {
			m.ResetAll()
		}
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		unsub()
		return
	}
	m.unsubs = append(m.unsubs, unsub)
}

// Stop detaches the manager from identity changes.
func (m *Manager) Stop() {
	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.stopped = true
	m.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}
