package session

import (
	"context"
	"sync"
)

// Loader reads the persisted state of one profile.
type Loader func(ctx context.Context, profileID string) (State, error)

// Manager keeps one Store per signed-in profile. A profile's store is
// loaded on first use and dropped on logout or account switch.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store
	load   Loader
	onOpen func(*Store) func()
	closes map[string]func()
}

// NewManager builds a manager. onOpen, when set, runs for every store the
// manager creates and may return a cleanup run on Discard.
func NewManager(load Loader, onOpen func(*Store) func()) *Manager {
	return &Manager{
		stores: make(map[string]*Store),
		load:   load,
		onOpen: onOpen,
		closes: make(map[string]func()),
	}
}

// Open returns the store for profileID, loading it when absent.
func (m *Manager) Open(ctx context.Context, profileID string) (*Store, error) {
	m.mu.Lock()
	if st, ok := m.stores[profileID]; ok {
		m.mu.Unlock()
		return st, nil
	}
	m.mu.Unlock()

	state, err := m.load(ctx, profileID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.stores[profileID]; ok {
		return st, nil
	}
	return m.installLocked(profileID, state), nil
}

// Lookup returns the store of profileID when it is already open.
func (m *Manager) Lookup(profileID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stores[profileID]
	return st, ok
}

// Install replaces whatever store profileID had with one holding state.
func (m *Manager) Install(state State) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardLocked(state.Profile.ID)
	return m.installLocked(state.Profile.ID, state)
}

func (m *Manager) Discard(profileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardLocked(profileID)
}

func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.stores))
	for id := range m.stores {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) installLocked(profileID string, state State) *Store {
	st := New(state)
	m.stores[profileID] = st
	if m.onOpen != nil {
		if closeFn := m.onOpen(st); closeFn != nil {
			m.closes[profileID] = closeFn
		}
	}
	return st
}

func (m *Manager) discardLocked(profileID string) {
	if closeFn, ok := m.closes[profileID]; ok {
		closeFn()
		delete(m.closes, profileID)
	}
	delete(m.stores, profileID)
}
