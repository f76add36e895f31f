// Package session holds the in-memory state of the shop a user is signed
// into. Every engine call reads from and writes to a Store.
package session

import (
	"maps"
	"slices"
	"sync"

	"dokan/internal/domain"
)

type State struct {
	Profile      domain.UserProfile
	Transactions []domain.Transaction
}

// Clone copies every slice and map so the result shares nothing mutable
// with s. Decimal values are immutable and safe to share.
func (s State) Clone() State {
	p := s.Profile
	p.Accounts = slices.Clone(p.Accounts)
	p.Moderators = slices.Clone(p.Moderators)
	p.Products = slices.Clone(p.Products)
	p.Sales = slices.Clone(p.Sales)
	p.Partners = slices.Clone(p.Partners)
	p.UIConfig = maps.Clone(p.UIConfig)
	return State{
		Profile:      p,
		Transactions: slices.Clone(s.Transactions),
	}
}

// Empty is the state of a profile with no ledger entries, products or sales.
func Empty(profile domain.UserProfile) State {
	if profile.Accounts == nil {
		profile.Accounts = []string{}
	}
	if profile.Moderators == nil {
		profile.Moderators = []domain.Moderator{}
	}
	if profile.Products == nil {
		profile.Products = []domain.Product{}
	}
	if profile.Sales == nil {
		profile.Sales = []domain.SaleRecord{}
	}
	if profile.Partners == nil {
		profile.Partners = []domain.Partner{}
	}
	return State{Profile: profile, Transactions: []domain.Transaction{}}
}

type Store struct {
	mu    sync.Mutex
	state State

	saveMu sync.Mutex

	subMu       sync.Mutex
	nextSubID   int
	subscribers map[int]func(State)
}

func New(initial State) *Store {
	return &Store{
		state:       initial.Clone(),
		subscribers: make(map[int]func(State)),
	}
}

func (s *Store) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Store) ProfileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Profile.ID
}

// Replace swaps the whole state, e.g. after a backup restore.
func (s *Store) Replace(next State) {
	s.mu.Lock()
	s.state = next.Clone()
	snapshot := s.state.Clone()
	s.mu.Unlock()
	s.notify(snapshot)
}

// Mutate applies fn to a private copy of the state and installs the copy
// only when fn succeeds. Concurrent Mutate calls are serialized, so each
// call observes the result of the previous one.
func (s *Store) Mutate(fn func(*State) error) (State, error) {
	s.mu.Lock()
	working := s.state.Clone()
	if err := fn(&working); err != nil {
		s.mu.Unlock()
		return State{}, err
	}
	s.state = working
	snapshot := working.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot, nil
}

// Save calls save with the current state while holding the save lock.
// Saves of one store run one at a time and each sees every change
// committed before it started, so the last save always writes the newest
// state.
func (s *Store) Save(save func(State) error) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return save(s.Get())
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snapshot State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot.Clone())
	}
}
