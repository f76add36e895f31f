package memory

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dokan/internal/domain"
	"dokan/internal/session"
	"dokan/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	profiles     map[string]domain.UserProfile
	transactions map[string][]domain.Transaction
}

func New() *Store {
	return &Store{
		profiles:     make(map[string]domain.UserProfile),
		transactions: make(map[string][]domain.Transaction),
	}
}

// NewSeeded returns a store holding one demo shop for dev mode. The owner
// password and secret code come from SEED_ADMIN_PASSWORD and
// SEED_SECRET_CODE, with dev defaults when unset.
func NewSeeded(logger *slog.Logger) *Store {
	s := New()
	password := envOr("SEED_ADMIN_PASSWORD", "admin123")
	secret := envOr("SEED_SECRET_CODE", "0000")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_SECRET_CODE") == "" {
		logger.Warn("memory store using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_SECRET_CODE to override")
	}

	now := time.Now().UTC()
	profile := session.Empty(domain.UserProfile{
		ID:        "U-demo",
		Name:      "Demo Shop",
		Email:     "owner@demo.shop",
		Currency:  domain.DefaultCurrency,
		CreatedAt: now,
	}).Profile
	profile.Password = mustHash(password)
	profile.SecretCode = mustHash(secret)

	s.profiles[profile.ID] = profile
	s.transactions[profile.ID] = []domain.Transaction{}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustHash(plain string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

func (s *Store) LoadProfile(_ context.Context, id string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return domain.UserProfile{}, store.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *Store) CreateProfile(_ context.Context, profile domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := domain.NormalizeEmail(profile.Email)
	for _, existing := range s.profiles {
		if domain.NormalizeEmail(existing.Email) == email {
			return store.ErrEmailTaken
		}
	}
	s.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

func (s *Store) SaveProfile(_ context.Context, profile domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

func (s *Store) FindProfileByEmail(_ context.Context, email string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = domain.NormalizeEmail(email)
	for _, p := range s.profiles {
		if domain.NormalizeEmail(p.Email) == email {
			return cloneProfile(p), nil
		}
	}
	return domain.UserProfile{}, store.ErrNotFound
}

// ListAllProfiles returns profiles ordered by creation time, oldest first.
func (s *Store) ListAllProfiles(_ context.Context) ([]domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, cloneProfile(p))
	}
	slices.SortFunc(out, func(a, b domain.UserProfile) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) LoadTransactions(_ context.Context, profileID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transactions[profileID]), nil
}

func (s *Store) SaveTransactions(_ context.Context, profileID string, txs []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[profileID] = slices.Clone(txs)
	return nil
}

func (s *Store) SaveState(_ context.Context, st session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[st.Profile.ID] = cloneProfile(st.Profile)
	s.transactions[st.Profile.ID] = slices.Clone(st.Transactions)
	return nil
}

func cloneProfile(p domain.UserProfile) domain.UserProfile {
	return session.State{Profile: p}.Clone().Profile
}
