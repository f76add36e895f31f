// Package filedb is the local durable store: every profile and its ledger
// live in one JSON snapshot file that is rewritten on each save.
package filedb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"dokan/internal/domain"
	"dokan/internal/session"
	"dokan/internal/store"
)

const snapshotVersion = 1

type snapshot struct {
	Version      int                             `json:"version"`
	Profiles     map[string]domain.UserProfile   `json:"profiles"`
	Transactions map[string][]domain.Transaction `json:"transactions"`
	CreatedAt    time.Time                       `json:"created_at"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

func emptySnapshot() *snapshot {
	now := time.Now().UTC()
	return &snapshot{
		Version:      snapshotVersion,
		Profiles:     map[string]domain.UserProfile{},
		Transactions: map[string][]domain.Transaction{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type FileDB struct {
	mu        sync.RWMutex
	file      *os.File
	snap      *snapshot
	path      string
	recovered error
}

// Open opens or creates the snapshot at path. A file that cannot be decoded
// is moved aside and replaced by an empty snapshot; Recovered then reports
// the CORRUPT_STATE error so callers can surface it.
func Open(path string) (*FileDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot")
	}
	db := &FileDB{file: f, path: path}
	if err := db.load(); err != nil {
		_ = db.file.Close()
		return nil, err
	}
	return db, nil
}

func (db *FileDB) Close() error { return db.file.Close() }

func (db *FileDB) Path() string { return db.path }

// Recovered is non-nil when Open had to discard an unreadable snapshot.
func (db *FileDB) Recovered() error { return db.recovered }

func (db *FileDB) load() error {
	info, err := db.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		db.snap = emptySnapshot()
		return db.flushLocked()
	}

	var snap snapshot
	if err := json.NewDecoder(db.file).Decode(&snap); err != nil {
		return db.resetCorrupt(err)
	}
	if snap.Profiles == nil {
		snap.Profiles = map[string]domain.UserProfile{}
	}
	if snap.Transactions == nil {
		snap.Transactions = map[string][]domain.Transaction{}
	}
	db.snap = &snap
	return nil
}

// resetCorrupt keeps a copy of the unreadable bytes next to the snapshot and
// starts over from an empty one.
func (db *FileDB) resetCorrupt(cause error) error {
	if _, err := db.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	raw, err := io.ReadAll(db.file)
	if err != nil {
		return err
	}
	quarantine := fmt.Sprintf("%s.corrupt-%d", db.path, time.Now().UnixNano())
	if err := os.WriteFile(quarantine, raw, 0o600); err != nil {
		return errors.Wrap(err, "quarantine corrupt snapshot")
	}
	db.recovered = domain.CorruptState(errors.Wrapf(cause, "snapshot moved to %s", filepath.Base(quarantine)))
	db.snap = emptySnapshot()
	return db.flushLocked()
}

func (db *FileDB) flushLocked() error {
	if _, err := db.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(db.file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(db.snap); err != nil {
		return err
	}
	pos, err := db.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := db.file.Truncate(pos); err != nil {
		return err
	}
	return db.file.Sync()
}

func (db *FileDB) withWrite(ctx context.Context, fn func(*snapshot) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(db.snap); err != nil {
		return err
	}
	db.snap.UpdatedAt = time.Now().UTC()
	return errors.Wrap(db.flushLocked(), "flush snapshot")
}

func (db *FileDB) withRead(fn func(*snapshot) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.snap)
}

func (db *FileDB) LoadProfile(_ context.Context, id string) (domain.UserProfile, error) {
	var out domain.UserProfile
	err := db.withRead(func(s *snapshot) error {
		p, ok := s.Profiles[id]
		if !ok {
			return store.ErrNotFound
		}
		out = cloneProfile(p)
		return nil
	})
	return out, err
}

func (db *FileDB) CreateProfile(ctx context.Context, profile domain.UserProfile) error {
	return db.withWrite(ctx, func(s *snapshot) error {
		email := domain.NormalizeEmail(profile.Email)
		for _, existing := range s.Profiles {
			if domain.NormalizeEmail(existing.Email) == email {
				return store.ErrEmailTaken
			}
		}
		s.Profiles[profile.ID] = cloneProfile(profile)
		if _, ok := s.Transactions[profile.ID]; !ok {
			s.Transactions[profile.ID] = []domain.Transaction{}
		}
		return nil
	})
}

func (db *FileDB) SaveProfile(ctx context.Context, profile domain.UserProfile) error {
	return db.withWrite(ctx, func(s *snapshot) error {
		s.Profiles[profile.ID] = cloneProfile(profile)
		return nil
	})
}

func (db *FileDB) FindProfileByEmail(_ context.Context, email string) (domain.UserProfile, error) {
	email = domain.NormalizeEmail(email)
	var out domain.UserProfile
	err := db.withRead(func(s *snapshot) error {
		for _, p := range s.Profiles {
			if domain.NormalizeEmail(p.Email) == email {
				out = cloneProfile(p)
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (db *FileDB) ListAllProfiles(_ context.Context) ([]domain.UserProfile, error) {
	var out []domain.UserProfile
	_ = db.withRead(func(s *snapshot) error {
		out = make([]domain.UserProfile, 0, len(s.Profiles))
		for _, p := range s.Profiles {
			out = append(out, cloneProfile(p))
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.UserProfile) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (db *FileDB) LoadTransactions(_ context.Context, profileID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	_ = db.withRead(func(s *snapshot) error {
		out = slices.Clone(s.Transactions[profileID])
		return nil
	})
	return out, nil
}

func (db *FileDB) SaveTransactions(ctx context.Context, profileID string, txs []domain.Transaction) error {
	return db.withWrite(ctx, func(s *snapshot) error {
		s.Transactions[profileID] = slices.Clone(txs)
		return nil
	})
}

// SaveState writes the profile and its ledger in a single flush.
func (db *FileDB) SaveState(ctx context.Context, st session.State) error {
	return db.withWrite(ctx, func(s *snapshot) error {
		s.Profiles[st.Profile.ID] = cloneProfile(st.Profile)
		s.Transactions[st.Profile.ID] = slices.Clone(st.Transactions)
		return nil
	})
}

func cloneProfile(p domain.UserProfile) domain.UserProfile {
	return session.State{Profile: p}.Clone().Profile
}
