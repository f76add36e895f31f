package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	pkgerrors "github.com/pkg/errors"

	"dokan/internal/domain"
	"dokan/internal/session"
	"dokan/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS shop_profiles (
	id          TEXT PRIMARY KEY,
	email_norm  TEXT NOT NULL UNIQUE,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS shop_ledgers (
	profile_id  TEXT PRIMARY KEY REFERENCES shop_profiles(id) ON DELETE CASCADE,
	payload     JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store keeps each profile and its ledger as JSONB documents. It serves as
// the remote mirror and, when DATABASE_URL is the only store configured, as
// the primary repository.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, pkgerrors.Wrap(err, "ensure schema")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadProfile(ctx context.Context, id string) (domain.UserProfile, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM shop_profiles WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserProfile{}, store.ErrNotFound
		}
		return domain.UserProfile{}, err
	}
	return decodeProfile(payload)
}

func (s *Store) CreateProfile(ctx context.Context, profile domain.UserProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shop_profiles (id, email_norm, payload, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now())
	`, profile.ID, domain.NormalizeEmail(profile.Email), payload, profile.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (s *Store) SaveProfile(ctx context.Context, profile domain.UserProfile) error {
	return upsertProfile(ctx, s.db, profile)
}

func (s *Store) FindProfileByEmail(ctx context.Context, email string) (domain.UserProfile, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM shop_profiles WHERE email_norm = $1
	`, domain.NormalizeEmail(email)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserProfile{}, store.ErrNotFound
		}
		return domain.UserProfile{}, err
	}
	return decodeProfile(payload)
}

func (s *Store) ListAllProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM shop_profiles ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]domain.UserProfile, 0, 16)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		p, err := decodeProfile(payload)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Store) LoadTransactions(ctx context.Context, profileID string) ([]domain.Transaction, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM shop_ledgers WHERE profile_id = $1`, profileID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []domain.Transaction{}, nil
		}
		return nil, err
	}
	var txs []domain.Transaction
	if err := json.Unmarshal(payload, &txs); err != nil {
		return nil, domain.CorruptState(err)
	}
	return txs, nil
}

func (s *Store) SaveTransactions(ctx context.Context, profileID string, txs []domain.Transaction) error {
	return upsertLedger(ctx, s.db, profileID, txs)
}

// SaveState writes the profile and its ledger in one serializable
// transaction.
func (s *Store) SaveState(ctx context.Context, st session.State) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertProfile(ctx, tx, st.Profile); err != nil {
		return err
	}
	if err := upsertLedger(ctx, tx, st.Profile.ID, st.Transactions); err != nil {
		return err
	}
	return tx.Commit()
}

// Push mirrors a snapshot; it is SaveState under the mirror contract.
func (s *Store) Push(ctx context.Context, st session.State) error {
	return s.SaveState(ctx, st)
}

func (s *Store) Name() string { return "postgres" }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertProfile(ctx context.Context, db execer, profile domain.UserProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO shop_profiles (id, email_norm, payload, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (id)
		DO UPDATE SET email_norm = EXCLUDED.email_norm, payload = EXCLUDED.payload, updated_at = now()
	`, profile.ID, domain.NormalizeEmail(profile.Email), payload, profile.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailTaken
		}
		return err
	}
	return nil
}

func upsertLedger(ctx context.Context, db execer, profileID string, txs []domain.Transaction) error {
	if txs == nil {
		txs = []domain.Transaction{}
	}
	payload, err := json.Marshal(txs)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO shop_ledgers (profile_id, payload, updated_at)
		VALUES ($1,$2,now())
		ON CONFLICT (profile_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`, profileID, payload)
	return err
}

func decodeProfile(payload []byte) (domain.UserProfile, error) {
	var p domain.UserProfile
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.UserProfile{}, domain.CorruptState(err)
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
