package store

import (
	"context"

	"dokan/internal/domain"
)

var (
	ErrNotFound     = domain.NotFound("profile")
	ErrEmailTaken   = domain.Duplicate("an account with this email already exists")
	ErrCorruptState = domain.ErrCorruptState
)

type ProfileRepository interface {
	LoadProfile(ctx context.Context, id string) (domain.UserProfile, error)
	// CreateProfile fails with ErrEmailTaken when another profile already
	// uses the email, compared case-insensitively.
	CreateProfile(ctx context.Context, profile domain.UserProfile) error
	SaveProfile(ctx context.Context, profile domain.UserProfile) error
	FindProfileByEmail(ctx context.Context, email string) (domain.UserProfile, error)
	ListAllProfiles(ctx context.Context) ([]domain.UserProfile, error)
}

type TransactionRepository interface {
	LoadTransactions(ctx context.Context, profileID string) ([]domain.Transaction, error)
	SaveTransactions(ctx context.Context, profileID string, txs []domain.Transaction) error
}

type Repository interface {
	ProfileRepository
	TransactionRepository
}
