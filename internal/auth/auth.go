// Package auth signs shop owners and moderators in and issues the bearer
// tokens the API checks on every request.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"dokan/internal/domain"
	"dokan/internal/session"
	"dokan/internal/store"
	"dokan/internal/xid"
)

const issuer = "dokan"

type Manager struct {
	secret          []byte
	tokenTTL        time.Duration
	defaultCurrency string
	profiles        store.ProfileRepository
	logger          *slog.Logger
}

// Result is a successful sign-in.
type Result struct {
	Profile   domain.UserProfile
	Actor     domain.Actor
	Token     string
	ExpiresAt time.Time
}

type claims struct {
	jwtlib.RegisteredClaims
	Role          domain.Role `json:"role"`
	ModeratorID   string      `json:"moderator_id,omitempty"`
	ModeratorName string      `json:"moderator_name,omitempty"`
}

func NewManager(secret string, tokenTTL time.Duration, defaultCurrency string, profiles store.ProfileRepository, logger *slog.Logger) *Manager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if strings.TrimSpace(defaultCurrency) == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		secret:          []byte(secret),
		tokenTTL:        tokenTTL,
		defaultCurrency: defaultCurrency,
		profiles:        profiles,
		logger:          logger,
	}
}

// Signup creates a new shop profile. The email must not be registered yet.
func (m *Manager) Signup(ctx context.Context, req domain.SignupRequest) (domain.UserProfile, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := domain.Validate(req); err != nil {
		return domain.UserProfile{}, err
	}
	if !domain.ValidEmail(req.Email) {
		return domain.UserProfile{}, domain.Validation("email", "must be a valid email address")
	}
	if req.Password != req.ConfirmPassword {
		return domain.UserProfile{}, domain.Validation("confirm_password", "passwords do not match")
	}

	if _, err := m.profiles.FindProfileByEmail(ctx, req.Email); err == nil {
		return domain.UserProfile{}, domain.Duplicate("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.UserProfile{}, err
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserProfile{}, err
	}
	secretHash, err := hashPassword(strings.TrimSpace(req.SecretCode))
	if err != nil {
		return domain.UserProfile{}, err
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = m.defaultCurrency
	}

	profile := session.Empty(domain.UserProfile{
		ID:         xid.New("U"),
		Name:       req.Name,
		Email:      req.Email,
		Mobile:     strings.TrimSpace(req.Mobile),
		Password:   passwordHash,
		SecretCode: secretHash,
		Currency:   currency,
		CreatedAt:  time.Now().UTC(),
	}).Profile
	if err := m.profiles.CreateProfile(ctx, profile); err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}

// Login picks the admin or moderator path from the request. An empty role
// means admin when a password is given and moderator otherwise.
func (m *Manager) Login(ctx context.Context, req domain.LoginRequest) (Result, error) {
	if err := domain.Validate(req); err != nil {
		return Result{}, err
	}
	role := req.Role
	if role == "" {
		role = domain.RoleAdmin
		if req.Password == "" && req.Code != "" {
			role = domain.RoleModerator
		}
	}
	if role == domain.RoleModerator {
		return m.loginModerator(ctx, req.Email, req.Code)
	}
	return m.loginAdmin(ctx, req.Email, req.Password)
}

func (m *Manager) loginAdmin(ctx context.Context, email, password string) (Result, error) {
	profile, err := m.profiles.FindProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, domain.AuthFailed()
		}
		return Result{}, err
	}
	ok, upgraded := checkCredential(profile.Password, password)
	if !ok {
		return Result{}, domain.AuthFailed()
	}
	if upgraded != "" {
		profile.Password = upgraded
		m.saveUpgrade(ctx, profile)
	}
	return m.issue(profile, domain.Actor{ProfileID: profile.ID, Role: domain.RoleAdmin})
}

// loginModerator scans every profile in creation order and signs in to the
// first one listing a moderator with this email and code.
func (m *Manager) loginModerator(ctx context.Context, email, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, domain.AuthFailed()
	}
	profiles, err := m.profiles.ListAllProfiles(ctx)
	if err != nil {
		return Result{}, err
	}
	for _, profile := range profiles {
		if mod, ok := matchModerator(profile.Moderators, email, code); ok {
			return m.issue(profile, domain.Actor{
				ProfileID:     profile.ID,
				Role:          domain.RoleModerator,
				ModeratorID:   mod.ID,
				ModeratorName: mod.Name,
			})
		}
	}
	return Result{}, domain.AuthFailed()
}

// ModeratorTaken reports whether any profile other than skipProfileID
// already lists a moderator with this email and code.
func (m *Manager) ModeratorTaken(ctx context.Context, email, code, skipProfileID string) (bool, error) {
	profiles, err := m.profiles.ListAllProfiles(ctx)
	if err != nil {
		return false, err
	}
	for _, profile := range profiles {
		if profile.ID == skipProfileID {
			continue
		}
		if _, ok := matchModerator(profile.Moderators, email, code); ok {
			return true, nil
		}
	}
	return false, nil
}

// ForgotPassword checks the email and secret code pair without changing
// anything.
func (m *Manager) ForgotPassword(ctx context.Context, req domain.ForgotPasswordRequest) error {
	if err := domain.Validate(req); err != nil {
		return err
	}
	_, err := m.verifySecret(ctx, req.Email, req.SecretCode)
	return err
}

// ResetPassword sets a new password after verifying the secret code and
// returns the updated profile.
func (m *Manager) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) (domain.UserProfile, error) {
	if err := domain.Validate(req); err != nil {
		return domain.UserProfile{}, err
	}
	if req.NewPassword != req.ConfirmPassword {
		return domain.UserProfile{}, domain.Validation("confirm_password", "passwords do not match")
	}
	profile, err := m.verifySecret(ctx, req.Email, req.SecretCode)
	if err != nil {
		return domain.UserProfile{}, err
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return domain.UserProfile{}, err
	}
	profile.Password = hash
	if err := m.profiles.SaveProfile(ctx, profile); err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}

func (m *Manager) verifySecret(ctx context.Context, email, code string) (domain.UserProfile, error) {
	profile, err := m.profiles.FindProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.UserProfile{}, domain.AuthFailed()
		}
		return domain.UserProfile{}, err
	}
	ok, upgraded := checkCredential(profile.SecretCode, strings.TrimSpace(code))
	if !ok {
		return domain.UserProfile{}, domain.AuthFailed()
	}
	if upgraded != "" {
		profile.SecretCode = upgraded
		m.saveUpgrade(ctx, profile)
	}
	return profile, nil
}

func (m *Manager) saveUpgrade(ctx context.Context, profile domain.UserProfile) {
	if err := m.profiles.SaveProfile(ctx, profile); err != nil {
		m.logger.Warn("failed to store upgraded credential hash", "profile_id", profile.ID, "error", err)
	}
}

func (m *Manager) issue(profile domain.UserProfile, actor domain.Actor) (Result, error) {
	expiresAt := time.Now().UTC().Add(m.tokenTTL)
	token, err := m.sign(actor, expiresAt)
	if err != nil {
		return Result{}, err
	}
	return Result{Profile: profile, Actor: actor, Token: token, ExpiresAt: expiresAt}, nil
}

func (m *Manager) ParseToken(tokenStr string) (domain.Actor, error) {
	c := &claims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, c, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, domain.AuthFailed()
	}
	sub, err := c.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, domain.AuthFailed()
	}
	if c.Role != domain.RoleAdmin && c.Role != domain.RoleModerator {
		return domain.Actor{}, domain.AuthFailed()
	}
	if c.Role == domain.RoleModerator && c.ModeratorID == "" {
		return domain.Actor{}, domain.AuthFailed()
	}
	return domain.Actor{ProfileID: sub, Role: c.Role, ModeratorID: c.ModeratorID, ModeratorName: c.ModeratorName}, nil
}

func (m *Manager) sign(actor domain.Actor, expiresAt time.Time) (string, error) {
	c := claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.ProfileID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
		Role:          actor.Role,
		ModeratorID:   actor.ModeratorID,
		ModeratorName: actor.ModeratorName,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c)
	return token.SignedString(m.secret)
}

// VerifySecret checks code against the stored secret. A legacy plaintext
// secret that matches comes back as upgraded, a bcrypt hash to store.
func VerifySecret(stored, code string) (ok bool, upgraded string) {
	return checkCredential(stored, strings.TrimSpace(code))
}

func HashSecret(plain string) (string, error) {
	return hashPassword(strings.TrimSpace(plain))
}

func matchModerator(mods []domain.Moderator, email, code string) (domain.Moderator, bool) {
	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	for _, mod := range mods {
		if domain.NormalizeEmail(mod.Email) != email {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(mod.Code), []byte(code)) == 1 {
			return mod, true
		}
	}
	return domain.Moderator{}, false
}

func checkCredential(stored, input string) (bool, string) {
	if stored == "" || strings.TrimSpace(input) == "" {
		return false, ""
	}
	if isPasswordHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil, ""
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(input)) != 1 {
		return false, ""
	}
	hashed, err := hashPassword(input)
	if err != nil {
		return true, ""
	}
	return true, hashed
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
