package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"dokan/internal/auth"
	"dokan/internal/domain"
	"dokan/internal/service"
)

type API struct {
	service       *service.Service
	auth          *auth.Manager
	logger        *slog.Logger
	allowedOrigin string
	loginLimiter  *attemptLimiter
	secretLimiter *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, authManager *auth.Manager, allowedOrigin string, logger *slog.Logger) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		service:       svc,
		auth:          authManager,
		logger:        logger.With("component", "httpapi"),
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		secretLimiter: newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts tokens of the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("/api/v1/auth/signup", a.handleSignup)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/forgot", a.handleForgotPassword)
	mux.HandleFunc("/api/v1/auth/reset-password", a.handleResetPassword)

	mux.HandleFunc("/api/v1/profile", a.requireAuth(a.handleProfile))
	mux.HandleFunc("/api/v1/logout", a.requireAuth(a.handleLogout))
	mux.HandleFunc("/api/v1/moderators", a.requireAuth(a.handleModerators, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/moderators/", a.requireAuth(a.handleModeratorActions, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/partners", a.requireAuth(a.handlePartners))
	mux.HandleFunc("/api/v1/partners/", a.requireAuth(a.handlePartnerActions, domain.RoleAdmin))

	mux.HandleFunc("/api/v1/transactions", a.requireAuth(a.handleTransactions))
	mux.HandleFunc("/api/v1/transactions/", a.requireAuth(a.handleTransactionActions))
	mux.HandleFunc("/api/v1/summary", a.requireAuth(a.handleSummary))
	mux.HandleFunc("/api/v1/reports/series", a.requireAuth(a.handleSeries))
	mux.HandleFunc("/api/v1/reports/categories", a.requireAuth(a.handleCategories))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions))
	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions))

	mux.HandleFunc("/api/v1/export/", a.requireAuth(a.handleExport))
	mux.HandleFunc("/api/v1/import/backup", a.requireAuth(a.handleImportBackup, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/reset", a.requireAuth(a.handleReset, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/sync/status", a.requireAuth(a.handleSyncStatus))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...domain.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.fail(w, r, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.fail(w, r, domain.PermissionDenied("use this endpoint"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role domain.Role, allowed []domain.Role) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths are called before the client holds a session.
var csrfExemptPaths = []string{
	"/api/v1/auth/signup",
	"/api/v1/auth/login",
	"/api/v1/auth/forgot",
	"/api/v1/auth/reset-password",
}

// checkCSRF enforces CSRF token validation for state-changing methods.
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

const (
	maxBodyBytes   = 1 << 20
	maxBackupBytes = 16 << 20
)

// bodyLimit caps every request body whatever its Content-Type. Backups
// carry a whole shop and get a larger cap.
func bodyLimit(path string) int64 {
	if path == "/api/v1/import/backup" {
		return maxBackupBytes
	}
	return maxBodyBytes
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, Accept-Language")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, bodyLimit(r.URL.Path))
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(startedAt))
	})
}

// language picks the message language from Accept-Language; Bengali when
// the client prefers it, English otherwise.
func language(r *http.Request) domain.Language {
	accept := strings.ToLower(strings.TrimSpace(r.Header.Get("Accept-Language")))
	if strings.HasPrefix(accept, "bn") {
		return domain.LanguageBN
	}
	return domain.LanguageEN
}

// fail writes err with the status of its domain code. Errors outside the
// taxonomy are internal and their details are not sent.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, http.StatusBadRequest, errors.New("request body too large"))
		return
	}
	derr, ok := domain.AsError(err)
	if !ok {
		a.logger.Error("internal error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	status := derr.HTTPStatus()
	if status >= 500 {
		a.logger.Error("request failed", "path", r.URL.Path, "code", derr.Code, "error", err)
	}
	body := map[string]any{
		"error": derr.Localized(language(r)),
		"code":  derr.Code,
	}
	if derr.Field != "" {
		body["field"] = derr.Field
	}
	writeJSON(w, status, body)
}

// respond writes payload, adding a warning when err only reports a failed
// save. Any other error replaces the payload.
func (a *API) respond(w http.ResponseWriter, r *http.Request, status int, payload map[string]any, err error) {
	if err != nil {
		if !service.IsWarning(err) {
			a.fail(w, r, err)
			return
		}
		payload["warning"] = warningText(r, err)
	}
	writeJSON(w, status, payload)
}

func warningText(r *http.Request, err error) string {
	if derr, ok := domain.AsError(err); ok {
		return derr.Localized(language(r))
	}
	return err.Error()
}

// pathTail returns the part of the request path after prefix.
func pathTail(r *http.Request, prefix string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return domain.Validation("body", "malformed JSON: "+err.Error())
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses get a generic message; the cause is logged by the caller.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
