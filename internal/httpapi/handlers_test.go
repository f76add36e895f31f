package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dokan/internal/auth"
	"dokan/internal/domain"
	"dokan/internal/service"
	"dokan/internal/store/memory"
	"dokan/internal/syncgw"
)

const (
	testOwnerEmail    = "owner@shop.test"
	testOwnerPassword = "pass1234"
	testSecretCode    = "4242"
)

// newTestAPI builds a full API over an in-memory store with one signed-up
// shop, so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.New()
	gw, err := syncgw.New(repo, nil, syncgw.Options{Logger: logger, Backoff: func(int) {}})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = gw.Close(ctx)
	})

	authManager := auth.NewManager("test-secret-key-test-secret-key!", time.Hour, "", repo, logger)
	svc := service.New(repo, authManager, gw, service.Options{Logger: logger})

	_, err = svc.Signup(context.Background(), domain.SignupRequest{
		Name:            "Rahim Store",
		Email:           testOwnerEmail,
		Password:        testOwnerPassword,
		ConfirmPassword: testOwnerPassword,
		SecretCode:      testSecretCode,
	})
	if err != nil {
		t.Fatalf("seed signup: %v", err)
	}

	return New(svc, authManager, "*", logger)
}

// do sends body as JSON with the given bearer token and CSRF token.
func do(t *testing.T, api *API, method, path, token, csrf string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (body: %s)", err, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleSignup_CreatesProfileWithoutSecrets(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/api/v1/auth/signup", "", "", domain.SignupRequest{
		Name:            "Karim Traders",
		Email:           "karim@shop.test",
		Password:        "secret99",
		ConfirmPassword: "secret99",
		SecretCode:      "1111",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "secret99") || strings.Contains(rec.Body.String(), `"password"`) {
		t.Fatalf("signup response leaked credentials: %s", rec.Body.String())
	}
}

func TestHandleSignup_DuplicateEmailConflicts(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/api/v1/auth/signup", "", "", domain.SignupRequest{
		Name:            "Copy",
		Email:           "Owner@Shop.test",
		Password:        "secret99",
		ConfirmPassword: "secret99",
		SecretCode:      "1111",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["code"] != string(domain.CodeDuplicate) {
		t.Fatalf("expected DUPLICATE code, got %v", body["code"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Email:    testOwnerEmail,
		Password: testOwnerPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.LoginResponse
	decodeBody(t, rec, &body)
	if body.AccessToken == "" {
		t.Fatalf("expected access_token in response, got %+v", body)
	}
	if body.Role != domain.RoleAdmin {
		t.Fatalf("expected ADMIN role, got %s", body.Role)
	}
	if body.Profile.Password != "" || body.Profile.SecretCode != "" {
		t.Fatalf("login response carried credential hashes")
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Email:    testOwnerEmail,
		Password: "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_LocalizedError(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := json.Marshal(domain.LoginRequest{Email: testOwnerEmail, Password: "nope"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "bn-BD,bn;q=0.9")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["error"] != "ইমেইল বা পাসওয়ার্ড ভুল" {
		t.Fatalf("expected Bengali message, got %v", body["error"])
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := do(t, api, http.MethodGet, "/api/v1/products", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := do(t, api, http.MethodGet, "/api/v1/products", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if _, ok := body["products"]; !ok {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := do(t, api, http.MethodPost, "/api/v1/transactions", token, csrf, map[string]any{
		"type":        "INCOME",
		"amount":      "1500",
		"description": "Opening sale",
		"category":    "Sales",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Transaction domain.Transaction `json:"transaction"`
	}
	decodeBody(t, rec, &created)
	if created.Transaction.ID == "" {
		t.Fatalf("expected transaction id")
	}

	rec = do(t, api, http.MethodPost, "/api/v1/transactions", token, csrf, map[string]any{
		"type":        "EXPENSE",
		"amount":      "200",
		"description": "Tea",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("second create expected 201, got %d", rec.Code)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/summary", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary expected 200, got %d", rec.Code)
	}
	var summary domain.DaySummary
	decodeBody(t, rec, &summary)
	if summary.Balance.String() != "1300" {
		t.Fatalf("expected balance 1300, got %s", summary.Balance)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/transactions?type=expense", token, "", nil)
	var listed struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Transactions) != 1 || listed.Transactions[0].Description != "Tea" {
		t.Fatalf("expected only the expense, got %+v", listed.Transactions)
	}

	rec = do(t, api, http.MethodPatch, "/api/v1/transactions/"+created.Transaction.ID, token, csrf, map[string]any{
		"amount": "1800",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, api, http.MethodDelete, "/api/v1/transactions/"+created.Transaction.ID, token, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, api, http.MethodDelete, "/api/v1/transactions/"+created.Transaction.ID, token, csrf, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete expected 404, got %d", rec.Code)
	}
}

func TestTransactionValidationReportsField(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := do(t, api, http.MethodPost, "/api/v1/transactions", token, csrf, map[string]any{
		"type":        "INCOME",
		"amount":      "0",
		"description": "Nothing",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["code"] != string(domain.CodeValidation) || body["field"] != "amount" {
		t.Fatalf("expected amount validation error, got %v", body)
	}
}

func TestCheckoutFlow(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := do(t, api, http.MethodPost, "/api/v1/products", token, csrf, map[string]any{
		"name":           "Shirt",
		"size":           "M",
		"color":          "Red",
		"category":       "Clothing",
		"stock_quantity": 5,
		"buy_price":      "200",
		"sell_price":     "300",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add product expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var added struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &added)

	rec = do(t, api, http.MethodPost, "/api/v1/sales/checkout", token, csrf, map[string]any{
		"customer_name": "Karim",
		"cash_received": "500",
		"lines": []map[string]any{
			{"product_id": added.Product.ID, "qty": 2, "price": "300"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var checkout domain.CheckoutResponse
	decodeBody(t, rec, &checkout)
	if checkout.Invoice.Total.String() != "600" || checkout.Invoice.Due.String() != "100" {
		t.Fatalf("unexpected invoice totals: %+v", checkout.Invoice)
	}
	if checkout.Warning != "" {
		t.Fatalf("expected no warning, got %q", checkout.Warning)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/products/variant?name=Shirt&size=M&color=Red", token, "", nil)
	var variant struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &variant)
	if variant.Product.StockQuantity != 3 {
		t.Fatalf("expected stock 3 after sale, got %d", variant.Product.StockQuantity)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/sales/summary", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sales summary expected 200, got %d", rec.Code)
	}
	var sales domain.SalesSummaryResponse
	decodeBody(t, rec, &sales)
	if sales.TotalQty != 2 || sales.Profit.String() != "200" {
		t.Fatalf("unexpected sales summary: %+v", sales)
	}

	rec = do(t, api, http.MethodPost, "/api/v1/sales/checkout", token, csrf, map[string]any{
		"cash_received": "100",
		"lines": []map[string]any{
			{"product_id": added.Product.ID, "qty": 0, "price": "300"},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero quantity checkout expected 400, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["code"] != string(domain.CodeInvalidLineItem) {
		t.Fatalf("expected INVALID_LINE_ITEM, got %v", body["code"])
	}
}

func TestModeratorPermissions(t *testing.T) {
	api := newTestAPI(t)
	adminToken := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := do(t, api, http.MethodPost, "/api/v1/moderators", adminToken, csrf, domain.ModeratorCreateRequest{
		Name: "Selim", Email: "selim@shop.test", Code: "7788",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add moderator expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var added struct {
		Moderator domain.Moderator `json:"moderator"`
	}
	decodeBody(t, rec, &added)

	rec = do(t, api, http.MethodPost, "/api/v1/transactions", adminToken, csrf, map[string]any{
		"type": "INCOME", "amount": "100", "description": "Cash",
	})
	var created struct {
		Transaction domain.Transaction `json:"transaction"`
	}
	decodeBody(t, rec, &created)

	rec = do(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Role: domain.RoleModerator, Email: "selim@shop.test", Code: "7788",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("moderator login expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var login domain.LoginResponse
	decodeBody(t, rec, &login)
	if login.ModeratorName != "Selim" {
		t.Fatalf("expected moderator name Selim, got %q", login.ModeratorName)
	}
	modToken := login.AccessToken

	rec = do(t, api, http.MethodPost, "/api/v1/transactions", modToken, csrf, map[string]any{
		"type": "EXPENSE", "amount": "50", "description": "Bags",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("moderator create expected 201, got %d", rec.Code)
	}

	rec = do(t, api, http.MethodDelete, "/api/v1/transactions/"+created.Transaction.ID, modToken, csrf, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("moderator delete expected 403, got %d", rec.Code)
	}

	for _, path := range []string{"/api/v1/moderators", "/api/v1/reset"} {
		rec = do(t, api, http.MethodPost, path, modToken, csrf, map[string]any{})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s expected 403 for moderator, got %d", path, rec.Code)
		}
	}

	rec = do(t, api, http.MethodDelete, "/api/v1/moderators/"+added.Moderator.ID, adminToken, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove moderator expected 200, got %d", rec.Code)
	}
	rec = do(t, api, http.MethodGet, "/api/v1/transactions", modToken, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("removed moderator expected 401, got %d", rec.Code)
	}
}

func TestResetWithWrongCodeKeepsData(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	do(t, api, http.MethodPost, "/api/v1/transactions", token, csrf, map[string]any{
		"type": "INCOME", "amount": "100", "description": "Cash",
	})

	rec := do(t, api, http.MethodPost, "/api/v1/reset", token, csrf, domain.ResetRequest{SecretCode: "0000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.ResetResponse
	decodeBody(t, rec, &resp)
	if resp.Success {
		t.Fatalf("expected reset with wrong code to fail")
	}

	rec = do(t, api, http.MethodPost, "/api/v1/reset", token, csrf, domain.ResetRequest{SecretCode: testSecretCode})
	decodeBody(t, rec, &resp)
	if !resp.Success {
		t.Fatalf("expected reset with correct code to succeed")
	}

	rec = do(t, api, http.MethodGet, "/api/v1/transactions", token, "", nil)
	var listed struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Transactions) != 0 {
		t.Fatalf("expected empty ledger after reset, got %d", len(listed.Transactions))
	}
}

func TestExportStatementHeaders(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	do(t, api, http.MethodPost, "/api/v1/transactions", token, csrf, map[string]any{
		"type": "INCOME", "amount": "100", "description": "Cash", "date": "2026-10-17",
	})

	rec := do(t, api, http.MethodGet, "/api/v1/export/statement.csv?date=2026-10-17", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Fatalf("expected csv content type, got %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "Statement_2026-10-17.csv") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "Description,Category,Type,Amount,Date") {
		t.Fatalf("unexpected csv body: %q", rec.Body.String())
	}

	rec = do(t, api, http.MethodGet, "/api/v1/export/statement.pdf", token, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown export expected 404, got %d", rec.Code)
	}
}

func TestBackupRoundTripOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	do(t, api, http.MethodPost, "/api/v1/transactions", token, csrf, map[string]any{
		"type": "INCOME", "amount": "100", "description": "Cash",
	})

	rec := do(t, api, http.MethodGet, "/api/v1/export/backup", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("backup expected 200, got %d", rec.Code)
	}
	backup := rec.Body.Bytes()

	rec = do(t, api, http.MethodPost, "/api/v1/reset", token, csrf, domain.ResetRequest{SecretCode: testSecretCode})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset expected 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/backup", bytes.NewReader(backup))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("import expected 200, got %d (body: %s)", res.Code, res.Body.String())
	}

	rec = do(t, api, http.MethodGet, "/api/v1/transactions", token, "", nil)
	var listed struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Transactions) != 1 {
		t.Fatalf("expected restored transaction, got %d", len(listed.Transactions))
	}
}

func TestSyncStatusReportsLocalSave(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	do(t, api, http.MethodPost, "/api/v1/transactions", token, csrf, map[string]any{
		"type": "INCOME", "amount": "100", "description": "Cash",
	})

	rec := do(t, api, http.MethodGet, "/api/v1/sync/status", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status expected 200, got %d", rec.Code)
	}
	var status domain.SyncStatus
	decodeBody(t, rec, &status)
	if status.LastLocalSave == nil {
		t.Fatalf("expected a recorded local save, got %+v", status)
	}
}
