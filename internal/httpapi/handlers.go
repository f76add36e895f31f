package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"dokan/internal/domain"
	"dokan/internal/service"
)

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow("signup:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many signup attempts"))
		return
	}

	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	profile, err := a.service.Signup(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"profile": profile})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	resp, err := a.service.Login(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.secretLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}
	var req domain.ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.service.ForgotPassword(r.Context(), req); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.secretLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}
	var req domain.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.service.ResetPassword(r.Context(), req); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		profile, err := a.service.Profile(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
	case http.MethodPatch:
		var req domain.ProfileUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		profile, err := a.service.UpdateProfile(r.Context(), req)
		a.respond(w, r, http.StatusOK, map[string]any{"profile": profile}, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	err := a.service.Logout(r.Context())
	a.respond(w, r, http.StatusOK, map[string]any{"success": err == nil}, err)
}

func (a *API) handleModerators(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		mods, err := a.service.ListModerators(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"moderators": mods})
	case http.MethodPost:
		var req domain.ModeratorCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		mod, err := a.service.AddModerator(r.Context(), req)
		a.respond(w, r, http.StatusCreated, map[string]any{"moderator": mod}, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleModeratorActions(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r, "/api/v1/moderators/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("moderator not found"))
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	err := a.service.RemoveModerator(r.Context(), id)
	a.respond(w, r, http.StatusOK, map[string]any{"deleted": id}, err)
}

func (a *API) handlePartners(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		partners, err := a.service.ListPartners(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
	case http.MethodPost:
		var req domain.PartnerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		partner, err := a.service.AddPartner(r.Context(), req)
		a.respond(w, r, http.StatusCreated, map[string]any{"partner": partner}, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePartnerActions(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r, "/api/v1/partners/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("partner not found"))
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	err := a.service.RemovePartner(r.Context(), id)
	a.respond(w, r, http.StatusOK, map[string]any{"deleted": id}, err)
}

func transactionQuery(r *http.Request) domain.TransactionQuery {
	q := r.URL.Query()
	return domain.TransactionQuery{
		Search: q.Get("search"),
		Date:   q.Get("date"),
		Type:   domain.TransactionType(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
	}
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		txs, err := a.service.ListTransactions(r.Context(), transactionQuery(r))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), len(txs), 5000)
		if limit < len(txs) {
			txs = txs[:limit]
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
	case http.MethodPost:
		var req domain.TransactionCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		tx, err := a.service.AddTransaction(r.Context(), req)
		a.respond(w, r, http.StatusCreated, map[string]any{"transaction": tx}, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleTransactionActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r, "/api/v1/transactions/")
	if tail == "" || strings.Contains(tail, "/") {
		writeError(w, http.StatusNotFound, errors.New("transaction not found"))
		return
	}

	if tail == "import" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.TransactionImportRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		txs, err := a.service.ImportTransactions(r.Context(), req)
		a.respond(w, r, http.StatusCreated, map[string]any{"transactions": txs}, err)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.TransactionUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		tx, err := a.service.UpdateTransaction(r.Context(), tail, req)
		a.respond(w, r, http.StatusOK, map[string]any{"transaction": tx}, err)
	case http.MethodDelete:
		err := a.service.DeleteTransaction(r.Context(), tail)
		a.respond(w, r, http.StatusOK, map[string]any{"deleted": tail}, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.Summary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	series, err := a.service.Series(r.Context(), q.Get("granularity"), q.Get("from"), q.Get("to"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	totals, err := a.service.CategoryReport(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": totals})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context(), r.URL.Query().Get("search"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		product, err := a.service.AddProduct(r.Context(), req)
		a.respond(w, r, http.StatusCreated, map[string]any{"product": product}, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r, "/api/v1/products/")
	if tail == "" || strings.Contains(tail, "/") {
		writeError(w, http.StatusNotFound, errors.New("product not found"))
		return
	}

	switch tail {
	case "suggest":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		names, err := a.service.SuggestProducts(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"names": names})
		return
	case "variant":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		q := r.URL.Query()
		product, err := a.service.ResolveVariant(r.Context(), q.Get("name"), q.Get("size"), q.Get("color"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		product, err := a.service.UpdateProduct(r.Context(), tail, req)
		a.respond(w, r, http.StatusOK, map[string]any{"product": product}, err)
	case http.MethodDelete:
		err := a.service.RemoveProduct(r.Context(), tail)
		a.respond(w, r, http.StatusOK, map[string]any{"deleted": tail}, err)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sales, err := a.service.ListSales(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r, "/api/v1/sales/")
	if tail == "" || strings.Contains(tail, "/") {
		writeError(w, http.StatusNotFound, errors.New("sale not found"))
		return
	}

	switch tail {
	case "checkout":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		resp, err := a.service.Checkout(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if resp.Warning != "" {
			resp.Warning = domain.SyncFailed(nil).Localized(language(r))
		}
		writeJSON(w, http.StatusCreated, resp)
		return
	case "summary":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		summary, err := a.service.SalesSummary(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	err := a.service.DeleteSale(r.Context(), tail)
	a.respond(w, r, http.StatusOK, map[string]any{"deleted": tail}, err)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	tail := pathTail(r, "/api/v1/export/")

	var (
		file service.Download
		err  error
	)
	switch tail {
	case "backup":
		file, err = a.service.ExportBackup(r.Context())
	case "statement.csv", "statement.xlsx", "statement.html":
		format := service.Format(strings.TrimPrefix(tail, "statement."))
		q := transactionQuery(r)
		file, err = a.service.ExportStatement(r.Context(), format, q.Date, domain.TransactionQuery{Search: q.Search, Type: q.Type}, language(r))
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown export"))
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

func (a *API) handleImportBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	profile, err := a.service.ImportBackup(r.Context(), r.Body)
	a.respond(w, r, http.StatusOK, map[string]any{"profile": profile}, err)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.secretLimiter.Allow("reset:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}
	var req domain.ResetRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.service.Reset(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if resp.Warning != "" {
		resp.Warning = domain.SyncFailed(nil).Localized(language(r))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	status, err := a.service.SyncStatus(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
