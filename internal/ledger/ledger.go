// Package ledger records income, expense and due entries and derives
// aggregates from them.
package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dokan/internal/access"
	"dokan/internal/domain"
	"dokan/internal/money"
	"dokan/internal/session"
	"dokan/internal/xid"
)

// AddTransaction validates req and appends a new entry. Date defaults to
// the day of now and category to General.
func AddTransaction(st *session.State, req domain.TransactionCreateRequest, now time.Time) (domain.Transaction, error) {
	tx, err := newTransaction(st.Profile.ID, req, now)
	if err != nil {
		return domain.Transaction{}, err
	}
	st.Transactions = append(st.Transactions, tx)
	return tx, nil
}

// AddInvoiceTransaction records an entry produced by a checkout, tagged
// with the invoice it belongs to.
func AddInvoiceTransaction(st *session.State, req domain.TransactionCreateRequest, invoiceID string, now time.Time) (domain.Transaction, error) {
	tx, err := newTransaction(st.Profile.ID, req, now)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.InvoiceID = invoiceID
	st.Transactions = append(st.Transactions, tx)
	return tx, nil
}

// ImportBatch adds every entry or none of them.
func ImportBatch(st *session.State, reqs []domain.TransactionCreateRequest, now time.Time) ([]domain.Transaction, error) {
	if len(reqs) == 0 {
		return nil, domain.Validation("entries", "is required")
	}
	created := make([]domain.Transaction, 0, len(reqs))
	for _, req := range reqs {
		tx, err := newTransaction(st.Profile.ID, req, now)
		if err != nil {
			return nil, err
		}
		created = append(created, tx)
	}
	st.Transactions = append(st.Transactions, created...)
	return created, nil
}

func newTransaction(profileID string, req domain.TransactionCreateRequest, now time.Time) (domain.Transaction, error) {
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	req.Date = strings.TrimSpace(req.Date)
	if err := domain.Validate(req); err != nil {
		return domain.Transaction{}, err
	}
	amount := money.Normalize(req.Amount)
	if !amount.IsPositive() {
		return domain.Transaction{}, domain.Validation("amount", "must be greater than zero")
	}
	if req.Date == "" {
		req.Date = now.Format(domain.DateLayout)
	}
	if req.Category == "" {
		req.Category = domain.DefaultLedgerCategory
	}
	return domain.Transaction{
		ID:          xid.New("T"),
		UserID:      profileID,
		Type:        req.Type,
		Amount:      amount,
		Description: req.Description,
		Category:    req.Category,
		Date:        req.Date,
		CreatedAt:   now.UTC(),
	}, nil
}

// UpdateTransaction patches type, amount, description and category of the
// entry with id.
func UpdateTransaction(st *session.State, id string, patch domain.TransactionUpdateRequest) (domain.Transaction, error) {
	if err := domain.Validate(patch); err != nil {
		return domain.Transaction{}, err
	}
	idx := slices.IndexFunc(st.Transactions, func(tx domain.Transaction) bool { return tx.ID == id })
	if idx < 0 {
		return domain.Transaction{}, domain.NotFound("transaction")
	}

	tx := st.Transactions[idx]
	if patch.Type != nil {
		tx.Type = *patch.Type
	}
	if patch.Amount != nil {
		amount := money.Normalize(*patch.Amount)
		if !amount.IsPositive() {
			return domain.Transaction{}, domain.Validation("amount", "must be greater than zero")
		}
		tx.Amount = amount
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		if desc == "" {
			return domain.Transaction{}, domain.Validation("description", "is required")
		}
		tx.Description = desc
	}
	if patch.Category != nil {
		tx.Category = strings.TrimSpace(*patch.Category)
		if tx.Category == "" {
			tx.Category = domain.DefaultLedgerCategory
		}
	}
	st.Transactions[idx] = tx
	return tx, nil
}

// DeleteTransaction removes the entry with id. Only admins may delete; the
// role is checked before the lookup.
func DeleteTransaction(st *session.State, role domain.Role, id string) error {
	if err := access.Authorize(role, access.Delete); err != nil {
		return err
	}
	idx := slices.IndexFunc(st.Transactions, func(tx domain.Transaction) bool { return tx.ID == id })
	if idx < 0 {
		return domain.NotFound("transaction")
	}
	st.Transactions = slices.Delete(st.Transactions, idx, idx+1)
	return nil
}

// Filter narrows txs by a case-insensitive description search, an exact
// date and a type. Empty fields match everything. Results are newest first.
func Filter(txs []domain.Transaction, q domain.TransactionQuery) []domain.Transaction {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	date := strings.TrimSpace(q.Date)
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if search != "" && !strings.Contains(strings.ToLower(tx.Description), search) {
			continue
		}
		if date != "" && tx.Date != date {
			continue
		}
		if q.Type != "" && q.Type != "ALL" && tx.Type != q.Type {
			continue
		}
		out = append(out, tx)
	}
	slices.SortStableFunc(out, func(a, b domain.Transaction) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func sum(txs []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}
