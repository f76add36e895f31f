package ledger

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dokan/internal/domain"
	"dokan/internal/session"
)

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func newState() session.State {
	return session.Empty(domain.UserProfile{ID: "U-1", Name: "Shop"})
}

func add(t *testing.T, st *session.State, typ domain.TransactionType, amount int64, desc, date string) domain.Transaction {
	t.Helper()
	tx, err := AddTransaction(st, domain.TransactionCreateRequest{
		Type:        typ,
		Amount:      decimal.NewFromInt(amount),
		Description: desc,
		Date:        date,
	}, fixedNow)
	require.NoError(t, err)
	return tx
}

func TestAddTransactionDefaults(t *testing.T) {
	st := newState()
	tx := add(t, &st, domain.TransactionIncome, 500, "  cash sale ", "")

	assert.Equal(t, "2026-10-17", tx.Date)
	assert.Equal(t, domain.DefaultLedgerCategory, tx.Category)
	assert.Equal(t, "cash sale", tx.Description)
	assert.Equal(t, "U-1", tx.UserID)
	assert.Equal(t, fixedNow, tx.CreatedAt)
	assert.Len(t, st.Transactions, 1)
}

func TestAddTransactionRejectsInvalidInput(t *testing.T) {
	st := newState()
	cases := []domain.TransactionCreateRequest{
		{Type: domain.TransactionIncome, Amount: decimal.Zero, Description: "zero"},
		{Type: domain.TransactionIncome, Amount: decimal.NewFromInt(-4), Description: "negative"},
		{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(4), Description: "   "},
		{Type: "GIFT", Amount: decimal.NewFromInt(4), Description: "bad type"},
	}
	for _, req := range cases {
		_, err := AddTransaction(&st, req, fixedNow)
		assert.True(t, errors.Is(err, domain.ErrValidation), req.Description)
	}
	assert.Empty(t, st.Transactions)
}

func TestImportBatchIsAllOrNothing(t *testing.T) {
	st := newState()
	_, err := ImportBatch(&st, []domain.TransactionCreateRequest{
		{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(120), Description: "rent"},
		{Type: domain.TransactionExpense, Amount: decimal.Zero, Description: "broken"},
	}, fixedNow)
	require.Error(t, err)
	assert.Empty(t, st.Transactions)

	created, err := ImportBatch(&st, []domain.TransactionCreateRequest{
		{Type: domain.TransactionExpense, Amount: decimal.NewFromInt(120), Description: "rent"},
		{Type: domain.TransactionIncome, Amount: decimal.NewFromInt(40), Description: "tips"},
	}, fixedNow)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, st.Transactions, 2)
}

func TestUpdateTransactionKeepsIdentity(t *testing.T) {
	st := newState()
	orig := add(t, &st, domain.TransactionExpense, 90, "tea", "2026-10-01")

	newType := domain.TransactionIncome
	newAmount := decimal.NewFromInt(95)
	desc := "tea refund"
	cat := ""
	updated, err := UpdateTransaction(&st, orig.ID, domain.TransactionUpdateRequest{
		Type: &newType, Amount: &newAmount, Description: &desc, Category: &cat,
	})
	require.NoError(t, err)
	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, orig.Date, updated.Date)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)
	assert.Equal(t, domain.TransactionIncome, updated.Type)
	assert.True(t, updated.Amount.Equal(newAmount))
	assert.Equal(t, domain.DefaultLedgerCategory, updated.Category)

	zero := decimal.Zero
	_, err = UpdateTransaction(&st, orig.ID, domain.TransactionUpdateRequest{Amount: &zero})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = UpdateTransaction(&st, "T-missing", domain.TransactionUpdateRequest{Description: &desc})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestModeratorCannotDeleteTransaction(t *testing.T) {
	st := newState()
	tx := add(t, &st, domain.TransactionIncome, 100, "sale", "")

	err := DeleteTransaction(&st, domain.RoleModerator, tx.ID)
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))
	assert.Len(t, st.Transactions, 1)

	err = DeleteTransaction(&st, domain.RoleModerator, "T-missing")
	assert.True(t, errors.Is(err, domain.ErrPermissionDenied))

	require.NoError(t, DeleteTransaction(&st, domain.RoleAdmin, tx.ID))
	assert.Empty(t, st.Transactions)
	assert.True(t, errors.Is(DeleteTransaction(&st, domain.RoleAdmin, tx.ID), domain.ErrNotFound))
}

func TestTodayAggregateAndBalance(t *testing.T) {
	st := newState()
	today := fixedNow.Format(domain.DateLayout)
	add(t, &st, domain.TransactionIncome, 500, "sales", today)
	add(t, &st, domain.TransactionExpense, 200, "stock", today)
	add(t, &st, domain.TransactionDue, 100, "credit", today)
	add(t, &st, domain.TransactionIncome, 999, "yesterday", "2026-10-16")

	agg := ComputeAggregate(st.Transactions, OnDate(today))
	assert.True(t, agg.Income.Equal(decimal.NewFromInt(500)))
	assert.True(t, agg.Expense.Equal(decimal.NewFromInt(200)))
	assert.True(t, agg.Dues.Equal(decimal.NewFromInt(100)))
	assert.True(t, agg.Balance().Equal(decimal.NewFromInt(300)))
}

func TestAggregatePartitionsEveryEntry(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []domain.TransactionType{domain.TransactionIncome, domain.TransactionExpense, domain.TransactionDue}
	for round := 0; round < 20; round++ {
		st := newState()
		for i := 0; i < 30; i++ {
			day := time.Date(2026, time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
			add(t, &st, types[rng.Intn(3)], int64(1+rng.Intn(5000)), "entry", day.Format(domain.DateLayout))
		}
		for _, pred := range []Predicate{All, InMonth(2026, time.March), OnDate("2026-05-05"), Between("2026-02-01", "2026-06-30")} {
			agg := ComputeAggregate(st.Transactions, pred)
			total := Total(st.Transactions, pred)
			assert.True(t, agg.Income.Add(agg.Expense).Add(agg.Dues).Equal(total))
		}
	}
}

func TestComputeSeriesOrdersByDateNotInsertion(t *testing.T) {
	st := newState()
	add(t, &st, domain.TransactionIncome, 10, "c", "2026-03-02")
	add(t, &st, domain.TransactionExpense, 4, "a", "2025-12-31")
	add(t, &st, domain.TransactionIncome, 7, "b", "2026-01-15")
	add(t, &st, domain.TransactionIncome, 3, "b2", "2026-01-15")
	add(t, &st, domain.TransactionDue, 50, "ignored", "2026-02-01")

	daily := ComputeSeries(st.Transactions, Daily, nil)
	require.Len(t, daily, 3)
	assert.Equal(t, []string{"2025-12-31", "2026-01-15", "2026-03-02"}, []string{daily[0].Key, daily[1].Key, daily[2].Key})
	assert.True(t, daily[1].Income.Equal(decimal.NewFromInt(10)))
	assert.True(t, daily[0].Expense.Equal(decimal.NewFromInt(4)))

	monthly := ComputeSeries(st.Transactions, Monthly, InYear(2026))
	require.Len(t, monthly, 2)
	assert.Equal(t, "2026-01", monthly[0].Key)
	assert.Equal(t, "2026-03", monthly[1].Key)
}

func TestCategoryTotals(t *testing.T) {
	st := newState()
	add(t, &st, domain.TransactionIncome, 10, "a", "2026-03-02")
	st.Transactions[0].Category = "Sales"
	add(t, &st, domain.TransactionExpense, 4, "b", "2026-03-02")

	totals := CategoryTotals(st.Transactions, nil)
	require.Len(t, totals, 2)
	assert.Equal(t, "General", totals[0].Category)
	assert.True(t, totals[0].Expense.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "Sales", totals[1].Category)
}

func TestFilter(t *testing.T) {
	st := newState()
	add(t, &st, domain.TransactionIncome, 10, "Shirt sale", "2026-03-02")
	add(t, &st, domain.TransactionExpense, 4, "Electric bill", "2026-03-02")
	add(t, &st, domain.TransactionIncome, 7, "shirt SALE again", "2026-03-05")

	got := Filter(st.Transactions, domain.TransactionQuery{Search: "SHIRT"})
	require.Len(t, got, 2)
	assert.Equal(t, "2026-03-05", got[0].Date)

	got = Filter(st.Transactions, domain.TransactionQuery{Date: "2026-03-02", Type: domain.TransactionExpense})
	require.Len(t, got, 1)
	assert.Equal(t, "Electric bill", got[0].Description)

	assert.Len(t, Filter(st.Transactions, domain.TransactionQuery{Type: "ALL"}), 3)
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, Daily, g)
	g, err = ParseGranularity("MONTH")
	require.NoError(t, err)
	assert.Equal(t, Monthly, g)
	_, err = ParseGranularity("week")
	assert.Error(t, err)
}
