package service

import (
	"context"
	"strings"

	"dokan/internal/access"
	"dokan/internal/domain"
	"dokan/internal/inventory"
	"dokan/internal/ledger"
	"dokan/internal/session"
)

func (s *Service) ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	_, st, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Filter(st.Transactions, q), nil
}

func (s *Service) AddTransaction(ctx context.Context, req domain.TransactionCreateRequest) (domain.Transaction, error) {
	var created domain.Transaction
	_, err := s.mutate(ctx, access.Create, func(_ domain.Actor, st *session.State) error {
		tx, err := ledger.AddTransaction(st, req, s.now())
		created = tx
		return err
	})
	if err != nil && !IsWarning(err) {
		return domain.Transaction{}, err
	}
	return created, err
}

// ImportTransactions adds a batch of confirmed entries, all or none.
func (s *Service) ImportTransactions(ctx context.Context, req domain.TransactionImportRequest) ([]domain.Transaction, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	var created []domain.Transaction
	_, err := s.mutate(ctx, access.Create, func(_ domain.Actor, st *session.State) error {
		txs, err := ledger.ImportBatch(st, req.Entries, s.now())
		created = txs
		return err
	})
	if err != nil && !IsWarning(err) {
		return nil, err
	}
	return created, err
}

func (s *Service) UpdateTransaction(ctx context.Context, id string, req domain.TransactionUpdateRequest) (domain.Transaction, error) {
	var updated domain.Transaction
	_, err := s.mutate(ctx, access.Update, func(_ domain.Actor, st *session.State) error {
		tx, err := ledger.UpdateTransaction(st, strings.TrimSpace(id), req)
		updated = tx
		return err
	})
	if err != nil && !IsWarning(err) {
		return domain.Transaction{}, err
	}
	return updated, err
}

func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, access.Read, func(actor domain.Actor, st *session.State) error {
		return ledger.DeleteTransaction(st, actor.Role, strings.TrimSpace(id))
	})
	return err
}

// Summary returns the all-time and single-day aggregates shown on the
// dashboard. An empty day means today.
func (s *Service) Summary(ctx context.Context, day string) (domain.DaySummary, error) {
	day, err := s.dayOrToday(day)
	if err != nil {
		return domain.DaySummary{}, err
	}
	_, st, err := s.read(ctx)
	if err != nil {
		return domain.DaySummary{}, err
	}
	allTime := ledger.ComputeAggregate(st.Transactions, ledger.All)
	return domain.DaySummary{
		Date:     day,
		AllTime:  allTime,
		Today:    ledger.ComputeAggregate(st.Transactions, ledger.OnDate(day)),
		Balance:  allTime.Balance(),
		LowStock: inventory.LowStock(st.Profile.Products, s.lowStock),
		Currency: st.Profile.Currency,
	}, nil
}

// Series buckets income and expense by day or month within [from, to].
func (s *Service) Series(ctx context.Context, granularity, from, to string) ([]domain.SeriesPoint, error) {
	g, err := ledger.ParseGranularity(granularity)
	if err != nil {
		return nil, err
	}
	if err := validDates(from, to); err != nil {
		return nil, err
	}
	_, st, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.ComputeSeries(st.Transactions, g, ledger.Between(from, to)), nil
}

func (s *Service) CategoryReport(ctx context.Context, from, to string) ([]domain.CategoryTotal, error) {
	if err := validDates(from, to); err != nil {
		return nil, err
	}
	_, st, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.CategoryTotals(st.Transactions, ledger.Between(from, to)), nil
}

func (s *Service) dayOrToday(day string) (string, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		return s.today(), nil
	}
	if err := validDates(day); err != nil {
		return "", err
	}
	return day, nil
}
