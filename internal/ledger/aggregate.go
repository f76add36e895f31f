package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dokan/internal/domain"
)

type Predicate func(domain.Transaction) bool

func All(domain.Transaction) bool { return true }

func OnDate(day string) Predicate {
	return func(tx domain.Transaction) bool { return tx.Date == day }
}

func InMonth(year int, month time.Month) Predicate {
	prefix := fmt.Sprintf("%04d-%02d-", year, int(month))
	return func(tx domain.Transaction) bool { return strings.HasPrefix(tx.Date, prefix) }
}

func InYear(year int) Predicate {
	prefix := fmt.Sprintf("%04d-", year)
	return func(tx domain.Transaction) bool { return strings.HasPrefix(tx.Date, prefix) }
}

// Between matches dates in [from, to]; an empty bound is open.
func Between(from, to string) Predicate {
	return func(tx domain.Transaction) bool {
		if from != "" && tx.Date < from {
			return false
		}
		if to != "" && tx.Date > to {
			return false
		}
		return true
	}
}

// ComputeAggregate sums the entries matching pred by type. The three sums
// partition the matched entries.
func ComputeAggregate(txs []domain.Transaction, pred Predicate) domain.Aggregate {
	if pred == nil {
		pred = All
	}
	agg := domain.Aggregate{Income: decimal.Zero, Expense: decimal.Zero, Dues: decimal.Zero}
	for _, tx := range txs {
		if !pred(tx) {
			continue
		}
		switch tx.Type {
		case domain.TransactionIncome:
			agg.Income = agg.Income.Add(tx.Amount)
		case domain.TransactionExpense:
			agg.Expense = agg.Expense.Add(tx.Amount)
		case domain.TransactionDue:
			agg.Dues = agg.Dues.Add(tx.Amount)
		}
	}
	return agg
}

type Granularity string

const (
	Daily   Granularity = "day"
	Monthly Granularity = "month"
)

func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Daily:
		return Daily, nil
	case Monthly:
		return Monthly, nil
	}
	return "", domain.Validation("granularity", "must be day or month")
}

// ComputeSeries buckets income and expense of the entries matching pred by
// day or month. Buckets are ordered by their parsed date, never by the
// order entries were recorded in. Entries with unparseable dates are
// skipped.
func ComputeSeries(txs []domain.Transaction, g Granularity, pred Predicate) []domain.SeriesPoint {
	if pred == nil {
		pred = All
	}
	layout := domain.DateLayout
	if g == Monthly {
		layout = domain.MonthLayout
	}

	type bucket struct {
		at    time.Time
		point domain.SeriesPoint
	}
	buckets := make(map[string]*bucket)
	for _, tx := range txs {
		if !pred(tx) || tx.Type == domain.TransactionDue {
			continue
		}
		day, err := time.Parse(domain.DateLayout, tx.Date)
		if err != nil {
			continue
		}
		key := day.Format(layout)
		b, ok := buckets[key]
		if !ok {
			at, _ := time.Parse(layout, key)
			b = &bucket{at: at, point: domain.SeriesPoint{Key: key, Income: decimal.Zero, Expense: decimal.Zero}}
			buckets[key] = b
		}
		if tx.Type == domain.TransactionIncome {
			b.point.Income = b.point.Income.Add(tx.Amount)
		} else {
			b.point.Expense = b.point.Expense.Add(tx.Amount)
		}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	slices.SortFunc(ordered, func(a, b *bucket) int { return a.at.Compare(b.at) })

	points := make([]domain.SeriesPoint, 0, len(ordered))
	for _, b := range ordered {
		points = append(points, b.point)
	}
	return points
}

// CategoryTotals groups the entries matching pred by category.
func CategoryTotals(txs []domain.Transaction, pred Predicate) []domain.CategoryTotal {
	if pred == nil {
		pred = All
	}
	grouped := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		if !pred(tx) {
			continue
		}
		cat := tx.Category
		if cat == "" {
			cat = domain.DefaultLedgerCategory
		}
		grouped[cat] = append(grouped[cat], tx)
	}
	out := make([]domain.CategoryTotal, 0, len(grouped))
	for cat, group := range grouped {
		out = append(out, domain.CategoryTotal{Category: cat, Aggregate: ComputeAggregate(group, All)})
	}
	slices.SortFunc(out, func(a, b domain.CategoryTotal) int { return strings.Compare(a.Category, b.Category) })
	return out
}

// Total is the plain sum of the entries matching pred regardless of type.
func Total(txs []domain.Transaction, pred Predicate) decimal.Decimal {
	if pred == nil {
		pred = All
	}
	matched := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if pred(tx) {
			matched = append(matched, tx)
		}
	}
	return sum(matched)
}
