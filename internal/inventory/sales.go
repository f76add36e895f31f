package inventory

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"dokan/internal/access"
	"dokan/internal/domain"
	"dokan/internal/session"
)

func RecordSale(st *session.State, rec domain.SaleRecord) {
	st.Profile.Sales = append(st.Profile.Sales, rec)
}

// DeleteSale drops one sale record. Stock and ledger entries are left as
// they are.
func DeleteSale(st *session.State, role domain.Role, id string) error {
	if err := access.Authorize(role, access.Delete); err != nil {
		return err
	}
	idx := slices.IndexFunc(st.Profile.Sales, func(s domain.SaleRecord) bool { return s.ID == id })
	if idx < 0 {
		return domain.NotFound("sale")
	}
	st.Profile.Sales = slices.Delete(st.Profile.Sales, idx, idx+1)
	return nil
}

func SalesOn(sales []domain.SaleRecord, day string) []domain.SaleRecord {
	out := make([]domain.SaleRecord, 0)
	for _, s := range sales {
		if s.Date == day {
			out = append(out, s)
		}
	}
	return out
}

func SalesForInvoice(sales []domain.SaleRecord, invoiceID string) []domain.SaleRecord {
	out := make([]domain.SaleRecord, 0)
	for _, s := range sales {
		if s.InvoiceID == invoiceID {
			out = append(out, s)
		}
	}
	return out
}

// SummarizeByCategory totals qty, profit and revenue per category. Records
// without a category are grouped under Uncategorized.
func SummarizeByCategory(sales []domain.SaleRecord) []domain.SaleSummary {
	return summarize(sales, func(s domain.SaleRecord) string {
		if strings.TrimSpace(s.Category) == "" {
			return domain.UncategorizedCategory
		}
		return s.Category
	})
}

func SummarizeByProduct(sales []domain.SaleRecord) []domain.SaleSummary {
	return summarize(sales, func(s domain.SaleRecord) string { return s.ProductName })
}

func summarize(sales []domain.SaleRecord, keyOf func(domain.SaleRecord) string) []domain.SaleSummary {
	byKey := make(map[string]*domain.SaleSummary)
	for _, s := range sales {
		key := keyOf(s)
		sum, ok := byKey[key]
		if !ok {
			sum = &domain.SaleSummary{Key: key, Profit: decimal.Zero, Total: decimal.Zero}
			byKey[key] = sum
		}
		sum.Qty += s.Qty
		sum.Profit = sum.Profit.Add(s.Profit)
		sum.Total = sum.Total.Add(s.SellPrice.Mul(decimal.NewFromInt(int64(s.Qty))))
	}
	out := make([]domain.SaleSummary, 0, len(byKey))
	for _, sum := range byKey {
		out = append(out, *sum)
	}
	slices.SortFunc(out, func(a, b domain.SaleSummary) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// Totals returns the combined qty, revenue and profit of sales.
func Totals(sales []domain.SaleRecord) (int, decimal.Decimal, decimal.Decimal) {
	qty := 0
	revenue, profit := decimal.Zero, decimal.Zero
	for _, s := range sales {
		qty += s.Qty
		revenue = revenue.Add(s.SellPrice.Mul(decimal.NewFromInt(int64(s.Qty))))
		profit = profit.Add(s.Profit)
	}
	return qty, revenue, profit
}
