// Package sale runs point-of-sale checkouts. A checkout turns a cart into
// sale records, ledger entries and stock decrements in one step.
package sale

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dokan/internal/domain"
	"dokan/internal/inventory"
	"dokan/internal/ledger"
	"dokan/internal/money"
	"dokan/internal/session"
	"dokan/internal/xid"
)

type Phase int

const (
	CollectingItems Phase = iota
	Validating
	Committing
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case CollectingItems:
		return "COLLECTING_ITEMS"
	case Validating:
		return "VALIDATING"
	case Committing:
		return "COMMITTING"
	case Done:
		return "DONE"
	default:
		return "FAILED"
	}
}

// Mutator applies a change to the shop state atomically.
type Mutator interface {
	Mutate(fn func(*session.State) error) (session.State, error)
}

// Checkout collects lines for one sale. It commits at most once; a failed
// or finished checkout cannot be reused.
type Checkout struct {
	phase    Phase
	customer string
	cash     decimal.Decimal
	lines    []domain.CheckoutLine
}

func NewCheckout(customerName string, cashReceived decimal.Decimal) *Checkout {
	return &Checkout{
		phase:    CollectingItems,
		customer: strings.TrimSpace(customerName),
		cash:     cashReceived,
	}
}

func FromRequest(req domain.CheckoutRequest) (*Checkout, error) {
	c := NewCheckout(req.CustomerName, req.CashReceived)
	for _, line := range req.Lines {
		if err := c.AddLine(line); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Checkout) Phase() Phase { return c.phase }

func (c *Checkout) AddLine(line domain.CheckoutLine) error {
	if c.phase != CollectingItems {
		return domain.Validation("checkout", "lines can only be added before commit")
	}
	c.lines = append(c.lines, line)
	return nil
}

// Commit validates every line and, when all pass, applies the sale through
// m in a single mutation. Nothing is changed when validation fails.
func (c *Checkout) Commit(m Mutator, soldBy string, now time.Time) (domain.Invoice, session.State, error) {
	if c.phase != CollectingItems {
		return domain.Invoice{}, session.State{}, domain.Validation("checkout", fmt.Sprintf("already %s", c.phase))
	}
	c.phase = Validating

	var invoice domain.Invoice
	next, err := m.Mutate(func(st *session.State) error {
		resolved, err := c.validate(st.Profile.Products)
		if err != nil {
			return err
		}
		c.phase = Committing
		invoice, err = c.apply(st, resolved, soldBy, now)
		return err
	})
	if err != nil {
		c.phase = Failed
		return domain.Invoice{}, session.State{}, err
	}
	c.phase = Done
	return invoice, next, nil
}

func (c *Checkout) validate(products []domain.Product) ([]domain.Product, error) {
	if c.cash.IsNegative() {
		return nil, domain.Validation("cash_received", "must not be negative")
	}
	if len(c.lines) == 0 {
		return nil, domain.InvalidLineItem(0, "sale has no items")
	}
	resolved := make([]domain.Product, len(c.lines))
	for i, line := range c.lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return nil, domain.InvalidLineItem(i, "product is required")
		}
		if !money.Normalize(line.Price).IsPositive() {
			return nil, domain.InvalidLineItem(i, "price must be greater than zero")
		}
		if line.Qty <= 0 {
			return nil, domain.InvalidLineItem(i, "quantity must be greater than zero")
		}
		p, ok := inventory.FindByID(products, line.ProductID)
		if !ok {
			return nil, domain.InvalidLineItem(i, "product does not exist")
		}
		resolved[i] = p
	}
	return resolved, nil
}

func (c *Checkout) apply(st *session.State, products []domain.Product, soldBy string, now time.Time) (domain.Invoice, error) {
	invoiceID := freshInvoiceID(st, now)
	day := now.Format(domain.DateLayout)
	customer := c.customer
	if customer == "" {
		customer = domain.WalkInCustomer
	}

	invoice := domain.Invoice{
		InvoiceID:    invoiceID,
		CustomerName: customer,
		Date:         day,
		Lines:        make([]domain.InvoiceLine, 0, len(c.lines)),
		Total:        decimal.Zero,
		SoldBy:       soldBy,
	}

	for i, line := range c.lines {
		p := products[i]
		price := money.Normalize(line.Price)
		qty := decimal.NewFromInt(int64(line.Qty))
		lineTotal := price.Mul(qty)

		inventory.RecordSale(st, domain.SaleRecord{
			ID:           xid.New("S"),
			InvoiceID:    invoiceID,
			ProductID:    p.ID,
			ProductName:  p.Name,
			Category:     p.Category,
			Size:         p.Size,
			Color:        p.Color,
			Qty:          line.Qty,
			SellPrice:    price,
			BuyPrice:     p.BuyPrice,
			Profit:       price.Sub(p.BuyPrice).Mul(qty),
			Date:         day,
			CustomerName: customer,
		})
		if _, err := inventory.DecrementStock(st, p.ID, line.Qty); err != nil {
			return domain.Invoice{}, err
		}

		invoice.Lines = append(invoice.Lines, domain.InvoiceLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Size:        p.Size,
			Color:       p.Color,
			Qty:         line.Qty,
			Price:       price,
			LineTotal:   lineTotal,
		})
		invoice.Total = invoice.Total.Add(lineTotal)
	}

	cash := money.Normalize(c.cash)
	invoice.Paid = money.Min(cash, invoice.Total)
	invoice.Due = money.ClampZero(invoice.Total.Sub(cash))
	invoice.Change = money.ClampZero(cash.Sub(invoice.Total))

	desc := fmt.Sprintf("%s - %s (%d items)", invoiceID, customer, len(c.lines))
	if invoice.Paid.IsPositive() {
		if _, err := ledger.AddInvoiceTransaction(st, domain.TransactionCreateRequest{
			Type:        domain.TransactionIncome,
			Amount:      invoice.Paid,
			Description: desc,
			Category:    domain.SaleIncomeCategory,
			Date:        day,
		}, invoiceID, now); err != nil {
			return domain.Invoice{}, err
		}
	}
	if invoice.Due.IsPositive() {
		if _, err := ledger.AddInvoiceTransaction(st, domain.TransactionCreateRequest{
			Type:        domain.TransactionDue,
			Amount:      invoice.Due,
			Description: desc + " (Due)",
			Category:    domain.SaleDueCategory,
			Date:        day,
		}, invoiceID, now); err != nil {
			return domain.Invoice{}, err
		}
	}
	return invoice, nil
}

// freshInvoiceID draws invoice numbers until one is not already used by a
// sale or ledger entry of the shop. The short numbers wrap around every few
// minutes, so a repeat is possible over a shop's lifetime.
func freshInvoiceID(st *session.State, now time.Time) string {
	used := make(map[string]struct{}, len(st.Profile.Sales)+len(st.Transactions))
	for _, rec := range st.Profile.Sales {
		used[rec.InvoiceID] = struct{}{}
	}
	for _, tx := range st.Transactions {
		if tx.InvoiceID != "" {
			used[tx.InvoiceID] = struct{}{}
		}
	}
	for {
		id := xid.Invoice(now)
		if _, taken := used[id]; !taken {
			return id
		}
	}
}
