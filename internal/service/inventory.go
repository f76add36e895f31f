package service

import (
	"context"
	"strings"
	"time"

	"dokan/internal/access"
	"dokan/internal/domain"
	"dokan/internal/inventory"
	"dokan/internal/sale"
	"dokan/internal/session"
)

func (s *Service) ListProducts(ctx context.Context, search string) ([]domain.Product, error) {
	_, st, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.Search(st.Profile.Products, search), nil
}

func (s *Service) AddProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	var created domain.Product
	_, err := s.mutate(ctx, access.Create, func(_ domain.Actor, st *session.State) error {
		p, err := inventory.AddProduct(st, req, s.now())
		created = p
		return err
	})
	if err != nil && !IsWarning(err) {
		return domain.Product{}, err
	}
	return created, err
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	var updated domain.Product
	_, err := s.mutate(ctx, access.Update, func(_ domain.Actor, st *session.State) error {
		p, err := inventory.UpdateProduct(st, strings.TrimSpace(id), req, s.now())
		updated = p
		return err
	})
	if err != nil && !IsWarning(err) {
		return domain.Product{}, err
	}
	return updated, err
}

func (s *Service) RemoveProduct(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, access.Read, func(actor domain.Actor, st *session.State) error {
		return inventory.RemoveProduct(st, actor.Role, strings.TrimSpace(id))
	})
	return err
}

// SuggestProducts returns up to five product names matching term.
func (s *Service) SuggestProducts(ctx context.Context, term string) ([]string, error) {
	_, st, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.FindByNamePrefix(st.Profile.Products, term), nil
}

func (s *Service) ResolveVariant(ctx context.Context, name, size, color string) (domain.Product, error) {
	_, st, err := s.read(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	return inventory.ResolveVariant(st.Profile.Products, name, size, color)
}

// Checkout runs one point-of-sale checkout against the actor's shop. A save
// failure after the commit comes back as the response warning.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	actor, st, err := s.open(ctx, access.Create)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	c, err := sale.FromRequest(req)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	soldBy := actor.DisplayName(st.Get().Profile)
	invoice, _, err := c.Commit(st, soldBy, s.now())
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	s.logger.Info("checkout committed", "profile_id", actor.ProfileID, "invoice_id", invoice.InvoiceID, "lines", len(invoice.Lines))

	resp := domain.CheckoutResponse{Invoice: invoice}
	if err := s.persist(ctx, st); err != nil {
		resp.Warning = err.Error()
	}
	return resp, nil
}

func (s *Service) ListSales(ctx context.Context, day string) ([]domain.SaleRecord, error) {
	day, err := s.dayOrToday(day)
	if err != nil {
		return nil, err
	}
	_, st, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.SalesOn(st.Profile.Sales, day), nil
}

// SalesSummary groups one day's sales by category and by product.
func (s *Service) SalesSummary(ctx context.Context, day string) (domain.SalesSummaryResponse, error) {
	day, err := s.dayOrToday(day)
	if err != nil {
		return domain.SalesSummaryResponse{}, err
	}
	_, st, err := s.read(ctx)
	if err != nil {
		return domain.SalesSummaryResponse{}, err
	}
	sales := inventory.SalesOn(st.Profile.Sales, day)
	qty, revenue, profit := inventory.Totals(sales)
	return domain.SalesSummaryResponse{
		Date:       day,
		Sales:      sales,
		ByCategory: inventory.SummarizeByCategory(sales),
		ByProduct:  inventory.SummarizeByProduct(sales),
		TotalQty:   qty,
		Revenue:    revenue,
		Profit:     profit,
	}, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, access.Read, func(actor domain.Actor, st *session.State) error {
		return inventory.DeleteSale(st, actor.Role, strings.TrimSpace(id))
	})
	return err
}

func validDates(days ...string) error {
	for _, day := range days {
		if day == "" {
			continue
		}
		if _, err := time.Parse(domain.DateLayout, day); err != nil {
			return domain.Validation("date", "must match "+domain.DateLayout)
		}
	}
	return nil
}
