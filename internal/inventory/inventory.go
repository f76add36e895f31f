// Package inventory manages the product catalogue, stock levels and the
// sale records kept alongside it.
package inventory

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

func AddProduct(st *session.State, req domain.ProductCreateRequest, now time.Time) (domain.Product, error) {
	p, err := productFromFields(req.Name, req.Code, req.Category, req.Color, req.Size, req.StockQuantity, req.BuyPrice, req.SellPrice, now)
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = xid.New("P")
	p.AddedAt = now.UTC()
	st.Profile.Products = append(st.Profile.Products, p)
	return p, nil
}

// UpdateProduct replaces every editable field of the product with id.
// Applying the same request twice leaves the same state as applying it once.
func UpdateProduct(st *session.State, id string, req domain.ProductUpdateRequest, now time.Time) (domain.Product, error) {
	idx := indexOf(st.Profile.Products, id)
	if idx < 0 {
		return domain.Product{}, domain.NotFound("product")
	}
	existing := st.Profile.Products[idx]
	code := req.Code
	if strings.TrimSpace(code) == "" {
		code = existing.Code
	}
	p, err := productFromFields(req.Name, code, req.Category, req.Color, req.Size, req.StockQuantity, req.BuyPrice, req.SellPrice, now)
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = existing.ID
	p.AddedAt = existing.AddedAt
	st.Profile.Products[idx] = p
	return p, nil
}

func RemoveProduct(st *session.State, role domain.Role, id string) error {
	if err := access.Authorize(role, access.Delete); err != nil {
		return err
	}
	idx := indexOf(st.Profile.Products, id)
	if idx < 0 {
		return domain.NotFound("product")
	}
	st.Profile.Products = slices.Delete(st.Profile.Products, idx, idx+1)
	return nil
}

// DecrementStock lowers the stock of productID by qty, stopping at zero.
func DecrementStock(st *session.State, productID string, qty int) (domain.Product, error) {
	if qty < 0 {
		return domain.Product{}, domain.Validation("qty", "must not be negative")
	}
	idx := indexOf(st.Profile.Products, productID)
	if idx < 0 {
		return domain.Product{}, domain.NotFound("product")
	}
	p := &st.Profile.Products[idx]
	p.StockQuantity = max(0, p.StockQuantity-qty)
	return *p, nil
}

// ResolveVariant finds the product matching name, size and color exactly.
func ResolveVariant(products []domain.Product, name, size, color string) (domain.Product, error) {
	for _, p := range products {
		if p.Name == name && p.Size == size && p.Color == color {
			return p, nil
		}
	}
	return domain.Product{}, domain.NotFound("product variant")
}

func FindByID(products []domain.Product, id string) (domain.Product, bool) {
	idx := indexOf(products, id)
	if idx < 0 {
		return domain.Product{}, false
	}
	return products[idx], true
}

// FindByNamePrefix suggests up to five distinct product names whose name or
// code contains term, ignoring case.
func FindByNamePrefix(products []domain.Product, term string) []string {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return []string{}
	}
	names := make([]string, 0, domain.DefaultSuggestionLimit)
	for _, p := range products {
		if !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.Code), needle) {
			continue
		}
		if slices.Contains(names, p.Name) {
			continue
		}
		names = append(names, p.Name)
		if len(names) == domain.DefaultSuggestionLimit {
			break
		}
	}
	return names
}

// Variants lists the products sharing name, for size and color pickers.
func Variants(products []domain.Product, name string) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// Search filters the stock list by name, code, color or size.
func Search(products []domain.Product, term string) []domain.Product {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return slices.Clone(products)
	}
	out := make([]domain.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Code), needle) ||
			strings.Contains(strings.ToLower(p.Color), needle) ||
			strings.Contains(strings.ToLower(p.Size), needle) {
			out = append(out, p)
		}
	}
	return out
}

// LowStock returns products with stock at or below threshold, lowest first.
func LowStock(products []domain.Product, threshold int) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.StockQuantity <= threshold {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Product) int { return a.StockQuantity - b.StockQuantity })
	return out
}

// ValidateProduct checks a product that did not come through AddProduct,
// such as one read from a backup.
func ValidateProduct(p domain.Product) error {
	if strings.TrimSpace(p.ID) == "" {
		return domain.Validation("id", "is required")
	}
	return checkFields(p.Name, p.StockQuantity, p.BuyPrice, p.SellPrice)
}

func checkFields(name string, stock int, buy, sell decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return domain.Validation("name", "is required")
	}
	if stock < 0 {
		return domain.Validation("stock_quantity", "must not be negative")
	}
	if buy.IsNegative() {
		return domain.Validation("buy_price", "must not be negative")
	}
	if sell.IsNegative() {
		return domain.Validation("sell_price", "must not be negative")
	}
	return nil
}

func productFromFields(name, code, category, color, size string, stock int, buy, sell decimal.Decimal, now time.Time) (domain.Product, error) {
	if err := checkFields(name, stock, buy, sell); err != nil {
		return domain.Product{}, err
	}
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if code == "" {
		code = xid.ProductCode(now)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = domain.DefaultProductCategory
	}
	return domain.Product{
		Name:          name,
		Code:          code,
		Category:      category,
		Color:         strings.TrimSpace(color),
		Size:          strings.TrimSpace(size),
		StockQuantity: stock,
		BuyPrice:      money.Normalize(buy),
		SellPrice:     money.Normalize(sell),
	}, nil
}

func indexOf(products []domain.Product, id string) int {
	return slices.IndexFunc(products, func(p domain.Product) bool { return p.ID == id })
}
