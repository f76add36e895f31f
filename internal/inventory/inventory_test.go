package inventory

import (
	"errors"
	"fmt"
	"strings"
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

func addShirt(t *testing.T, st *session.State, size, color string, stock int) domain.Product {
	t.Helper()
	p, err := AddProduct(st, domain.ProductCreateRequest{
		Name:          "Shirt",
		Size:          size,
		Color:         color,
		StockQuantity: stock,
		BuyPrice:      decimal.NewFromInt(200),
		SellPrice:     decimal.NewFromInt(300),
	}, fixedNow)
	require.NoError(t, err)
	return p
}

func TestAddProductDefaults(t *testing.T) {
	st := newState()
	p := addShirt(t, &st, "M", "Red", 5)

	assert.True(t, strings.HasPrefix(p.ID, "P-"))
	assert.True(t, strings.HasPrefix(p.Code, "C-"))
	assert.Equal(t, domain.DefaultProductCategory, p.Category)
	assert.Equal(t, fixedNow, p.AddedAt)
	assert.Len(t, st.Profile.Products, 1)
}

func TestAddProductValidation(t *testing.T) {
	st := newState()
	_, err := AddProduct(&st, domain.ProductCreateRequest{Name: " "}, fixedNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = AddProduct(&st, domain.ProductCreateRequest{Name: "Cap", StockQuantity: -1}, fixedNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = AddProduct(&st, domain.ProductCreateRequest{Name: "Cap", SellPrice: decimal.NewFromInt(-1)}, fixedNow)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Empty(t, st.Profile.Products)
}

func TestUpdateProductIsIdempotent(t *testing.T) {
	st := newState()
	p := addShirt(t, &st, "M", "Red", 5)
	req := domain.ProductUpdateRequest{
		Name:          "Shirt",
		Category:      "Tops",
		Color:         "Blue",
		Size:          "L",
		StockQuantity: 9,
		BuyPrice:      decimal.NewFromInt(210),
		SellPrice:     decimal.NewFromInt(320),
	}

	once, err := UpdateProduct(&st, p.ID, req, fixedNow)
	require.NoError(t, err)
	afterOnce := fmt.Sprintf("%+v", st.Profile.Products)

	twice, err := UpdateProduct(&st, p.ID, req, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, afterOnce, fmt.Sprintf("%+v", st.Profile.Products))
	assert.Equal(t, once, twice)
	assert.Equal(t, p.Code, twice.Code)
	assert.Equal(t, p.AddedAt, twice.AddedAt)

	_, err = UpdateProduct(&st, "P-missing", req, fixedNow)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRemoveProductRequiresAdmin(t *testing.T) {
	st := newState()
	p := addShirt(t, &st, "M", "Red", 5)

	assert.True(t, errors.Is(RemoveProduct(&st, domain.RoleModerator, p.ID), domain.ErrPermissionDenied))
	assert.Len(t, st.Profile.Products, 1)
	require.NoError(t, RemoveProduct(&st, domain.RoleAdmin, p.ID))
	assert.Empty(t, st.Profile.Products)
}

func TestDecrementStockNeverGoesNegative(t *testing.T) {
	st := newState()
	p := addShirt(t, &st, "M", "Red", 5)

	for _, qty := range []int{0, 2, 6, 1, 100} {
		got, err := DecrementStock(&st, p.ID, qty)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.StockQuantity, 0)
	}
	assert.Equal(t, 0, st.Profile.Products[0].StockQuantity)

	_, err := DecrementStock(&st, p.ID, -1)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = DecrementStock(&st, "P-missing", 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResolveVariant(t *testing.T) {
	st := newState()
	addShirt(t, &st, "M", "Red", 5)
	blue := addShirt(t, &st, "M", "Blue", 2)

	got, err := ResolveVariant(st.Profile.Products, "Shirt", "M", "Blue")
	require.NoError(t, err)
	assert.Equal(t, blue.ID, got.ID)

	_, err = ResolveVariant(st.Profile.Products, "Shirt", "XL", "Blue")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Len(t, Variants(st.Profile.Products, "Shirt"), 2)
}

func TestFindByNamePrefix(t *testing.T) {
	st := newState()
	for _, name := range []string{"Shirt", "Shirt", "T-Shirt", "Sweat Shirt", "Polo Shirt", "Shirt Dress", "Night Shirt", "Pants"} {
		_, err := AddProduct(&st, domain.ProductCreateRequest{Name: name}, fixedNow)
		require.NoError(t, err)
	}
	got := FindByNamePrefix(st.Profile.Products, "shirt")
	assert.Equal(t, []string{"Shirt", "T-Shirt", "Sweat Shirt", "Polo Shirt", "Shirt Dress"}, got)
	assert.Empty(t, FindByNamePrefix(st.Profile.Products, " "))

	code := st.Profile.Products[7].Code
	assert.Equal(t, []string{"Pants"}, FindByNamePrefix(st.Profile.Products, strings.ToLower(code)))
}

func TestSearchAndLowStock(t *testing.T) {
	st := newState()
	addShirt(t, &st, "M", "Red", 5)
	addShirt(t, &st, "XL", "Blue", 1)
	addShirt(t, &st, "S", "Green", 0)

	assert.Len(t, Search(st.Profile.Products, "blue"), 1)
	assert.Len(t, Search(st.Profile.Products, "xl"), 1)
	assert.Len(t, Search(st.Profile.Products, ""), 3)

	low := LowStock(st.Profile.Products, 1)
	require.Len(t, low, 2)
	assert.Equal(t, 0, low[0].StockQuantity)
}

func TestSummaries(t *testing.T) {
	st := newState()
	sales := []domain.SaleRecord{
		{ID: "S-1", ProductName: "Shirt", Category: "Clothing", Qty: 2, SellPrice: decimal.NewFromInt(300), Profit: decimal.NewFromInt(200), Date: "2026-10-17"},
		{ID: "S-2", ProductName: "Cap", Category: "", Qty: 1, SellPrice: decimal.NewFromInt(150), Profit: decimal.NewFromInt(50), Date: "2026-10-17"},
		{ID: "S-3", ProductName: "Shirt", Category: "Clothing", Qty: 1, SellPrice: decimal.NewFromInt(300), Profit: decimal.NewFromInt(100), Date: "2026-10-16"},
	}
	for _, s := range sales {
		RecordSale(&st, s)
	}

	byCat := SummarizeByCategory(st.Profile.Sales)
	require.Len(t, byCat, 2)
	assert.Equal(t, "Clothing", byCat[0].Key)
	assert.Equal(t, 3, byCat[0].Qty)
	assert.True(t, byCat[0].Total.Equal(decimal.NewFromInt(900)))
	assert.True(t, byCat[0].Profit.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, domain.UncategorizedCategory, byCat[1].Key)

	today := SalesOn(st.Profile.Sales, "2026-10-17")
	byProduct := SummarizeByProduct(today)
	require.Len(t, byProduct, 2)
	assert.Equal(t, "Cap", byProduct[0].Key)

	qty, revenue, profit := Totals(today)
	assert.Equal(t, 3, qty)
	assert.True(t, revenue.Equal(decimal.NewFromInt(750)))
	assert.True(t, profit.Equal(decimal.NewFromInt(250)))
}

func TestDeleteSale(t *testing.T) {
	st := newState()
	RecordSale(&st, domain.SaleRecord{ID: "S-1", InvoiceID: "INV-000001"})

	assert.True(t, errors.Is(DeleteSale(&st, domain.RoleModerator, "S-1"), domain.ErrPermissionDenied))
	require.NoError(t, DeleteSale(&st, domain.RoleAdmin, "S-1"))
	assert.Empty(t, SalesForInvoice(st.Profile.Sales, "INV-000001"))
	assert.True(t, errors.Is(DeleteSale(&st, domain.RoleAdmin, "S-1"), domain.ErrNotFound))
}
