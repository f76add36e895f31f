package domain

import "github.com/shopspring/decimal"

type SignupRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Mobile          string `json:"mobile"`
	Password        string `json:"password" validate:"required,min=4"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	SecretCode      string `json:"secret_code" validate:"required"`
	Currency        string `json:"currency"`
}

type LoginRequest struct {
	Role     Role   `json:"role" validate:"omitempty,oneof=ADMIN MODERATOR"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type LoginResponse struct {
	AccessToken   string      `json:"access_token"`
	ExpiresAt     string      `json:"expires_at"`
	Role          Role        `json:"role"`
	ModeratorName string      `json:"moderator_name,omitempty"`
	Profile       UserProfile `json:"profile"`
	Warning       string      `json:"warning,omitempty"`
}

type ForgotPasswordRequest struct {
	Email      string `json:"email" validate:"required"`
	SecretCode string `json:"secret_code" validate:"required"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required"`
	SecretCode      string `json:"secret_code" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=4"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type ProfileUpdateRequest struct {
	Name         *string        `json:"name,omitempty" validate:"omitempty,min=1"`
	Mobile       *string        `json:"mobile,omitempty"`
	Currency     *string        `json:"currency,omitempty" validate:"omitempty,min=1"`
	PrimaryColor *string        `json:"primary_color,omitempty"`
	ProfilePic   *string        `json:"profile_pic,omitempty"`
	UIConfig     map[string]any `json:"ui_config,omitempty"`
}

type ModeratorCreateRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type PartnerCreateRequest struct {
	Name   string          `json:"name" validate:"required"`
	Mobile string          `json:"mobile"`
	Share  decimal.Decimal `json:"share"`
}

type TransactionCreateRequest struct {
	Type        TransactionType `json:"type" validate:"required,oneof=INCOME EXPENSE DUE"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required"`
	Category    string          `json:"category"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// TransactionUpdateRequest patches the mutable fields of a ledger entry.
// Id, date and creation time never change.
type TransactionUpdateRequest struct {
	Type        *TransactionType `json:"type,omitempty" validate:"omitempty,oneof=INCOME EXPENSE DUE"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description *string          `json:"description,omitempty" validate:"omitempty,min=1"`
	Category    *string          `json:"category,omitempty"`
}

type TransactionImportRequest struct {
	Entries []TransactionCreateRequest `json:"entries" validate:"required,min=1,dive"`
}

type TransactionQuery struct {
	Search string          `json:"search"`
	Date   string          `json:"date"`
	Type   TransactionType `json:"type"`
}

type ProductCreateRequest struct {
	Name          string          `json:"name" validate:"required"`
	Code          string          `json:"code"`
	Category      string          `json:"category"`
	Color         string          `json:"color"`
	Size          string          `json:"size"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
}

// ProductUpdateRequest replaces every editable field of a product.
type ProductUpdateRequest struct {
	Name          string          `json:"name" validate:"required"`
	Code          string          `json:"code"`
	Category      string          `json:"category"`
	Color         string          `json:"color"`
	Size          string          `json:"size"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
}

type CheckoutLine struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type CheckoutRequest struct {
	CustomerName string          `json:"customer_name"`
	CashReceived decimal.Decimal `json:"cash_received"`
	Lines        []CheckoutLine  `json:"lines"`
}

type CheckoutResponse struct {
	Invoice Invoice `json:"invoice"`
	Warning string  `json:"warning,omitempty"`
}

type ResetRequest struct {
	SecretCode string `json:"secret_code" validate:"required"`
}

type ResetResponse struct {
	Success bool   `json:"success"`
	Warning string `json:"warning,omitempty"`
}

type DaySummary struct {
	Date     string          `json:"date"`
	AllTime  Aggregate       `json:"all_time"`
	Today    Aggregate       `json:"today"`
	Balance  decimal.Decimal `json:"balance"`
	LowStock []Product       `json:"low_stock"`
	Currency string          `json:"currency"`
}

type SalesSummaryResponse struct {
	Date       string          `json:"date"`
	Sales      []SaleRecord    `json:"sales"`
	ByCategory []SaleSummary   `json:"by_category"`
	ByProduct  []SaleSummary   `json:"by_product"`
	TotalQty   int             `json:"total_qty"`
	Revenue    decimal.Decimal `json:"revenue"`
	Profit     decimal.Decimal `json:"profit"`
}
