package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"

	DefaultCurrency          = "৳"
	DefaultLedgerCategory    = "General"
	DefaultProductCategory   = "Clothing"
	UncategorizedCategory    = "Uncategorized"
	SaleIncomeCategory       = "Clothing Sales"
	SaleDueCategory          = "Sales Dues"
	WalkInCustomer           = "Walk-in"
	DefaultSuggestionLimit   = 5
	DefaultLowStockThreshold = 3
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionExpense TransactionType = "EXPENSE"
	TransactionDue     TransactionType = "DUE"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionDue:
		return true
	}
	return false
}

type Language string

const (
	LanguageEN Language = "EN"
	LanguageBN Language = "BN"
)

type Moderator struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Code  string `json:"code"`
}

type Partner struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Mobile string          `json:"mobile,omitempty"`
	Share  decimal.Decimal `json:"share"`
}

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Code          string          `json:"code"`
	Category      string          `json:"category"`
	Color         string          `json:"color"`
	Size          string          `json:"size"`
	StockQuantity int             `json:"stock_quantity"`
	BuyPrice      decimal.Decimal `json:"buy_price"`
	SellPrice     decimal.Decimal `json:"sell_price"`
	AddedAt       time.Time       `json:"added_at"`
}

type SaleRecord struct {
	ID           string          `json:"id"`
	InvoiceID    string          `json:"invoice_id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Category     string          `json:"category"`
	Size         string          `json:"size"`
	Color        string          `json:"color"`
	Qty          int             `json:"qty"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	Profit       decimal.Decimal `json:"profit"`
	Date         string          `json:"date"`
	CustomerName string          `json:"customer_name"`
}

type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        string          `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	InvoiceID   string          `json:"invoice_id,omitempty"`
}

// UserProfile is the persisted blob for one shop. UIConfig, ProfilePic and
// Accounts are carried for clients and never interpreted here.
type UserProfile struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Mobile       string         `json:"mobile"`
	Password     string         `json:"password,omitempty"`
	SecretCode   string         `json:"secret_code,omitempty"`
	Currency     string         `json:"currency"`
	PrimaryColor string         `json:"primary_color,omitempty"`
	ProfilePic   string         `json:"profile_pic,omitempty"`
	UIConfig     map[string]any `json:"ui_config,omitempty"`
	Accounts     []string       `json:"accounts"`
	Moderators   []Moderator    `json:"moderators"`
	Products     []Product      `json:"products"`
	Sales        []SaleRecord   `json:"sales"`
	Partners     []Partner      `json:"partners"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Redacted drops the credential hashes before a profile leaves the API.
func (p UserProfile) Redacted() UserProfile {
	p.Password = ""
	p.SecretCode = ""
	return p
}

// Actor is the authenticated principal of a request. Role never leaves the
// session; it is not stored on the profile.
type Actor struct {
	ProfileID     string `json:"profile_id"`
	Role          Role   `json:"role"`
	ModeratorID   string `json:"moderator_id,omitempty"`
	ModeratorName string `json:"moderator_name,omitempty"`
}

// DisplayName is the name shown for the acting user.
func (a Actor) DisplayName(profile UserProfile) string {
	if a.Role == RoleModerator && a.ModeratorName != "" {
		return a.ModeratorName
	}
	return profile.Name
}

type Aggregate struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Dues    decimal.Decimal `json:"dues"`
}

func (a Aggregate) Balance() decimal.Decimal {
	return a.Income.Sub(a.Expense)
}

type SeriesPoint struct {
	Key     string          `json:"key"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

type CategoryTotal struct {
	Category string `json:"category"`
	Aggregate
}

type SaleSummary struct {
	Key    string          `json:"key"`
	Qty    int             `json:"qty"`
	Profit decimal.Decimal `json:"profit"`
	Total  decimal.Decimal `json:"total"`
}

type InvoiceLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Qty         int             `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Invoice is computed at checkout and not persisted; InvoiceID ties the
// sale records and ledger entries it produced.
type Invoice struct {
	InvoiceID    string          `json:"invoice_id"`
	CustomerName string          `json:"customer_name"`
	Date         string          `json:"date"`
	Lines        []InvoiceLine   `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Due          decimal.Decimal `json:"due"`
	Change       decimal.Decimal `json:"change"`
	SoldBy       string          `json:"sold_by"`
}

type Backup struct {
	Version      int           `json:"version"`
	ExportedAt   time.Time     `json:"exported_at"`
	Profile      UserProfile   `json:"profile"`
	Transactions []Transaction `json:"transactions"`
}

type SyncStatus struct {
	ProfileID       string     `json:"profile_id"`
	LastLocalSave   *time.Time `json:"last_local_save,omitempty"`
	LastRemotePush  *time.Time `json:"last_remote_push,omitempty"`
	PendingRemote   bool       `json:"pending_remote"`
	LastRemoteError string     `json:"last_remote_error,omitempty"`
}
