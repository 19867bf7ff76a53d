package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies chart-of-accounts entries. The type is fixed at
// account creation and drives the normal balance side in reports.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// Valid reports whether t is one of the closed set of account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return true
	}
	return false
}

// EntryType distinguishes hand-keyed entries from system-generated ones
// (depreciation runs, recurring postings).
type EntryType string

const (
	EntryManual    EntryType = "manual"
	EntryAutomated EntryType = "automated"
)

func (t EntryType) Valid() bool { return t == EntryManual || t == EntryAutomated }

// GrantStatus is the closed grant lifecycle set. Callers must not compare
// raw strings; use the constants and Valid at every boundary.
type GrantStatus string

const (
	GrantActive    GrantStatus = "active"
	GrantExpired   GrantStatus = "expired"
	GrantCompleted GrantStatus = "completed"
)

func (s GrantStatus) Valid() bool {
	return s == GrantActive || s == GrantExpired || s == GrantCompleted
}

// DepreciationMethod selects the depreciation formula for a fixed asset.
type DepreciationMethod string

const (
	StraightLine     DepreciationMethod = "straight_line"
	DecliningBalance DepreciationMethod = "declining_balance"
)

func (m DepreciationMethod) Valid() bool {
	return m == StraightLine || m == DecliningBalance
}

// Account is a node in the chart of accounts. Accounts form a tree via
// ParentID; Level is always parent.Level+1 (0 for roots). Accounts that have
// ever been referenced by a journal line are deactivated, never deleted.
type Account struct {
	ID        string      `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	NameAlt   string      `json:"name_alt,omitempty"` // secondary-language display name
	Type      AccountType `json:"account_type"`
	ParentID  string      `json:"parent_id,omitempty"`
	Level     int         `json:"level"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
}

// Currency is a bookable currency. At most one currency carries the
// base-currency flag at any time.
type Currency struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Symbol         string    `json:"symbol,omitempty"`
	IsBaseCurrency bool      `json:"is_base_currency"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExchangeRate is a (currency, date) -> rate fact. One rate per currency per
// distinct date; lookups floor to the most recent date on or before the
// requested one.
type ExchangeRate struct {
	ID         string          `json:"id"`
	CurrencyID string          `json:"currency_id"`
	RateDate   time.Time       `json:"rate_date"`
	Rate       decimal.Decimal `json:"rate"`
	CreatedAt  time.Time       `json:"created_at"`
}

// JournalEntry is a balanced double-entry document. TotalDebit equals
// TotalCredit at all times; the pair is computed from lines before the
// entry is ever written. A posted entry is immutable except through a
// privileged unpost.
type JournalEntry struct {
	ID           string          `json:"id"`
	EntryNumber  string          `json:"entry_number"`
	EntryDate    time.Time       `json:"entry_date"`
	Description  string          `json:"description"`
	Type         EntryType       `json:"entry_type"`
	Reference    string          `json:"reference_number,omitempty"`
	TotalDebit   decimal.Decimal `json:"total_debit"`
	TotalCredit  decimal.Decimal `json:"total_credit"`
	CurrencyID   string          `json:"currency_id"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"` // entry-level; lines share it
	IsPosted     bool            `json:"is_posted"`
	CreatedAt    time.Time       `json:"created_at"`
	PostedAt     *time.Time      `json:"posted_at,omitempty"`
}

// JournalEntryLine is one side of a double-entry. Exactly one of DebitAmount
// and CreditAmount is nonzero. Lines live and die with their parent entry.
type JournalEntryLine struct {
	ID           string          `json:"id"`
	EntryID      string          `json:"journal_entry_id"`
	AccountID    string          `json:"account_id"`
	CostCenterID string          `json:"cost_center_id,omitempty"`
	ProjectID    string          `json:"project_id,omitempty"`
	Description  string          `json:"description,omitempty"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
	LineNumber   int             `json:"line_number"`
}

// Budget holds targets for a date range; actuals always come from the ledger.
type Budget struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	BudgetYear  int             `json:"budget_year"`
	ProjectID   string          `json:"project_id,omitempty"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BudgetLine is a per-account target within a budget.
type BudgetLine struct {
	ID             string          `json:"id"`
	BudgetID       string          `json:"budget_id"`
	AccountID      string          `json:"account_id"`
	CostCenterID   string          `json:"cost_center_id,omitempty"`
	BudgetedAmount decimal.Decimal `json:"budgeted_amount"`
	PeriodMonth    int             `json:"period_month,omitempty"` // 1-12 for monthly budgets
	Notes          string          `json:"notes,omitempty"`
}

// Grant is donor funding tied to a project for a date range.
type Grant struct {
	ID          string          `json:"id"`
	GrantNumber string          `json:"grant_number"`
	Title       string          `json:"title"`
	DonorName   string          `json:"donor_name"`
	ProjectID   string          `json:"project_id"`
	Amount      decimal.Decimal `json:"amount"`
	CurrencyID  string          `json:"currency_id"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Status      GrantStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// FixedAsset carries the inputs of the depreciation schedule plus the running
// accumulated total maintained by the monthly run.
type FixedAsset struct {
	ID              string             `json:"id"`
	AssetNumber     string             `json:"asset_number"`
	Name            string             `json:"name"`
	PurchaseDate    time.Time          `json:"purchase_date"`
	PurchaseCost    decimal.Decimal    `json:"purchase_cost"`
	SalvageValue    decimal.Decimal    `json:"salvage_value"`
	UsefulLifeYears int                `json:"useful_life_years"`
	Method          DepreciationMethod `json:"depreciation_method"`
	Accumulated     decimal.Decimal    `json:"accumulated_depreciation"`
	IsActive        bool               `json:"is_active"`
	CreatedAt       time.Time          `json:"created_at"`
}

// NetBookValue is cost less accumulated depreciation.
func (a FixedAsset) NetBookValue() decimal.Decimal {
	return a.PurchaseCost.Sub(a.Accumulated)
}

// DepreciationEntry links one monthly depreciation amount to the journal
// entry that booked it. At most one exists per (asset, calendar month).
type DepreciationEntry struct {
	ID        string          `json:"id"`
	AssetID   string          `json:"asset_id"`
	EntryDate time.Time       `json:"entry_date"`
	Amount    decimal.Decimal `json:"depreciation_amount"`
	JournalID string          `json:"journal_entry_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// DateOnly truncates t to midnight UTC so ledger dates compare by day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
