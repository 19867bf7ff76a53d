package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AccountFilter narrows Accounts queries. Zero values mean "any".
type AccountFilter struct {
	Type       AccountType
	ParentID   *string // nil = any; pointer to "" selects roots
	ActiveOnly bool
}

// EntryFilter narrows Entries queries. Nil date bounds mean open-ended.
type EntryFilter struct {
	From       *time.Time
	To         *time.Time
	Type       EntryType
	PostedOnly bool
	DraftOnly  bool
}

// LineFilter narrows PostedLines queries. Only posted lines are ever
// returned; the entry date window is inclusive on both ends.
type LineFilter struct {
	AccountID    string
	AccountType  AccountType
	ProjectID    string
	CostCenterID string
	From         *time.Time
	To           *time.Time
}

// PostedLine is a journal line joined with its (posted) entry and account,
// the shape every aggregation in this core is built from.
type PostedLine struct {
	EntryID      string          `json:"entry_id"`
	EntryDate    time.Time       `json:"entry_date"`
	AccountID    string          `json:"account_id"`
	AccountCode  string          `json:"account_code"`
	AccountName  string          `json:"account_name"`
	AccountType  AccountType     `json:"account_type"`
	ProjectID    string          `json:"project_id,omitempty"`
	CostCenterID string          `json:"cost_center_id,omitempty"`
	DebitAmount  decimal.Decimal `json:"debit_amount"`
	CreditAmount decimal.Decimal `json:"credit_amount"`
}

// GrantFilter narrows Grants queries.
type GrantFilter struct {
	Status    GrantStatus
	ProjectID string
	EndingBy  *time.Time // end_date <= EndingBy
}

// Store is the transactional persistence collaborator. Implementations
// provide CRUD and predicate queries over the ledger entities; every
// mutating service call runs inside WithinTx so that all rows commit
// together or none do.
//
// Mark* methods are compare-and-set state flips: they fail with a StateError
// when the entry is not in the expected source state, guarding against
// concurrent double-posting.
type Store interface {
	// WithinTx runs fn against a transactional view of the store. A non-nil
	// error rolls back everything fn did.
	WithinTx(ctx context.Context, fn func(Store) error) error

	CreateAccount(ctx context.Context, a *Account) error
	UpdateAccount(ctx context.Context, a *Account) error
	Account(ctx context.Context, id string) (Account, error)
	AccountByCode(ctx context.Context, code string) (Account, error)
	Accounts(ctx context.Context, f AccountFilter) ([]Account, error)
	// AccountHasLines reports whether any journal line, draft or posted,
	// references the account.
	AccountHasLines(ctx context.Context, accountID string) (bool, error)

	CreateCurrency(ctx context.Context, c *Currency) error
	UpdateCurrency(ctx context.Context, c *Currency) error
	Currency(ctx context.Context, id string) (Currency, error)
	CurrencyByCode(ctx context.Context, code string) (Currency, error)
	Currencies(ctx context.Context) ([]Currency, error)
	// SetBaseCurrency atomically clears the previous base flag and sets the
	// new one; two currencies are never flagged at once.
	SetBaseCurrency(ctx context.Context, id string) error

	UpsertExchangeRate(ctx context.Context, r *ExchangeRate) error
	// RateOnOrBefore is the floor lookup: the most recent rate whose date is
	// on or before asOf. NotFoundError when no such rate exists.
	RateOnOrBefore(ctx context.Context, currencyID string, asOf time.Time) (ExchangeRate, error)

	// CreateEntry persists the entry and its lines atomically.
	CreateEntry(ctx context.Context, e *JournalEntry, lines []JournalEntryLine) error
	Entry(ctx context.Context, id string) (JournalEntry, error)
	EntryLines(ctx context.Context, entryID string) ([]JournalEntryLine, error)
	Entries(ctx context.Context, f EntryFilter) ([]JournalEntry, error)
	CountEntriesInMonth(ctx context.Context, year int, month time.Month) (int, error)
	// MarkEntryPosted flips draft->posted; StateError if already posted.
	MarkEntryPosted(ctx context.Context, id string, postedAt time.Time) error
	// MarkEntryDraft flips posted->draft; StateError if not posted.
	MarkEntryDraft(ctx context.Context, id string) error
	// DeleteEntry removes a draft entry and all its lines; StateError on a
	// posted entry.
	DeleteEntry(ctx context.Context, id string) error

	PostedLines(ctx context.Context, f LineFilter) ([]PostedLine, error)

	CreateBudget(ctx context.Context, b *Budget, lines []BudgetLine) error
	Budget(ctx context.Context, id string) (Budget, error)
	BudgetLines(ctx context.Context, budgetID string) ([]BudgetLine, error)

	CreateGrant(ctx context.Context, g *Grant) error
	UpdateGrant(ctx context.Context, g *Grant) error
	Grant(ctx context.Context, id string) (Grant, error)
	Grants(ctx context.Context, f GrantFilter) ([]Grant, error)

	CreateAsset(ctx context.Context, a *FixedAsset) error
	UpdateAsset(ctx context.Context, a *FixedAsset) error
	Asset(ctx context.Context, id string) (FixedAsset, error)
	Assets(ctx context.Context, activeOnly bool) ([]FixedAsset, error)
	CreateDepreciationEntry(ctx context.Context, d *DepreciationEntry) error
	// HasDepreciationForMonth reports whether the asset already has a
	// depreciation entry dated inside the given calendar month.
	HasDepreciationForMonth(ctx context.Context, assetID string, year int, month time.Month) (bool, error)
}
