package ledger

import (
	"context"
	"time"
)

// Store method sets for MemStore (locks per call) and memTx (lock held by
// the enclosing WithinTx). Both delegate to memState.

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*memTx)(nil)
)

func (s *MemStore) CreateAccount(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createAccount(a)
}

func (s *MemStore) UpdateAccount(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateAccount(a)
}

func (s *MemStore) Account(ctx context.Context, id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.account(id)
}

func (s *MemStore) AccountByCode(ctx context.Context, code string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.accountByCode(code)
}

func (s *MemStore) Accounts(ctx context.Context, f AccountFilter) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listAccounts(f), nil
}

func (s *MemStore) AccountHasLines(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.accountHasLines(accountID), nil
}

func (s *MemStore) CreateCurrency(ctx context.Context, c *Currency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createCurrency(c)
}

func (s *MemStore) UpdateCurrency(ctx context.Context, c *Currency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateCurrency(c)
}

func (s *MemStore) Currency(ctx context.Context, id string) (Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.currency(id)
}

func (s *MemStore) CurrencyByCode(ctx context.Context, code string) (Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.currencyByCode(code)
}

func (s *MemStore) Currencies(ctx context.Context) ([]Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listCurrencies(), nil
}

func (s *MemStore) SetBaseCurrency(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.setBaseCurrency(id)
}

func (s *MemStore) UpsertExchangeRate(ctx context.Context, r *ExchangeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.upsertExchangeRate(r)
}

func (s *MemStore) RateOnOrBefore(ctx context.Context, currencyID string, asOf time.Time) (ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.rateOnOrBefore(currencyID, asOf)
}

func (s *MemStore) CreateEntry(ctx context.Context, e *JournalEntry, lines []JournalEntryLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createEntry(e, lines)
}

func (s *MemStore) Entry(ctx context.Context, id string) (JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.entry(id)
}

func (s *MemStore) EntryLines(ctx context.Context, entryID string) ([]JournalEntryLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.entryLines(entryID)
}

func (s *MemStore) Entries(ctx context.Context, f EntryFilter) ([]JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listEntries(f), nil
}

func (s *MemStore) CountEntriesInMonth(ctx context.Context, year int, month time.Month) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.countEntriesInMonth(year, month), nil
}

func (s *MemStore) MarkEntryPosted(ctx context.Context, id string, postedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.markEntryPosted(id, postedAt)
}

func (s *MemStore) MarkEntryDraft(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.markEntryDraft(id)
}

func (s *MemStore) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteEntry(id)
}

func (s *MemStore) PostedLines(ctx context.Context, f LineFilter) ([]PostedLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.postedLines(f), nil
}

func (s *MemStore) CreateBudget(ctx context.Context, b *Budget, lines []BudgetLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createBudget(b, lines)
}

func (s *MemStore) Budget(ctx context.Context, id string) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.budget(id)
}

func (s *MemStore) BudgetLines(ctx context.Context, budgetID string) ([]BudgetLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listBudgetLines(budgetID)
}

func (s *MemStore) CreateGrant(ctx context.Context, g *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createGrant(g)
}

func (s *MemStore) UpdateGrant(ctx context.Context, g *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateGrant(g)
}

func (s *MemStore) Grant(ctx context.Context, id string) (Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.grant(id)
}

func (s *MemStore) Grants(ctx context.Context, f GrantFilter) ([]Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listGrants(f), nil
}

func (s *MemStore) CreateAsset(ctx context.Context, a *FixedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createAsset(a)
}

func (s *MemStore) UpdateAsset(ctx context.Context, a *FixedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateAsset(a)
}

func (s *MemStore) Asset(ctx context.Context, id string) (FixedAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.asset(id)
}

func (s *MemStore) Assets(ctx context.Context, activeOnly bool) ([]FixedAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listAssets(activeOnly), nil
}

func (s *MemStore) CreateDepreciationEntry(ctx context.Context, d *DepreciationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createDepreciationEntry(d)
}

func (s *MemStore) HasDepreciationForMonth(ctx context.Context, assetID string, year int, month time.Month) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.hasDepreciationForMonth(assetID, year, month), nil
}

// --- transactional view ---

func (t *memTx) CreateAccount(ctx context.Context, a *Account) error { return t.st.createAccount(a) }
func (t *memTx) UpdateAccount(ctx context.Context, a *Account) error { return t.st.updateAccount(a) }
func (t *memTx) Account(ctx context.Context, id string) (Account, error) {
	return t.st.account(id)
}
func (t *memTx) AccountByCode(ctx context.Context, code string) (Account, error) {
	return t.st.accountByCode(code)
}
func (t *memTx) Accounts(ctx context.Context, f AccountFilter) ([]Account, error) {
	return t.st.listAccounts(f), nil
}
func (t *memTx) AccountHasLines(ctx context.Context, accountID string) (bool, error) {
	return t.st.accountHasLines(accountID), nil
}
func (t *memTx) CreateCurrency(ctx context.Context, c *Currency) error {
	return t.st.createCurrency(c)
}
func (t *memTx) UpdateCurrency(ctx context.Context, c *Currency) error {
	return t.st.updateCurrency(c)
}
func (t *memTx) Currency(ctx context.Context, id string) (Currency, error) {
	return t.st.currency(id)
}
func (t *memTx) CurrencyByCode(ctx context.Context, code string) (Currency, error) {
	return t.st.currencyByCode(code)
}
func (t *memTx) Currencies(ctx context.Context) ([]Currency, error) {
	return t.st.listCurrencies(), nil
}
func (t *memTx) SetBaseCurrency(ctx context.Context, id string) error {
	return t.st.setBaseCurrency(id)
}
func (t *memTx) UpsertExchangeRate(ctx context.Context, r *ExchangeRate) error {
	return t.st.upsertExchangeRate(r)
}
func (t *memTx) RateOnOrBefore(ctx context.Context, currencyID string, asOf time.Time) (ExchangeRate, error) {
	return t.st.rateOnOrBefore(currencyID, asOf)
}
func (t *memTx) CreateEntry(ctx context.Context, e *JournalEntry, lines []JournalEntryLine) error {
	return t.st.createEntry(e, lines)
}
func (t *memTx) Entry(ctx context.Context, id string) (JournalEntry, error) {
	return t.st.entry(id)
}
func (t *memTx) EntryLines(ctx context.Context, entryID string) ([]JournalEntryLine, error) {
	return t.st.entryLines(entryID)
}
func (t *memTx) Entries(ctx context.Context, f EntryFilter) ([]JournalEntry, error) {
	return t.st.listEntries(f), nil
}
func (t *memTx) CountEntriesInMonth(ctx context.Context, year int, month time.Month) (int, error) {
	return t.st.countEntriesInMonth(year, month), nil
}
func (t *memTx) MarkEntryPosted(ctx context.Context, id string, postedAt time.Time) error {
	return t.st.markEntryPosted(id, postedAt)
}
func (t *memTx) MarkEntryDraft(ctx context.Context, id string) error {
	return t.st.markEntryDraft(id)
}
func (t *memTx) DeleteEntry(ctx context.Context, id string) error {
	return t.st.deleteEntry(id)
}
func (t *memTx) PostedLines(ctx context.Context, f LineFilter) ([]PostedLine, error) {
	return t.st.postedLines(f), nil
}
func (t *memTx) CreateBudget(ctx context.Context, b *Budget, lines []BudgetLine) error {
	return t.st.createBudget(b, lines)
}
func (t *memTx) Budget(ctx context.Context, id string) (Budget, error) {
	return t.st.budget(id)
}
func (t *memTx) BudgetLines(ctx context.Context, budgetID string) ([]BudgetLine, error) {
	return t.st.listBudgetLines(budgetID)
}
func (t *memTx) CreateGrant(ctx context.Context, g *Grant) error  { return t.st.createGrant(g) }
func (t *memTx) UpdateGrant(ctx context.Context, g *Grant) error  { return t.st.updateGrant(g) }
func (t *memTx) Grant(ctx context.Context, id string) (Grant, error) {
	return t.st.grant(id)
}
func (t *memTx) Grants(ctx context.Context, f GrantFilter) ([]Grant, error) {
	return t.st.listGrants(f), nil
}
func (t *memTx) CreateAsset(ctx context.Context, a *FixedAsset) error { return t.st.createAsset(a) }
func (t *memTx) UpdateAsset(ctx context.Context, a *FixedAsset) error { return t.st.updateAsset(a) }
func (t *memTx) Asset(ctx context.Context, id string) (FixedAsset, error) {
	return t.st.asset(id)
}
func (t *memTx) Assets(ctx context.Context, activeOnly bool) ([]FixedAsset, error) {
	return t.st.listAssets(activeOnly), nil
}
func (t *memTx) CreateDepreciationEntry(ctx context.Context, d *DepreciationEntry) error {
	return t.st.createDepreciationEntry(d)
}
func (t *memTx) HasDepreciationForMonth(ctx context.Context, assetID string, year int, month time.Month) (bool, error) {
	return t.st.hasDepreciationForMonth(assetID, year, month), nil
}
