package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore implements Store with in-process concurrency safety. It backs
// tests, the smoke tool, and DSN-less runs; production uses store/pg.
type MemStore struct {
	mu sync.Mutex
	st *memState
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{st: newMemState()}
}

// WithinTx serializes the callback under the store lock and restores a
// snapshot of the whole state when fn fails, so partial mutations are never
// observable.
func (s *MemStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&memTx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// memTx is the view handed to WithinTx callbacks: same state, lock already
// held by the enclosing MemStore call.
type memTx struct {
	st *memState
}

// Nested WithinTx joins the enclosing transaction.
func (t *memTx) WithinTx(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

type memState struct {
	accounts    map[string]Account
	currencies  map[string]Currency
	rates       map[string][]ExchangeRate // currencyID -> rates, unordered
	entries     map[string]JournalEntry
	lines       map[string][]JournalEntryLine // entryID -> lines
	budgets     map[string]Budget
	budgetLines map[string][]BudgetLine
	grants      map[string]Grant
	assets      map[string]FixedAsset
	deprecs     []DepreciationEntry
}

func newMemState() *memState {
	return &memState{
		accounts:    map[string]Account{},
		currencies:  map[string]Currency{},
		rates:       map[string][]ExchangeRate{},
		entries:     map[string]JournalEntry{},
		lines:       map[string][]JournalEntryLine{},
		budgets:     map[string]Budget{},
		budgetLines: map[string][]BudgetLine{},
		grants:      map[string]Grant{},
		assets:      map[string]FixedAsset{},
	}
}

func (m *memState) clone() *memState {
	c := newMemState()
	for k, v := range m.accounts {
		c.accounts[k] = v
	}
	for k, v := range m.currencies {
		c.currencies[k] = v
	}
	for k, v := range m.rates {
		c.rates[k] = append([]ExchangeRate(nil), v...)
	}
	for k, v := range m.entries {
		c.entries[k] = v
	}
	for k, v := range m.lines {
		c.lines[k] = append([]JournalEntryLine(nil), v...)
	}
	for k, v := range m.budgets {
		c.budgets[k] = v
	}
	for k, v := range m.budgetLines {
		c.budgetLines[k] = append([]BudgetLine(nil), v...)
	}
	for k, v := range m.grants {
		c.grants[k] = v
	}
	for k, v := range m.assets {
		c.assets[k] = v
	}
	c.deprecs = append([]DepreciationEntry(nil), m.deprecs...)
	return c
}

// --- accounts ---

func (m *memState) createAccount(a *Account) error {
	for _, ex := range m.accounts {
		if ex.Code == a.Code {
			return Validationf("account code %q already exists", a.Code)
		}
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *memState) updateAccount(a *Account) error {
	if _, ok := m.accounts[a.ID]; !ok {
		return NotFound("account", a.ID)
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *memState) account(id string) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, NotFound("account", id)
	}
	return a, nil
}

func (m *memState) accountByCode(code string) (Account, error) {
	for _, a := range m.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return Account{}, NotFound("account", code)
}

func (m *memState) listAccounts(f AccountFilter) []Account {
	var out []Account
	for _, a := range m.accounts {
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.ParentID != nil && a.ParentID != *f.ParentID {
			continue
		}
		if f.ActiveOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m *memState) accountHasLines(accountID string) bool {
	for _, ls := range m.lines {
		for _, l := range ls {
			if l.AccountID == accountID {
				return true
			}
		}
	}
	return false
}

// --- currencies & rates ---

func (m *memState) createCurrency(c *Currency) error {
	for _, ex := range m.currencies {
		if ex.Code == c.Code {
			return Validationf("currency %q already exists", c.Code)
		}
	}
	if c.IsBaseCurrency {
		for _, ex := range m.currencies {
			if ex.IsBaseCurrency {
				return Validationf("a base currency already exists")
			}
		}
	}
	m.currencies[c.ID] = *c
	return nil
}

func (m *memState) updateCurrency(c *Currency) error {
	if _, ok := m.currencies[c.ID]; !ok {
		return NotFound("currency", c.ID)
	}
	m.currencies[c.ID] = *c
	return nil
}

func (m *memState) currency(id string) (Currency, error) {
	c, ok := m.currencies[id]
	if !ok {
		return Currency{}, NotFound("currency", id)
	}
	return c, nil
}

func (m *memState) currencyByCode(code string) (Currency, error) {
	for _, c := range m.currencies {
		if c.Code == code {
			return c, nil
		}
	}
	return Currency{}, NotFound("currency", code)
}

func (m *memState) listCurrencies() []Currency {
	out := make([]Currency, 0, len(m.currencies))
	for _, c := range m.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m *memState) setBaseCurrency(id string) error {
	target, ok := m.currencies[id]
	if !ok {
		return NotFound("currency", id)
	}
	for k, c := range m.currencies {
		if c.IsBaseCurrency {
			c.IsBaseCurrency = false
			m.currencies[k] = c
		}
	}
	target.IsBaseCurrency = true
	m.currencies[id] = target
	return nil
}

func (m *memState) upsertExchangeRate(r *ExchangeRate) error {
	if _, ok := m.currencies[r.CurrencyID]; !ok {
		return NotFound("currency", r.CurrencyID)
	}
	day := DateOnly(r.RateDate)
	rs := m.rates[r.CurrencyID]
	for i, ex := range rs {
		if DateOnly(ex.RateDate).Equal(day) {
			ex.Rate = r.Rate
			rs[i] = ex
			r.ID = ex.ID
			return nil
		}
	}
	m.rates[r.CurrencyID] = append(rs, *r)
	return nil
}

func (m *memState) rateOnOrBefore(currencyID string, asOf time.Time) (ExchangeRate, error) {
	day := DateOnly(asOf)
	var best *ExchangeRate
	for i := range m.rates[currencyID] {
		r := m.rates[currencyID][i]
		if DateOnly(r.RateDate).After(day) {
			continue
		}
		if best == nil || r.RateDate.After(best.RateDate) {
			tmp := r
			best = &tmp
		}
	}
	if best == nil {
		return ExchangeRate{}, NotFound("exchange rate", currencyID)
	}
	return *best, nil
}

// --- journal entries ---

func (m *memState) createEntry(e *JournalEntry, lines []JournalEntryLine) error {
	for _, ex := range m.entries {
		if ex.EntryNumber == e.EntryNumber {
			return Validationf("entry number %q already exists", e.EntryNumber)
		}
	}
	m.entries[e.ID] = *e
	m.lines[e.ID] = append([]JournalEntryLine(nil), lines...)
	return nil
}

func (m *memState) entry(id string) (JournalEntry, error) {
	e, ok := m.entries[id]
	if !ok {
		return JournalEntry{}, NotFound("journal entry", id)
	}
	return e, nil
}

func (m *memState) entryLines(entryID string) ([]JournalEntryLine, error) {
	if _, ok := m.entries[entryID]; !ok {
		return nil, NotFound("journal entry", entryID)
	}
	ls := append([]JournalEntryLine(nil), m.lines[entryID]...)
	sort.Slice(ls, func(i, j int) bool { return ls[i].LineNumber < ls[j].LineNumber })
	return ls, nil
}

func (m *memState) listEntries(f EntryFilter) []JournalEntry {
	var out []JournalEntry
	for _, e := range m.entries {
		if f.From != nil && e.EntryDate.Before(DateOnly(*f.From)) {
			continue
		}
		if f.To != nil && e.EntryDate.After(DateOnly(*f.To)) {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.PostedOnly && !e.IsPosted {
			continue
		}
		if f.DraftOnly && e.IsPosted {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.After(out[j].EntryDate)
		}
		return out[i].EntryNumber > out[j].EntryNumber
	})
	return out
}

func (m *memState) countEntriesInMonth(year int, month time.Month) int {
	n := 0
	for _, e := range m.entries {
		if e.EntryDate.Year() == year && e.EntryDate.Month() == month {
			n++
		}
	}
	return n
}

func (m *memState) markEntryPosted(id string, postedAt time.Time) error {
	e, ok := m.entries[id]
	if !ok {
		return NotFound("journal entry", id)
	}
	if e.IsPosted {
		return Statef("entry %s already posted", e.EntryNumber)
	}
	e.IsPosted = true
	t := postedAt
	e.PostedAt = &t
	m.entries[id] = e
	return nil
}

func (m *memState) markEntryDraft(id string) error {
	e, ok := m.entries[id]
	if !ok {
		return NotFound("journal entry", id)
	}
	if !e.IsPosted {
		return Statef("entry %s is not posted", e.EntryNumber)
	}
	e.IsPosted = false
	e.PostedAt = nil
	m.entries[id] = e
	return nil
}

func (m *memState) deleteEntry(id string) error {
	e, ok := m.entries[id]
	if !ok {
		return NotFound("journal entry", id)
	}
	if e.IsPosted {
		return Statef("cannot delete posted entry %s", e.EntryNumber)
	}
	delete(m.entries, id)
	delete(m.lines, id)
	return nil
}

func (m *memState) postedLines(f LineFilter) []PostedLine {
	var out []PostedLine
	for entryID, ls := range m.lines {
		e := m.entries[entryID]
		if !e.IsPosted {
			continue
		}
		if f.From != nil && e.EntryDate.Before(DateOnly(*f.From)) {
			continue
		}
		if f.To != nil && e.EntryDate.After(DateOnly(*f.To)) {
			continue
		}
		for _, l := range ls {
			if f.AccountID != "" && l.AccountID != f.AccountID {
				continue
			}
			if f.ProjectID != "" && l.ProjectID != f.ProjectID {
				continue
			}
			if f.CostCenterID != "" && l.CostCenterID != f.CostCenterID {
				continue
			}
			a := m.accounts[l.AccountID]
			if f.AccountType != "" && a.Type != f.AccountType {
				continue
			}
			out = append(out, PostedLine{
				EntryID:      e.ID,
				EntryDate:    e.EntryDate,
				AccountID:    l.AccountID,
				AccountCode:  a.Code,
				AccountName:  a.Name,
				AccountType:  a.Type,
				ProjectID:    l.ProjectID,
				CostCenterID: l.CostCenterID,
				DebitAmount:  l.DebitAmount,
				CreditAmount: l.CreditAmount,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		if out[i].EntryID != out[j].EntryID {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].AccountCode < out[j].AccountCode
	})
	return out
}

// --- budgets, grants, assets ---

func (m *memState) createBudget(b *Budget, lines []BudgetLine) error {
	m.budgets[b.ID] = *b
	m.budgetLines[b.ID] = append([]BudgetLine(nil), lines...)
	return nil
}

func (m *memState) budget(id string) (Budget, error) {
	b, ok := m.budgets[id]
	if !ok {
		return Budget{}, NotFound("budget", id)
	}
	return b, nil
}

func (m *memState) listBudgetLines(budgetID string) ([]BudgetLine, error) {
	if _, ok := m.budgets[budgetID]; !ok {
		return nil, NotFound("budget", budgetID)
	}
	return append([]BudgetLine(nil), m.budgetLines[budgetID]...), nil
}

func (m *memState) createGrant(g *Grant) error {
	for _, ex := range m.grants {
		if ex.GrantNumber == g.GrantNumber {
			return Validationf("grant number %q already exists", g.GrantNumber)
		}
	}
	m.grants[g.ID] = *g
	return nil
}

func (m *memState) updateGrant(g *Grant) error {
	if _, ok := m.grants[g.ID]; !ok {
		return NotFound("grant", g.ID)
	}
	m.grants[g.ID] = *g
	return nil
}

func (m *memState) grant(id string) (Grant, error) {
	g, ok := m.grants[id]
	if !ok {
		return Grant{}, NotFound("grant", id)
	}
	return g, nil
}

func (m *memState) listGrants(f GrantFilter) []Grant {
	var out []Grant
	for _, g := range m.grants {
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if f.ProjectID != "" && g.ProjectID != f.ProjectID {
			continue
		}
		if f.EndingBy != nil && g.EndDate.After(DateOnly(*f.EndingBy)) {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].GrantNumber, out[j].GrantNumber) < 0
	})
	return out
}

func (m *memState) createAsset(a *FixedAsset) error {
	for _, ex := range m.assets {
		if ex.AssetNumber == a.AssetNumber {
			return Validationf("asset number %q already exists", a.AssetNumber)
		}
	}
	m.assets[a.ID] = *a
	return nil
}

func (m *memState) updateAsset(a *FixedAsset) error {
	if _, ok := m.assets[a.ID]; !ok {
		return NotFound("fixed asset", a.ID)
	}
	m.assets[a.ID] = *a
	return nil
}

func (m *memState) asset(id string) (FixedAsset, error) {
	a, ok := m.assets[id]
	if !ok {
		return FixedAsset{}, NotFound("fixed asset", id)
	}
	return a, nil
}

func (m *memState) listAssets(activeOnly bool) []FixedAsset {
	var out []FixedAsset
	for _, a := range m.assets {
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetNumber < out[j].AssetNumber })
	return out
}

func (m *memState) createDepreciationEntry(d *DepreciationEntry) error {
	if _, ok := m.assets[d.AssetID]; !ok {
		return NotFound("fixed asset", d.AssetID)
	}
	m.deprecs = append(m.deprecs, *d)
	return nil
}

func (m *memState) hasDepreciationForMonth(assetID string, year int, month time.Month) bool {
	for _, d := range m.deprecs {
		if d.AssetID == assetID && d.EntryDate.Year() == year && d.EntryDate.Month() == month {
			return true
		}
	}
	return false
}
