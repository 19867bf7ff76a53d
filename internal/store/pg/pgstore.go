// Package pg implements the ledger store over PostgreSQL. Mutating service
// calls run inside serializable transactions via WithinTx; posting state
// flips are conditional UPDATEs so concurrent posts cannot both win.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"openbalance.org/internal/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the PostgreSQL-backed ledger.Store.
type Store struct {
	db *sql.DB
	queries
}

var _ ledger.Store = (*Store)(nil)

// Open connects with the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle (tests use sqlmock through this).
func New(db *sql.DB) *Store {
	return &Store{db: db, queries: queries{q: db}}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// WithinTx runs fn against a serializable transaction. fn's store joins the
// transaction for nested WithinTx calls.
func (s *Store) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txStore{queries: queries{q: tx}}); err != nil {
		return err
	}
	return tx.Commit()
}

// txStore is the transactional view handed to WithinTx callbacks.
type txStore struct {
	queries
}

var _ ledger.Store = (*txStore)(nil)

// Nested WithinTx joins the enclosing transaction.
func (t *txStore) WithinTx(ctx context.Context, fn func(ledger.Store) error) error {
	return fn(t)
}

// queries holds every statement; shared between the pooled store and
// transactions.
type queries struct {
	q querier
}

// --- accounts ---

func (s queries) CreateAccount(ctx context.Context, a *ledger.Account) error {
	_, err := s.q.ExecContext(ctx, `
		insert into accounts(id, code, name, name_alt, account_type, parent_id, level, is_active, created_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7,$8,$9)
	`, a.ID, a.Code, a.Name, a.NameAlt, string(a.Type), a.ParentID, a.Level, a.IsActive, a.CreatedAt)
	return err
}

func (s queries) UpdateAccount(ctx context.Context, a *ledger.Account) error {
	res, err := s.q.ExecContext(ctx, `
		update accounts set name=$2, name_alt=$3, is_active=$4 where id=$1
	`, a.ID, a.Name, a.NameAlt, a.IsActive)
	if err != nil {
		return err
	}
	return requireRow(res, "account", a.ID)
}

const accountColumns = `id, code, name, coalesce(name_alt,''), account_type, coalesce(parent_id,''), level, is_active, created_at`

func scanAccount(row interface{ Scan(...any) error }) (ledger.Account, error) {
	var a ledger.Account
	var typ string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.NameAlt, &typ, &a.ParentID, &a.Level, &a.IsActive, &a.CreatedAt)
	a.Type = ledger.AccountType(typ)
	return a, err
}

func (s queries) Account(ctx context.Context, id string) (ledger.Account, error) {
	a, err := scanAccount(s.q.QueryRowContext(ctx, `select `+accountColumns+` from accounts where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.NotFound("account", id)
	}
	return a, err
}

func (s queries) AccountByCode(ctx context.Context, code string) (ledger.Account, error) {
	a, err := scanAccount(s.q.QueryRowContext(ctx, `select `+accountColumns+` from accounts where code=$1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.NotFound("account", code)
	}
	return a, err
}

func (s queries) Accounts(ctx context.Context, f ledger.AccountFilter) ([]ledger.Account, error) {
	query := `select ` + accountColumns + ` from accounts where 1=1`
	args := []any{}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query += ` and account_type=$` + itoa(len(args))
	}
	if f.ParentID != nil {
		if *f.ParentID == "" {
			query += ` and parent_id is null`
		} else {
			args = append(args, *f.ParentID)
			query += ` and parent_id=$` + itoa(len(args))
		}
	}
	if f.ActiveOnly {
		query += ` and is_active`
	}
	query += ` order by code`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s queries) AccountHasLines(ctx context.Context, accountID string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
		select exists(select 1 from journal_entry_lines where account_id=$1)
	`, accountID).Scan(&exists)
	return exists, err
}

// --- currencies & exchange rates ---

func (s queries) CreateCurrency(ctx context.Context, c *ledger.Currency) error {
	_, err := s.q.ExecContext(ctx, `
		insert into currencies(id, code, name, symbol, is_base_currency, is_active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, c.ID, c.Code, c.Name, c.Symbol, c.IsBaseCurrency, c.IsActive, c.CreatedAt)
	return err
}

func (s queries) UpdateCurrency(ctx context.Context, c *ledger.Currency) error {
	res, err := s.q.ExecContext(ctx, `
		update currencies set name=$2, symbol=$3, is_active=$4 where id=$1
	`, c.ID, c.Name, c.Symbol, c.IsActive)
	if err != nil {
		return err
	}
	return requireRow(res, "currency", c.ID)
}

const currencyColumns = `id, code, name, coalesce(symbol,''), is_base_currency, is_active, created_at`

func scanCurrency(row interface{ Scan(...any) error }) (ledger.Currency, error) {
	var c ledger.Currency
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Symbol, &c.IsBaseCurrency, &c.IsActive, &c.CreatedAt)
	return c, err
}

func (s queries) Currency(ctx context.Context, id string) (ledger.Currency, error) {
	c, err := scanCurrency(s.q.QueryRowContext(ctx, `select `+currencyColumns+` from currencies where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Currency{}, ledger.NotFound("currency", id)
	}
	return c, err
}

func (s queries) CurrencyByCode(ctx context.Context, code string) (ledger.Currency, error) {
	c, err := scanCurrency(s.q.QueryRowContext(ctx, `select `+currencyColumns+` from currencies where code=$1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Currency{}, ledger.NotFound("currency", code)
	}
	return c, err
}

func (s queries) Currencies(ctx context.Context) ([]ledger.Currency, error) {
	rows, err := s.q.QueryContext(ctx, `select `+currencyColumns+` from currencies order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s queries) SetBaseCurrency(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `update currencies set is_base_currency=false where is_base_currency`); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `update currencies set is_base_currency=true where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "currency", id)
}

func (s queries) UpsertExchangeRate(ctx context.Context, r *ledger.ExchangeRate) error {
	_, err := s.q.ExecContext(ctx, `
		insert into exchange_rates(id, currency_id, rate_date, rate, created_at)
		values ($1,$2,$3,$4,$5)
		on conflict (currency_id, rate_date) do update set rate = excluded.rate
	`, r.ID, r.CurrencyID, r.RateDate, r.Rate, r.CreatedAt)
	return err
}

func (s queries) RateOnOrBefore(ctx context.Context, currencyID string, asOf time.Time) (ledger.ExchangeRate, error) {
	var r ledger.ExchangeRate
	err := s.q.QueryRowContext(ctx, `
		select id, currency_id, rate_date, rate, created_at
		from exchange_rates
		where currency_id=$1 and rate_date <= $2
		order by rate_date desc
		limit 1
	`, currencyID, asOf).Scan(&r.ID, &r.CurrencyID, &r.RateDate, &r.Rate, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ExchangeRate{}, ledger.NotFound("exchange rate", currencyID)
	}
	return r, err
}

// --- journal entries ---

func (s queries) CreateEntry(ctx context.Context, e *ledger.JournalEntry, lines []ledger.JournalEntryLine) error {
	_, err := s.q.ExecContext(ctx, `
		insert into journal_entries(id, entry_number, entry_date, description, entry_type,
			reference_number, total_debit, total_credit, currency_id, exchange_rate,
			is_posted, created_at, posted_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,nullif($9,''),$10,$11,$12,$13)
	`, e.ID, e.EntryNumber, e.EntryDate, e.Description, string(e.Type), e.Reference,
		e.TotalDebit, e.TotalCredit, e.CurrencyID, e.ExchangeRate, e.IsPosted, e.CreatedAt, e.PostedAt)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := s.q.ExecContext(ctx, `
			insert into journal_entry_lines(id, journal_entry_id, account_id, cost_center_id,
				project_id, description, debit_amount, credit_amount, line_number)
			values ($1,$2,$3,nullif($4,''),nullif($5,''),$6,$7,$8,$9)
		`, l.ID, l.EntryID, l.AccountID, l.CostCenterID, l.ProjectID, l.Description,
			l.DebitAmount, l.CreditAmount, l.LineNumber); err != nil {
			return err
		}
	}
	return nil
}

const entryColumns = `id, entry_number, entry_date, description, entry_type,
	coalesce(reference_number,''), total_debit, total_credit, coalesce(currency_id,''),
	exchange_rate, is_posted, created_at, posted_at`

func scanEntry(row interface{ Scan(...any) error }) (ledger.JournalEntry, error) {
	var e ledger.JournalEntry
	var typ string
	err := row.Scan(&e.ID, &e.EntryNumber, &e.EntryDate, &e.Description, &typ,
		&e.Reference, &e.TotalDebit, &e.TotalCredit, &e.CurrencyID,
		&e.ExchangeRate, &e.IsPosted, &e.CreatedAt, &e.PostedAt)
	e.Type = ledger.EntryType(typ)
	return e, err
}

func (s queries) Entry(ctx context.Context, id string) (ledger.JournalEntry, error) {
	e, err := scanEntry(s.q.QueryRowContext(ctx, `select `+entryColumns+` from journal_entries where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.JournalEntry{}, ledger.NotFound("journal entry", id)
	}
	return e, err
}

func (s queries) EntryLines(ctx context.Context, entryID string) ([]ledger.JournalEntryLine, error) {
	if _, err := s.Entry(ctx, entryID); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `
		select id, journal_entry_id, account_id, coalesce(cost_center_id,''),
			coalesce(project_id,''), coalesce(description,''), debit_amount, credit_amount, line_number
		from journal_entry_lines
		where journal_entry_id=$1
		order by line_number
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.JournalEntryLine
	for rows.Next() {
		var l ledger.JournalEntryLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.CostCenterID,
			&l.ProjectID, &l.Description, &l.DebitAmount, &l.CreditAmount, &l.LineNumber); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s queries) Entries(ctx context.Context, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	query := `select ` + entryColumns + ` from journal_entries where 1=1`
	args := []any{}
	if f.From != nil {
		args = append(args, *f.From)
		query += ` and entry_date >= $` + itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += ` and entry_date <= $` + itoa(len(args))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query += ` and entry_type = $` + itoa(len(args))
	}
	if f.PostedOnly {
		query += ` and is_posted`
	}
	if f.DraftOnly {
		query += ` and not is_posted`
	}
	query += ` order by entry_date desc, entry_number desc`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s queries) CountEntriesInMonth(ctx context.Context, year int, month time.Month) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		select count(*) from journal_entries
		where extract(year from entry_date) = $1 and extract(month from entry_date) = $2
	`, year, int(month)).Scan(&n)
	return n, err
}

func (s queries) MarkEntryPosted(ctx context.Context, id string, postedAt time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		update journal_entries set is_posted=true, posted_at=$2
		where id=$1 and not is_posted
	`, id, postedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Entry(ctx, id); err != nil {
		return err
	}
	return ledger.Statef("entry %s already posted", id)
}

func (s queries) MarkEntryDraft(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `
		update journal_entries set is_posted=false, posted_at=null
		where id=$1 and is_posted
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.Entry(ctx, id); err != nil {
		return err
	}
	return ledger.Statef("entry %s is not posted", id)
}

func (s queries) DeleteEntry(ctx context.Context, id string) error {
	e, err := s.Entry(ctx, id)
	if err != nil {
		return err
	}
	if e.IsPosted {
		return ledger.Statef("cannot delete posted entry %s", e.EntryNumber)
	}
	if _, err := s.q.ExecContext(ctx, `delete from journal_entry_lines where journal_entry_id=$1`, id); err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `delete from journal_entries where id=$1`, id)
	return err
}

func (s queries) PostedLines(ctx context.Context, f ledger.LineFilter) ([]ledger.PostedLine, error) {
	query := `
		select e.id, e.entry_date, l.account_id, a.code, a.name, a.account_type,
			coalesce(l.project_id,''), coalesce(l.cost_center_id,''), l.debit_amount, l.credit_amount
		from journal_entry_lines l
		join journal_entries e on e.id = l.journal_entry_id and e.is_posted
		join accounts a on a.id = l.account_id
		where 1=1`
	args := []any{}
	if f.AccountID != "" {
		args = append(args, f.AccountID)
		query += ` and l.account_id = $` + itoa(len(args))
	}
	if f.AccountType != "" {
		args = append(args, string(f.AccountType))
		query += ` and a.account_type = $` + itoa(len(args))
	}
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		query += ` and l.project_id = $` + itoa(len(args))
	}
	if f.CostCenterID != "" {
		args = append(args, f.CostCenterID)
		query += ` and l.cost_center_id = $` + itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += ` and e.entry_date >= $` + itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += ` and e.entry_date <= $` + itoa(len(args))
	}
	query += ` order by e.entry_date, e.id, a.code`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.PostedLine
	for rows.Next() {
		var l ledger.PostedLine
		var typ string
		if err := rows.Scan(&l.EntryID, &l.EntryDate, &l.AccountID, &l.AccountCode, &l.AccountName,
			&typ, &l.ProjectID, &l.CostCenterID, &l.DebitAmount, &l.CreditAmount); err != nil {
			return nil, err
		}
		l.AccountType = ledger.AccountType(typ)
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- budgets ---

func (s queries) CreateBudget(ctx context.Context, b *ledger.Budget, lines []ledger.BudgetLine) error {
	_, err := s.q.ExecContext(ctx, `
		insert into budgets(id, name, description, budget_year, project_id, start_date, end_date,
			total_budget, is_active, created_at)
		values ($1,$2,$3,$4,nullif($5,''),$6,$7,$8,$9,$10)
	`, b.ID, b.Name, b.Description, b.BudgetYear, b.ProjectID, b.StartDate, b.EndDate,
		b.TotalBudget, b.IsActive, b.CreatedAt)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := s.q.ExecContext(ctx, `
			insert into budget_lines(id, budget_id, account_id, cost_center_id, budgeted_amount, period_month, notes)
			values ($1,$2,$3,nullif($4,''),$5,nullif($6,0),$7)
		`, l.ID, l.BudgetID, l.AccountID, l.CostCenterID, l.BudgetedAmount, l.PeriodMonth, l.Notes); err != nil {
			return err
		}
	}
	return nil
}

func (s queries) Budget(ctx context.Context, id string) (ledger.Budget, error) {
	var b ledger.Budget
	err := s.q.QueryRowContext(ctx, `
		select id, name, coalesce(description,''), budget_year, coalesce(project_id,''),
			start_date, end_date, total_budget, is_active, created_at
		from budgets where id=$1
	`, id).Scan(&b.ID, &b.Name, &b.Description, &b.BudgetYear, &b.ProjectID,
		&b.StartDate, &b.EndDate, &b.TotalBudget, &b.IsActive, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Budget{}, ledger.NotFound("budget", id)
	}
	return b, err
}

func (s queries) BudgetLines(ctx context.Context, budgetID string) ([]ledger.BudgetLine, error) {
	if _, err := s.Budget(ctx, budgetID); err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, `
		select id, budget_id, account_id, coalesce(cost_center_id,''), budgeted_amount,
			coalesce(period_month,0), coalesce(notes,'')
		from budget_lines where budget_id=$1
	`, budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.BudgetLine
	for rows.Next() {
		var l ledger.BudgetLine
		if err := rows.Scan(&l.ID, &l.BudgetID, &l.AccountID, &l.CostCenterID,
			&l.BudgetedAmount, &l.PeriodMonth, &l.Notes); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- grants ---

func (s queries) CreateGrant(ctx context.Context, g *ledger.Grant) error {
	_, err := s.q.ExecContext(ctx, `
		insert into grants(id, grant_number, title, donor_name, project_id, amount, currency_id,
			start_date, end_date, status, created_at)
		values ($1,$2,$3,$4,$5,$6,nullif($7,''),$8,$9,$10,$11)
	`, g.ID, g.GrantNumber, g.Title, g.DonorName, g.ProjectID, g.Amount, g.CurrencyID,
		g.StartDate, g.EndDate, string(g.Status), g.CreatedAt)
	return err
}

func (s queries) UpdateGrant(ctx context.Context, g *ledger.Grant) error {
	res, err := s.q.ExecContext(ctx, `
		update grants set title=$2, donor_name=$3, amount=$4, start_date=$5, end_date=$6, status=$7
		where id=$1
	`, g.ID, g.Title, g.DonorName, g.Amount, g.StartDate, g.EndDate, string(g.Status))
	if err != nil {
		return err
	}
	return requireRow(res, "grant", g.ID)
}

const grantColumns = `id, grant_number, title, coalesce(donor_name,''), project_id, amount,
	coalesce(currency_id,''), start_date, end_date, status, created_at`

func scanGrant(row interface{ Scan(...any) error }) (ledger.Grant, error) {
	var g ledger.Grant
	var status string
	err := row.Scan(&g.ID, &g.GrantNumber, &g.Title, &g.DonorName, &g.ProjectID, &g.Amount,
		&g.CurrencyID, &g.StartDate, &g.EndDate, &status, &g.CreatedAt)
	g.Status = ledger.GrantStatus(status)
	return g, err
}

func (s queries) Grant(ctx context.Context, id string) (ledger.Grant, error) {
	g, err := scanGrant(s.q.QueryRowContext(ctx, `select `+grantColumns+` from grants where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Grant{}, ledger.NotFound("grant", id)
	}
	return g, err
}

func (s queries) Grants(ctx context.Context, f ledger.GrantFilter) ([]ledger.Grant, error) {
	query := `select ` + grantColumns + ` from grants where 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += ` and status = $` + itoa(len(args))
	}
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		query += ` and project_id = $` + itoa(len(args))
	}
	if f.EndingBy != nil {
		args = append(args, *f.EndingBy)
		query += ` and end_date <= $` + itoa(len(args))
	}
	query += ` order by grant_number`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// --- fixed assets ---

func (s queries) CreateAsset(ctx context.Context, a *ledger.FixedAsset) error {
	_, err := s.q.ExecContext(ctx, `
		insert into fixed_assets(id, asset_number, name, purchase_date, purchase_cost, salvage_value,
			useful_life_years, depreciation_method, accumulated_depreciation, is_active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, a.ID, a.AssetNumber, a.Name, a.PurchaseDate, a.PurchaseCost, a.SalvageValue,
		a.UsefulLifeYears, string(a.Method), a.Accumulated, a.IsActive, a.CreatedAt)
	return err
}

func (s queries) UpdateAsset(ctx context.Context, a *ledger.FixedAsset) error {
	res, err := s.q.ExecContext(ctx, `
		update fixed_assets set name=$2, salvage_value=$3, useful_life_years=$4,
			accumulated_depreciation=$5, is_active=$6
		where id=$1
	`, a.ID, a.Name, a.SalvageValue, a.UsefulLifeYears, a.Accumulated, a.IsActive)
	if err != nil {
		return err
	}
	return requireRow(res, "fixed asset", a.ID)
}

const assetColumns = `id, asset_number, name, purchase_date, purchase_cost, salvage_value,
	useful_life_years, depreciation_method, accumulated_depreciation, is_active, created_at`

func scanAsset(row interface{ Scan(...any) error }) (ledger.FixedAsset, error) {
	var a ledger.FixedAsset
	var method string
	err := row.Scan(&a.ID, &a.AssetNumber, &a.Name, &a.PurchaseDate, &a.PurchaseCost, &a.SalvageValue,
		&a.UsefulLifeYears, &method, &a.Accumulated, &a.IsActive, &a.CreatedAt)
	a.Method = ledger.DepreciationMethod(method)
	return a, err
}

func (s queries) Asset(ctx context.Context, id string) (ledger.FixedAsset, error) {
	a, err := scanAsset(s.q.QueryRowContext(ctx, `select `+assetColumns+` from fixed_assets where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.FixedAsset{}, ledger.NotFound("fixed asset", id)
	}
	return a, err
}

func (s queries) Assets(ctx context.Context, activeOnly bool) ([]ledger.FixedAsset, error) {
	query := `select ` + assetColumns + ` from fixed_assets`
	if activeOnly {
		query += ` where is_active`
	}
	query += ` order by asset_number`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.FixedAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s queries) CreateDepreciationEntry(ctx context.Context, d *ledger.DepreciationEntry) error {
	_, err := s.q.ExecContext(ctx, `
		insert into depreciation_entries(id, asset_id, entry_date, depreciation_amount, journal_entry_id, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, d.ID, d.AssetID, d.EntryDate, d.Amount, d.JournalID, d.CreatedAt)
	return err
}

func (s queries) HasDepreciationForMonth(ctx context.Context, assetID string, year int, month time.Month) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
		select exists(
			select 1 from depreciation_entries
			where asset_id=$1
			  and extract(year from entry_date) = $2
			  and extract(month from entry_date) = $3
		)
	`, assetID, year, int(month)).Scan(&exists)
	return exists, err
}

// --- helpers ---

func requireRow(res sql.Result, entity, ref string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.NotFound(entity, ref)
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
