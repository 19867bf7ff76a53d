// Package reports aggregates posted journal lines into the standard
// financial statements: trial balance, balance sheet, income statement,
// cash flow, plus the dashboard summary.
//
// Reports are read-only and may run concurrently with writers. Reports that
// issue several queries (cash flow, financial summary) are not atomic across
// those queries and are eventually consistent; callers needing a frozen view
// should run them inside a store snapshot.
package reports

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/ledger"
	"openbalance.org/internal/obs"
)

// Tolerance for the report-level balance checks. Entries balance exactly;
// the slack only absorbs rounding introduced by report arithmetic.
var tolerance = decimal.RequireFromString("0.01")

// Service generates reports over posted ledger data.
type Service struct {
	store ledger.Store
}

// New wires the report generator.
func New(store ledger.Store) *Service {
	return &Service{store: store}
}

func fmtDate(t time.Time) string { return t.Format("2006-01-02") }

// AccountBalance is the net posted balance of one account as of a date:
// sum of debits minus sum of credits over posted lines with entry date on
// or before asOf.
func (s *Service) AccountBalance(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error) {
	asOf = ledger.DateOnly(asOf)
	lines, err := s.store.PostedLines(ctx, ledger.LineFilter{AccountID: accountID, To: &asOf})
	if err != nil {
		return decimal.Decimal{}, err
	}
	balance := decimal.Zero
	for _, l := range lines {
		balance = balance.Add(l.DebitAmount).Sub(l.CreditAmount)
	}
	return balance, nil
}

type accountTotals struct {
	id     string
	code   string
	name   string
	typ    ledger.AccountType
	debit  decimal.Decimal
	credit decimal.Decimal
}

func (t accountTotals) net() decimal.Decimal { return t.debit.Sub(t.credit) }

func aggregateByAccount(lines []ledger.PostedLine) []accountTotals {
	byID := make(map[string]*accountTotals)
	for _, l := range lines {
		t, ok := byID[l.AccountID]
		if !ok {
			t = &accountTotals{id: l.AccountID, code: l.AccountCode, name: l.AccountName, typ: l.AccountType}
			byID[l.AccountID] = t
		}
		t.debit = t.debit.Add(l.DebitAmount)
		t.credit = t.credit.Add(l.CreditAmount)
	}
	out := make([]accountTotals, 0, len(byID))
	for _, t := range byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}

// TrialBalanceRow is one account's normal-side presentation.
type TrialBalanceRow struct {
	AccountCode  string             `json:"account_code"`
	AccountName  string             `json:"account_name"`
	AccountType  ledger.AccountType `json:"account_type"`
	DebitAmount  decimal.Decimal    `json:"debit_amount"`
	CreditAmount decimal.Decimal    `json:"credit_amount"`
}

// TrialBalance lists every account with activity on its normal side.
type TrialBalance struct {
	AsOfDate    string            `json:"as_of_date"`
	Accounts    []TrialBalanceRow `json:"accounts"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	IsBalanced  bool              `json:"is_balanced"`
}

// TrialBalance builds the trial balance as of a date. Asset and expense
// accounts show a non-negative net balance in the debit column; liability,
// equity and revenue accounts show a non-positive net balance in the credit
// column. Accounts whose net balance is zero are omitted. Because every
// posted entry balances, the two columns agree within the tolerance.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	start := time.Now()
	defer func() { obs.ObserveReport("trial_balance", time.Since(start)) }()

	asOf = ledger.DateOnly(asOf)
	lines, err := s.store.PostedLines(ctx, ledger.LineFilter{To: &asOf})
	if err != nil {
		return TrialBalance{}, err
	}

	tb := TrialBalance{AsOfDate: fmtDate(asOf), Accounts: []TrialBalanceRow{}}
	tb.TotalDebit = decimal.Zero
	tb.TotalCredit = decimal.Zero

	for _, acc := range aggregateByAccount(lines) {
		net := acc.net()
		if net.IsZero() {
			continue
		}
		row := TrialBalanceRow{AccountCode: acc.code, AccountName: acc.name, AccountType: acc.typ}
		switch acc.typ {
		case ledger.AccountAsset, ledger.AccountExpense:
			if net.Sign() >= 0 {
				row.DebitAmount = net
			} else {
				row.CreditAmount = net.Abs()
			}
		default: // liability, equity, revenue
			if net.Sign() <= 0 {
				row.CreditAmount = net.Abs()
			} else {
				row.DebitAmount = net
			}
		}
		tb.TotalDebit = tb.TotalDebit.Add(row.DebitAmount)
		tb.TotalCredit = tb.TotalCredit.Add(row.CreditAmount)
		tb.Accounts = append(tb.Accounts, row)
	}
	tb.IsBalanced = tb.TotalDebit.Sub(tb.TotalCredit).Abs().LessThan(tolerance)
	return tb, nil
}

// Classification buckets for balance-sheet presentation.
const (
	ClassCurrent    = "current"
	ClassNonCurrent = "non_current"
)

var currentAssetKeywords = []string{"cash", "bank", "receivable", "prepaid", "inventory", "advance"}
var currentLiabilityKeywords = []string{"payable", "accrued", "short-term", "short term", "deferred", "withholding"}

func nameHasAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// BalanceSheetLine is one account on the statement of financial position.
type BalanceSheetLine struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Balance        decimal.Decimal `json:"balance"`
	Classification string          `json:"classification,omitempty"`
}

// BalanceSheet is the statement of financial position as of a date. The
// equality check is a diagnostic: a false IsBalanced with a nonzero
// Difference signals upstream data problems and must not be hidden.
type BalanceSheet struct {
	AsOfDate         string             `json:"as_of_date"`
	Assets           []BalanceSheetLine `json:"assets"`
	Liabilities      []BalanceSheetLine `json:"liabilities"`
	Equity           []BalanceSheetLine `json:"equity"`
	TotalAssets      decimal.Decimal    `json:"total_assets"`
	TotalLiabilities decimal.Decimal    `json:"total_liabilities"`
	TotalEquity      decimal.Decimal    `json:"total_equity"`
	IsBalanced       bool               `json:"is_balanced"`
	Difference       decimal.Decimal    `json:"difference"`
}

// BalanceSheet builds the balance sheet restricted to asset, liability and
// equity accounts. Current vs non-current is a keyword heuristic on the
// account name. Because revenue and expense accounts are never formally
// closed, the lifetime surplus (revenue minus expense through asOf) is
// reported as a computed "Retained surplus" equity line so the accounting
// equation can hold.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	start := time.Now()
	defer func() { obs.ObserveReport("balance_sheet", time.Since(start)) }()

	asOf = ledger.DateOnly(asOf)
	lines, err := s.store.PostedLines(ctx, ledger.LineFilter{To: &asOf})
	if err != nil {
		return BalanceSheet{}, err
	}

	bs := BalanceSheet{
		AsOfDate:    fmtDate(asOf),
		Assets:      []BalanceSheetLine{},
		Liabilities: []BalanceSheetLine{},
		Equity:      []BalanceSheetLine{},
	}
	bs.TotalAssets = decimal.Zero
	bs.TotalLiabilities = decimal.Zero
	bs.TotalEquity = decimal.Zero
	surplus := decimal.Zero

	for _, acc := range aggregateByAccount(lines) {
		net := acc.net()
		switch acc.typ {
		case ledger.AccountRevenue:
			surplus = surplus.Add(net.Neg()) // revenue is credit-normal
			continue
		case ledger.AccountExpense:
			surplus = surplus.Sub(net)
			continue
		}
		if net.IsZero() {
			continue
		}
		line := BalanceSheetLine{Code: acc.code, Name: acc.name, Balance: net}
		switch acc.typ {
		case ledger.AccountAsset:
			line.Classification = ClassNonCurrent
			if nameHasAny(acc.name, currentAssetKeywords) {
				line.Classification = ClassCurrent
			}
			bs.Assets = append(bs.Assets, line)
			bs.TotalAssets = bs.TotalAssets.Add(net)
		case ledger.AccountLiability:
			line.Balance = net.Abs()
			line.Classification = ClassNonCurrent
			if nameHasAny(acc.name, currentLiabilityKeywords) {
				line.Classification = ClassCurrent
			}
			bs.Liabilities = append(bs.Liabilities, line)
			bs.TotalLiabilities = bs.TotalLiabilities.Add(net.Abs())
		case ledger.AccountEquity:
			line.Balance = net.Abs()
			bs.Equity = append(bs.Equity, line)
			bs.TotalEquity = bs.TotalEquity.Add(net.Abs())
		}
	}

	if !surplus.IsZero() {
		bs.Equity = append(bs.Equity, BalanceSheetLine{Name: "Retained surplus", Balance: surplus})
		bs.TotalEquity = bs.TotalEquity.Add(surplus)
	}

	bs.Difference = bs.TotalAssets.Sub(bs.TotalLiabilities.Add(bs.TotalEquity))
	bs.IsBalanced = bs.Difference.Abs().LessThan(tolerance)
	return bs, nil
}

// Functional expense categories for NGO reporting.
const (
	CategoryProgram        = "program"
	CategoryAdministrative = "administrative"
	CategoryFundraising    = "fundraising"
)

var programKeywords = []string{"program", "education", "health", "community", "project", "service", "beneficiary"}
var adminKeywords = []string{"admin", "management", "office", "utilities", "rent", "insurance", "legal", "audit"}
var fundraisingKeywords = []string{"fundraising", "development", "marketing", "donor", "campaign"}

// CategorizeExpense buckets an expense account into program, administrative
// or fundraising by keyword match on its name. Unmatched accounts default to
// program, the NGO convention.
func CategorizeExpense(accountName string) string {
	switch {
	case nameHasAny(accountName, programKeywords):
		return CategoryProgram
	case nameHasAny(accountName, adminKeywords):
		return CategoryAdministrative
	case nameHasAny(accountName, fundraisingKeywords):
		return CategoryFundraising
	}
	return CategoryProgram
}

// IncomeLine is one revenue or expense account over the period.
type IncomeLine struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
}

// ExpenseRatios are the NGO-standard functional shares, in percent.
type ExpenseRatios struct {
	ProgramRatio     decimal.Decimal `json:"program_ratio"`
	AdminRatio       decimal.Decimal `json:"admin_ratio"`
	FundraisingRatio decimal.Decimal `json:"fundraising_ratio"`
}

// IncomeStatement is the statement of activities for a period.
type IncomeStatement struct {
	StartDate          string                     `json:"start_date"`
	EndDate            string                     `json:"end_date"`
	Revenue            []IncomeLine               `json:"revenue"`
	Expenses           []IncomeLine               `json:"expenses"`
	TotalRevenue       decimal.Decimal            `json:"total_revenue"`
	TotalExpenses      decimal.Decimal            `json:"total_expenses"`
	NetIncome          decimal.Decimal            `json:"net_income"`
	FunctionalExpenses map[string]decimal.Decimal `json:"functional_classification"`
	Ratios             ExpenseRatios              `json:"expense_ratios"`
}

// IncomeStatement builds revenue and expense activity between two dates,
// inclusive. Revenue amounts are credit minus debit; expense amounts are
// debit minus credit. Expenses are additionally bucketed into functional
// categories to compute the program/admin/fundraising ratios.
func (s *Service) IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	start := time.Now()
	defer func() { obs.ObserveReport("income_statement", time.Since(start)) }()

	from, to = ledger.DateOnly(from), ledger.DateOnly(to)
	lines, err := s.store.PostedLines(ctx, ledger.LineFilter{From: &from, To: &to})
	if err != nil {
		return IncomeStatement{}, err
	}

	is := IncomeStatement{
		StartDate: fmtDate(from),
		EndDate:   fmtDate(to),
		Revenue:   []IncomeLine{},
		Expenses:  []IncomeLine{},
		FunctionalExpenses: map[string]decimal.Decimal{
			CategoryProgram:        decimal.Zero,
			CategoryAdministrative: decimal.Zero,
			CategoryFundraising:    decimal.Zero,
		},
	}
	is.TotalRevenue = decimal.Zero
	is.TotalExpenses = decimal.Zero

	for _, acc := range aggregateByAccount(lines) {
		switch acc.typ {
		case ledger.AccountRevenue:
			amount := acc.credit.Sub(acc.debit)
			is.Revenue = append(is.Revenue, IncomeLine{AccountCode: acc.code, AccountName: acc.name, Amount: amount})
			is.TotalRevenue = is.TotalRevenue.Add(amount)
		case ledger.AccountExpense:
			amount := acc.debit.Sub(acc.credit)
			category := CategorizeExpense(acc.name)
			is.Expenses = append(is.Expenses, IncomeLine{AccountCode: acc.code, AccountName: acc.name, Amount: amount, Category: category})
			is.TotalExpenses = is.TotalExpenses.Add(amount)
			is.FunctionalExpenses[category] = is.FunctionalExpenses[category].Add(amount)
		}
	}
	is.NetIncome = is.TotalRevenue.Sub(is.TotalExpenses)

	if is.TotalExpenses.IsPositive() {
		hundred := decimal.NewFromInt(100)
		is.Ratios = ExpenseRatios{
			ProgramRatio:     is.FunctionalExpenses[CategoryProgram].Div(is.TotalExpenses).Mul(hundred),
			AdminRatio:       is.FunctionalExpenses[CategoryAdministrative].Div(is.TotalExpenses).Mul(hundred),
			FundraisingRatio: is.FunctionalExpenses[CategoryFundraising].Div(is.TotalExpenses).Mul(hundred),
		}
	}
	return is, nil
}
