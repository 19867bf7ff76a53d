package reports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type harness struct {
	store   *ledger.MemStore
	svc     *Service
	nextSeq int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := ledger.NewMemStore()
	return &harness{store: store, svc: New(store)}
}

func (h *harness) account(t *testing.T, code, name string, typ ledger.AccountType) ledger.Account {
	t.Helper()
	acc := ledger.Account{ID: "acc-" + code, Code: code, Name: name, Type: typ, IsActive: true}
	if err := h.store.CreateAccount(context.Background(), &acc); err != nil {
		t.Fatalf("seed account %s: %v", code, err)
	}
	return acc
}

type seedLine struct {
	account ledger.Account
	debit   string
	credit  string
}

func (h *harness) entry(t *testing.T, on time.Time, posted bool, lines ...seedLine) ledger.JournalEntry {
	t.Helper()
	h.nextSeq++
	total := decimal.Zero
	entry := ledger.JournalEntry{
		ID:           fmt.Sprintf("je-%d", h.nextSeq),
		EntryNumber:  fmt.Sprintf("JE%d%02d%04d", on.Year(), int(on.Month()), h.nextSeq),
		EntryDate:    ledger.DateOnly(on),
		Description:  "seed",
		Type:         ledger.EntryManual,
		ExchangeRate: decimal.NewFromInt(1),
	}
	rows := make([]ledger.JournalEntryLine, 0, len(lines))
	for i, l := range lines {
		row := ledger.JournalEntryLine{
			ID:         fmt.Sprintf("%s-l%d", entry.ID, i+1),
			EntryID:    entry.ID,
			AccountID:  l.account.ID,
			LineNumber: i + 1,
		}
		if l.debit != "" {
			row.DebitAmount = dec(l.debit)
			total = total.Add(row.DebitAmount)
		}
		if l.credit != "" {
			row.CreditAmount = dec(l.credit)
		}
		rows = append(rows, row)
	}
	entry.TotalDebit = total
	entry.TotalCredit = total
	ctx := context.Background()
	if err := h.store.CreateEntry(ctx, &entry, rows); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if posted {
		if err := h.store.MarkEntryPosted(ctx, entry.ID, on); err != nil {
			t.Fatalf("post seed entry: %v", err)
		}
	}
	return entry
}

func TestTrialBalanceScenario(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	grant := h.account(t, "4100", "Grant Revenue", ledger.AccountRevenue)
	h.entry(t, date(2024, 1, 15), true,
		seedLine{account: cash, debit: "500.00"},
		seedLine{account: grant, credit: "500.00"},
	)

	tb, err := h.svc.TrialBalance(context.Background(), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	if len(tb.Accounts) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tb.Accounts))
	}
	if tb.Accounts[0].AccountCode != "1100" || !tb.Accounts[0].DebitAmount.Equal(dec("500.00")) {
		t.Fatalf("cash row wrong: %+v", tb.Accounts[0])
	}
	if tb.Accounts[1].AccountCode != "4100" || !tb.Accounts[1].CreditAmount.Equal(dec("500.00")) {
		t.Fatalf("revenue row wrong: %+v", tb.Accounts[1])
	}
	if !tb.TotalDebit.Equal(dec("500.00")) || !tb.TotalCredit.Equal(dec("500.00")) {
		t.Fatalf("totals: %s / %s", tb.TotalDebit, tb.TotalCredit)
	}
	if !tb.IsBalanced {
		t.Fatal("trial balance must be balanced")
	}
}

func TestTrialBalanceExcludesDraftsAndFutureEntries(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	grant := h.account(t, "4100", "Grant Revenue", ledger.AccountRevenue)

	h.entry(t, date(2024, 1, 15), true,
		seedLine{account: cash, debit: "500.00"},
		seedLine{account: grant, credit: "500.00"},
	)
	// Draft: invisible to reports.
	h.entry(t, date(2024, 1, 20), false,
		seedLine{account: cash, debit: "100.00"},
		seedLine{account: grant, credit: "100.00"},
	)
	// Posted but after the as-of date.
	h.entry(t, date(2024, 2, 5), true,
		seedLine{account: cash, debit: "70.00"},
		seedLine{account: grant, credit: "70.00"},
	)

	tb, err := h.svc.TrialBalance(context.Background(), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	if !tb.TotalDebit.Equal(dec("500.00")) {
		t.Fatalf("total debit = %s, want 500.00", tb.TotalDebit)
	}
}

func TestTrialBalanceOmitsZeroBalances(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	bank := h.account(t, "1200", "Bank", ledger.AccountAsset)

	// Cash nets to zero: in and back out.
	h.entry(t, date(2024, 1, 10), true,
		seedLine{account: cash, debit: "300.00"},
		seedLine{account: bank, credit: "300.00"},
	)
	h.entry(t, date(2024, 1, 11), true,
		seedLine{account: bank, debit: "300.00"},
		seedLine{account: cash, credit: "300.00"},
	)

	tb, err := h.svc.TrialBalance(context.Background(), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	if len(tb.Accounts) != 0 {
		t.Fatalf("zero-balance accounts must be omitted, got %+v", tb.Accounts)
	}
}

func TestAccountBalance(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	grant := h.account(t, "4100", "Grant Revenue", ledger.AccountRevenue)
	h.entry(t, date(2024, 1, 15), true,
		seedLine{account: cash, debit: "500.00"},
		seedLine{account: grant, credit: "500.00"},
	)
	h.entry(t, date(2024, 1, 20), true,
		seedLine{account: grant, debit: "50.00"},
		seedLine{account: cash, credit: "50.00"},
	)

	got, err := h.svc.AccountBalance(context.Background(), cash.ID, date(2024, 1, 31))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !got.Equal(dec("450.00")) {
		t.Fatalf("cash balance = %s, want 450.00", got)
	}

	asOf, err := h.svc.AccountBalance(context.Background(), cash.ID, date(2024, 1, 15))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !asOf.Equal(dec("500.00")) {
		t.Fatalf("cash balance as of Jan 15 = %s, want 500.00", asOf)
	}
}

func TestBalanceSheetEquationWithRetainedSurplus(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Main Bank Account", ledger.AccountAsset)
	equipment := h.account(t, "1500", "Equipment", ledger.AccountAsset)
	loan := h.account(t, "2100", "Loan Payable", ledger.AccountLiability)
	grant := h.account(t, "4100", "Grant Revenue", ledger.AccountRevenue)
	rent := h.account(t, "5200", "Office Rent", ledger.AccountExpense)

	h.entry(t, date(2024, 1, 5), true,
		seedLine{account: cash, debit: "10000.00"},
		seedLine{account: grant, credit: "10000.00"},
	)
	h.entry(t, date(2024, 1, 10), true,
		seedLine{account: cash, debit: "3000.00"},
		seedLine{account: loan, credit: "3000.00"},
	)
	h.entry(t, date(2024, 1, 12), true,
		seedLine{account: equipment, debit: "4000.00"},
		seedLine{account: cash, credit: "4000.00"},
	)
	h.entry(t, date(2024, 1, 20), true,
		seedLine{account: rent, debit: "1500.00"},
		seedLine{account: cash, credit: "1500.00"},
	)

	bs, err := h.svc.BalanceSheet(context.Background(), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("balance sheet: %v", err)
	}
	// Assets: cash 7500 + equipment 4000.
	if !bs.TotalAssets.Equal(dec("11500.00")) {
		t.Fatalf("total assets = %s, want 11500.00", bs.TotalAssets)
	}
	if !bs.TotalLiabilities.Equal(dec("3000.00")) {
		t.Fatalf("total liabilities = %s, want 3000.00", bs.TotalLiabilities)
	}
	// Equity is entirely the retained surplus: 10000 revenue - 1500 expense.
	if !bs.TotalEquity.Equal(dec("8500.00")) {
		t.Fatalf("total equity = %s, want 8500.00", bs.TotalEquity)
	}
	if !bs.IsBalanced || !bs.Difference.IsZero() {
		t.Fatalf("equation check failed: balanced=%v difference=%s", bs.IsBalanced, bs.Difference)
	}

	var bank, equip BalanceSheetLine
	for _, l := range bs.Assets {
		switch l.Code {
		case "1100":
			bank = l
		case "1500":
			equip = l
		}
	}
	if bank.Classification != ClassCurrent {
		t.Fatalf("bank account classified %q, want current", bank.Classification)
	}
	if equip.Classification != ClassNonCurrent {
		t.Fatalf("equipment classified %q, want non_current", equip.Classification)
	}
}

func TestCategorizeExpense(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Community Health Outreach", CategoryProgram},
		{"Education Materials", CategoryProgram},
		{"Office Rent", CategoryAdministrative},
		{"Legal Fees", CategoryAdministrative},
		{"Audit Fees", CategoryAdministrative},
		{"Donor Campaign Events", CategoryFundraising},
		{"Marketing", CategoryFundraising},
		{"Miscellaneous", CategoryProgram}, // NGO default
	}
	for _, tc := range cases {
		if got := CategorizeExpense(tc.name); got != tc.want {
			t.Fatalf("CategorizeExpense(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestIncomeStatementRatios(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	grant := h.account(t, "4100", "Grant Revenue", ledger.AccountRevenue)
	program := h.account(t, "5100", "Community Health Program", ledger.AccountExpense)
	rent := h.account(t, "5200", "Office Rent", ledger.AccountExpense)
	campaign := h.account(t, "5300", "Donor Campaign", ledger.AccountExpense)

	h.entry(t, date(2024, 1, 5), true,
		seedLine{account: cash, debit: "10000.00"},
		seedLine{account: grant, credit: "10000.00"},
	)
	h.entry(t, date(2024, 1, 10), true,
		seedLine{account: program, debit: "700.00"},
		seedLine{account: cash, credit: "700.00"},
	)
	h.entry(t, date(2024, 1, 15), true,
		seedLine{account: rent, debit: "200.00"},
		seedLine{account: cash, credit: "200.00"},
	)
	h.entry(t, date(2024, 1, 20), true,
		seedLine{account: campaign, debit: "100.00"},
		seedLine{account: cash, credit: "100.00"},
	)

	is, err := h.svc.IncomeStatement(context.Background(), date(2024, 1, 1), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("income statement: %v", err)
	}
	if !is.TotalRevenue.Equal(dec("10000.00")) {
		t.Fatalf("total revenue = %s", is.TotalRevenue)
	}
	if !is.TotalExpenses.Equal(dec("1000.00")) {
		t.Fatalf("total expenses = %s", is.TotalExpenses)
	}
	if !is.NetIncome.Equal(dec("9000.00")) {
		t.Fatalf("net income = %s", is.NetIncome)
	}
	if !is.Ratios.ProgramRatio.Equal(dec("70")) {
		t.Fatalf("program ratio = %s, want 70", is.Ratios.ProgramRatio)
	}
	if !is.Ratios.AdminRatio.Equal(dec("20")) {
		t.Fatalf("admin ratio = %s, want 20", is.Ratios.AdminRatio)
	}
	if !is.Ratios.FundraisingRatio.Equal(dec("10")) {
		t.Fatalf("fundraising ratio = %s, want 10", is.Ratios.FundraisingRatio)
	}
}

func TestCashFlowClassificationAndReconciliation(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	equipment := h.account(t, "1500", "Equipment", ledger.AccountAsset)
	loan := h.account(t, "2100", "Loan Payable", ledger.AccountLiability)
	grant := h.account(t, "4100", "Grant Revenue", ledger.AccountRevenue)

	// Opening: before the window.
	h.entry(t, date(2023, 12, 20), true,
		seedLine{account: cash, debit: "1000.00"},
		seedLine{account: grant, credit: "1000.00"},
	)
	// Operating inflow.
	h.entry(t, date(2024, 1, 5), true,
		seedLine{account: cash, debit: "5000.00"},
		seedLine{account: grant, credit: "5000.00"},
	)
	// Investing outflow.
	h.entry(t, date(2024, 1, 12), true,
		seedLine{account: equipment, debit: "2000.00"},
		seedLine{account: cash, credit: "2000.00"},
	)
	// Financing inflow.
	h.entry(t, date(2024, 1, 18), true,
		seedLine{account: cash, debit: "800.00"},
		seedLine{account: loan, credit: "800.00"},
	)
	// Non-cash entry: must not move the statement.
	h.entry(t, date(2024, 1, 25), true,
		seedLine{account: equipment, debit: "300.00"},
		seedLine{account: loan, credit: "300.00"},
	)

	cf, err := h.svc.CashFlow(context.Background(), date(2024, 1, 1), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("cash flow: %v", err)
	}
	if !cf.OpeningBalance.Equal(dec("1000.00")) {
		t.Fatalf("opening = %s, want 1000.00", cf.OpeningBalance)
	}
	if !cf.Operating.Equal(dec("5000.00")) {
		t.Fatalf("operating = %s, want 5000.00", cf.Operating)
	}
	if !cf.Investing.Equal(dec("-2000.00")) {
		t.Fatalf("investing = %s, want -2000.00", cf.Investing)
	}
	if !cf.Financing.Equal(dec("800.00")) {
		t.Fatalf("financing = %s, want 800.00", cf.Financing)
	}
	if !cf.NetChange.Equal(dec("3800.00")) {
		t.Fatalf("net change = %s, want 3800.00", cf.NetChange)
	}
	if !cf.ClosingBalance.Equal(dec("4800.00")) {
		t.Fatalf("closing = %s, want 4800.00", cf.ClosingBalance)
	}
	if !cf.ActualClosingBalance.Equal(dec("4800.00")) {
		t.Fatalf("actual closing = %s, want 4800.00", cf.ActualClosingBalance)
	}
	if !cf.ReconciliationDifference.IsZero() {
		t.Fatalf("reconciliation difference = %s, want 0", cf.ReconciliationDifference)
	}
}

func TestFinancialSummary(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	loan := h.account(t, "2100", "Loan Payable", ledger.AccountLiability)
	grant := h.account(t, "4100", "Grant Revenue", ledger.AccountRevenue)
	rent := h.account(t, "5200", "Office Rent", ledger.AccountExpense)

	h.entry(t, date(2024, 1, 5), true,
		seedLine{account: cash, debit: "6000.00"},
		seedLine{account: grant, credit: "6000.00"},
	)
	h.entry(t, date(2024, 1, 10), true,
		seedLine{account: cash, debit: "2000.00"},
		seedLine{account: loan, credit: "2000.00"},
	)
	h.entry(t, date(2024, 1, 15), true,
		seedLine{account: rent, debit: "1000.00"},
		seedLine{account: cash, credit: "1000.00"},
	)

	fs, err := h.svc.FinancialSummary(context.Background(), date(2024, 1, 1), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !fs.TotalAssets.Equal(dec("7000.00")) {
		t.Fatalf("assets = %s", fs.TotalAssets)
	}
	if !fs.TotalLiabilities.Equal(dec("2000.00")) {
		t.Fatalf("liabilities = %s", fs.TotalLiabilities)
	}
	if !fs.CashPosition.Equal(dec("7000.00")) {
		t.Fatalf("cash position = %s", fs.CashPosition)
	}
	if !fs.NetIncome.Equal(dec("5000.00")) {
		t.Fatalf("net income = %s", fs.NetIncome)
	}
}
