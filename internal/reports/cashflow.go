package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/ledger"
	"openbalance.org/internal/obs"
)

// Cash flow activity buckets.
const (
	ActivityOperating = "operating"
	ActivityInvesting = "investing"
	ActivityFinancing = "financing"
)

var cashKeywords = []string{"cash", "bank"}
var operatingAssetKeywords = []string{"receivable", "prepaid"}

// IsCashAccount reports whether an account behaves as cash for the cash
// flow statement: an asset whose name mentions cash or bank.
func IsCashAccount(typ ledger.AccountType, name string) bool {
	return typ == ledger.AccountAsset && nameHasAny(name, cashKeywords)
}

// CashAccountBalance is one cash account's closing balance.
type CashAccountBalance struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Balance     decimal.Decimal `json:"balance"`
}

// CashFlow is the cash flow statement for a period. ClosingBalance is the
// derived figure (opening + net change); ActualClosingBalance is computed
// independently from the ledger, and any disagreement between the two is
// surfaced as ReconciliationDifference rather than suppressed.
type CashFlow struct {
	StartDate                string               `json:"start_date"`
	EndDate                  string               `json:"end_date"`
	Operating                decimal.Decimal      `json:"operating_activities"`
	Investing                decimal.Decimal      `json:"investing_activities"`
	Financing                decimal.Decimal      `json:"financing_activities"`
	NetChange                decimal.Decimal      `json:"net_change"`
	OpeningBalance           decimal.Decimal      `json:"opening_balance"`
	ClosingBalance           decimal.Decimal      `json:"closing_balance"`
	ActualClosingBalance     decimal.Decimal      `json:"actual_closing_balance"`
	ReconciliationDifference decimal.Decimal      `json:"reconciliation_difference"`
	CashAccounts             []CashAccountBalance `json:"cash_accounts"`
}

// classifyCounterAccount maps the non-cash side of a cash movement to an
// activity. Revenue and expense counter-accounts are operating; liability
// and equity are financing; other assets are investing, except working
// capital accounts (receivables, prepayments) which are operating. A
// heuristic, so the statement always carries the reconciliation diagnostic.
func classifyCounterAccount(typ ledger.AccountType, name string) string {
	switch typ {
	case ledger.AccountRevenue, ledger.AccountExpense:
		return ActivityOperating
	case ledger.AccountLiability, ledger.AccountEquity:
		return ActivityFinancing
	}
	if nameHasAny(name, operatingAssetKeywords) {
		return ActivityOperating
	}
	return ActivityInvesting
}

// CashFlow builds the cash flow statement between two dates, inclusive. For
// every posted entry that touches a cash account, the cash delta is
// classified by the entry's dominant counter-account (the non-cash line
// with the largest absolute amount).
func (s *Service) CashFlow(ctx context.Context, from, to time.Time) (CashFlow, error) {
	start := time.Now()
	defer func() { obs.ObserveReport("cash_flow", time.Since(start)) }()

	from, to = ledger.DateOnly(from), ledger.DateOnly(to)
	cf := CashFlow{
		StartDate:    fmtDate(from),
		EndDate:      fmtDate(to),
		Operating:    decimal.Zero,
		Investing:    decimal.Zero,
		Financing:    decimal.Zero,
		CashAccounts: []CashAccountBalance{},
	}

	// Opening balance: all cash activity strictly before the period.
	dayBefore := from.AddDate(0, 0, -1)
	opening, err := s.cashBalance(ctx, dayBefore)
	if err != nil {
		return CashFlow{}, err
	}
	cf.OpeningBalance = opening

	// Classify every cash-touching entry in the window.
	lines, err := s.store.PostedLines(ctx, ledger.LineFilter{From: &from, To: &to})
	if err != nil {
		return CashFlow{}, err
	}
	byEntry := make(map[string][]ledger.PostedLine)
	order := []string{}
	for _, l := range lines {
		if _, ok := byEntry[l.EntryID]; !ok {
			order = append(order, l.EntryID)
		}
		byEntry[l.EntryID] = append(byEntry[l.EntryID], l)
	}

	for _, entryID := range order {
		group := byEntry[entryID]
		cashDelta := decimal.Zero
		var dominant *ledger.PostedLine
		dominantAbs := decimal.Zero
		for i := range group {
			l := group[i]
			if IsCashAccount(l.AccountType, l.AccountName) {
				cashDelta = cashDelta.Add(l.DebitAmount).Sub(l.CreditAmount)
				continue
			}
			abs := l.DebitAmount.Sub(l.CreditAmount).Abs()
			if abs.GreaterThan(dominantAbs) {
				dominantAbs = abs
				dominant = &group[i]
			}
		}
		if cashDelta.IsZero() {
			continue
		}
		activity := ActivityOperating
		if dominant != nil {
			activity = classifyCounterAccount(dominant.AccountType, dominant.AccountName)
		}
		switch activity {
		case ActivityOperating:
			cf.Operating = cf.Operating.Add(cashDelta)
		case ActivityInvesting:
			cf.Investing = cf.Investing.Add(cashDelta)
		case ActivityFinancing:
			cf.Financing = cf.Financing.Add(cashDelta)
		}
	}

	cf.NetChange = cf.Operating.Add(cf.Investing).Add(cf.Financing)
	cf.ClosingBalance = cf.OpeningBalance.Add(cf.NetChange)

	// Independent closing balance straight from the ledger.
	actual, err := s.cashBalance(ctx, to)
	if err != nil {
		return CashFlow{}, err
	}
	cf.ActualClosingBalance = actual
	cf.ReconciliationDifference = actual.Sub(cf.ClosingBalance)

	perAccount, err := s.cashAccountBalances(ctx, to)
	if err != nil {
		return CashFlow{}, err
	}
	cf.CashAccounts = perAccount
	return cf, nil
}

func (s *Service) cashBalance(ctx context.Context, asOf time.Time) (decimal.Decimal, error) {
	accounts, err := s.cashAccountBalances(ctx, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total, nil
}

func (s *Service) cashAccountBalances(ctx context.Context, asOf time.Time) ([]CashAccountBalance, error) {
	lines, err := s.store.PostedLines(ctx, ledger.LineFilter{AccountType: ledger.AccountAsset, To: &asOf})
	if err != nil {
		return nil, err
	}
	out := []CashAccountBalance{}
	for _, acc := range aggregateByAccount(lines) {
		if !IsCashAccount(acc.typ, acc.name) {
			continue
		}
		out = append(out, CashAccountBalance{AccountCode: acc.code, AccountName: acc.name, Balance: acc.net()})
	}
	return out, nil
}
