package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/ledger"
	"openbalance.org/internal/obs"
)

// FinancialSummary is the dashboard aggregate: position as of the period
// end plus activity within the period. Built from several independent
// queries, so it is eventually consistent with respect to writers.
type FinancialSummary struct {
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetIncome        decimal.Decimal `json:"net_income"`
	CashPosition     decimal.Decimal `json:"cash_position"`
	DebtToEquity     decimal.Decimal `json:"debt_to_equity"`
	ProgramRatio     decimal.Decimal `json:"program_ratio"`
}

// FinancialSummary computes the headline figures for a period: balance
// totals by account type as of the end date, revenue/expense activity
// inside the window, the cash position, and two efficiency ratios.
func (s *Service) FinancialSummary(ctx context.Context, from, to time.Time) (FinancialSummary, error) {
	start := time.Now()
	defer func() { obs.ObserveReport("financial_summary", time.Since(start)) }()

	from, to = ledger.DateOnly(from), ledger.DateOnly(to)
	fs := FinancialSummary{StartDate: fmtDate(from), EndDate: fmtDate(to)}
	fs.TotalAssets = decimal.Zero
	fs.TotalLiabilities = decimal.Zero
	fs.TotalEquity = decimal.Zero
	fs.CashPosition = decimal.Zero

	position, err := s.store.PostedLines(ctx, ledger.LineFilter{To: &to})
	if err != nil {
		return FinancialSummary{}, err
	}
	for _, acc := range aggregateByAccount(position) {
		net := acc.net()
		switch acc.typ {
		case ledger.AccountAsset:
			fs.TotalAssets = fs.TotalAssets.Add(net)
			if IsCashAccount(acc.typ, acc.name) {
				fs.CashPosition = fs.CashPosition.Add(net)
			}
		case ledger.AccountLiability:
			fs.TotalLiabilities = fs.TotalLiabilities.Add(net.Abs())
		case ledger.AccountEquity:
			fs.TotalEquity = fs.TotalEquity.Add(net.Abs())
		}
	}

	is, err := s.IncomeStatement(ctx, from, to)
	if err != nil {
		return FinancialSummary{}, err
	}
	fs.TotalRevenue = is.TotalRevenue
	fs.TotalExpenses = is.TotalExpenses
	fs.NetIncome = is.NetIncome
	fs.ProgramRatio = is.Ratios.ProgramRatio

	if fs.TotalEquity.IsPositive() {
		fs.DebtToEquity = fs.TotalLiabilities.Div(fs.TotalEquity)
	} else {
		fs.DebtToEquity = decimal.Zero
	}
	return fs, nil
}
