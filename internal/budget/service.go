// Package budget compares budgeted targets against ledger-derived actuals.
//
// Sign convention, fixed across the whole system: variance = budgeted −
// actual, so a positive variance is an underspend and is reported as
// favorable. Actuals are always the sum of posted debits in the budget
// period; budgets never hold balances of their own.
package budget

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/audit"
	"openbalance.org/internal/ids"
	"openbalance.org/internal/ledger"
)

// Variance outcome labels.
const (
	Favorable   = "favorable"
	Unfavorable = "unfavorable"
)

// Service owns budget records and variance analysis.
type Service struct {
	store ledger.Store
	trail audit.Trail
}

// New wires the budget variance calculator.
func New(store ledger.Store, trail audit.Trail) *Service {
	return &Service{store: store, trail: trail}
}

// LineInput is one per-account target inside a budget being created.
type LineInput struct {
	AccountID      string
	CostCenterID   string
	BudgetedAmount decimal.Decimal
	PeriodMonth    int
	Notes          string
}

// CreateInput carries a budget with its lines. TotalBudget is derived from
// the lines, never supplied.
type CreateInput struct {
	Name        string
	Description string
	BudgetYear  int
	ProjectID   string
	StartDate   time.Time
	EndDate     time.Time
	Lines       []LineInput
}

// Create persists a budget and its lines in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (ledger.Budget, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ledger.Budget{}, ledger.Validationf("budget name is required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return ledger.Budget{}, ledger.Validationf("budget period is invalid")
	}
	if len(in.Lines) == 0 {
		return ledger.Budget{}, ledger.Validationf("budget requires at least one line")
	}

	b := ledger.Budget{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		BudgetYear:  in.BudgetYear,
		ProjectID:   in.ProjectID,
		StartDate:   ledger.DateOnly(in.StartDate),
		EndDate:     ledger.DateOnly(in.EndDate),
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	b.TotalBudget = decimal.Zero

	lines := make([]ledger.BudgetLine, 0, len(in.Lines))
	for i, l := range in.Lines {
		if l.BudgetedAmount.IsNegative() {
			return ledger.Budget{}, ledger.Validationf("line %d: budgeted amount must not be negative", i+1)
		}
		if l.PeriodMonth < 0 || l.PeriodMonth > 12 {
			return ledger.Budget{}, ledger.Validationf("line %d: period month must be 1-12", i+1)
		}
		lines = append(lines, ledger.BudgetLine{
			ID:             ids.New(),
			BudgetID:       b.ID,
			AccountID:      l.AccountID,
			CostCenterID:   l.CostCenterID,
			BudgetedAmount: l.BudgetedAmount,
			PeriodMonth:    l.PeriodMonth,
			Notes:          strings.TrimSpace(l.Notes),
		})
		b.TotalBudget = b.TotalBudget.Add(l.BudgetedAmount)
	}

	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		for i, l := range lines {
			if _, err := tx.Account(ctx, l.AccountID); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		return tx.CreateBudget(ctx, &b, lines)
	})
	if err != nil {
		return ledger.Budget{}, err
	}

	_ = s.trail.LogAuditTrail(ctx, "budgets", b.ID, "INSERT", nil, map[string]any{
		"name":         b.Name,
		"budget_year":  b.BudgetYear,
		"total_budget": b.TotalBudget.String(),
		"lines":        len(lines),
	})
	return b, nil
}

// Get returns one budget by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.Budget, error) {
	return s.store.Budget(ctx, id)
}

// Variance is the budgeted-vs-actual comparison for one scope.
type Variance struct {
	BudgetedAmount     decimal.Decimal `json:"budgeted_amount"`
	ActualAmount       decimal.Decimal `json:"actual_amount"`
	VarianceAmount     decimal.Decimal `json:"variance_amount"`
	VariancePercentage decimal.Decimal `json:"variance_percentage"`
	VarianceType       string          `json:"variance_type"`
}

// Compute applies the variance convention: budgeted − actual, favorable
// when positive. A zero budget yields a zero percentage.
func Compute(budgeted, actual decimal.Decimal) Variance {
	v := Variance{
		BudgetedAmount: budgeted,
		ActualAmount:   actual,
		VarianceAmount: budgeted.Sub(actual),
	}
	if budgeted.IsPositive() {
		v.VariancePercentage = v.VarianceAmount.Div(budgeted).Mul(decimal.NewFromInt(100))
	} else {
		v.VariancePercentage = decimal.Zero
	}
	if v.VarianceAmount.IsPositive() {
		v.VarianceType = Favorable
	} else {
		v.VarianceType = Unfavorable
	}
	return v
}

// LineVariance is the variance of one budget line.
type LineVariance struct {
	Variance
	AccountID    string `json:"account_id"`
	AccountCode  string `json:"account_code"`
	AccountName  string `json:"account_name"`
	CostCenterID string `json:"cost_center_id,omitempty"`
	PeriodMonth  int    `json:"period_month,omitempty"`
}

// Analysis is the full budget performance report.
type Analysis struct {
	BudgetID           string         `json:"budget_id"`
	BudgetName         string         `json:"budget_name"`
	BudgetYear         int            `json:"budget_year"`
	Period             string         `json:"period"`
	OverallPerformance Variance       `json:"overall_performance"`
	LineItemAnalysis   []LineVariance `json:"line_item_analysis"`
	Summary            Summary        `json:"summary"`
}

// Summary counts line outcomes.
type Summary struct {
	TotalBudgetLines     int `json:"total_budget_lines"`
	FavorableVariances   int `json:"favorable_variances"`
	UnfavorableVariances int `json:"unfavorable_variances"`
}

// Analyze compares every budget line against actual posted expenses in the
// budget period. Project-specific budgets only count lines tagged with the
// project; cost-center-specific lines only count matching cost centers.
func (s *Service) Analyze(ctx context.Context, budgetID string) (Analysis, error) {
	b, err := s.store.Budget(ctx, budgetID)
	if err != nil {
		return Analysis{}, err
	}
	lines, err := s.store.BudgetLines(ctx, budgetID)
	if err != nil {
		return Analysis{}, err
	}

	out := Analysis{
		BudgetID:         b.ID,
		BudgetName:       b.Name,
		BudgetYear:       b.BudgetYear,
		Period:           fmt.Sprintf("%s to %s", b.StartDate.Format("2006-01-02"), b.EndDate.Format("2006-01-02")),
		LineItemAnalysis: []LineVariance{},
	}
	totalBudgeted := decimal.Zero
	totalActual := decimal.Zero

	for _, line := range lines {
		acc, err := s.store.Account(ctx, line.AccountID)
		if err != nil {
			return Analysis{}, err
		}
		actual, err := s.actualExpenses(ctx, b, line)
		if err != nil {
			return Analysis{}, err
		}

		lv := LineVariance{
			Variance:     Compute(line.BudgetedAmount, actual),
			AccountID:    line.AccountID,
			AccountCode:  acc.Code,
			AccountName:  acc.Name,
			CostCenterID: line.CostCenterID,
			PeriodMonth:  line.PeriodMonth,
		}
		out.LineItemAnalysis = append(out.LineItemAnalysis, lv)
		totalBudgeted = totalBudgeted.Add(line.BudgetedAmount)
		totalActual = totalActual.Add(actual)

		out.Summary.TotalBudgetLines++
		if lv.VarianceType == Favorable {
			out.Summary.FavorableVariances++
		} else {
			out.Summary.UnfavorableVariances++
		}
	}

	out.OverallPerformance = Compute(totalBudgeted, totalActual)
	return out, nil
}

func (s *Service) actualExpenses(ctx context.Context, b ledger.Budget, line ledger.BudgetLine) (decimal.Decimal, error) {
	from, to := b.StartDate, b.EndDate
	f := ledger.LineFilter{
		AccountID:    line.AccountID,
		ProjectID:    b.ProjectID,
		CostCenterID: line.CostCenterID,
		From:         &from,
		To:           &to,
	}
	posted, err := s.store.PostedLines(ctx, f)
	if err != nil {
		return decimal.Decimal{}, err
	}
	actual := decimal.Zero
	for _, l := range posted {
		actual = actual.Add(l.DebitAmount)
	}
	return actual, nil
}
