// Package grants tracks donor funding against posted project expenses and
// runs the grant-expiry sweep.
package grants

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/audit"
	"openbalance.org/internal/ids"
	"openbalance.org/internal/ledger"
)

// Utilization status labels.
const (
	StatusOnTrack    = "on_track"
	StatusUnderspent = "underspent"
	StatusOverBudget = "over_budget"
)

// Service owns grant records and utilization analysis.
type Service struct {
	store ledger.Store
	trail audit.Trail
}

// New wires the grant utilization calculator.
func New(store ledger.Store, trail audit.Trail) *Service {
	return &Service{store: store, trail: trail}
}

// CreateInput carries the fields for a new grant.
type CreateInput struct {
	GrantNumber string
	Title       string
	DonorName   string
	ProjectID   string
	Amount      decimal.Decimal
	CurrencyID  string
	StartDate   time.Time
	EndDate     time.Time
}

// Create registers an active grant.
func (s *Service) Create(ctx context.Context, in CreateInput) (ledger.Grant, error) {
	number := strings.TrimSpace(in.GrantNumber)
	if number == "" {
		return ledger.Grant{}, ledger.Validationf("grant number is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return ledger.Grant{}, ledger.Validationf("grant title is required")
	}
	if in.ProjectID == "" {
		return ledger.Grant{}, ledger.Validationf("grant project is required")
	}
	if !in.Amount.IsPositive() {
		return ledger.Grant{}, ledger.Validationf("grant amount must be positive, got %s", in.Amount)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return ledger.Grant{}, ledger.Validationf("grant period is invalid")
	}

	g := ledger.Grant{
		ID:          ids.New(),
		GrantNumber: number,
		Title:       strings.TrimSpace(in.Title),
		DonorName:   strings.TrimSpace(in.DonorName),
		ProjectID:   in.ProjectID,
		Amount:      in.Amount,
		CurrencyID:  in.CurrencyID,
		StartDate:   ledger.DateOnly(in.StartDate),
		EndDate:     ledger.DateOnly(in.EndDate),
		Status:      ledger.GrantActive,
		CreatedAt:   time.Now().UTC(),
	}
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		existing, err := tx.Grants(ctx, ledger.GrantFilter{})
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.GrantNumber == number {
				return ledger.Validationf("grant number %q already exists", number)
			}
		}
		return tx.CreateGrant(ctx, &g)
	})
	if err != nil {
		return ledger.Grant{}, err
	}

	_ = s.trail.LogAuditTrail(ctx, "grants", g.ID, "INSERT", nil, map[string]any{
		"grant_number": g.GrantNumber,
		"title":        g.Title,
		"amount":       g.Amount.String(),
		"project_id":   g.ProjectID,
	})
	return g, nil
}

// Get returns one grant by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.Grant, error) {
	return s.store.Grant(ctx, id)
}

// List returns grants matching the filter.
func (s *Service) List(ctx context.Context, f ledger.GrantFilter) ([]ledger.Grant, error) {
	return s.store.Grants(ctx, f)
}

// Complete marks an active grant as completed.
func (s *Service) Complete(ctx context.Context, id string) error {
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		g, err := tx.Grant(ctx, id)
		if err != nil {
			return err
		}
		if g.Status != ledger.GrantActive {
			return ledger.Statef("grant %s is %s, not active", g.GrantNumber, g.Status)
		}
		g.Status = ledger.GrantCompleted
		return tx.UpdateGrant(ctx, &g)
	})
	if err != nil {
		return err
	}
	_ = s.trail.LogAuditTrail(ctx, "grants", id, "UPDATE",
		map[string]any{"status": string(ledger.GrantActive)},
		map[string]any{"status": string(ledger.GrantCompleted)})
	return nil
}

// AccountExpense is one account's share of a grant's spending.
type AccountExpense struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
	Percentage  decimal.Decimal `json:"percentage"`
}

// Utilization is the grant spending report.
type Utilization struct {
	GrantID               string           `json:"grant_id"`
	GrantNumber           string           `json:"grant_number"`
	Title                 string           `json:"title"`
	GrantAmount           decimal.Decimal  `json:"grant_amount"`
	UtilizedAmount        decimal.Decimal  `json:"utilized_amount"`
	RemainingBalance      decimal.Decimal  `json:"remaining_balance"`
	UtilizationPercentage decimal.Decimal  `json:"utilization_percentage"`
	DaysRemaining         int              `json:"days_remaining"`
	Status                string           `json:"status"`
	ExpensesByAccount     []AccountExpense `json:"expenses_by_account"`
}

// Utilization sums the posted debits tagged with the grant's project whose
// entry dates fall inside the grant period. asOf drives the status:
// over_budget when spending exceeds the grant; underspent when less than
// 80% is utilized and more than 80% of the grant's duration has elapsed;
// on_track otherwise.
func (s *Service) Utilization(ctx context.Context, grantID string, asOf time.Time) (Utilization, error) {
	g, err := s.store.Grant(ctx, grantID)
	if err != nil {
		return Utilization{}, err
	}
	from, to := g.StartDate, g.EndDate
	lines, err := s.store.PostedLines(ctx, ledger.LineFilter{ProjectID: g.ProjectID, From: &from, To: &to})
	if err != nil {
		return Utilization{}, err
	}

	utilized := decimal.Zero
	byAccount := map[string]*AccountExpense{}
	for _, l := range lines {
		if l.DebitAmount.IsZero() {
			continue
		}
		utilized = utilized.Add(l.DebitAmount)
		e, ok := byAccount[l.AccountID]
		if !ok {
			e = &AccountExpense{AccountCode: l.AccountCode, AccountName: l.AccountName, Amount: decimal.Zero}
			byAccount[l.AccountID] = e
		}
		e.Amount = e.Amount.Add(l.DebitAmount)
	}

	u := Utilization{
		GrantID:           g.ID,
		GrantNumber:       g.GrantNumber,
		Title:             g.Title,
		GrantAmount:       g.Amount,
		UtilizedAmount:    utilized,
		RemainingBalance:  g.Amount.Sub(utilized),
		DaysRemaining:     int(g.EndDate.Sub(ledger.DateOnly(asOf)).Hours() / 24),
		ExpensesByAccount: []AccountExpense{},
	}
	hundred := decimal.NewFromInt(100)
	u.UtilizationPercentage = utilized.Div(g.Amount).Mul(hundred)

	for _, e := range byAccount {
		e.Percentage = e.Amount.Div(g.Amount).Mul(hundred)
		u.ExpensesByAccount = append(u.ExpensesByAccount, *e)
	}
	sort.Slice(u.ExpensesByAccount, func(i, j int) bool {
		return u.ExpensesByAccount[i].AccountCode < u.ExpensesByAccount[j].AccountCode
	})

	u.Status = grantStatus(g, utilized, asOf)
	return u, nil
}

func grantStatus(g ledger.Grant, utilized decimal.Decimal, asOf time.Time) string {
	if utilized.GreaterThan(g.Amount) {
		return StatusOverBudget
	}
	eighty := decimal.RequireFromString("0.8")
	duration := g.EndDate.Sub(g.StartDate)
	elapsedCutoff := g.StartDate.Add(time.Duration(float64(duration) * 0.8))
	if utilized.LessThan(g.Amount.Mul(eighty)) && asOf.After(elapsedCutoff) {
		return StatusUnderspent
	}
	return StatusOnTrack
}

// ExpirySweep flips active grants whose end date has passed to expired. It
// is idempotent: re-running it on the same day changes nothing. Returns the
// number of grants expired.
func (s *Service) ExpirySweep(ctx context.Context, asOf time.Time) (int, error) {
	cutoff := ledger.DateOnly(asOf)
	var expired []ledger.Grant
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		active, err := tx.Grants(ctx, ledger.GrantFilter{Status: ledger.GrantActive})
		if err != nil {
			return err
		}
		for _, g := range active {
			if !g.EndDate.Before(cutoff) {
				continue
			}
			g.Status = ledger.GrantExpired
			if err := tx.UpdateGrant(ctx, &g); err != nil {
				return err
			}
			expired = append(expired, g)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, g := range expired {
		_ = s.trail.LogAuditTrail(ctx, "grants", g.ID, "UPDATE",
			map[string]any{"status": string(ledger.GrantActive)},
			map[string]any{"status": string(ledger.GrantExpired)})
	}
	return len(expired), nil
}

// ExpiringWithin lists active grants ending within the given number of days
// of asOf, soonest first. Used for the expiry alerts.
func (s *Service) ExpiringWithin(ctx context.Context, asOf time.Time, days int) ([]ledger.Grant, error) {
	cutoff := ledger.DateOnly(asOf).AddDate(0, 0, days)
	grants, err := s.store.Grants(ctx, ledger.GrantFilter{Status: ledger.GrantActive, EndingBy: &cutoff})
	if err != nil {
		return nil, err
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].EndDate.Before(grants[j].EndDate) })
	return grants, nil
}
