// Package assets manages fixed assets and the depreciation engine: schedule
// calculations plus the idempotent monthly run that books balanced automated
// journal entries.
package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/audit"
	"openbalance.org/internal/ids"
	"openbalance.org/internal/journal"
	"openbalance.org/internal/ledger"
	"openbalance.org/internal/obs"
)

// Account names the monthly run books against. The run skips assets when
// either account is missing from the chart.
const (
	ExpenseAccountName     = "Depreciation Expense"
	AccumulatedAccountName = "Accumulated Depreciation"
)

// Service owns fixed assets and their depreciation lifecycle.
type Service struct {
	store ledger.Store
	trail audit.Trail
}

// New wires the depreciation engine.
func New(store ledger.Store, trail audit.Trail) *Service {
	return &Service{store: store, trail: trail}
}

// CreateInput carries the fields for a new fixed asset.
type CreateInput struct {
	AssetNumber     string
	Name            string
	PurchaseDate    time.Time
	PurchaseCost    decimal.Decimal
	SalvageValue    decimal.Decimal
	UsefulLifeYears int
	Method          ledger.DepreciationMethod
}

// Create registers an active fixed asset.
func (s *Service) Create(ctx context.Context, in CreateInput) (ledger.FixedAsset, error) {
	if strings.TrimSpace(in.AssetNumber) == "" {
		return ledger.FixedAsset{}, ledger.Validationf("asset number is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return ledger.FixedAsset{}, ledger.Validationf("asset name is required")
	}
	if !in.PurchaseCost.IsPositive() {
		return ledger.FixedAsset{}, ledger.Validationf("purchase cost must be positive, got %s", in.PurchaseCost)
	}
	if in.SalvageValue.IsNegative() || in.SalvageValue.GreaterThan(in.PurchaseCost) {
		return ledger.FixedAsset{}, ledger.Validationf("salvage value must be between 0 and the purchase cost")
	}
	if in.UsefulLifeYears <= 0 {
		return ledger.FixedAsset{}, ledger.Validationf("useful life must be positive, got %d", in.UsefulLifeYears)
	}
	if !in.Method.Valid() {
		return ledger.FixedAsset{}, ledger.Validationf("invalid depreciation method %q", in.Method)
	}

	a := ledger.FixedAsset{
		ID:              ids.New(),
		AssetNumber:     strings.TrimSpace(in.AssetNumber),
		Name:            strings.TrimSpace(in.Name),
		PurchaseDate:    ledger.DateOnly(in.PurchaseDate),
		PurchaseCost:    in.PurchaseCost,
		SalvageValue:    in.SalvageValue,
		UsefulLifeYears: in.UsefulLifeYears,
		Method:          in.Method,
		Accumulated:     decimal.Zero,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.CreateAsset(ctx, &a); err != nil {
		return ledger.FixedAsset{}, err
	}

	_ = s.trail.LogAuditTrail(ctx, "fixed_assets", a.ID, "INSERT", nil, map[string]any{
		"asset_number":  a.AssetNumber,
		"name":          a.Name,
		"purchase_cost": a.PurchaseCost.String(),
		"method":        string(a.Method),
	})
	return a, nil
}

// Get returns one asset by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.FixedAsset, error) {
	return s.store.Asset(ctx, id)
}

// List returns assets, optionally only active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]ledger.FixedAsset, error) {
	return s.store.Assets(ctx, activeOnly)
}

// Calculate returns the depreciation amount for an asset, rounded to two
// decimal places.
//
// Straight-line: (cost − salvage) / useful life, annually; periods > 0
// prorates to that many months (annual / 12 × periods).
//
// Declining balance: rate = 2 / useful life applied to the current book
// value, capped so the book value never drops below the salvage value.
// Periods do not prorate this method; it always consumes the current book
// value step.
func Calculate(a ledger.FixedAsset, periods int) decimal.Decimal {
	life := decimal.NewFromInt(int64(a.UsefulLifeYears))
	switch a.Method {
	case ledger.StraightLine:
		annual := a.PurchaseCost.Sub(a.SalvageValue).Div(life)
		if periods > 0 {
			return annual.Div(decimal.NewFromInt(12)).Mul(decimal.NewFromInt(int64(periods))).Round(2)
		}
		return annual.Round(2)
	case ledger.DecliningBalance:
		rate := decimal.NewFromInt(2).Div(life)
		current := a.PurchaseCost.Sub(a.Accumulated)
		depreciation := current.Mul(rate)
		headroom := current.Sub(a.SalvageValue)
		if depreciation.GreaterThan(headroom) {
			depreciation = headroom
		}
		if depreciation.IsNegative() {
			return decimal.Zero
		}
		return depreciation.Round(2)
	}
	return decimal.Zero
}

// RunItem records one asset processed by a monthly run.
type RunItem struct {
	AssetID            string          `json:"asset_id"`
	AssetName          string          `json:"asset_name"`
	DepreciationAmount decimal.Decimal `json:"depreciation_amount"`
	JournalEntryID     string          `json:"journal_entry_id"`
}

// MonthlyRun books depreciation for every active asset for the calendar
// month of asOf. The run is idempotent: assets that already have a
// depreciation entry in that month are skipped, so re-execution changes
// nothing. For each remaining asset it creates one balanced automated
// journal entry (debit Depreciation Expense, credit Accumulated
// Depreciation, both found by name in the chart), links a
// DepreciationEntry to it and increments the asset's accumulated
// depreciation, all inside one transaction per asset.
func (s *Service) MonthlyRun(ctx context.Context, asOf time.Time) ([]RunItem, error) {
	asOf = ledger.DateOnly(asOf)
	year, month, _ := asOf.Date()

	expenseAcc, accumAcc, err := s.depreciationAccounts(ctx)
	if err != nil {
		return nil, err
	}

	all, err := s.store.Assets(ctx, true)
	if err != nil {
		return nil, err
	}

	created := []RunItem{}
	for _, asset := range all {
		done, err := s.store.HasDepreciationForMonth(ctx, asset.ID, year, month)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}
		amount := Calculate(asset, 1)
		if !amount.IsPositive() {
			continue
		}

		var entryID string
		err = s.store.WithinTx(ctx, func(tx ledger.Store) error {
			j := journal.New(tx, s.trail)
			entry, err := j.Create(ctx, journal.CreateInput{
				EntryDate:    asOf,
				Description:  fmt.Sprintf("Monthly depreciation for %s", asset.Name),
				Type:         ledger.EntryAutomated,
				NumberPrefix: "DEP",
				Lines: []journal.LineInput{
					{AccountID: expenseAcc.ID, Description: fmt.Sprintf("Depreciation expense - %s", asset.Name), Debit: amount},
					{AccountID: accumAcc.ID, Description: fmt.Sprintf("Accumulated depreciation - %s", asset.Name), Credit: amount},
				},
			})
			if err != nil {
				return err
			}
			entryID = entry.ID

			dep := ledger.DepreciationEntry{
				ID:        ids.New(),
				AssetID:   asset.ID,
				EntryDate: asOf,
				Amount:    amount,
				JournalID: entry.ID,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.CreateDepreciationEntry(ctx, &dep); err != nil {
				return err
			}

			asset.Accumulated = asset.Accumulated.Add(amount)
			return tx.UpdateAsset(ctx, &asset)
		})
		if err != nil {
			return created, err
		}

		obs.CountDepreciationRun()
		_ = s.trail.LogAuditTrail(ctx, "fixed_assets", asset.ID, "UPDATE",
			map[string]any{"accumulated_depreciation": asset.Accumulated.Sub(amount).String()},
			map[string]any{"accumulated_depreciation": asset.Accumulated.String()})

		created = append(created, RunItem{
			AssetID:            asset.ID,
			AssetName:          asset.Name,
			DepreciationAmount: amount,
			JournalEntryID:     entryID,
		})
	}
	return created, nil
}

// depreciationAccounts resolves the two chart accounts the run books
// against by name match.
func (s *Service) depreciationAccounts(ctx context.Context) (expense, accumulated ledger.Account, err error) {
	accounts, err := s.store.Accounts(ctx, ledger.AccountFilter{ActiveOnly: true})
	if err != nil {
		return ledger.Account{}, ledger.Account{}, err
	}
	var foundExpense, foundAccum bool
	for _, a := range accounts {
		if !foundExpense && strings.Contains(a.Name, ExpenseAccountName) {
			expense = a
			foundExpense = true
		}
		if !foundAccum && strings.Contains(a.Name, AccumulatedAccountName) {
			accumulated = a
			foundAccum = true
		}
	}
	if !foundExpense {
		return ledger.Account{}, ledger.Account{}, ledger.NotFound("account", ExpenseAccountName)
	}
	if !foundAccum {
		return ledger.Account{}, ledger.Account{}, ledger.NotFound("account", AccumulatedAccountName)
	}
	return expense, accumulated, nil
}
