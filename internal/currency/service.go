// Package currency stores bookable currencies with dated exchange rates and
// performs conversions via floor lookup.
package currency

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/audit"
	"openbalance.org/internal/ids"
	"openbalance.org/internal/ledger"
)

// Service owns currency and exchange-rate rules.
type Service struct {
	store ledger.Store
	trail audit.Trail
}

// New wires the currency service.
func New(store ledger.Store, trail audit.Trail) *Service {
	return &Service{store: store, trail: trail}
}

// CreateInput carries the fields for a new currency.
type CreateInput struct {
	Code   string
	Name   string
	Symbol string
	IsBase bool
}

func validCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Create registers a currency. Codes are three uppercase letters (ISO 4217
// style) and unique. When IsBase is set the previous base flag is cleared in
// the same transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (ledger.Currency, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if !validCode(code) {
		return ledger.Currency{}, ledger.Validationf("currency code must be three letters, got %q", in.Code)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ledger.Currency{}, ledger.Validationf("currency name is required")
	}

	cur := ledger.Currency{
		ID:        ids.New(),
		Code:      code,
		Name:      name,
		Symbol:    strings.TrimSpace(in.Symbol),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.CurrencyByCode(ctx, code); err == nil {
			return ledger.Validationf("currency %q already exists", code)
		} else if !ledger.IsNotFound(err) {
			return err
		}
		if err := tx.CreateCurrency(ctx, &cur); err != nil {
			return err
		}
		if in.IsBase {
			if err := tx.SetBaseCurrency(ctx, cur.ID); err != nil {
				return err
			}
			cur.IsBaseCurrency = true
		}
		return nil
	})
	if err != nil {
		return ledger.Currency{}, err
	}

	_ = s.trail.LogAuditTrail(ctx, "currencies", cur.ID, "INSERT", nil, map[string]any{
		"code":             cur.Code,
		"name":             cur.Name,
		"is_base_currency": cur.IsBaseCurrency,
	})
	return cur, nil
}

// SetBase makes the given currency the base currency, atomically clearing
// the previous flag. Two currencies are never flagged as base at once.
func (s *Service) SetBase(ctx context.Context, id string) error {
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.Currency(ctx, id); err != nil {
			return err
		}
		return tx.SetBaseCurrency(ctx, id)
	})
	if err != nil {
		return err
	}
	_ = s.trail.LogAuditTrail(ctx, "currencies", id, "UPDATE", nil, map[string]any{"is_base_currency": true})
	return nil
}

// Get returns one currency by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.Currency, error) {
	return s.store.Currency(ctx, id)
}

// GetByCode returns one currency by code.
func (s *Service) GetByCode(ctx context.Context, code string) (ledger.Currency, error) {
	return s.store.CurrencyByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// List returns all currencies ordered by code.
func (s *Service) List(ctx context.Context) ([]ledger.Currency, error) {
	return s.store.Currencies(ctx)
}

// UpsertRate records the exchange rate of a currency for a specific date,
// replacing any rate already stored for that (currency, date) pair.
func (s *Service) UpsertRate(ctx context.Context, currencyID string, rateDate time.Time, rate decimal.Decimal) (ledger.ExchangeRate, error) {
	if rate.LessThanOrEqual(decimal.Zero) {
		return ledger.ExchangeRate{}, ledger.Validationf("exchange rate must be positive, got %s", rate)
	}
	r := ledger.ExchangeRate{
		ID:         ids.New(),
		CurrencyID: currencyID,
		RateDate:   ledger.DateOnly(rateDate),
		Rate:       rate,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.Currency(ctx, currencyID); err != nil {
			return err
		}
		return tx.UpsertExchangeRate(ctx, &r)
	})
	if err != nil {
		return ledger.ExchangeRate{}, err
	}
	_ = s.trail.LogAuditTrail(ctx, "exchange_rates", r.ID, "INSERT", nil, map[string]any{
		"currency_id": currencyID,
		"rate_date":   r.RateDate.Format("2006-01-02"),
		"rate":        rate.String(),
	})
	return r, nil
}

// RateOn resolves the rate of a currency as of a date: the most recent
// stored rate on or before asOf. The base currency falls back to 1 when no
// row is stored; any other currency without an applicable rate is a
// NotFoundError.
func (s *Service) RateOn(ctx context.Context, currencyID string, asOf time.Time) (decimal.Decimal, error) {
	r, err := s.store.RateOnOrBefore(ctx, currencyID, ledger.DateOnly(asOf))
	if err == nil {
		return r.Rate, nil
	}
	if !ledger.IsNotFound(err) {
		return decimal.Decimal{}, err
	}
	cur, cerr := s.store.Currency(ctx, currencyID)
	if cerr != nil {
		return decimal.Decimal{}, cerr
	}
	if cur.IsBaseCurrency {
		return decimal.NewFromInt(1), nil
	}
	return decimal.Decimal{}, err
}

// Convert translates amount from one currency to another as of a date. Each
// side's rate is resolved independently via floor lookup:
//
//	converted = amount * (rate(to) / rate(from))
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, fromID, toID string, asOf time.Time) (decimal.Decimal, error) {
	if fromID == toID {
		return amount, nil
	}
	fromRate, err := s.RateOn(ctx, fromID, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := s.RateOn(ctx, toID, asOf)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Mul(toRate.Div(fromRate)), nil
}
