// Package journal implements double-entry journal entries and their posting
// state machine: Draft -> Posted -> Draft (privileged unpost), with deletion
// only from Draft.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/audit"
	"openbalance.org/internal/ids"
	"openbalance.org/internal/ledger"
	"openbalance.org/internal/obs"
)

// ErrUnauthorized is returned when unpost is attempted without a privileged
// actor on the context.
var ErrUnauthorized = errors.New("journal: unpost requires a privileged actor")

// Service owns the journal entry lifecycle over a transactional store.
type Service struct {
	store ledger.Store
	trail audit.Trail
}

// New wires the journal entry engine.
func New(store ledger.Store, trail audit.Trail) *Service {
	return &Service{store: store, trail: trail}
}

// LineInput is one side of a double-entry being created.
type LineInput struct {
	AccountID    string
	CostCenterID string
	ProjectID    string
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
}

// CreateInput carries a full journal entry document. The exchange rate is
// entry-level; every line shares it.
type CreateInput struct {
	EntryDate    time.Time
	Description  string
	Type         ledger.EntryType
	Reference    string
	CurrencyID   string
	ExchangeRate decimal.Decimal
	NumberPrefix string // defaults to "JE"; automated runs use their own
	Lines        []LineInput
}

// Create validates and persists a balanced draft entry with its lines in one
// transaction. Requirements: at least two lines, exactly one nonzero side per
// line, sum of debits exactly equal to sum of credits, nonzero total. The
// entry number is {prefix}{year}{month}{seq} with a monotonic sequence within
// the calendar month.
func (s *Service) Create(ctx context.Context, in CreateInput) (ledger.JournalEntry, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return ledger.JournalEntry{}, ledger.Validationf("entry description is required")
	}
	if in.EntryDate.IsZero() {
		return ledger.JournalEntry{}, ledger.Validationf("entry date is required")
	}
	entryType := in.Type
	if entryType == "" {
		entryType = ledger.EntryManual
	}
	if !entryType.Valid() {
		return ledger.JournalEntry{}, ledger.Validationf("invalid entry type %q", in.Type)
	}
	if len(in.Lines) < 2 {
		return ledger.JournalEntry{}, ledger.Validationf("journal entry requires at least 2 lines, got %d", len(in.Lines))
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, l := range in.Lines {
		if l.AccountID == "" {
			return ledger.JournalEntry{}, ledger.Validationf("line %d: account is required", i+1)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return ledger.JournalEntry{}, ledger.Validationf("line %d: amounts must not be negative", i+1)
		}
		debitSet := !l.Debit.IsZero()
		creditSet := !l.Credit.IsZero()
		if debitSet == creditSet {
			return ledger.JournalEntry{}, ledger.Validationf("line %d: exactly one of debit and credit must be nonzero", i+1)
		}
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}
	// Exact decimal equality, no tolerance.
	if !totalDebit.Equal(totalCredit) {
		return ledger.JournalEntry{}, ledger.Validationf("entry is unbalanced: debits %s, credits %s", totalDebit, totalCredit)
	}
	if totalDebit.IsZero() {
		return ledger.JournalEntry{}, ledger.Validationf("entry total must be nonzero")
	}

	rate := in.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	if rate.IsNegative() {
		return ledger.JournalEntry{}, ledger.Validationf("exchange rate must be positive, got %s", rate)
	}
	prefix := in.NumberPrefix
	if prefix == "" {
		prefix = "JE"
	}

	entry := ledger.JournalEntry{
		ID:           ids.New(),
		EntryDate:    ledger.DateOnly(in.EntryDate),
		Description:  desc,
		Type:         entryType,
		Reference:    strings.TrimSpace(in.Reference),
		TotalDebit:   totalDebit,
		TotalCredit:  totalCredit,
		CurrencyID:   in.CurrencyID,
		ExchangeRate: rate,
		CreatedAt:    time.Now().UTC(),
	}

	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		for i, l := range in.Lines {
			if _, err := tx.Account(ctx, l.AccountID); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		if in.CurrencyID != "" {
			if _, err := tx.Currency(ctx, in.CurrencyID); err != nil {
				return err
			}
		}

		y, m, _ := entry.EntryDate.Date()
		n, err := tx.CountEntriesInMonth(ctx, y, m)
		if err != nil {
			return err
		}
		entry.EntryNumber = fmt.Sprintf("%s%d%02d%04d", prefix, y, int(m), n+1)

		lines := make([]ledger.JournalEntryLine, 0, len(in.Lines))
		for i, l := range in.Lines {
			lines = append(lines, ledger.JournalEntryLine{
				ID:           ids.New(),
				EntryID:      entry.ID,
				AccountID:    l.AccountID,
				CostCenterID: l.CostCenterID,
				ProjectID:    l.ProjectID,
				Description:  strings.TrimSpace(l.Description),
				DebitAmount:  l.Debit,
				CreditAmount: l.Credit,
				LineNumber:   i + 1,
			})
		}
		return tx.CreateEntry(ctx, &entry, lines)
	})
	if err != nil {
		return ledger.JournalEntry{}, err
	}

	obs.CountEntryCreated(string(entryType))
	_ = s.trail.LogAuditTrail(ctx, "journal_entries", entry.ID, "INSERT", nil, map[string]any{
		"entry_number": entry.EntryNumber,
		"entry_date":   entry.EntryDate.Format("2006-01-02"),
		"entry_type":   string(entryType),
		"total_debit":  totalDebit.String(),
		"total_credit": totalCredit.String(),
		"lines":        len(in.Lines),
	})
	return entry, nil
}

// Post finalizes a draft entry so it is authoritative in all balance
// computations. Fails with a StateError when the entry is already posted;
// the flip is compare-and-set so concurrent posts cannot both succeed.
func (s *Service) Post(ctx context.Context, id string) (ledger.JournalEntry, error) {
	postedAt := time.Now().UTC()
	var entry ledger.JournalEntry
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		if err := tx.MarkEntryPosted(ctx, id, postedAt); err != nil {
			return err
		}
		var err error
		entry, err = tx.Entry(ctx, id)
		return err
	})
	if err != nil {
		return ledger.JournalEntry{}, err
	}

	obs.CountEntryPosted()
	_ = s.trail.LogAuditTrail(ctx, "journal_entries", id, "POST",
		map[string]any{"is_posted": false},
		map[string]any{"is_posted": true, "posted_at": postedAt.Format(time.RFC3339)})
	return entry, nil
}

// Unpost reverts a posted entry to draft. Only privileged actors may call
// it; fails with a StateError when the entry is not currently posted.
func (s *Service) Unpost(ctx context.Context, id string) (ledger.JournalEntry, error) {
	actor, ok := audit.ActorFromContext(ctx)
	if !ok || !actor.Privileged {
		return ledger.JournalEntry{}, ErrUnauthorized
	}
	var entry ledger.JournalEntry
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		if err := tx.MarkEntryDraft(ctx, id); err != nil {
			return err
		}
		var err error
		entry, err = tx.Entry(ctx, id)
		return err
	})
	if err != nil {
		return ledger.JournalEntry{}, err
	}

	obs.CountEntryUnposted()
	_ = s.trail.LogAuditTrail(ctx, "journal_entries", id, "UNPOST",
		map[string]any{"is_posted": true},
		map[string]any{"is_posted": false})
	return entry, nil
}

// Delete removes a draft entry and all of its lines atomically. Fails with a
// StateError on a posted entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	var old ledger.JournalEntry
	err := s.store.WithinTx(ctx, func(tx ledger.Store) error {
		var err error
		old, err = tx.Entry(ctx, id)
		if err != nil {
			return err
		}
		return tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}

	_ = s.trail.LogAuditTrail(ctx, "journal_entries", id, "DELETE", map[string]any{
		"entry_number": old.EntryNumber,
		"total_debit":  old.TotalDebit.String(),
	}, nil)
	return nil
}

// Get returns one entry by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.JournalEntry, error) {
	return s.store.Entry(ctx, id)
}

// Lines returns the lines of an entry ordered by line number.
func (s *Service) Lines(ctx context.Context, entryID string) ([]ledger.JournalEntryLine, error) {
	return s.store.EntryLines(ctx, entryID)
}

// List returns entries matching the filter, most recent first.
func (s *Service) List(ctx context.Context, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	return s.store.Entries(ctx, f)
}
