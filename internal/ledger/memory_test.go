package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedEntry(t *testing.T, s Store, id string, on time.Time, amount string, debitAcc, creditAcc string) JournalEntry {
	t.Helper()
	amt := dec(amount)
	e := JournalEntry{
		ID:           id,
		EntryNumber:  "JE-" + id,
		EntryDate:    DateOnly(on),
		Description:  "seed",
		Type:         EntryManual,
		TotalDebit:   amt,
		TotalCredit:  amt,
		ExchangeRate: decimal.NewFromInt(1),
	}
	lines := []JournalEntryLine{
		{ID: id + "-l1", EntryID: id, AccountID: debitAcc, DebitAmount: amt, LineNumber: 1},
		{ID: id + "-l2", EntryID: id, AccountID: creditAcc, CreditAmount: amt, LineNumber: 2},
	}
	if err := s.CreateEntry(context.Background(), &e, lines); err != nil {
		t.Fatalf("seed entry %s: %v", id, err)
	}
	return e
}

func TestWithinTxRollsBackEverything(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx Store) error {
		acc := Account{ID: "a1", Code: "1000", Name: "Cash", Type: AccountAsset, IsActive: true}
		if err := tx.CreateAccount(ctx, &acc); err != nil {
			return err
		}
		g := Grant{ID: "g1", GrantNumber: "G-1", Title: "t", ProjectID: "p", Amount: dec("10.00"),
			StartDate: date(2024, 1, 1), EndDate: date(2024, 12, 31), Status: GrantActive}
		if err := tx.CreateGrant(ctx, &g); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := s.Account(ctx, "a1"); !IsNotFound(err) {
		t.Fatalf("account survived rollback: %v", err)
	}
	if _, err := s.Grant(ctx, "g1"); !IsNotFound(err) {
		t.Fatalf("grant survived rollback: %v", err)
	}
}

func TestWithinTxCommits(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx Store) error {
		acc := Account{ID: "a1", Code: "1000", Name: "Cash", Type: AccountAsset, IsActive: true}
		return tx.CreateAccount(ctx, &acc)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if _, err := s.Account(ctx, "a1"); err != nil {
		t.Fatalf("committed account missing: %v", err)
	}
}

func TestNestedWithinTxJoins(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx Store) error {
		return tx.WithinTx(ctx, func(inner Store) error {
			acc := Account{ID: "a1", Code: "1000", Name: "Cash", Type: AccountAsset, IsActive: true}
			return inner.CreateAccount(ctx, &acc)
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}
	if _, err := s.Account(ctx, "a1"); err != nil {
		t.Fatalf("account missing after nested commit: %v", err)
	}
}

func TestMarkEntryPostedIsCompareAndSet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, a := range []Account{
		{ID: "cash", Code: "1100", Name: "Cash", Type: AccountAsset, IsActive: true},
		{ID: "rev", Code: "4000", Name: "Revenue", Type: AccountRevenue, IsActive: true},
	} {
		acc := a
		if err := s.CreateAccount(ctx, &acc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	e := seedEntry(t, s, "je1", date(2024, 1, 15), "100.00", "cash", "rev")

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(tx Store) error {
				return tx.MarkEntryPosted(ctx, e.ID, time.Now().UTC())
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if IsState(err) {
				losses++
			}
		}()
	}
	wg.Wait()

	if wins != 1 || losses != workers-1 {
		t.Fatalf("wins=%d losses=%d, want 1/%d", wins, losses, workers-1)
	}

	if err := s.MarkEntryDraft(ctx, e.ID); err != nil {
		t.Fatalf("unpost: %v", err)
	}
	if err := s.MarkEntryDraft(ctx, e.ID); !IsState(err) {
		t.Fatalf("double unpost: expected StateError, got %v", err)
	}
}

func TestDeleteEntryCascadesAndGuardsPosted(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, a := range []Account{
		{ID: "cash", Code: "1100", Name: "Cash", Type: AccountAsset, IsActive: true},
		{ID: "rev", Code: "4000", Name: "Revenue", Type: AccountRevenue, IsActive: true},
	} {
		acc := a
		if err := s.CreateAccount(ctx, &acc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	e := seedEntry(t, s, "je1", date(2024, 1, 15), "100.00", "cash", "rev")

	if err := s.MarkEntryPosted(ctx, e.ID, time.Now().UTC()); err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := s.DeleteEntry(ctx, e.ID); !IsState(err) {
		t.Fatalf("delete posted: expected StateError, got %v", err)
	}

	if err := s.MarkEntryDraft(ctx, e.ID); err != nil {
		t.Fatalf("unpost: %v", err)
	}
	if err := s.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := s.Entry(ctx, e.ID); !IsNotFound(err) {
		t.Fatalf("entry survived delete: %v", err)
	}
	if has, err := s.AccountHasLines(ctx, "cash"); err != nil || has {
		t.Fatalf("lines survived cascade: has=%v err=%v", has, err)
	}
}

func TestRateFloorLookup(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	cur := Currency{ID: "eur", Code: "EUR", Name: "Euro", IsActive: true}
	if err := s.CreateCurrency(ctx, &cur); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i, day := range []time.Time{date(2024, 1, 1), date(2024, 1, 10)} {
		r := ExchangeRate{ID: string(rune('a' + i)), CurrencyID: "eur", RateDate: day, Rate: dec("1.1").Add(decimal.NewFromInt(int64(i)))}
		if err := s.UpsertExchangeRate(ctx, &r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	got, err := s.RateOnOrBefore(ctx, "eur", date(2024, 1, 9))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !got.RateDate.Equal(date(2024, 1, 1)) {
		t.Fatalf("floored to %s, want 2024-01-01", got.RateDate)
	}

	if _, err := s.RateOnOrBefore(ctx, "eur", date(2023, 12, 31)); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSetBaseCurrencySwapsFlag(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	usd := Currency{ID: "usd", Code: "USD", Name: "US Dollar", IsBaseCurrency: true, IsActive: true}
	eur := Currency{ID: "eur", Code: "EUR", Name: "Euro", IsActive: true}
	if err := s.CreateCurrency(ctx, &usd); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.CreateCurrency(ctx, &eur); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := s.SetBaseCurrency(ctx, "eur"); err != nil {
		t.Fatalf("set base: %v", err)
	}
	all, err := s.Currencies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	baseCount := 0
	for _, c := range all {
		if c.IsBaseCurrency {
			baseCount++
			if c.ID != "eur" {
				t.Fatalf("wrong base currency: %s", c.ID)
			}
		}
	}
	if baseCount != 1 {
		t.Fatalf("base flag count = %d, want 1", baseCount)
	}
}

func TestCountEntriesInMonth(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, a := range []Account{
		{ID: "cash", Code: "1100", Name: "Cash", Type: AccountAsset, IsActive: true},
		{ID: "rev", Code: "4000", Name: "Revenue", Type: AccountRevenue, IsActive: true},
	} {
		acc := a
		if err := s.CreateAccount(ctx, &acc); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	seedEntry(t, s, "je1", date(2024, 1, 5), "10.00", "cash", "rev")
	seedEntry(t, s, "je2", date(2024, 1, 25), "10.00", "cash", "rev")
	seedEntry(t, s, "je3", date(2024, 2, 5), "10.00", "cash", "rev")

	n, err := s.CountEntriesInMonth(ctx, 2024, time.January)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("january count = %d, want 2", n)
	}
}
