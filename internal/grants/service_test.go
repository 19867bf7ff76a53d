package grants

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/audit"
	"openbalance.org/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type harness struct {
	store *ledger.MemStore
	svc   *Service
	seq   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := ledger.NewMemStore()
	return &harness{store: store, svc: New(store, audit.Discard{})}
}

func (h *harness) account(t *testing.T, code, name string, typ ledger.AccountType) ledger.Account {
	t.Helper()
	acc := ledger.Account{ID: "acc-" + code, Code: code, Name: name, Type: typ, IsActive: true}
	if err := h.store.CreateAccount(context.Background(), &acc); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acc
}

func (h *harness) postedExpense(t *testing.T, on time.Time, expense, cash ledger.Account, amount, projectID string) {
	t.Helper()
	h.seq++
	amt := dec(amount)
	entry := ledger.JournalEntry{
		ID:           fmt.Sprintf("je-%d", h.seq),
		EntryNumber:  fmt.Sprintf("JE%d%02d%04d", on.Year(), int(on.Month()), h.seq),
		EntryDate:    ledger.DateOnly(on),
		Description:  "project expense",
		Type:         ledger.EntryManual,
		TotalDebit:   amt,
		TotalCredit:  amt,
		ExchangeRate: decimal.NewFromInt(1),
	}
	lines := []ledger.JournalEntryLine{
		{ID: entry.ID + "-l1", EntryID: entry.ID, AccountID: expense.ID, ProjectID: projectID, DebitAmount: amt, LineNumber: 1},
		{ID: entry.ID + "-l2", EntryID: entry.ID, AccountID: cash.ID, CreditAmount: amt, LineNumber: 2},
	}
	ctx := context.Background()
	if err := h.store.CreateEntry(ctx, &entry, lines); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if err := h.store.MarkEntryPosted(ctx, entry.ID, on); err != nil {
		t.Fatalf("post: %v", err)
	}
}

func (h *harness) grant(t *testing.T, number, project, amount string, start, end time.Time) ledger.Grant {
	t.Helper()
	g, err := h.svc.Create(context.Background(), CreateInput{
		GrantNumber: number,
		Title:       "Clean Water Initiative",
		DonorName:   "Example Foundation",
		ProjectID:   project,
		Amount:      dec(amount),
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		t.Fatalf("create grant: %v", err)
	}
	return g
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	base := CreateInput{
		GrantNumber: "G-001",
		Title:       "t",
		ProjectID:   "prj",
		Amount:      dec("1000.00"),
		StartDate:   date(2024, 1, 1),
		EndDate:     date(2024, 12, 31),
	}

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"no number", func(in *CreateInput) { in.GrantNumber = " " }},
		{"no project", func(in *CreateInput) { in.ProjectID = "" }},
		{"zero amount", func(in *CreateInput) { in.Amount = decimal.Zero }},
		{"inverted period", func(in *CreateInput) { in.StartDate, in.EndDate = in.EndDate, in.StartDate }},
	}
	for _, tc := range cases {
		in := base
		tc.mutate(&in)
		if _, err := h.svc.Create(ctx, in); !ledger.IsValidation(err) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}

	if _, err := h.svc.Create(ctx, base); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.svc.Create(ctx, base); !ledger.IsValidation(err) {
		t.Fatalf("duplicate number: expected ValidationError, got %v", err)
	}
}

func TestUtilizationOnTrackScenario(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	expense := h.account(t, "5100", "Program Supplies", ledger.AccountExpense)
	g := h.grant(t, "G-001", "prj-water", "10000.00", date(2024, 1, 1), date(2024, 12, 31))

	h.postedExpense(t, date(2024, 3, 10), expense, cash, "4000.00", "prj-water")
	// Different project and out-of-period spending never count.
	h.postedExpense(t, date(2024, 3, 11), expense, cash, "700.00", "prj-other")
	h.postedExpense(t, date(2025, 1, 5), expense, cash, "800.00", "prj-water")

	u, err := h.svc.Utilization(context.Background(), g.ID, date(2024, 5, 1))
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if !u.UtilizedAmount.Equal(dec("4000.00")) {
		t.Fatalf("utilized = %s, want 4000.00", u.UtilizedAmount)
	}
	if !u.UtilizationPercentage.Equal(dec("40")) {
		t.Fatalf("percentage = %s, want 40", u.UtilizationPercentage)
	}
	if !u.RemainingBalance.Equal(dec("6000.00")) {
		t.Fatalf("remaining = %s, want 6000.00", u.RemainingBalance)
	}
	if u.Status != StatusOnTrack {
		t.Fatalf("status = %q, want on_track", u.Status)
	}
	if len(u.ExpensesByAccount) != 1 || u.ExpensesByAccount[0].AccountCode != "5100" {
		t.Fatalf("expenses by account wrong: %+v", u.ExpensesByAccount)
	}
}

func TestUtilizationStatusThresholds(t *testing.T) {
	h := newHarness(t)
	cash := h.account(t, "1100", "Cash", ledger.AccountAsset)
	expense := h.account(t, "5100", "Program Supplies", ledger.AccountExpense)

	// Over budget regardless of timing.
	over := h.grant(t, "G-OVER", "prj-a", "1000.00", date(2024, 1, 1), date(2024, 12, 31))
	h.postedExpense(t, date(2024, 2, 1), expense, cash, "1200.00", "prj-a")
	u, err := h.svc.Utilization(context.Background(), over.ID, date(2024, 3, 1))
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if u.Status != StatusOverBudget {
		t.Fatalf("status = %q, want over_budget", u.Status)
	}
	if !u.RemainingBalance.Equal(dec("-200.00")) {
		t.Fatalf("remaining = %s, want -200.00", u.RemainingBalance)
	}

	// Low spend late in the grant: underspent.
	late := h.grant(t, "G-LATE", "prj-b", "1000.00", date(2024, 1, 1), date(2024, 12, 31))
	h.postedExpense(t, date(2024, 2, 5), expense, cash, "100.00", "prj-b")
	u, err = h.svc.Utilization(context.Background(), late.ID, date(2024, 12, 1))
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if u.Status != StatusUnderspent {
		t.Fatalf("status = %q, want underspent", u.Status)
	}

	// Same low spend early in the grant: still on track.
	u, err = h.svc.Utilization(context.Background(), late.ID, date(2024, 3, 1))
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	if u.Status != StatusOnTrack {
		t.Fatalf("status = %q, want on_track", u.Status)
	}
}

func TestExpirySweepIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	past := h.grant(t, "G-PAST", "prj-a", "500.00", date(2023, 1, 1), date(2023, 12, 31))
	current := h.grant(t, "G-CURRENT", "prj-b", "500.00", date(2024, 1, 1), date(2024, 12, 31))

	n, err := h.svc.ExpirySweep(ctx, date(2024, 6, 1))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d grants, want 1", n)
	}

	got, err := h.svc.Get(ctx, past.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != ledger.GrantExpired {
		t.Fatalf("status = %q, want expired", got.Status)
	}
	got, err = h.svc.Get(ctx, current.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != ledger.GrantActive {
		t.Fatalf("status = %q, want active", got.Status)
	}

	// Re-running changes nothing.
	n, err = h.svc.ExpirySweep(ctx, date(2024, 6, 2))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep expired %d grants, want 0", n)
	}
}

func TestExpiringWithin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	soon := h.grant(t, "G-SOON", "prj-a", "500.00", date(2024, 1, 1), date(2024, 6, 20))
	h.grant(t, "G-FAR", "prj-b", "500.00", date(2024, 1, 1), date(2024, 12, 31))

	got, err := h.svc.ExpiringWithin(ctx, date(2024, 6, 1), 30)
	if err != nil {
		t.Fatalf("expiring: %v", err)
	}
	if len(got) != 1 || got[0].ID != soon.ID {
		t.Fatalf("unexpected expiring grants: %+v", got)
	}
}

func TestCompleteRequiresActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	g := h.grant(t, "G-001", "prj-a", "500.00", date(2024, 1, 1), date(2024, 12, 31))
	if err := h.svc.Complete(ctx, g.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := h.svc.Complete(ctx, g.ID); !ledger.IsState(err) {
		t.Fatalf("expected StateError on double complete, got %v", err)
	}
}
