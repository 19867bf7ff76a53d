package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/audit"
	"openbalance.org/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc     *Service
	store   *ledger.MemStore
	cash    ledger.Account
	revenue ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewMemStore()
	ctx := context.Background()

	cash := ledger.Account{ID: "acc-cash", Code: "1100", Name: "Cash", Type: ledger.AccountAsset, IsActive: true}
	revenue := ledger.Account{ID: "acc-rev", Code: "4000", Name: "Grant Revenue", Type: ledger.AccountRevenue, IsActive: true}
	if err := store.CreateAccount(ctx, &cash); err != nil {
		t.Fatalf("seed cash: %v", err)
	}
	if err := store.CreateAccount(ctx, &revenue); err != nil {
		t.Fatalf("seed revenue: %v", err)
	}
	return &fixture{
		svc:     New(store, audit.Discard{}),
		store:   store,
		cash:    cash,
		revenue: revenue,
	}
}

func (f *fixture) balancedInput(amount string) CreateInput {
	return CreateInput{
		EntryDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Description: "grant received",
		Lines: []LineInput{
			{AccountID: f.cash.ID, Debit: dec(amount)},
			{AccountID: f.revenue.ID, Credit: dec(amount)},
		},
	}
}

func TestCreateGeneratesMonthlyEntryNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.balancedInput("500.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.EntryNumber != "JE2024010001" {
		t.Fatalf("entry number = %q, want JE2024010001", first.EntryNumber)
	}
	if first.IsPosted {
		t.Fatal("new entries must start as drafts")
	}
	if !first.TotalDebit.Equal(first.TotalCredit) {
		t.Fatalf("totals differ: %s vs %s", first.TotalDebit, first.TotalCredit)
	}

	second, err := f.svc.Create(ctx, f.balancedInput("42.00"))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.EntryNumber != "JE2024010002" {
		t.Fatalf("entry number = %q, want JE2024010002", second.EntryNumber)
	}

	in := f.balancedInput("10.00")
	in.EntryDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	third, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("create third: %v", err)
	}
	if third.EntryNumber != "JE2024020001" {
		t.Fatalf("sequence must reset per month, got %q", third.EntryNumber)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"single line", func(in *CreateInput) { in.Lines = in.Lines[:1] }},
		{"unbalanced", func(in *CreateInput) { in.Lines[1].Credit = dec("499.99") }},
		{"both sides set", func(in *CreateInput) { in.Lines[0].Credit = dec("1.00") }},
		{"neither side set", func(in *CreateInput) { in.Lines[0].Debit = decimal.Zero }},
		{"negative amount", func(in *CreateInput) {
			in.Lines[0].Debit = dec("-500.00")
			in.Lines[1].Credit = dec("-500.00")
		}},
		{"zero total", func(in *CreateInput) {
			in.Lines[0].Debit = decimal.Zero
			in.Lines[0].Credit = decimal.Zero
			in.Lines[1].Credit = decimal.Zero
			in.Lines[1].Debit = decimal.Zero
		}},
		{"missing description", func(in *CreateInput) { in.Description = "  " }},
		{"missing account", func(in *CreateInput) { in.Lines[0].AccountID = "" }},
	}
	for _, tc := range cases {
		in := f.balancedInput("500.00")
		tc.mutate(&in)
		if _, err := f.svc.Create(ctx, in); !ledger.IsValidation(err) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}

	// Nothing may be written by rejected entries.
	entries, err := f.svc.List(ctx, ledger.EntryFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected entries leaked into the ledger: %d", len(entries))
	}
}

func TestCreateUnknownAccount(t *testing.T) {
	f := newFixture(t)
	in := f.balancedInput("500.00")
	in.Lines[0].AccountID = "missing"
	if _, err := f.svc.Create(context.Background(), in); !ledger.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestPostIsNotReentrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, f.balancedInput("500.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	posted, err := f.svc.Post(ctx, entry.ID)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if !posted.IsPosted || posted.PostedAt == nil {
		t.Fatalf("entry not marked posted: %+v", posted)
	}

	if _, err := f.svc.Post(ctx, entry.ID); !ledger.IsState(err) {
		t.Fatalf("second post: expected StateError, got %v", err)
	}
}

func TestConcurrentPostSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, f.balancedInput("500.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const posters = 8
	var wg sync.WaitGroup
	errs := make([]error, posters)
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Post(ctx, entry.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case ledger.IsState(err):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning post, got %d", wins)
	}
}

func TestUnpostRequiresPrivilege(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, f.balancedInput("500.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Post(ctx, entry.ID); err != nil {
		t.Fatalf("post: %v", err)
	}

	if _, err := f.svc.Unpost(ctx, entry.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous unpost: expected ErrUnauthorized, got %v", err)
	}

	plain := audit.ContextWithActor(ctx, audit.Actor{ID: "u1", Name: "Clerk"})
	if _, err := f.svc.Unpost(plain, entry.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unprivileged unpost: expected ErrUnauthorized, got %v", err)
	}

	admin := audit.ContextWithActor(ctx, audit.Actor{ID: "u2", Name: "Controller", Privileged: true})
	got, err := f.svc.Unpost(admin, entry.ID)
	if err != nil {
		t.Fatalf("privileged unpost: %v", err)
	}
	if got.IsPosted {
		t.Fatal("entry still posted after unpost")
	}

	// Unposting a draft is a state violation even for privileged actors.
	if _, err := f.svc.Unpost(admin, entry.ID); !ledger.IsState(err) {
		t.Fatalf("unpost draft: expected StateError, got %v", err)
	}
}

func TestDeleteDraftOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, f.balancedInput("500.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Post(ctx, entry.ID); err != nil {
		t.Fatalf("post: %v", err)
	}

	if err := f.svc.Delete(ctx, entry.ID); !ledger.IsState(err) {
		t.Fatalf("delete posted: expected StateError, got %v", err)
	}

	admin := audit.ContextWithActor(ctx, audit.Actor{ID: "u2", Privileged: true})
	if _, err := f.svc.Unpost(admin, entry.ID); err != nil {
		t.Fatalf("unpost: %v", err)
	}
	if err := f.svc.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}

	if _, err := f.svc.Get(ctx, entry.ID); !ledger.IsNotFound(err) {
		t.Fatalf("entry still readable after delete: %v", err)
	}
	if _, err := f.svc.Lines(ctx, entry.ID); !ledger.IsNotFound(err) {
		t.Fatalf("lines survived delete: %v", err)
	}
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, f.balancedInput("100.00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.balancedInput("200.00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Post(ctx, a.ID); err != nil {
		t.Fatalf("post: %v", err)
	}

	posted, err := f.svc.List(ctx, ledger.EntryFilter{PostedOnly: true})
	if err != nil {
		t.Fatalf("list posted: %v", err)
	}
	if len(posted) != 1 || posted[0].ID != a.ID {
		t.Fatalf("unexpected posted list: %+v", posted)
	}

	drafts, err := f.svc.List(ctx, ledger.EntryFilter{DraftOnly: true})
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].ID == a.ID {
		t.Fatalf("unexpected draft list: %+v", drafts)
	}
}
