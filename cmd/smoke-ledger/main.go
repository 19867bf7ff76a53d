// smoke-ledger exercises the core bookkeeping flow end to end against the
// in-memory store: seed a small chart, post entries, then print the trial
// balance and cash flow and verify they reconcile.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/accounts"
	"openbalance.org/internal/audit"
	"openbalance.org/internal/journal"
	"openbalance.org/internal/ledger"
	"openbalance.org/internal/reports"
)

func main() {
	log.SetFlags(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := ledger.NewMemStore()
	trail := audit.Discard{}
	accSvc := accounts.New(store, trail)
	jrnSvc := journal.New(store, trail)
	rptSvc := reports.New(store)

	chart := map[string]string{}
	for _, a := range []struct {
		code, name string
		typ        ledger.AccountType
	}{
		{"1010", "Cash on Hand", ledger.AccountAsset},
		{"1020", "Bank Account", ledger.AccountAsset},
		{"2010", "Accounts Payable", ledger.AccountLiability},
		{"4010", "Grant Revenue", ledger.AccountRevenue},
		{"5010", "Program Expenses", ledger.AccountExpense},
	} {
		acc, err := accSvc.Create(ctx, accounts.CreateInput{Code: a.code, Name: a.name, Type: a.typ})
		if err != nil {
			log.Fatalf("create account %s: %v", a.code, err)
		}
		chart[a.code] = acc.ID
	}

	post := func(on time.Time, desc string, debitCode, creditCode, amount string) {
		entry, err := jrnSvc.Create(ctx, journal.CreateInput{
			EntryDate:   on,
			Description: desc,
			Type:        ledger.EntryManual,
			Lines: []journal.LineInput{
				{AccountID: chart[debitCode], Debit: decimal.RequireFromString(amount)},
				{AccountID: chart[creditCode], Credit: decimal.RequireFromString(amount)},
			},
		})
		if err != nil {
			log.Fatalf("create entry %q: %v", desc, err)
		}
		if _, err := jrnSvc.Post(ctx, entry.ID); err != nil {
			log.Fatalf("post entry %q: %v", desc, err)
		}
		fmt.Printf("posted %s  %-28s %10s\n", entry.EntryNumber, desc, amount)
	}

	jan := func(d int) time.Time { return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC) }
	post(jan(5), "Grant received in bank", "1020", "4010", "25000.00")
	post(jan(9), "Cash drawn from bank", "1010", "1020", "2000.00")
	post(jan(14), "Program supplies on credit", "5010", "2010", "4200.00")
	post(jan(20), "Supplier paid from bank", "2010", "1020", "4200.00")

	asOf := jan(31)
	tb, err := rptSvc.TrialBalance(ctx, asOf)
	if err != nil {
		log.Fatalf("trial balance: %v", err)
	}

	fmt.Printf("\nTrial balance as of %s\n", tb.AsOfDate)
	for _, row := range tb.Accounts {
		fmt.Printf("  %-6s %-24s %12s %12s\n", row.AccountCode, row.AccountName, row.DebitAmount, row.CreditAmount)
	}
	fmt.Printf("  %-31s %12s %12s  balanced=%v\n", "totals", tb.TotalDebit, tb.TotalCredit, tb.IsBalanced)
	if !tb.IsBalanced {
		log.Fatal("trial balance does not balance")
	}

	cf, err := rptSvc.CashFlow(ctx, jan(1), asOf)
	if err != nil {
		log.Fatalf("cash flow: %v", err)
	}

	fmt.Printf("\nCash flow %s .. %s\n", cf.StartDate, cf.EndDate)
	fmt.Printf("  operating  %12s\n", cf.Operating)
	fmt.Printf("  investing  %12s\n", cf.Investing)
	fmt.Printf("  financing  %12s\n", cf.Financing)
	fmt.Printf("  net change %12s (opening %s, closing %s)\n", cf.NetChange, cf.OpeningBalance, cf.ClosingBalance)
	if !cf.ReconciliationDifference.IsZero() {
		log.Fatalf("cash flow reconciliation difference: %s", cf.ReconciliationDifference)
	}

	fmt.Println("\nsmoke test passed")
}
