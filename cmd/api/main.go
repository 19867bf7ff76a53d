package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openbalance.org/internal/accounts"
	"openbalance.org/internal/assets"
	"openbalance.org/internal/audit"
	"openbalance.org/internal/budget"
	"openbalance.org/internal/currency"
	"openbalance.org/internal/grants"
	"openbalance.org/internal/httpapi"
	"openbalance.org/internal/journal"
	"openbalance.org/internal/ledger"
	"openbalance.org/internal/obs"
	"openbalance.org/internal/reports"
	"openbalance.org/internal/store/pg"
	"openbalance.org/internal/stream"
)

// Overridden at build time via -ldflags.
var (
	version = "0.3.0"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Store selection: postgres when a DSN is configured, in-memory otherwise.
	var (
		store ledger.Store
		db    *sql.DB
	)
	if dsn := os.Getenv("LEDGER_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		log.Println("LEDGER_PG_DSN not set, using in-memory store")
		store = ledger.NewMemStore()
	}

	events := stream.New()
	trail := audit.NewLog(events)

	grantSvc := grants.New(store, trail)
	assetSvc := assets.New(store, trail)
	svc := httpapi.Services{
		Accounts: accounts.New(store, trail),
		Currency: currency.New(store, trail),
		Journal:  journal.New(store, trail),
		Reports:  reports.New(store),
		Budget:   budget.New(store, trail),
		Grants:   grantSvc,
		Assets:   assetSvc,
	}

	api := httpapi.New(svc, events, httpapi.ReadyProbe{DB: db}, version)

	handler := httpapi.SecurityHeaders(
		httpapi.RequestID(
			httpapi.Actor(
				httpapi.Logging(
					httpapi.RateLimit(
						httpapi.MaxBodyBytes(api.Handler(), 1<<20),
						20, 10,
					),
				),
			),
		),
	)

	addr := os.Getenv("LEDGER_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	go expirySweepLoop(jobsCtx, grantSvc)
	go depreciationLoop(jobsCtx, assetSvc)

	log.Printf("Starting openbalance-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// expirySweepLoop flips overdue grants to expired once a day.
func expirySweepLoop(ctx context.Context, svc *grants.Service) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ExpirySweep(ctx, time.Now().UTC())
			if err != nil {
				log.Printf("grant expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("grant expiry sweep: %d grants expired", n)
			}
		}
	}
}

// depreciationLoop books monthly depreciation on the first day of each
// month. The run itself is idempotent per asset and month, so checking
// hourly is safe.
func depreciationLoop(ctx context.Context, svc *assets.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			if now.Day() != 1 {
				continue
			}
			items, err := svc.MonthlyRun(ctx, now)
			if err != nil {
				log.Printf("depreciation run: %v", err)
				continue
			}
			if len(items) > 0 {
				log.Printf("depreciation run: %d entries booked", len(items))
			}
		}
	}
}
