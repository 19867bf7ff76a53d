// Package httpapi is the thin HTTP layer over the ledger services. Handlers
// parse and validate transport concerns only; every rule lives in the
// services, and report payloads pass through unchanged.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"openbalance.org/internal/accounts"
	"openbalance.org/internal/assets"
	"openbalance.org/internal/budget"
	"openbalance.org/internal/currency"
	"openbalance.org/internal/grants"
	"openbalance.org/internal/journal"
	"openbalance.org/internal/ledger"
	"openbalance.org/internal/obs"
	"openbalance.org/internal/reports"
	"openbalance.org/internal/stream"
)

// ReadyProbe checks the backing store; nil DB means the in-memory store.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Services bundles the domain services the API exposes.
type Services struct {
	Accounts *accounts.Service
	Currency *currency.Service
	Journal  *journal.Service
	Reports  *reports.Service
	Budget   *budget.Service
	Grants   *grants.Service
	Assets   *assets.Service
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        Services
	events     *stream.Stream
	readyProbe ReadyProbe
	version    string
}

func New(svc Services, events *stream.Stream, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		events:     events,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/accounts", a.handleAccountsCollection)
	a.mux.HandleFunc("/v1/accounts/", a.handleAccountResource)
	a.mux.HandleFunc("/v1/currencies", a.handleCurrenciesCollection)
	a.mux.HandleFunc("/v1/currencies/", a.handleCurrencyResource)
	a.mux.HandleFunc("/v1/journal-entries", a.handleEntriesCollection)
	a.mux.HandleFunc("/v1/journal-entries/", a.handleEntryResource)
	a.mux.HandleFunc("/v1/budgets", a.handleBudgetsCollection)
	a.mux.HandleFunc("/v1/budgets/", a.handleBudgetResource)
	a.mux.HandleFunc("/v1/grants", a.handleGrantsCollection)
	a.mux.HandleFunc("/v1/grants/", a.handleGrantResource)
	a.mux.HandleFunc("/v1/fixed-assets", a.handleAssetsCollection)
	a.mux.HandleFunc("/v1/fixed-assets/", a.handleAssetResource)
	a.mux.HandleFunc("/v1/depreciation/run", a.handleDepreciationRun)

	a.mux.HandleFunc("/v1/reports/trial-balance", a.handleTrialBalance)
	a.mux.HandleFunc("/v1/reports/balance-sheet", a.handleBalanceSheet)
	a.mux.HandleFunc("/v1/reports/income-statement", a.handleIncomeStatement)
	a.mux.HandleFunc("/v1/reports/cash-flow", a.handleCashFlow)
	a.mux.HandleFunc("/v1/reports/summary", a.handleFinancialSummary)

	a.mux.HandleFunc("/v1/events/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the instrumented handler for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.mux)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "openbalance-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "openbalance-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{"error": msg}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleServiceError maps domain errors onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case ledger.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, err.Error())
	case ledger.IsState(err):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, journal.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func timeNow() time.Time { return time.Now().UTC() }

// parseDate reads a yyyy-mm-dd query parameter, falling back to def when
// absent.
func parseDate(raw string, def time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errors.New("dates must be yyyy-mm-dd")
	}
	return t, nil
}
