package httpapi

import (
	"errors"
	"net/http"
	"time"

	"openbalance.org/internal/ledger"
)

func (a *API) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("as_of"), ledger.DateOnly(timeNow()))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.svc.Reports.TrialBalance(r.Context(), asOf)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("as_of"), ledger.DateOnly(timeNow()))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.svc.Reports.BalanceSheet(r.Context(), asOf)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleIncomeStatement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	from, to, err := periodParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.svc.Reports.IncomeStatement(r.Context(), from, to)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	from, to, err := periodParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.svc.Reports.CashFlow(r.Context(), from, to)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleFinancialSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	from, to, err := periodParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.svc.Reports.FinancialSummary(r.Context(), from, to)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// periodParams reads from/to, defaulting to the current calendar year.
func periodParams(r *http.Request) (from, to time.Time, err error) {
	now := ledger.DateOnly(timeNow())
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	from, err = parseDate(r.URL.Query().Get("from"), yearStart)
	if err != nil {
		return
	}
	to, err = parseDate(r.URL.Query().Get("to"), now)
	if err != nil {
		return
	}
	if to.Before(from) {
		err = errors.New("from must not be after to")
		return
	}
	return
}
