package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/accounts"
	"openbalance.org/internal/currency"
	"openbalance.org/internal/ledger"
)

type createAccountRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	NameAlt  string `json:"name_alt"`
	Type     string `json:"account_type"`
	ParentID string `json:"parent_id"`
}

type updateAccountRequest struct {
	Name     *string `json:"name"`
	NameAlt  *string `json:"name_alt"`
	IsActive *bool   `json:"is_active"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAccount(w, r)
	case http.MethodGet:
		a.listAccounts(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := splitResource(r.URL.Path, "/v1/accounts/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getAccount(w, r, id)
		case http.MethodPut:
			a.updateAccount(w, r, id)
		case http.MethodDelete:
			a.deactivateAccount(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "hierarchy":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.accountHierarchy(w, r, id)
	case "balance":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.accountBalance(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acc, err := a.svc.Accounts.Create(r.Context(), accounts.CreateInput{
		Code:     req.Code,
		Name:     req.Name,
		NameAlt:  req.NameAlt,
		Type:     ledger.AccountType(req.Type),
		ParentID: req.ParentID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/accounts/"+acc.ID)
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.AccountFilter{
		Type:       ledger.AccountType(q.Get("type")),
		ActiveOnly: q.Get("active") == "true",
	}
	list, err := a.svc.Accounts.List(r.Context(), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request, id string) {
	acc, err := a.svc.Accounts.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request, id string) {
	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acc, err := a.svc.Accounts.Update(r.Context(), id, accounts.UpdateInput{
		Name:     req.Name,
		NameAlt:  req.NameAlt,
		IsActive: req.IsActive,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (a *API) deactivateAccount(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.svc.Accounts.Deactivate(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) accountHierarchy(w http.ResponseWriter, r *http.Request, id string) {
	if id == "root" {
		id = ""
	}
	nodes, err := a.svc.Accounts.Hierarchy(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": nodes})
}

func (a *API) accountBalance(w http.ResponseWriter, r *http.Request, id string) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"), ledger.DateOnly(timeNow()))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := a.svc.Reports.AccountBalance(r.Context(), id, asOf)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"as_of_date": asOf.Format("2006-01-02"),
		"balance":    bal,
	})
}

// --- currencies ---

type createCurrencyRequest struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	IsBase bool   `json:"is_base_currency"`
}

type upsertRateRequest struct {
	RateDate string `json:"rate_date"`
	Rate     string `json:"rate"`
}

func (a *API) handleCurrenciesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createCurrency(w, r)
	case http.MethodGet:
		list, err := a.svc.Currency.List(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCurrencyResource(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := splitResource(r.URL.Path, "/v1/currencies/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		cur, err := a.svc.Currency.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cur)
	case "base":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if err := a.svc.Currency.SetBase(r.Context(), id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "rates":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.upsertRate(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createCurrency(w http.ResponseWriter, r *http.Request) {
	var req createCurrencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	cur, err := a.svc.Currency.Create(r.Context(), currency.CreateInput{
		Code:   req.Code,
		Name:   req.Name,
		Symbol: req.Symbol,
		IsBase: req.IsBase,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/currencies/"+cur.ID)
	writeJSON(w, http.StatusCreated, cur)
}

func (a *API) upsertRate(w http.ResponseWriter, r *http.Request, currencyID string) {
	var req upsertRateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rateDate, err := parseDate(req.RateDate, time.Time{})
	if err != nil || rateDate.IsZero() {
		writeError(w, r, http.StatusBadRequest, "rate_date must be yyyy-mm-dd")
		return
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(req.Rate))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "rate must be a decimal number")
		return
	}
	out, err := a.svc.Currency.UpsertRate(r.Context(), currencyID, rateDate, rate)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// splitResource parses /prefix/{id} and /prefix/{id}/{sub} paths.
func splitResource(path, prefix string) (id, sub string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || rest == path {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimSuffix(rest, "/"), "/", 2)
	id = parts[0]
	if id == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		sub = parts[1]
		if strings.Contains(sub, "/") {
			return "", "", false
		}
	}
	return id, sub, true
}
