package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/assets"
	"openbalance.org/internal/budget"
	"openbalance.org/internal/grants"
	"openbalance.org/internal/ledger"
)

// --- budgets ---

type budgetLineRequest struct {
	AccountID      string `json:"account_id"`
	CostCenterID   string `json:"cost_center_id"`
	BudgetedAmount string `json:"budgeted_amount"`
	PeriodMonth    int    `json:"period_month"`
	Notes          string `json:"notes"`
}

type createBudgetRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	BudgetYear  int                 `json:"budget_year"`
	ProjectID   string              `json:"project_id"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Lines       []budgetLineRequest `json:"lines"`
}

func (a *API) handleBudgetsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req createBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	start, err := parseDate(req.StartDate, time.Time{})
	if err != nil || start.IsZero() {
		writeError(w, r, http.StatusBadRequest, "start_date must be yyyy-mm-dd")
		return
	}
	end, err := parseDate(req.EndDate, time.Time{})
	if err != nil || end.IsZero() {
		writeError(w, r, http.StatusBadRequest, "end_date must be yyyy-mm-dd")
		return
	}

	in := budget.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		BudgetYear:  req.BudgetYear,
		ProjectID:   req.ProjectID,
		StartDate:   start,
		EndDate:     end,
	}
	for _, l := range req.Lines {
		amount, err := parseAmount(l.BudgetedAmount)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "budgeted_amount must be a decimal number")
			return
		}
		in.Lines = append(in.Lines, budget.LineInput{
			AccountID:      l.AccountID,
			CostCenterID:   l.CostCenterID,
			BudgetedAmount: amount,
			PeriodMonth:    l.PeriodMonth,
			Notes:          l.Notes,
		})
	}

	b, err := a.svc.Budget.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/budgets/"+b.ID)
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) handleBudgetResource(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := splitResource(r.URL.Path, "/v1/budgets/")
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
		b, err := a.svc.Budget.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	case "variance-analysis":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		analysis, err := a.svc.Budget.Analyze(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// --- grants ---

type createGrantRequest struct {
	GrantNumber string `json:"grant_number"`
	Title       string `json:"title"`
	DonorName   string `json:"donor_name"`
	ProjectID   string `json:"project_id"`
	Amount      string `json:"amount"`
	CurrencyID  string `json:"currency_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (a *API) handleGrantsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createGrant(w, r)
	case http.MethodGet:
		a.listGrants(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createGrant(w http.ResponseWriter, r *http.Request) {
	var req createGrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "amount must be a decimal number")
		return
	}
	start, err := parseDate(req.StartDate, time.Time{})
	if err != nil || start.IsZero() {
		writeError(w, r, http.StatusBadRequest, "start_date must be yyyy-mm-dd")
		return
	}
	end, err := parseDate(req.EndDate, time.Time{})
	if err != nil || end.IsZero() {
		writeError(w, r, http.StatusBadRequest, "end_date must be yyyy-mm-dd")
		return
	}

	g, err := a.svc.Grants.Create(r.Context(), grants.CreateInput{
		GrantNumber: req.GrantNumber,
		Title:       req.Title,
		DonorName:   req.DonorName,
		ProjectID:   req.ProjectID,
		Amount:      amount,
		CurrencyID:  req.CurrencyID,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/grants/"+g.ID)
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) listGrants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("expiring_within_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			writeError(w, r, http.StatusBadRequest, "expiring_within_days must be a non-negative integer")
			return
		}
		items, err := a.svc.Grants.ExpiringWithin(r.Context(), timeNow(), days)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	f := ledger.GrantFilter{
		Status:    ledger.GrantStatus(q.Get("status")),
		ProjectID: q.Get("project_id"),
	}
	items, err := a.svc.Grants.List(r.Context(), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleGrantResource(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := splitResource(r.URL.Path, "/v1/grants/")
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
		g, err := a.svc.Grants.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	case "utilization":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		asOf, err := parseDate(r.URL.Query().Get("as_of"), ledger.DateOnly(timeNow()))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		u, err := a.svc.Grants.Utilization(r.Context(), id, asOf)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case "complete":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if err := a.svc.Grants.Complete(r.Context(), id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// --- fixed assets ---

type createAssetRequest struct {
	AssetNumber     string `json:"asset_number"`
	Name            string `json:"name"`
	PurchaseDate    string `json:"purchase_date"`
	PurchaseCost    string `json:"purchase_cost"`
	SalvageValue    string `json:"salvage_value"`
	UsefulLifeYears int    `json:"useful_life_years"`
	Method          string `json:"depreciation_method"`
}

func (a *API) handleAssetsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createAsset(w, r)
	case http.MethodGet:
		items, err := a.svc.Assets.List(r.Context(), r.URL.Query().Get("active") == "true")
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createAsset(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	purchaseDate, err := parseDate(req.PurchaseDate, time.Time{})
	if err != nil || purchaseDate.IsZero() {
		writeError(w, r, http.StatusBadRequest, "purchase_date must be yyyy-mm-dd")
		return
	}
	cost, err := parseAmount(req.PurchaseCost)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "purchase_cost must be a decimal number")
		return
	}
	salvage, err := parseAmount(req.SalvageValue)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "salvage_value must be a decimal number")
		return
	}

	asset, err := a.svc.Assets.Create(r.Context(), assets.CreateInput{
		AssetNumber:     req.AssetNumber,
		Name:            req.Name,
		PurchaseDate:    purchaseDate,
		PurchaseCost:    cost,
		SalvageValue:    salvage,
		UsefulLifeYears: req.UsefulLifeYears,
		Method:          ledger.DepreciationMethod(req.Method),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/fixed-assets/"+asset.ID)
	writeJSON(w, http.StatusCreated, asset)
}

func (a *API) handleAssetResource(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := splitResource(r.URL.Path, "/v1/fixed-assets/")
	if !ok || sub != "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	asset, err := a.svc.Assets.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// handleDepreciationRun triggers the monthly depreciation run for the given
// (or current) month.
func (a *API) handleDepreciationRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	asOf, err := parseDate(r.URL.Query().Get("as_of"), ledger.DateOnly(timeNow()))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.svc.Assets.MonthlyRun(r.Context(), asOf)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"as_of_date":      asOf.Format("2006-01-02"),
		"entries_created": len(items),
		"items":           items,
	})
}
