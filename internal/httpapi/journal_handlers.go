package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"openbalance.org/internal/journal"
	"openbalance.org/internal/ledger"
)

type entryLineRequest struct {
	AccountID    string `json:"account_id"`
	CostCenterID string `json:"cost_center_id"`
	ProjectID    string `json:"project_id"`
	Description  string `json:"description"`
	Debit        string `json:"debit_amount"`
	Credit       string `json:"credit_amount"`
}

type createEntryRequest struct {
	EntryDate    string             `json:"entry_date"`
	Description  string             `json:"description"`
	Reference    string             `json:"reference_number"`
	CurrencyID   string             `json:"currency_id"`
	ExchangeRate string             `json:"exchange_rate"`
	Lines        []entryLineRequest `json:"lines"`
}

type entryResponse struct {
	Entry ledger.JournalEntry       `json:"entry"`
	Lines []ledger.JournalEntryLine `json:"lines,omitempty"`
}

func (a *API) handleEntriesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createEntry(w, r)
	case http.MethodGet:
		a.listEntries(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleEntryResource(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := splitResource(r.URL.Path, "/v1/journal-entries/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getEntry(w, r, id)
		case http.MethodDelete:
			a.deleteEntry(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case "lines":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		lines, err := a.svc.Journal.Lines(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": lines})
	case "post":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		entry, err := a.svc.Journal.Post(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case "unpost":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		entry, err := a.svc.Journal.Unpost(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	entryDate, err := parseDate(req.EntryDate, time.Time{})
	if err != nil || entryDate.IsZero() {
		writeError(w, r, http.StatusBadRequest, "entry_date must be yyyy-mm-dd")
		return
	}

	in := journal.CreateInput{
		EntryDate:   entryDate,
		Description: req.Description,
		Type:        ledger.EntryManual,
		Reference:   req.Reference,
		CurrencyID:  req.CurrencyID,
	}
	if raw := strings.TrimSpace(req.ExchangeRate); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "exchange_rate must be a decimal number")
			return
		}
		in.ExchangeRate = rate
	}
	for _, l := range req.Lines {
		line := journal.LineInput{
			AccountID:    l.AccountID,
			CostCenterID: l.CostCenterID,
			ProjectID:    l.ProjectID,
			Description:  l.Description,
		}
		if line.Debit, err = parseAmount(l.Debit); err != nil {
			writeError(w, r, http.StatusBadRequest, "debit_amount must be a decimal number")
			return
		}
		if line.Credit, err = parseAmount(l.Credit); err != nil {
			writeError(w, r, http.StatusBadRequest, "credit_amount must be a decimal number")
			return
		}
		in.Lines = append(in.Lines, line)
	}

	entry, err := a.svc.Journal.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/journal-entries/"+entry.ID)
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) getEntry(w http.ResponseWriter, r *http.Request, id string) {
	entry, err := a.svc.Journal.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	lines, err := a.svc.Journal.Lines(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entryResponse{Entry: entry, Lines: lines})
}

func (a *API) deleteEntry(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.svc.Journal.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f ledger.EntryFilter
	if raw := q.Get("from"); raw != "" {
		t, err := parseDate(raw, time.Time{})
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		f.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseDate(raw, time.Time{})
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		f.To = &t
	}
	f.Type = ledger.EntryType(q.Get("type"))
	switch q.Get("status") {
	case "posted":
		f.PostedOnly = true
	case "draft":
		f.DraftOnly = true
	}

	items, err := a.svc.Journal.List(r.Context(), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// parseAmount treats an empty string as zero.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
