package ledgerapi

import (
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/respond"
	"github.com/tinoosan/backoffice/internal/ledger"
	"github.com/tinoosan/backoffice/internal/service/account"
	"github.com/tinoosan/backoffice/internal/service/journal"
)

// --- Accounts ---

func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	var req accountRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	created, err := s.accounts.Create(r.Context(), ledger.Account{
		Code:        req.Code,
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		switch err {
		case account.ErrCodeExists, account.ErrNameExists:
			respond.Detail(w, http.StatusConflict, err.Error())
		default:
			respond.Detail(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	respond.JSON(w, http.StatusCreated, toAccountResponse(created))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("active") != "false"
	accs, err := s.accounts.List(r.Context(), onlyActive)
	if err != nil {
		respond.Error(w, err)
		return
	}
	items := make([]accountResponse, 0, len(accs))
	for _, a := range accs {
		items = append(items, toAccountResponse(a))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid account id")
		return
	}
	acc, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid account id")
		return
	}
	if err := s.accounts.Deactivate(r.Context(), id); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Transactions ---

func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	var req transactionRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	tx := req.toDomain()
	if tx.CreatedBy == "" {
		if p, ok := client.ProfileFrom(r.Context()); ok {
			tx.CreatedBy = p.Username
		}
	}
	posted, err := s.journal.Post(r.Context(), tx)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toTransactionResponse(posted))
}

// parseDate accepts RFC3339 or a plain calendar date.
func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f journal.Filter
	if v := q.Get("source"); v != "" {
		src := ledger.Source(v)
		if !ledger.ValidSource(src) {
			respond.Detail(w, http.StatusBadRequest, "invalid source "+v)
			return
		}
		f.Source = &src
	}
	f.Reference = q.Get("reference")
	if v := q.Get("from"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			respond.Detail(w, http.StatusBadRequest, "invalid from date")
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			respond.Detail(w, http.StatusBadRequest, "invalid to date")
			return
		}
		f.To = &t
	}
	if v := q.Get("account_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respond.Detail(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		f.AccountID = &id
	}
	txs, err := s.journal.List(r.Context(), f)
	if err != nil {
		respond.Error(w, err)
		return
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, toTransactionResponse(tx))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	tx, err := s.journal.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toTransactionResponse(tx))
}

// --- Periods ---

func (s *Server) postPeriod(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	var req periodRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	created, err := s.journal.CreatePeriod(r.Context(), ledger.Period{
		Name:        req.Name,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		FiscalYear:  req.FiscalYear,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toPeriodResponse(created))
}

func (s *Server) listPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := s.journal.ListPeriods(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	items := make([]periodResponse, 0, len(periods))
	for _, p := range periods {
		items = append(items, toPeriodResponse(p))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) periodAction(w http.ResponseWriter, r *http.Request, act func(uuid.UUID, string) (ledger.Period, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid period id")
		return
	}
	actor := ""
	if p, ok := client.ProfileFrom(r.Context()); ok {
		actor = p.Username
	}
	p, err := act(id, actor)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, toPeriodResponse(p))
}

func (s *Server) closePeriod(w http.ResponseWriter, r *http.Request) {
	s.periodAction(w, r, func(id uuid.UUID, actor string) (ledger.Period, error) {
		return s.journal.ClosePeriod(r.Context(), id, actor)
	})
}

func (s *Server) lockPeriod(w http.ResponseWriter, r *http.Request) {
	s.periodAction(w, r, func(id uuid.UUID, actor string) (ledger.Period, error) {
		return s.journal.LockPeriod(r.Context(), id, actor)
	})
}

func (s *Server) reopenPeriod(w http.ResponseWriter, r *http.Request) {
	s.periodAction(w, r, func(id uuid.UUID, _ string) (ledger.Period, error) {
		return s.journal.ReopenPeriod(r.Context(), id)
	})
}

// --- Reports ---

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now().UTC()
	asOf := now
	if v := q.Get("as_of"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			respond.Detail(w, http.StatusBadRequest, "invalid as_of date")
			return
		}
		asOf = t
	}
	from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	to := now
	if v := q.Get("from"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			respond.Detail(w, http.StatusBadRequest, "invalid from date")
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			respond.Detail(w, http.StatusBadRequest, "invalid to date")
			return
		}
		to = t
	}

	var out any
	var err error
	switch chi.URLParam(r, "kind") {
	case "trial-balance":
		out, err = s.reports.TrialBalance(r.Context(), asOf)
	case "balance-sheet":
		out, err = s.reports.BalanceSheet(r.Context(), asOf)
	case "income-statement":
		out, err = s.reports.IncomeStatement(r.Context(), from, to)
	case "general-ledger":
		var accountID *uuid.UUID
		if v := q.Get("account_id"); v != "" {
			id, perr := uuid.Parse(v)
			if perr != nil {
				respond.Detail(w, http.StatusBadRequest, "invalid account_id")
				return
			}
			accountID = &id
		}
		out, err = s.reports.GeneralLedger(r.Context(), accountID, from, to)
	case "cash-flow":
		out, err = s.reports.CashFlow(r.Context(), from, to)
	case "dashboard":
		out, err = s.reports.Dashboard(r.Context(), asOf)
	default:
		respond.Detail(w, http.StatusNotFound, "unknown report "+chi.URLParam(r, "kind"))
		return
	}
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, out)
}
