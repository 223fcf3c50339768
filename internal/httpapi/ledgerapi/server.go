// Package ledgerapi wires the HTTP surface of the ledger service. Handlers
// stay thin and delegate posting rules to the journal service; authorization
// rides on the cross-service middleware.
package ledgerapi

import (
	"context"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"log/slog"

	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/mw"
	"github.com/tinoosan/backoffice/internal/service/account"
	"github.com/tinoosan/backoffice/internal/service/journal"
	"github.com/tinoosan/backoffice/internal/service/report"
)

// ReadyChecker is implemented by stores that can verify connectivity.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Server wires handlers and middleware using chi.
type Server struct {
	accounts account.Service
	journal  journal.Service
	reports  report.Service
	ready    ReadyChecker
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware. ready may be nil
// for stores without connectivity checks.
func New(accounts account.Service, js journal.Service, reports report.Service, auth *client.AuthClient, ready ReadyChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.Recoverer(logger))
	r.Use(mw.Metrics("ledger"))
	r.Use(client.RequireAuth(auth, "/health", "/readyz", "/metrics"))

	s := &Server{accounts: accounts, journal: js, reports: reports, ready: ready, log: logger, rt: r}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

func (s *Server) routes() {
	s.rt.Route("/api/v1", func(r chi.Router) {
		r.With(client.RequirePermission("account:create")).Post("/accounts", s.postAccount)
		r.With(client.RequirePermission("account:list")).Get("/accounts", s.listAccounts)
		r.With(client.RequirePermission("account:read")).Get("/accounts/{id}", s.getAccount)
		r.With(client.RequirePermission("account:delete")).Delete("/accounts/{id}", s.deactivateAccount)

		r.With(client.RequirePermission("transaction:create")).Post("/transactions", s.postTransaction)
		r.With(client.RequirePermission("transaction:list")).Get("/transactions", s.listTransactions)
		r.With(client.RequirePermission("transaction:read")).Get("/transactions/{id}", s.getTransaction)

		r.With(client.RequirePermission("financial:read")).Get("/reports/{kind}", s.report)

		r.With(client.RequirePermission("financial:admin")).Post("/periods", s.postPeriod)
		r.With(client.RequirePermission("financial:read")).Get("/periods", s.listPeriods)
		r.With(client.RequirePermission("financial:admin")).Post("/periods/{id}/close", s.closePeriod)
		r.With(client.RequirePermission("financial:admin")).Post("/periods/{id}/lock", s.lockPeriod)
		r.With(client.RequirePermission("financial:admin")).Post("/periods/{id}/reopen", s.reopenPeriod)
	})
	s.rt.Get("/health", s.health)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", mw.MetricsHandler())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	if err := s.ready.Ready(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
