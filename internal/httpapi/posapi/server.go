// Package posapi wires the HTTP surface of the POS service. A sale request
// runs the synchronous half of the pipeline and returns 201 with the sale in
// sync_status=pending; the worker owns the rest.
package posapi

import (
	"context"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"log/slog"

	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/mw"
	"github.com/tinoosan/backoffice/internal/service/sale"
)

// ReadyChecker is implemented by stores that can verify connectivity.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Server wires handlers and middleware using chi.
type Server struct {
	svc   sale.Service
	ready ReadyChecker
	log   *slog.Logger
	rt    *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(svc sale.Service, auth *client.AuthClient, ready ReadyChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.Recoverer(logger))
	r.Use(mw.Metrics("pos"))
	r.Use(client.RequireAuth(auth, "/health", "/readyz", "/metrics"))

	s := &Server{svc: svc, ready: ready, log: logger, rt: r}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

func (s *Server) routes() {
	s.rt.Route("/api/v1", func(r chi.Router) {
		r.With(client.RequirePermission("sale:create")).Post("/sales", s.postSale)
		r.With(client.RequirePermission("sale:list")).Get("/sales", s.listSales)
		r.With(client.RequirePermission("sale:read")).Get("/sales/{sale_number}", s.getSale)
		r.With(client.RequireRole("manager", "admin")).Post("/sales/{id}/void", s.voidSale)
		r.With(client.RequireRole("manager", "admin")).Post("/sales/{id}/refund", s.refundSale)
		r.With(client.RequirePermission("settings:read")).Get("/settings", s.getSettings)
		r.With(client.RequireRole("admin")).Put("/settings", s.putSettings)
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
