// Package authapi wires the HTTP surface of the auth service. Handlers stay
// thin and delegate to the identity service; token verification is local, the
// other services verify through GET /api/v1/auth/profile.
package authapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"log/slog"

	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/mw"
	id "github.com/tinoosan/backoffice/internal/identity"
	identitysvc "github.com/tinoosan/backoffice/internal/service/identity"
)

// Server wires handlers and middleware using chi.
type Server struct {
	svc    identitysvc.Service
	tokens *id.TokenIssuer
	log    *slog.Logger
	rt     *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(svc identitysvc.Service, tokens *id.TokenIssuer, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.Recoverer(logger))
	r.Use(mw.Metrics("auth"))

	s := &Server{svc: svc, tokens: tokens, log: logger, rt: r}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

func (s *Server) routes() {
	s.rt.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAccess)
			r.Get("/profile", s.profile)
			r.Post("/change-password", s.changePassword)
			r.With(client.RequirePermission("user:list")).Get("/users", s.listUsers)
			r.With(client.RequirePermission("user:create")).Post("/register", s.register)
			r.With(client.RequirePermission("user:update")).Put("/users/{id}/role", s.setRole)
		})
	})
	s.rt.Get("/health", s.health)
	s.rt.Method(http.MethodGet, "/metrics", mw.MetricsHandler())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
