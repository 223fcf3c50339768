package authapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/respond"
	id "github.com/tinoosan/backoffice/internal/identity"
	identitysvc "github.com/tinoosan/backoffice/internal/service/identity"
)

// requireAccess verifies the bearer token locally and attaches the profile.
func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := client.ParseBearer(r)
		if !ok {
			respond.Detail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		userID, _, err := s.tokens.Verify(token, id.TokenTypeAccess)
		if err != nil {
			respond.Detail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		profile, err := s.svc.Profile(r.Context(), userID)
		if err != nil {
			respond.Detail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if !profile.IsActive {
			respond.Detail(w, http.StatusUnauthorized, "User account is inactive")
			return
		}
		next.ServeHTTP(w, r.WithContext(client.WithProfile(r.Context(), profile, token)))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Device   string `json:"device,omitempty"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	var req loginRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	bundle, err := s.svc.Login(r.Context(), req.Username, req.Password, identitysvc.ClientInfo{
		Device:    req.Device,
		UserAgent: r.UserAgent(),
		IP:        r.RemoteAddr,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, bundle)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	var req refreshRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	bundle, err := s.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, bundle)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	p, ok := client.ProfileFrom(r.Context())
	if !ok {
		respond.Detail(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	p, _ := client.ProfileFrom(r.Context())
	var req changePasswordRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	if err := s.svc.ChangePassword(r.Context(), p.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"detail": "Password updated"})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": users})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	var req registerRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	profile, err := s.svc.Register(r.Context(), req.Username, req.Email, req.FullName, req.Password, req.Role)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, profile)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) setRole(w http.ResponseWriter, r *http.Request) {
	if !respond.RequireJSON(w, r) {
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Detail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req setRoleRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	profile, err := s.svc.SetRole(r.Context(), userID, req.Role)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, profile)
}
