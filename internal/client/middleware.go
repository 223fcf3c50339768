package client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/identity"
)

type ctxKey string

const (
	ctxKeyProfile ctxKey = "authProfile"
	ctxKeyToken   ctxKey = "authToken"
)

// WithProfile attaches a verified profile and its raw token to the context.
// The auth service uses it after local token verification; peers go through
// RequireAuth instead.
func WithProfile(ctx context.Context, p identity.Profile, token string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyProfile, p)
	return context.WithValue(ctx, ctxKeyToken, token)
}

// ProfileFrom returns the user projection the middleware attached, if any.
func ProfileFrom(ctx context.Context) (identity.Profile, bool) {
	p, ok := ctx.Value(ctxKeyProfile).(identity.Profile)
	return p, ok
}

// TokenFrom returns the raw bearer token for forwarding to peers.
func TokenFrom(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(ctxKeyToken).(string)
	return t, ok
}

// ParseBearer extracts the token from an Authorization header.
func ParseBearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "Bearer ") && !strings.HasPrefix(h, "bearer ") {
		return "", false
	}
	return strings.TrimSpace(h[len("Bearer "):]), true
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"detail":"` + detail + `"}`))
}

func forbidden(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"detail":"` + detail + `"}`))
}

func unavailable(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(`{"detail":"` + detail + `"}`))
}

// RequireAuth verifies the bearer token with the auth service once per
// request and attaches the user projection and raw token to the context.
// Paths in allow skip verification (health, metrics).
func RequireAuth(auth *AuthClient, allow ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allow))
	for _, p := range allow {
		allowed[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := ParseBearer(r)
			if !ok {
				unauthorized(w, "Invalid or expired token")
				return
			}
			profile, err := auth.Profile(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, errs.ErrUnauthorized):
					unauthorized(w, "Invalid or expired token")
				case errors.Is(err, errs.ErrUnavailable):
					unavailable(w, "Auth service unavailable")
				default:
					unavailable(w, "Auth service unavailable")
				}
				return
			}
			if !profile.IsActive {
				unauthorized(w, "User account is inactive")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyProfile, profile)
			ctx = context.WithValue(ctx, ctxKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on one permission. Superusers always pass.
// The check is local to the projection; auth is never re-called here.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, ok := ProfileFrom(r.Context())
			if !ok {
				unauthorized(w, "Invalid or expired token")
				return
			}
			if !profile.HasPermission(perm) {
				forbidden(w, "Missing permission: "+perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route on role membership. Superusers always pass.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, ok := ProfileFrom(r.Context())
			if !ok {
				unauthorized(w, "Invalid or expired token")
				return
			}
			if !profile.IsSuperuser {
				match := false
				for _, role := range roles {
					if profile.Role == role {
						match = true
						break
					}
				}
				if !match {
					forbidden(w, "Requires role: "+strings.Join(roles, " or "))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
