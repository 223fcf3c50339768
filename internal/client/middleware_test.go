package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/identity"
)

// fakeAuth serves the profile endpoint the way authd does: the token is the
// map key, anything else is a 401.
func fakeAuth(t *testing.T, profiles map[string]identity.Profile) *AuthClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/profile" {
			http.NotFound(w, r)
			return
		}
		token, ok := ParseBearer(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		p, ok := profiles[token]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p)
	}))
	t.Cleanup(srv.Close)
	return NewAuthClient(srv.URL, 2*time.Second)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func do(t *testing.T, h http.Handler, token string, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body.Detail
}

func TestRequireAuthAttachesProfile(t *testing.T) {
	profile := identity.Profile{ID: uuid.New(), Username: "cashier1", Role: "cashier", IsActive: true}
	auth := fakeAuth(t, map[string]identity.Profile{"good": profile})

	var gotProfile identity.Profile
	var gotToken string
	h := RequireAuth(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProfile, _ = ProfileFrom(r.Context())
		gotToken, _ = TokenFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := do(t, h, "good", "/api/v1/sales")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotProfile.Username != "cashier1" {
		t.Fatalf("profile username = %q", gotProfile.Username)
	}
	if gotToken != "good" {
		t.Fatalf("token = %q, want the forwarded bearer token", gotToken)
	}
}

func TestRequireAuthAllowlist(t *testing.T) {
	auth := fakeAuth(t, nil)
	h := RequireAuth(auth, "/health")(okHandler())

	if rec := do(t, h, "", "/health"); rec.Code != http.StatusOK {
		t.Fatalf("allowlisted path status = %d, want 200", rec.Code)
	}
	if rec := do(t, h, "", "/api/v1/sales"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unlisted path status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	active := identity.Profile{Username: "u", IsActive: true}
	inactive := identity.Profile{Username: "gone", IsActive: false}
	auth := fakeAuth(t, map[string]identity.Profile{"active": active, "inactive": inactive})
	h := RequireAuth(auth)(okHandler())

	rec := do(t, h, "", "/x")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("WWW-Authenticate = %q, want Bearer", got)
	}
	if got := detail(t, rec); got != "Invalid or expired token" {
		t.Fatalf("detail = %q", got)
	}

	rec = do(t, h, "unknown-token", "/x")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}

	rec = do(t, h, "inactive", "/x")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("inactive status = %d, want 401", rec.Code)
	}
	if got := detail(t, rec); got != "User account is inactive" {
		t.Fatalf("detail = %q", got)
	}
}

func TestRequireAuthServiceDown(t *testing.T) {
	srv := httptest.NewServer(okHandler())
	srv.Close() // connection refused from here on
	auth := NewAuthClient(srv.URL, time.Second)
	h := RequireAuth(auth)(okHandler())

	rec := do(t, h, "any", "/x")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := detail(t, rec); got != "Auth service unavailable" {
		t.Fatalf("detail = %q", got)
	}
}

func TestRequirePermission(t *testing.T) {
	cashier := identity.Profile{Username: "cashier1", Role: "cashier",
		Permissions: []string{"sales:create"}, IsActive: true}
	super := identity.Profile{Username: "root", IsActive: true, IsSuperuser: true}
	auth := fakeAuth(t, map[string]identity.Profile{"cashier": cashier, "super": super})

	h := RequireAuth(auth)(RequirePermission("sales:create")(okHandler()))
	if rec := do(t, h, "cashier", "/x"); rec.Code != http.StatusOK {
		t.Fatalf("granted permission status = %d, want 200", rec.Code)
	}

	h = RequireAuth(auth)(RequirePermission("periods:close")(okHandler()))
	rec := do(t, h, "cashier", "/x")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing permission status = %d, want 403", rec.Code)
	}
	if got := detail(t, rec); got != "Missing permission: periods:close" {
		t.Fatalf("detail = %q", got)
	}
	if rec := do(t, h, "super", "/x"); rec.Code != http.StatusOK {
		t.Fatalf("superuser bypass status = %d, want 200", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	cashier := identity.Profile{Username: "cashier1", Role: "cashier", IsActive: true}
	manager := identity.Profile{Username: "manager1", Role: "manager", IsActive: true}
	auth := fakeAuth(t, map[string]identity.Profile{"cashier": cashier, "manager": manager})

	h := RequireAuth(auth)(RequireRole("manager", "admin")(okHandler()))
	if rec := do(t, h, "manager", "/x"); rec.Code != http.StatusOK {
		t.Fatalf("manager status = %d, want 200", rec.Code)
	}
	rec := do(t, h, "cashier", "/x")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cashier status = %d, want 403", rec.Code)
	}
	if got := detail(t, rec); got != "Requires role: manager or admin" {
		t.Fatalf("detail = %q", got)
	}
}

func TestParseBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := ParseBearer(req); ok {
		t.Fatal("expected no token on empty header")
	}
	req.Header.Set("Authorization", "Basic abc")
	if _, ok := ParseBearer(req); ok {
		t.Fatal("expected no token for non-bearer scheme")
	}
	req.Header.Set("Authorization", "Bearer tok123")
	token, ok := ParseBearer(req)
	if !ok || token != "tok123" {
		t.Fatalf("token = %q ok=%v", token, ok)
	}
}
