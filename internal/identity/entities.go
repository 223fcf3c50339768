package identity

import (
	"time"

	"github.com/google/uuid"
)

// Permission names a single grant as "resource:action", e.g. "account:create".
// Resource and Action are the denormalized halves of Name.
type Permission struct {
	ID       uuid.UUID
	Name     string
	Resource string
	Action   string
}

// Role groups permissions under a unique name.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	Permissions []Permission
}

// User is an authenticated principal. Password material never leaves the auth
// service; peers only ever see the Profile projection.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	Role         Role
	// Direct permissions granted outside the role.
	Permissions []Permission
}

// EffectivePermissions returns the union of the user's direct permissions and
// the permissions of the user's role, deduplicated by name.
func (u User) EffectivePermissions() []string {
	seen := make(map[string]struct{}, len(u.Permissions)+len(u.Role.Permissions))
	out := make([]string, 0, len(u.Permissions)+len(u.Role.Permissions))
	add := func(ps []Permission) {
		for _, p := range ps {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p.Name)
		}
	}
	add(u.Permissions)
	add(u.Role.Permissions)
	return out
}

// HasPermission reports whether the user holds perm directly or via role.
// Superusers bypass all permission checks.
func (u User) HasPermission(perm string) bool {
	if u.IsSuperuser {
		return true
	}
	for _, p := range u.Permissions {
		if p.Name == perm {
			return true
		}
	}
	for _, p := range u.Role.Permissions {
		if p.Name == perm {
			return true
		}
	}
	return false
}

// RefreshSession tracks an issued refresh token so it can be revoked.
type RefreshSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	Active    bool
	Device    string
	UserAgent string
	IP        string
	CreatedAt time.Time
}

// Profile is the projection of a user returned by GET /profile and attached
// to request contexts by the cross-service middleware.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
}

// NewProfile builds the wire projection for a user.
func NewProfile(u User) Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		Role:        u.Role.Name,
		Permissions: u.EffectivePermissions(),
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
	}
}

// HasPermission mirrors User.HasPermission for the projection peers hold.
func (p Profile) HasPermission(perm string) bool {
	if p.IsSuperuser {
		return true
	}
	for _, name := range p.Permissions {
		if name == perm {
			return true
		}
	}
	return false
}
