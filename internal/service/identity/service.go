// Package identity implements the auth core: credential verification, token
// mint/refresh, profile projection, password changes, and the one-time
// superuser bootstrap.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/dictionary"
	"github.com/tinoosan/backoffice/internal/errs"
	id "github.com/tinoosan/backoffice/internal/identity"
	"github.com/tinoosan/backoffice/internal/slug"
)

// Repo defines read operations needed by the service.
type Repo interface {
	UserByID(ctx context.Context, userID uuid.UUID) (id.User, error)
	UserByIdentifier(ctx context.Context, usernameOrEmail string) (id.User, error)
	ListUsers(ctx context.Context) ([]id.User, error)
	RoleByName(ctx context.Context, name string) (id.Role, error)
	SessionByToken(ctx context.Context, token string) (id.RefreshSession, error)
	HasSuperuser(ctx context.Context) (bool, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateUser(ctx context.Context, u id.User) (id.User, error)
	UpdateUser(ctx context.Context, u id.User) (id.User, error)
	CreateRole(ctx context.Context, r id.Role) (id.Role, error)
	CreateSession(ctx context.Context, s id.RefreshSession) (id.RefreshSession, error)
	RevokeSession(ctx context.Context, sessionID uuid.UUID) error
	RevokeSessionsForUser(ctx context.Context, userID uuid.UUID) error
}

// TokenBundle is the login/refresh response payload.
type TokenBundle struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	User         id.Profile `json:"user"`
}

// ClientInfo carries optional device attribution for refresh sessions.
type ClientInfo struct {
	Device    string
	UserAgent string
	IP        string
}

// Service is the auth core surface used by the HTTP handlers.
type Service interface {
	Login(ctx context.Context, identifier, password string, client ClientInfo) (TokenBundle, error)
	Refresh(ctx context.Context, refreshToken string) (TokenBundle, error)
	Profile(ctx context.Context, userID uuid.UUID) (id.Profile, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
	Register(ctx context.Context, username, email, fullName, password, roleName string) (id.Profile, error)
	ListUsers(ctx context.Context) ([]id.Profile, error)
	SetRole(ctx context.Context, userID uuid.UUID, roleName string) (id.Profile, error)
	Bootstrap(ctx context.Context, adminUsername, adminEmail, adminPassword string) (created bool, err error)
}

type service struct {
	repo   Repo
	writer Writer
	tokens *id.TokenIssuer
}

func New(repo Repo, writer Writer, tokens *id.TokenIssuer) Service {
	return &service{repo: repo, writer: writer, tokens: tokens}
}

// ErrInvalidCredentials is returned for unknown identity, wrong password, and
// inactive users alike; the response never distinguishes them.
var ErrInvalidCredentials = errors.New("Invalid credentials")

// dummyHash keeps the bcrypt comparison on the unknown-user path so login
// latency does not reveal whether the username exists.
var dummyHash, _ = id.HashPassword("not-a-real-password")

func (s *service) Login(ctx context.Context, identifier, password string, client ClientInfo) (TokenBundle, error) {
	user, err := s.repo.UserByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			id.CheckPassword(dummyHash, password)
			return TokenBundle{}, fmt.Errorf("%w: %s", errs.ErrUnauthorized, ErrInvalidCredentials)
		}
		return TokenBundle{}, err
	}
	if !id.CheckPassword(user.PasswordHash, password) {
		return TokenBundle{}, fmt.Errorf("%w: %s", errs.ErrUnauthorized, ErrInvalidCredentials)
	}
	if !user.IsActive {
		return TokenBundle{}, fmt.Errorf("%w: %s", errs.ErrUnauthorized, ErrInvalidCredentials)
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	if _, err := s.writer.UpdateUser(ctx, user); err != nil {
		return TokenBundle{}, err
	}
	return s.issue(ctx, user, client)
}

func (s *service) issue(ctx context.Context, user id.User, client ClientInfo) (TokenBundle, error) {
	now := time.Now().UTC()
	access, err := s.tokens.MintAccess(user, now)
	if err != nil {
		return TokenBundle{}, err
	}
	refresh, err := s.tokens.MintRefresh(user, now)
	if err != nil {
		return TokenBundle{}, err
	}
	_, err = s.writer.CreateSession(ctx, id.RefreshSession{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
		Active:    true,
		Device:    client.Device,
		UserAgent: client.UserAgent,
		IP:        client.IP,
		CreatedAt: now,
	})
	if err != nil {
		return TokenBundle{}, err
	}
	return TokenBundle{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		User:         id.NewProfile(user),
	}, nil
}

// Refresh verifies the refresh token signature, type claim, expiry, session
// state, and the user's active flag, then rotates the session.
func (s *service) Refresh(ctx context.Context, refreshToken string) (TokenBundle, error) {
	userID, _, err := s.tokens.Verify(refreshToken, id.TokenTypeRefresh)
	if err != nil {
		return TokenBundle{}, fmt.Errorf("%w: %s", errs.ErrUnauthorized, err)
	}
	session, err := s.repo.SessionByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return TokenBundle{}, fmt.Errorf("%w: unknown refresh token", errs.ErrUnauthorized)
		}
		return TokenBundle{}, err
	}
	if !session.Active || session.UserID != userID || time.Now().UTC().After(session.ExpiresAt) {
		return TokenBundle{}, fmt.Errorf("%w: refresh session expired or revoked", errs.ErrUnauthorized)
	}
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return TokenBundle{}, err
	}
	if !user.IsActive {
		return TokenBundle{}, fmt.Errorf("%w: %s", errs.ErrInactiveUser, "User account is inactive")
	}
	if err := s.writer.RevokeSession(ctx, session.ID); err != nil {
		return TokenBundle{}, err
	}
	return s.issue(ctx, user, ClientInfo{Device: session.Device, UserAgent: session.UserAgent, IP: session.IP})
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (id.Profile, error) {
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return id.Profile{}, err
	}
	return id.NewProfile(user), nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes all refresh sessions so stolen refresh tokens die with the change.
func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !id.CheckPassword(user.PasswordHash, current) {
		return fmt.Errorf("%w: current password is incorrect", errs.ErrUnauthorized)
	}
	hash, err := id.HashPassword(next)
	if err != nil {
		return fmt.Errorf("%w: %s", errs.ErrInvalid, err)
	}
	user.PasswordHash = hash
	if _, err := s.writer.UpdateUser(ctx, user); err != nil {
		return err
	}
	return s.writer.RevokeSessionsForUser(ctx, userID)
}

func (s *service) Register(ctx context.Context, username, email, fullName, password, roleName string) (id.Profile, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return id.Profile{}, fmt.Errorf("%w: username and email are required", errs.ErrInvalid)
	}
	if !slug.IsSlug(slug.Slugify(username)) {
		return id.Profile{}, fmt.Errorf("%w: invalid username", errs.ErrInvalid)
	}
	hash, err := id.HashPassword(password)
	if err != nil {
		return id.Profile{}, fmt.Errorf("%w: %s", errs.ErrInvalid, err)
	}
	if _, err := s.repo.UserByIdentifier(ctx, username); err == nil {
		return id.Profile{}, fmt.Errorf("%w: username already taken", errs.ErrConflict)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return id.Profile{}, err
	}
	if _, err := s.repo.UserByIdentifier(ctx, email); err == nil {
		return id.Profile{}, fmt.Errorf("%w: email already taken", errs.ErrConflict)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return id.Profile{}, err
	}
	role, err := s.repo.RoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return id.Profile{}, fmt.Errorf("%w: unknown role %q", errs.ErrInvalid, roleName)
		}
		return id.Profile{}, err
	}
	user := id.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		Role:         role,
	}
	created, err := s.writer.CreateUser(ctx, user)
	if err != nil {
		return id.Profile{}, err
	}
	return id.NewProfile(created), nil
}

func (s *service) ListUsers(ctx context.Context) ([]id.Profile, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]id.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, id.NewProfile(u))
	}
	return out, nil
}

func (s *service) SetRole(ctx context.Context, userID uuid.UUID, roleName string) (id.Profile, error) {
	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return id.Profile{}, err
	}
	role, err := s.repo.RoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return id.Profile{}, fmt.Errorf("%w: unknown role %q", errs.ErrInvalid, roleName)
		}
		return id.Profile{}, err
	}
	user.Role = role
	updated, err := s.writer.UpdateUser(ctx, user)
	if err != nil {
		return id.Profile{}, err
	}
	return id.NewProfile(updated), nil
}

// Bootstrap seeds the default roles and, when no superuser exists, creates
// the admin from the configured credentials. Re-running is a no-op.
func (s *service) Bootstrap(ctx context.Context, adminUsername, adminEmail, adminPassword string) (bool, error) {
	for _, def := range dictionary.DefaultRoles() {
		if _, err := s.repo.RoleByName(ctx, def.Name); err == nil {
			continue
		} else if !errors.Is(err, errs.ErrNotFound) {
			return false, err
		}
		role := id.Role{ID: uuid.New(), Name: def.Name, Description: def.Description}
		for _, name := range def.Permissions {
			resource, action, ok := strings.Cut(name, ":")
			if !ok || !slug.IsSlug(resource) || !slug.IsSlug(action) {
				return false, fmt.Errorf("%w: malformed permission %q", errs.ErrInvalid, name)
			}
			role.Permissions = append(role.Permissions, id.Permission{
				ID:       uuid.New(),
				Name:     name,
				Resource: resource,
				Action:   action,
			})
		}
		if _, err := s.writer.CreateRole(ctx, role); err != nil {
			return false, err
		}
	}
	has, err := s.repo.HasSuperuser(ctx)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	hash, err := id.HashPassword(adminPassword)
	if err != nil {
		return false, fmt.Errorf("admin password: %w", err)
	}
	adminRole, err := s.repo.RoleByName(ctx, "admin")
	if err != nil {
		return false, err
	}
	_, err = s.writer.CreateUser(ctx, id.User{
		ID:           uuid.New(),
		Username:     adminUsername,
		Email:        adminEmail,
		FullName:     "Administrator",
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  true,
		CreatedAt:    time.Now().UTC(),
		Role:         adminRole,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
