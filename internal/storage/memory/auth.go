package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
	id "github.com/tinoosan/backoffice/internal/identity"
	identitysvc "github.com/tinoosan/backoffice/internal/service/identity"
)

var (
	_ identitysvc.Repo   = (*AuthStore)(nil)
	_ identitysvc.Writer = (*AuthStore)(nil)
)

// AuthStore keeps users, roles, and refresh sessions.
type AuthStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]id.User
	roles    map[string]id.Role
	sessions map[uuid.UUID]id.RefreshSession
}

// NewAuthStore constructs an empty store.
func NewAuthStore() *AuthStore {
	return &AuthStore{
		users:    make(map[uuid.UUID]id.User),
		roles:    make(map[string]id.Role),
		sessions: make(map[uuid.UUID]id.RefreshSession),
	}
}

// SeedUser inserts a user directly, bypassing registration. Tests only.
func (s *AuthStore) SeedUser(u id.User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

func (s *AuthStore) UserByID(_ context.Context, userID uuid.UUID) (id.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return id.User{}, errs.ErrNotFound
	}
	return u, nil
}

// UserByIdentifier matches username or email, case-insensitive.
func (s *AuthStore) UserByIdentifier(_ context.Context, usernameOrEmail string) (id.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(usernameOrEmail)
	for _, u := range s.users {
		if strings.ToLower(u.Username) == needle || strings.ToLower(u.Email) == needle {
			return u, nil
		}
	}
	return id.User{}, errs.ErrNotFound
}

func (s *AuthStore) ListUsers(_ context.Context) ([]id.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *AuthStore) RoleByName(_ context.Context, name string) (id.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[strings.ToLower(name)]
	if !ok {
		return id.Role{}, errs.ErrNotFound
	}
	return r, nil
}

func (s *AuthStore) SessionByToken(_ context.Context, token string) (id.RefreshSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.Token == token {
			return sess, nil
		}
	}
	return id.RefreshSession{}, errs.ErrNotFound
}

func (s *AuthStore) HasSuperuser(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.IsSuperuser {
			return true, nil
		}
	}
	return false, nil
}

func (s *AuthStore) CreateUser(_ context.Context, u id.User) (id.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return u, nil
}

func (s *AuthStore) UpdateUser(_ context.Context, u id.User) (id.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return id.User{}, errs.ErrNotFound
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *AuthStore) CreateRole(_ context.Context, r id.Role) (id.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[strings.ToLower(r.Name)] = r
	return r, nil
}

func (s *AuthStore) CreateSession(_ context.Context, sess id.RefreshSession) (id.RefreshSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *AuthStore) RevokeSession(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return errs.ErrNotFound
	}
	sess.Active = false
	s.sessions[sessionID] = sess
	return nil
}

func (s *AuthStore) RevokeSessionsForUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid, sess := range s.sessions {
		if sess.UserID == userID && sess.Active {
			sess.Active = false
			s.sessions[sid] = sess
		}
	}
	return nil
}
