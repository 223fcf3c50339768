package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/backoffice/internal/errs"
	id "github.com/tinoosan/backoffice/internal/identity"
	identitysvc "github.com/tinoosan/backoffice/internal/service/identity"
)

var (
	_ identitysvc.Repo   = (*AuthStore)(nil)
	_ identitysvc.Writer = (*AuthStore)(nil)
)

// AuthStore holds a pgx pool over the auth schema.
type AuthStore struct {
	pool *pgxpool.Pool
}

// OpenAuth establishes a pool using the provided connection string.
func OpenAuth(ctx context.Context, dsn string) (*AuthStore, error) {
	pool, err := open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &AuthStore{pool: pool}, nil
}

func (s *AuthStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *AuthStore) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

const userCols = `u.id, u.username, u.email, u.full_name, u.password_hash, u.is_active, u.is_superuser, u.last_login, u.created_at, u.role_id`

// loadUser scans one user row and resolves its role and permissions.
func (s *AuthStore) loadUser(ctx context.Context, row pgx.Row) (id.User, error) {
	var u id.User
	var roleID uuid.UUID
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &u.LastLogin, &u.CreatedAt, &roleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return id.User{}, errs.ErrNotFound
		}
		return id.User{}, err
	}
	role, err := s.roleByID(ctx, roleID)
	if err != nil {
		return id.User{}, err
	}
	u.Role = role
	return u, nil
}

func (s *AuthStore) roleByID(ctx context.Context, roleID uuid.UUID) (id.Role, error) {
	var r id.Role
	err := s.pool.QueryRow(ctx, `select id, name, coalesce(description,'') from roles where id = $1`, roleID).
		Scan(&r.ID, &r.Name, &r.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return id.Role{}, errs.ErrNotFound
	}
	if err != nil {
		return id.Role{}, err
	}
	rows, err := s.pool.Query(ctx, `
		select p.id, p.name, p.resource, p.action
		from permissions p
		join role_permissions rp on rp.permission_id = p.id
		where rp.role_id = $1
		order by p.name
	`, roleID)
	if err != nil {
		return id.Role{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p id.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action); err != nil {
			return id.Role{}, err
		}
		r.Permissions = append(r.Permissions, p)
	}
	return r, rows.Err()
}

func (s *AuthStore) UserByID(ctx context.Context, userID uuid.UUID) (id.User, error) {
	return s.loadUser(ctx, s.pool.QueryRow(ctx, `select `+userCols+` from users u where u.id = $1`, userID))
}

func (s *AuthStore) UserByIdentifier(ctx context.Context, usernameOrEmail string) (id.User, error) {
	return s.loadUser(ctx, s.pool.QueryRow(ctx, `
		select `+userCols+` from users u
		where lower(u.username) = lower($1) or lower(u.email) = lower($1)
	`, usernameOrEmail))
}

func (s *AuthStore) ListUsers(ctx context.Context) ([]id.User, error) {
	rows, err := s.pool.Query(ctx, `select `+userCols+` from users u order by u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	type rawUser struct {
		u      id.User
		roleID uuid.UUID
	}
	raws := make([]rawUser, 0)
	for rows.Next() {
		var r rawUser
		if err := rows.Scan(&r.u.ID, &r.u.Username, &r.u.Email, &r.u.FullName, &r.u.PasswordHash, &r.u.IsActive, &r.u.IsSuperuser, &r.u.LastLogin, &r.u.CreatedAt, &r.roleID); err != nil {
			return nil, err
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	roles := make(map[uuid.UUID]id.Role)
	out := make([]id.User, 0, len(raws))
	for _, r := range raws {
		role, ok := roles[r.roleID]
		if !ok {
			role, err = s.roleByID(ctx, r.roleID)
			if err != nil {
				return nil, err
			}
			roles[r.roleID] = role
		}
		r.u.Role = role
		out = append(out, r.u)
	}
	return out, nil
}

func (s *AuthStore) RoleByName(ctx context.Context, name string) (id.Role, error) {
	var roleID uuid.UUID
	err := s.pool.QueryRow(ctx, `select id from roles where lower(name) = lower($1)`, name).Scan(&roleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return id.Role{}, errs.ErrNotFound
	}
	if err != nil {
		return id.Role{}, err
	}
	return s.roleByID(ctx, roleID)
}

func (s *AuthStore) SessionByToken(ctx context.Context, token string) (id.RefreshSession, error) {
	var sess id.RefreshSession
	err := s.pool.QueryRow(ctx, `
		select id, user_id, token, expires_at, active, coalesce(device,''), coalesce(user_agent,''), coalesce(ip,''), created_at
		from refresh_sessions where token = $1
	`, token).Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.ExpiresAt, &sess.Active, &sess.Device, &sess.UserAgent, &sess.IP, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return id.RefreshSession{}, errs.ErrNotFound
	}
	return sess, err
}

func (s *AuthStore) HasSuperuser(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `select exists(select 1 from users where is_superuser)`).Scan(&exists)
	return exists, err
}

func (s *AuthStore) CreateUser(ctx context.Context, u id.User) (id.User, error) {
	_, err := s.pool.Exec(ctx, `
		insert into users (id, username, email, full_name, password_hash, is_active, is_superuser, last_login, created_at, role_id)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, u.ID, u.Username, u.Email, u.FullName, u.PasswordHash, u.IsActive, u.IsSuperuser, u.LastLogin, u.CreatedAt, u.Role.ID)
	if err != nil {
		return id.User{}, err
	}
	return u, nil
}

func (s *AuthStore) UpdateUser(ctx context.Context, u id.User) (id.User, error) {
	ct, err := s.pool.Exec(ctx, `
		update users set email=$1, full_name=$2, password_hash=$3, is_active=$4, is_superuser=$5, last_login=$6, role_id=$7
		where id=$8
	`, u.Email, u.FullName, u.PasswordHash, u.IsActive, u.IsSuperuser, u.LastLogin, u.Role.ID, u.ID)
	if err != nil {
		return id.User{}, err
	}
	if ct.RowsAffected() == 0 {
		return id.User{}, errs.ErrNotFound
	}
	return u, nil
}

// CreateRole inserts the role, its permissions, and the join rows in one
// transaction. Permissions are shared across roles by name.
func (s *AuthStore) CreateRole(ctx context.Context, r id.Role) (id.Role, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return id.Role{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `insert into roles (id, name, description) values ($1,$2,nullif($3,''))`, r.ID, r.Name, r.Description); err != nil {
		return id.Role{}, err
	}
	for _, p := range r.Permissions {
		if _, err := tx.Exec(ctx, `
			insert into permissions (id, name, resource, action)
			values ($1,$2,$3,$4)
			on conflict (name) do nothing
		`, p.ID, p.Name, p.Resource, p.Action); err != nil {
			return id.Role{}, err
		}
		if _, err := tx.Exec(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where name = $2
		`, r.ID, p.Name); err != nil {
			return id.Role{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return id.Role{}, err
	}
	return r, nil
}

func (s *AuthStore) CreateSession(ctx context.Context, sess id.RefreshSession) (id.RefreshSession, error) {
	_, err := s.pool.Exec(ctx, `
		insert into refresh_sessions (id, user_id, token, expires_at, active, device, user_agent, ip, created_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''),nullif($8,''),$9)
	`, sess.ID, sess.UserID, sess.Token, sess.ExpiresAt, sess.Active, sess.Device, sess.UserAgent, sess.IP, sess.CreatedAt)
	if err != nil {
		return id.RefreshSession{}, err
	}
	return sess, nil
}

func (s *AuthStore) RevokeSession(ctx context.Context, sessionID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `update refresh_sessions set active=false where id=$1`, sessionID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *AuthStore) RevokeSessionsForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `update refresh_sessions set active=false where user_id=$1 and active`, userID)
	return err
}
