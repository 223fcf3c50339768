// Package postgres provides pgx-backed stores satisfying the repository and
// writer interfaces of the auth, ledger, and inventory services.
//
// It is intentionally small and explicit. Migrations that create the expected
// schema live under db/migrations. This package focuses on mapping between the
// domain entities and SQL rows and running the necessary transactions.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// open establishes a pgx pool and verifies connectivity.
func open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
