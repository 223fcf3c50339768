package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinoosan/backoffice/internal/boot"
	"github.com/tinoosan/backoffice/internal/httpapi/authapi"
	id "github.com/tinoosan/backoffice/internal/identity"
	identitysvc "github.com/tinoosan/backoffice/internal/service/identity"
	"github.com/tinoosan/backoffice/internal/storage/memory"
	pgstore "github.com/tinoosan/backoffice/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := boot.Logger()
	slog.SetDefault(logger)

	secret := boot.Env("JWT_SECRET", "")
	if secret == "" {
		secret = "dev-insecure-secret"
		logger.Warn("JWT_SECRET not set, using a development secret")
	}
	tokens := id.NewTokenIssuer(secret,
		boot.Duration("ACCESS_TOKEN_TTL", 30*time.Minute),
		boot.Duration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
	)

	var repo identitysvc.Repo
	var writer identitysvc.Writer
	var closeFn func()

	if dsn := boot.Env("DATABASE_URL", ""); dsn != "" {
		pg, err := pgstore.OpenAuth(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		repo, writer = pg, pg
		logger.Info("storage backend: postgres")
	} else {
		store := memory.NewAuthStore()
		repo, writer = store, store
		logger.Info("storage backend: memory")
	}

	svc := identitysvc.New(repo, writer, tokens)

	adminUser := boot.Env("ADMIN_USERNAME", "admin")
	created, err := svc.Bootstrap(ctx, adminUser,
		boot.Env("ADMIN_EMAIL", "admin@localhost"),
		boot.Env("ADMIN_PASSWORD", "admin123"),
	)
	if err != nil {
		logger.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}
	if created {
		logger.Info("bootstrap admin created", "username", adminUser)
	}

	boot.Serve(ctx, logger, "auth service", authapi.New(svc, tokens, logger).Handler(), ":8081")
	if closeFn != nil {
		closeFn()
	}
}
