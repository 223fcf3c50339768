package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/boot"
	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/dictionary"
	"github.com/tinoosan/backoffice/internal/httpapi/ledgerapi"
	"github.com/tinoosan/backoffice/internal/ledger"
	"github.com/tinoosan/backoffice/internal/service/account"
	"github.com/tinoosan/backoffice/internal/service/journal"
	"github.com/tinoosan/backoffice/internal/service/report"
	"github.com/tinoosan/backoffice/internal/storage/memory"
	pgstore "github.com/tinoosan/backoffice/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := boot.Logger()
	slog.SetDefault(logger)

	var accounts account.Service
	var journals journal.Service
	var reports report.Service
	var ready ledgerapi.ReadyChecker
	var closeFn func()

	if dsn := boot.Env("DATABASE_URL", ""); dsn != "" {
		pg, err := pgstore.OpenLedger(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		accounts = account.New(pg, pg)
		journals = journal.New(pg, pg)
		reports = report.New(pg)
		ready = pg
		logger.Info("storage backend: postgres")
	} else {
		store := memory.NewLedgerStore()
		seedChart(store, logger)
		accounts = account.New(store, store)
		journals = journal.New(store, store)
		reports = report.New(store)
		logger.Info("storage backend: memory")
	}

	auth := client.NewAuthClient(boot.Env("AUTH_URL", "http://localhost:8081"), 5*time.Second)
	srv := ledgerapi.New(accounts, journals, reports, auth, ready, logger)

	boot.Serve(ctx, logger, "ledger service", srv.Handler(), ":8082")
	if closeFn != nil {
		closeFn()
	}
}

// seedChart loads the default retail chart of accounts into the in-memory
// store so a fresh dev instance can accept postings immediately.
func seedChart(store *memory.LedgerStore, logger *slog.Logger) {
	now := time.Now().UTC()
	for _, def := range dictionary.DefaultChart() {
		store.SeedAccount(ledger.Account{
			ID:          uuid.New(),
			Code:        def.Code,
			Name:        def.Name,
			Type:        def.Type,
			Description: def.Label,
			Active:      true,
			CreatedAt:   now,
		})
	}
	logger.Info("seeded default chart of accounts", "accounts", len(dictionary.DefaultChart()))
}
