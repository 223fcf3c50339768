package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinoosan/backoffice/internal/boot"
	"github.com/tinoosan/backoffice/internal/broker"
	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/posapi"
	"github.com/tinoosan/backoffice/internal/service/sale"
	"github.com/tinoosan/backoffice/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := boot.Logger()
	slog.SetDefault(logger)

	store, err := sqlite.New(boot.Env("POS_DB_PATH", "pos.db"))
	if err != nil {
		logger.Error("failed to open sqlite store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	auth := client.NewAuthClient(boot.Env("AUTH_URL", "http://localhost:8081"), 5*time.Second)
	inv := client.NewInventoryClient(boot.Env("INVENTORY_URL", "http://localhost:8083"), 5*time.Second)
	ledgerc := client.NewLedgerClient(boot.Env("LEDGER_URL", "http://localhost:8082"), 10*time.Second)

	cfg := sale.DefaultWorkerConfig()
	cfg.ServiceToken = boot.Env("POS_SERVICE_TOKEN", "")
	worker := sale.NewWorker(store, store, ledgerc, cfg, logger)

	queue := broker.New(1024, broker.Config{
		Base:        time.Second,
		Cap:         30 * time.Second,
		MaxAttempts: 10,
		OnDrop:      worker.OnDrop,
	})

	// The queue is not durable, so pending and failed sales are re-enqueued
	// from the store on every boot.
	if n, err := worker.Resync(ctx, queue); err != nil {
		logger.Error("resync failed", "err", err)
	} else if n > 0 {
		logger.Info("re-enqueued unsynced sales", "count", n)
	}
	go queue.Run(ctx, worker.Handle)

	svc := sale.New(store, store, inv, queue, logger)
	srv := posapi.New(svc, auth, store, logger)

	boot.Serve(ctx, logger, "pos service", srv.Handler(), ":8084")
}
