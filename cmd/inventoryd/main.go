package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/backoffice/internal/boot"
	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/httpapi/invapi"
	"github.com/tinoosan/backoffice/internal/inventory"
	"github.com/tinoosan/backoffice/internal/service/stock"
	"github.com/tinoosan/backoffice/internal/storage/memory"
	pgstore "github.com/tinoosan/backoffice/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := boot.Logger()
	slog.SetDefault(logger)

	var svc stock.Service
	var ready invapi.ReadyChecker
	var closeFn func()

	if dsn := boot.Env("DATABASE_URL", ""); dsn != "" {
		pg, err := pgstore.OpenInventory(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		svc = stock.New(pg, pg)
		ready = pg
		logger.Info("storage backend: postgres")
	} else {
		store := memory.NewInventoryStore()
		seedDemoCatalog(store, logger)
		svc = stock.New(store, store)
		logger.Info("storage backend: memory")
	}

	auth := client.NewAuthClient(boot.Env("AUTH_URL", "http://localhost:8081"), 5*time.Second)
	srv := invapi.New(svc, auth, ready, logger)

	boot.Serve(ctx, logger, "inventory service", srv.Handler(), ":8083")
	if closeFn != nil {
		closeFn()
	}
}

// seedDemoCatalog gives a fresh dev instance a couple of sellable products.
func seedDemoCatalog(store *memory.InventoryStore, logger *slog.Logger) {
	now := time.Now().UTC()
	demo := []struct {
		sku, name  string
		cost, sell string
		sizes      []string
		qty        int64
	}{
		{"TSH-001", "Plain T-Shirt", "4.50", "12.00", []string{"S", "M", "L"}, 25},
		{"MUG-001", "Coffee Mug", "2.10", "8.50", []string{inventory.DefaultSize}, 40},
		{"CAP-001", "Baseball Cap", "3.80", "15.00", []string{inventory.DefaultSize}, 12},
	}
	for _, d := range demo {
		p := inventory.Product{
			ID:           uuid.New(),
			SKU:          d.sku,
			Name:         d.name,
			CostPrice:    decimal.RequireFromString(d.cost),
			SellingPrice: decimal.RequireFromString(d.sell),
			Active:       true,
			CreatedAt:    now,
		}
		store.SeedProduct(p)
		for _, size := range d.sizes {
			store.SeedStockItem(inventory.StockItem{
				ProductID:    p.ID,
				Size:         size,
				Quantity:     d.qty,
				ReorderLevel: 5,
				MaxLevel:     100,
			})
		}
		logger.Info("seeded demo product", "sku", d.sku, "product_id", p.ID.String())
	}
}
