package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/inventory"
	"github.com/tinoosan/backoffice/internal/service/stock"
)

var (
	_ stock.Repo   = (*InventoryStore)(nil)
	_ stock.Writer = (*InventoryStore)(nil)
)

// InventoryStore holds a pgx pool over the inventory schema.
type InventoryStore struct {
	pool *pgxpool.Pool
}

// OpenInventory establishes a pool using the provided connection string.
func OpenInventory(ctx context.Context, dsn string) (*InventoryStore, error) {
	pool, err := open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &InventoryStore{pool: pool}, nil
}

func (s *InventoryStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *InventoryStore) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

const productCols = `id, sku, name, cost_price, selling_price, category_id, brand_id, active, created_at`

func scanProduct(row pgx.Row) (inventory.Product, error) {
	var p inventory.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.CostPrice, &p.SellingPrice, &p.CategoryID, &p.BrandID, &p.Active, &p.CreatedAt)
	return p, err
}

func (s *InventoryStore) ListProducts(ctx context.Context, f stock.ProductFilter) ([]inventory.Product, int, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Search != "" {
		ph := arg("%" + strings.ToLower(f.Search) + "%")
		conds = append(conds, "(lower(name) like "+ph+" or lower(sku) like "+ph+")")
	}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = "+arg(*f.CategoryID))
	}
	if f.BrandID != nil {
		conds = append(conds, "brand_id = "+arg(*f.BrandID))
	}
	where := ""
	if len(conds) > 0 {
		where = "where " + strings.Join(conds, " and ")
	}
	var total int
	if err := s.pool.QueryRow(ctx, `select count(*) from products `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := arg(f.PageSize)
	offset := arg((f.Page - 1) * f.PageSize)
	rows, err := s.pool.Query(ctx, `
		select `+productCols+` from products `+where+`
		order by sku limit `+limit+` offset `+offset, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]inventory.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *InventoryStore) GetProduct(ctx context.Context, productID uuid.UUID) (inventory.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `select `+productCols+` from products where id = $1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Product{}, errs.ErrNotFound
	}
	return p, err
}

func (s *InventoryStore) GetStockItem(ctx context.Context, productID uuid.UUID, size string) (inventory.StockItem, error) {
	var item inventory.StockItem
	err := s.pool.QueryRow(ctx, `
		select product_id, size, quantity, reorder_level, max_level
		from stock_items where product_id = $1 and size = $2
	`, productID, size).Scan(&item.ProductID, &item.Size, &item.Quantity, &item.ReorderLevel, &item.MaxLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.StockItem{}, errs.ErrNotFound
	}
	return item, err
}

func (s *InventoryStore) ListStockItems(ctx context.Context) ([]inventory.StockItem, error) {
	rows, err := s.pool.Query(ctx, `
		select product_id, size, quantity, reorder_level, max_level
		from stock_items order by product_id, size
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]inventory.StockItem, 0)
	for rows.Next() {
		var item inventory.StockItem
		if err := rows.Scan(&item.ProductID, &item.Size, &item.Quantity, &item.ReorderLevel, &item.MaxLevel); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *InventoryStore) MovementsFor(ctx context.Context, productID uuid.UUID, size string) ([]inventory.StockMovement, error) {
	rows, err := s.pool.Query(ctx, `
		select id, product_id, size, type, quantity_change, coalesce(reference,''), created_at
		from stock_movements where product_id = $1 and size = $2
		order by created_at asc, id asc
	`, productID, size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]inventory.StockMovement, 0)
	for rows.Next() {
		var m inventory.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Size, &m.Type, &m.QuantityChange, &m.Reference, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ApplyMovement updates the stock quantity and inserts the movement row in a
// single database transaction so the quantity always equals the movement sum.
func (s *InventoryStore) ApplyMovement(ctx context.Context, m inventory.StockMovement) (inventory.StockItem, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return inventory.StockItem{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	var item inventory.StockItem
	err = tx.QueryRow(ctx, `
		update stock_items set quantity = quantity + $1
		where product_id = $2 and size = $3
		returning product_id, size, quantity, reorder_level, max_level
	`, m.QuantityChange, m.ProductID, m.Size).Scan(&item.ProductID, &item.Size, &item.Quantity, &item.ReorderLevel, &item.MaxLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.StockItem{}, errs.ErrNotFound
	}
	if err != nil {
		return inventory.StockItem{}, err
	}
	if _, err := tx.Exec(ctx, `
		insert into stock_movements (id, product_id, size, type, quantity_change, reference, created_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),$7)
	`, m.ID, m.ProductID, m.Size, m.Type, m.QuantityChange, m.Reference, m.CreatedAt); err != nil {
		return inventory.StockItem{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return inventory.StockItem{}, err
	}
	return item, nil
}
