// Package stock implements the inventory adjuster: catalog reads, the signed
// adjust-by-delta operation, and the low-stock feed.
package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/inventory"
)

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	BrandID    *uuid.UUID
	Page       int
	PageSize   int
}

// Repo defines read operations needed by the service.
type Repo interface {
	ListProducts(ctx context.Context, f ProductFilter) ([]inventory.Product, int, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (inventory.Product, error)
	GetStockItem(ctx context.Context, productID uuid.UUID, size string) (inventory.StockItem, error)
	ListStockItems(ctx context.Context) ([]inventory.StockItem, error)
	MovementsFor(ctx context.Context, productID uuid.UUID, size string) ([]inventory.StockMovement, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	// ApplyMovement updates the stock quantity and inserts the movement row in
	// one database transaction.
	ApplyMovement(ctx context.Context, m inventory.StockMovement) (inventory.StockItem, error)
}

// Service is the inventory surface used by the HTTP handlers.
type Service interface {
	ListProducts(ctx context.Context, f ProductFilter) ([]inventory.Product, int, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (inventory.Product, error)
	Adjust(ctx context.Context, productID uuid.UUID, size string, delta int64, movementType inventory.MovementType, reference string) (inventory.StockItem, error)
	LowStock(ctx context.Context) ([]inventory.StockItem, error)
	Movements(ctx context.Context, productID uuid.UUID, size string) ([]inventory.StockMovement, error)
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

func (s *service) ListProducts(ctx context.Context, f ProductFilter) ([]inventory.Product, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}
	return s.repo.ListProducts(ctx, f)
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (inventory.Product, error) {
	if productID == uuid.Nil {
		return inventory.Product{}, errs.ErrInvalid
	}
	return s.repo.GetProduct(ctx, productID)
}

// Adjust applies a signed quantity change to an existing (product, size) row.
// Missing rows are an error; an adjust never creates stock. A negative
// resulting quantity is permitted and surfaces through the low-stock feed.
func (s *service) Adjust(ctx context.Context, productID uuid.UUID, size string, delta int64, movementType inventory.MovementType, reference string) (inventory.StockItem, error) {
	if productID == uuid.Nil || size == "" {
		return inventory.StockItem{}, fmt.Errorf("%w: product and size are required", errs.ErrInvalid)
	}
	if delta == 0 {
		return inventory.StockItem{}, fmt.Errorf("%w: quantity_change must be non-zero", errs.ErrInvalid)
	}
	if !inventory.ValidMovementType(movementType) {
		return inventory.StockItem{}, fmt.Errorf("%w: invalid movement type %q", errs.ErrInvalid, movementType)
	}
	if _, err := s.repo.GetStockItem(ctx, productID, size); err != nil {
		return inventory.StockItem{}, err
	}
	return s.writer.ApplyMovement(ctx, inventory.StockMovement{
		ID:             uuid.New(),
		ProductID:      productID,
		Size:           size,
		Type:           movementType,
		QuantityChange: delta,
		Reference:      reference,
	})
}

func (s *service) LowStock(ctx context.Context) ([]inventory.StockItem, error) {
	items, err := s.repo.ListStockItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]inventory.StockItem, 0)
	for _, item := range items {
		if item.LowStock() {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *service) Movements(ctx context.Context, productID uuid.UUID, size string) ([]inventory.StockMovement, error) {
	if productID == uuid.Nil || size == "" {
		return nil, errs.ErrInvalid
	}
	return s.repo.MovementsFor(ctx, productID, size)
}
