package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/inventory"
	"github.com/tinoosan/backoffice/internal/service/stock"
)

var (
	_ stock.Repo   = (*InventoryStore)(nil)
	_ stock.Writer = (*InventoryStore)(nil)
)

type stockKey struct {
	ProductID uuid.UUID
	Size      string
}

// InventoryStore keeps the catalog, stock levels, and movement history.
type InventoryStore struct {
	mu        sync.RWMutex
	products  map[uuid.UUID]inventory.Product
	items     map[stockKey]inventory.StockItem
	movements map[stockKey][]inventory.StockMovement
}

// NewInventoryStore constructs an empty store.
func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		products:  make(map[uuid.UUID]inventory.Product),
		items:     make(map[stockKey]inventory.StockItem),
		movements: make(map[stockKey][]inventory.StockMovement),
	}
}

// SeedProduct inserts a catalog row directly. Tests only.
func (s *InventoryStore) SeedProduct(p inventory.Product) {
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
}

// SeedStockItem inserts a stock row directly. Tests only.
func (s *InventoryStore) SeedStockItem(item inventory.StockItem) {
	s.mu.Lock()
	s.items[stockKey{item.ProductID, item.Size}] = item
	s.mu.Unlock()
}

func (s *InventoryStore) ListProducts(_ context.Context, f stock.ProductFilter) ([]inventory.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]inventory.Product, 0, len(s.products))
	needle := strings.ToLower(f.Search)
	for _, p := range s.products {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.SKU), needle) {
			continue
		}
		if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
			continue
		}
		if f.BrandID != nil && (p.BrandID == nil || *p.BrandID != *f.BrandID) {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
	total := len(all)
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return []inventory.Product{}, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *InventoryStore) GetProduct(_ context.Context, productID uuid.UUID) (inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return inventory.Product{}, errs.ErrNotFound
	}
	return p, nil
}

func (s *InventoryStore) GetStockItem(_ context.Context, productID uuid.UUID, size string) (inventory.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[stockKey{productID, size}]
	if !ok {
		return inventory.StockItem{}, errs.ErrNotFound
	}
	return item, nil
}

func (s *InventoryStore) ListStockItems(_ context.Context) ([]inventory.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inventory.StockItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID.String() < out[j].ProductID.String()
		}
		return out[i].Size < out[j].Size
	})
	return out, nil
}

func (s *InventoryStore) MovementsFor(_ context.Context, productID uuid.UUID, size string) ([]inventory.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms := s.movements[stockKey{productID, size}]
	out := make([]inventory.StockMovement, len(ms))
	copy(out, ms)
	return out, nil
}

// ApplyMovement updates the quantity and appends the movement under one lock,
// mirroring the single-transaction contract of the SQL store.
func (s *InventoryStore) ApplyMovement(_ context.Context, m inventory.StockMovement) (inventory.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stockKey{m.ProductID, m.Size}
	item, ok := s.items[key]
	if !ok {
		return inventory.StockItem{}, errs.ErrNotFound
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	item.Quantity += m.QuantityChange
	s.items[key] = item
	s.movements[key] = append(s.movements[key], m)
	return item, nil
}
