package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType tags an append-only stock movement with its cause.
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
)

// ValidMovementType reports whether t is a known movement tag.
func ValidMovementType(t MovementType) bool {
	switch t {
	case MovementPurchase, MovementSale, MovementAdjustment, MovementReturn:
		return true
	}
	return false
}

// DefaultSize is the stock row used by products that do not track size variants.
const DefaultSize = "default"

// Product is a catalog row. POS reads products; full catalog CRUD lives with
// an admin surface outside this suite.
type Product struct {
	ID           uuid.UUID
	SKU          string
	Name         string
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	CategoryID   *uuid.UUID
	BrandID      *uuid.UUID
	Active       bool
	CreatedAt    time.Time
}

// StockItem holds the current quantity for a (product, size) pair.
// Quantity always equals the sum of the movements for the pair.
type StockItem struct {
	ProductID    uuid.UUID
	Size         string
	Quantity     int64
	ReorderLevel int64
	MaxLevel     int64
}

// LowStock reports whether the row belongs in the low-stock feed: at or below
// its reorder level, or driven negative by a sale.
func (s StockItem) LowStock() bool {
	return s.Quantity <= s.ReorderLevel || s.Quantity < 0
}

// StockMovement is one append-only change record for a (product, size) pair.
type StockMovement struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	Size           string
	Type           MovementType
	QuantityChange int64
	Reference      string
	CreatedAt      time.Time
}
