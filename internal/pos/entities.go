package pos

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncStatus labels a sale's ledger posting lifecycle.
type SyncStatus string

const (
	// SyncPending means the sale is captured locally and queued for posting.
	SyncPending SyncStatus = "pending"
	// SyncSynced means the ledger accepted the journal entry.
	SyncSynced SyncStatus = "synced"
	// SyncFailed means the last posting attempt failed; the broker retries.
	SyncFailed SyncStatus = "failed"
)

// PaymentMethod tags how a sale was settled.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// Sale is a captured retail event. Sales are never deleted after commit;
// voids and refunds are recorded as separate adjustments.
type Sale struct {
	ID             uuid.UUID
	SaleNumber     string
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	PaymentMethod  PaymentMethod
	Tendered       *decimal.Decimal
	Change         *decimal.Decimal
	CustomerName   string
	Notes          string
	CashierID      uuid.UUID
	CashierName    string
	CreatedAt      time.Time
	Status         SyncStatus
	LedgerEntryID  *uuid.UUID
	Items          []SaleItem
}

// SaleItem is one line of a sale.
type SaleItem struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	ProductID uuid.UUID
	SKU       string
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Tax       decimal.Decimal
	LineTotal decimal.Decimal
	Size      string
}

// AdjustmentKind distinguishes the two compensating records.
type AdjustmentKind string

const (
	AdjustmentVoid   AdjustmentKind = "void"
	AdjustmentRefund AdjustmentKind = "refund"
)

// SaleAdjustment links a void or refund to its original sale. The original
// sale row is never mutated; the adjustment carries the compensating ledger
// entry id once posted.
type SaleAdjustment struct {
	ID            uuid.UUID
	SaleID        uuid.UUID
	Kind          AdjustmentKind
	Amount        decimal.Decimal
	LedgerEntryID *uuid.UUID
	CreatedBy     string
	CreatedAt     time.Time
}

// Settings is the POS singleton configuration row.
type Settings struct {
	TaxRate           decimal.Decimal
	TaxInclusive      bool
	Currency          string
	LowStockThreshold int64
}

// DefaultSettings returns the baseline configuration used until an admin
// updates the singleton.
func DefaultSettings() Settings {
	return Settings{
		TaxRate:           decimal.NewFromFloat(0.14),
		TaxInclusive:      false,
		Currency:          "USD",
		LowStockThreshold: 5,
	}
}
