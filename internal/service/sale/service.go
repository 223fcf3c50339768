// Package sale implements the POS pipeline: totals computation, synchronous
// stock decrements, local-first durable capture, and the async ledger
// publication handled by the worker.
package sale

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/backoffice/internal/broker"
	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/identity"
	"github.com/tinoosan/backoffice/internal/inventory"
	"github.com/tinoosan/backoffice/internal/pos"
)

// Filter narrows sale listings.
type Filter struct {
	From     *time.Time
	To       *time.Time
	Status   *pos.SyncStatus
	Page     int
	PageSize int
}

// Repo defines read operations needed by the service.
type Repo interface {
	GetSale(ctx context.Context, saleID uuid.UUID) (pos.Sale, error)
	SaleByNumber(ctx context.Context, saleNumber string) (pos.Sale, error)
	ListSales(ctx context.Context, f Filter) ([]pos.Sale, int, error)
	SalesByStatus(ctx context.Context, statuses ...pos.SyncStatus) ([]pos.Sale, error)
	CountSalesOn(ctx context.Context, day time.Time) (int, error)
	GetSettings(ctx context.Context) (pos.Settings, error)
	AdjustmentsFor(ctx context.Context, saleID uuid.UUID) ([]pos.SaleAdjustment, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	// CreateSale persists the sale and its items atomically.
	CreateSale(ctx context.Context, s pos.Sale) (pos.Sale, error)
	UpdateSaleSync(ctx context.Context, saleID uuid.UUID, status pos.SyncStatus, ledgerEntryID *uuid.UUID) error
	SaveSettings(ctx context.Context, s pos.Settings) error
	CreateAdjustment(ctx context.Context, a pos.SaleAdjustment) (pos.SaleAdjustment, error)
	SetAdjustmentEntry(ctx context.Context, adjustmentID uuid.UUID, ledgerEntryID uuid.UUID) error
}

// Inventory is the slice of the inventory client the pipeline uses.
type Inventory interface {
	Adjust(ctx context.Context, token string, productID uuid.UUID, size string, delta int64, movementType, referenceID string) (client.StockLevel, error)
}

// Ledger is the slice of the ledger client the worker uses.
type Ledger interface {
	Post(ctx context.Context, token string, body client.JournalRequest) (client.JournalEntry, error)
	FindByReference(ctx context.Context, token, source, reference string) (client.JournalEntry, bool, error)
}

// LineInput is one requested sale line.
type LineInput struct {
	ProductID uuid.UUID
	SKU       string
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Tax       decimal.Decimal
	Size      string
}

// Input is the validated POST /sales request.
type Input struct {
	Lines          []LineInput
	PaymentMethod  pos.PaymentMethod
	DiscountAmount decimal.Decimal
	TaxRate        *decimal.Decimal
	Tendered       *decimal.Decimal
	CustomerName   string
	Notes          string
}

// Service is the POS surface used by the HTTP handlers.
type Service interface {
	CreateSale(ctx context.Context, in Input, cashier identity.Profile, token string) (pos.Sale, error)
	Get(ctx context.Context, saleID uuid.UUID) (pos.Sale, error)
	ByNumber(ctx context.Context, saleNumber string) (pos.Sale, error)
	List(ctx context.Context, f Filter) ([]pos.Sale, int, error)
	Void(ctx context.Context, saleID uuid.UUID, actor identity.Profile, token string) (pos.SaleAdjustment, error)
	Refund(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal, actor identity.Profile, token string) (pos.SaleAdjustment, error)
	Settings(ctx context.Context) (pos.Settings, error)
	UpdateSettings(ctx context.Context, s pos.Settings) (pos.Settings, error)
}

type service struct {
	repo      Repo
	writer    Writer
	inventory Inventory
	queue     *broker.Queue
	log       *slog.Logger

	// sale-number sequence, per day, backstopped by the store's unique index
	seqMu   sync.Mutex
	seqDay  string
	seqNext int
}

// New wires the pipeline. queue may be shared with the worker.
func New(repo Repo, writer Writer, inv Inventory, queue *broker.Queue, log *slog.Logger) Service {
	return &service{repo: repo, writer: writer, inventory: inv, queue: queue, log: log}
}

// message is the broker payload for ledger publication.
type message struct {
	Kind         string `json:"kind"`
	SaleNumber   string `json:"sale_number"`
	AdjustmentID string `json:"adjustment_id,omitempty"`
	AuthToken    string `json:"auth_token"`
}

func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// computeTotals applies the documented arithmetic:
// line_total = round2(qty*unit - discount + tax); subtotal = sum(line_total);
// tax = round2(subtotal*rate) unless tax-inclusive; total = subtotal + tax - discount.
func computeTotals(in Input, settings pos.Settings) (items []pos.SaleItem, subtotal, tax, total decimal.Decimal, err error) {
	if len(in.Lines) == 0 {
		err = fmt.Errorf("%w: at least one line item is required", errs.ErrInvalid)
		return
	}
	rate := settings.TaxRate
	if in.TaxRate != nil {
		rate = *in.TaxRate
	}
	if rate.IsNegative() {
		err = fmt.Errorf("%w: tax_rate must be >= 0", errs.ErrInvalid)
		return
	}
	subtotal = decimal.Zero
	for i, line := range in.Lines {
		if line.ProductID == uuid.Nil {
			err = fmt.Errorf("%w: line[%d]: product_id is required", errs.ErrInvalid, i)
			return
		}
		if line.Quantity <= 0 {
			err = fmt.Errorf("%w: line[%d]: quantity must be > 0", errs.ErrInvalid, i)
			return
		}
		if line.UnitPrice.IsNegative() {
			err = fmt.Errorf("%w: line[%d]: unit_price must be >= 0", errs.ErrInvalid, i)
			return
		}
		if line.Discount.IsNegative() {
			err = fmt.Errorf("%w: line[%d]: discount must be >= 0", errs.ErrInvalid, i)
			return
		}
		if line.Tax.IsNegative() {
			err = fmt.Errorf("%w: line[%d]: tax must be >= 0", errs.ErrInvalid, i)
			return
		}
		lineTotal := round2(decimal.NewFromInt(line.Quantity).Mul(line.UnitPrice).Sub(line.Discount).Add(line.Tax))
		if lineTotal.IsNegative() {
			err = fmt.Errorf("%w: line[%d]: line total is negative", errs.ErrInvalid, i)
			return
		}
		items = append(items, pos.SaleItem{
			ID:        uuid.New(),
			ProductID: line.ProductID,
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
			Tax:       line.Tax,
			LineTotal: lineTotal,
			Size:      line.Size,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	subtotal = round2(subtotal)
	if settings.TaxInclusive {
		// Prices already carry tax; report the included portion.
		tax = round2(subtotal.Sub(subtotal.Div(decimal.NewFromInt(1).Add(rate))))
		total = round2(subtotal.Sub(in.DiscountAmount))
	} else {
		tax = round2(subtotal.Mul(rate))
		total = round2(subtotal.Add(tax).Sub(in.DiscountAmount))
	}
	if total.IsNegative() {
		err = fmt.Errorf("%w: discount exceeds sale total", errs.ErrInvalid)
		return
	}
	return
}

// CreateSale runs the synchronous half of the pipeline: totals, per-line
// stock decrements in line order, atomic local persist, broker enqueue.
// Stock is decremented before local persistence on purpose: if inventory is
// unreachable the sale never existed, so overselling is impossible.
func (s *service) CreateSale(ctx context.Context, in Input, cashier identity.Profile, token string) (pos.Sale, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return pos.Sale{}, err
	}
	items, subtotal, tax, total, err := computeTotals(in, settings)
	if err != nil {
		return pos.Sale{}, err
	}
	if in.DiscountAmount.IsNegative() {
		return pos.Sale{}, fmt.Errorf("%w: discount_amount must be >= 0", errs.ErrInvalid)
	}

	var tendered, change *decimal.Decimal
	if in.PaymentMethod == pos.PaymentCash {
		if in.Tendered != nil {
			if in.Tendered.LessThan(total) {
				return pos.Sale{}, fmt.Errorf("%w: tendered (%s) is less than total (%s)", errs.ErrInvalid,
					in.Tendered.StringFixed(2), total.StringFixed(2))
			}
			t := round2(*in.Tendered)
			c := round2(t.Sub(total))
			tendered, change = &t, &c
		}
	}

	saleNumber, err := s.nextSaleNumber(ctx)
	if err != nil {
		return pos.Sale{}, err
	}

	// From here the pipeline must outlive the caller: a disconnect after
	// stock has moved must not abort the local persist and leave a
	// decrement without a sale row.
	ctx = context.WithoutCancel(ctx)

	// Decrement stock line by line. The pipeline aborts on the first failure
	// and earlier decrements stay applied; operators reconcile with a
	// positive adjust.
	for i := range items {
		size := items[i].Size
		if size == "" {
			size = inventory.DefaultSize
		}
		ref := "POSSALE-" + saleNumber
		if _, err := s.inventory.Adjust(ctx, token, items[i].ProductID, size, -items[i].Quantity, string(inventory.MovementSale), ref); err != nil {
			return pos.Sale{}, fmt.Errorf("stock decrement for line %d: %w", i, err)
		}
	}

	sale := pos.Sale{
		ID:             uuid.New(),
		SaleNumber:     saleNumber,
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: round2(in.DiscountAmount),
		Total:          total,
		PaymentMethod:  in.PaymentMethod,
		Tendered:       tendered,
		Change:         change,
		CustomerName:   in.CustomerName,
		Notes:          in.Notes,
		CashierID:      cashier.ID,
		CashierName:    cashier.Username,
		CreatedAt:      time.Now().UTC(),
		Status:         pos.SyncPending,
		Items:          items,
	}
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
	}
	created, err := s.writer.CreateSale(ctx, sale)
	if err != nil {
		// Stock already moved but the sale row failed: the worst failure mode.
		s.log.Error("sale persist failed after stock decrement", "sale_number", saleNumber, "err", err)
		return pos.Sale{}, err
	}
	s.enqueue("sale", created.SaleNumber, "", token)
	return created, nil
}

func (s *service) enqueue(kind, saleNumber, adjustmentID, token string) {
	payload, _ := json.Marshal(message{Kind: kind, SaleNumber: saleNumber, AdjustmentID: adjustmentID, AuthToken: token})
	if err := s.queue.Enqueue(broker.Message{Type: kind, Key: saleNumber, Payload: payload}); err != nil {
		// The boot scan picks pending sales back up, so a full queue only
		// delays the posting.
		s.log.Error("broker enqueue failed", "sale_number", saleNumber, "err", err)
	}
}

// nextSaleNumber yields POS-YYYYMMDD-NNNN, monotonic per process, seeded from
// the store count so restarts continue the day's sequence.
func (s *service) nextSaleNumber(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	day := now.Format("20060102")
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if s.seqDay != day {
		count, err := s.repo.CountSalesOn(ctx, now)
		if err != nil {
			return "", err
		}
		s.seqDay = day
		s.seqNext = count + 1
	}
	n := s.seqNext
	s.seqNext++
	return fmt.Sprintf("POS-%s-%04d", day, n), nil
}

func (s *service) Get(ctx context.Context, saleID uuid.UUID) (pos.Sale, error) {
	if saleID == uuid.Nil {
		return pos.Sale{}, errs.ErrInvalid
	}
	return s.repo.GetSale(ctx, saleID)
}

func (s *service) ByNumber(ctx context.Context, saleNumber string) (pos.Sale, error) {
	if strings.TrimSpace(saleNumber) == "" {
		return pos.Sale{}, errs.ErrInvalid
	}
	return s.repo.SaleByNumber(ctx, saleNumber)
}

func (s *service) List(ctx context.Context, f Filter) ([]pos.Sale, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}
	return s.repo.ListSales(ctx, f)
}

// Void records a compensating adjustment for the full sale total: a positive
// stock adjust per line and a reversing ledger entry published through the
// broker under the reference VOID-{sale_number}. The original row is never
// mutated.
func (s *service) Void(ctx context.Context, saleID uuid.UUID, actor identity.Profile, token string) (pos.SaleAdjustment, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return pos.SaleAdjustment{}, err
	}
	existing, err := s.repo.AdjustmentsFor(ctx, saleID)
	if err != nil {
		return pos.SaleAdjustment{}, err
	}
	for _, adj := range existing {
		if adj.Kind == pos.AdjustmentVoid {
			return pos.SaleAdjustment{}, fmt.Errorf("%w: sale already voided", errs.ErrConflict)
		}
	}
	// Same caller-independence contract as the forward pipeline: once stock
	// starts moving back, the adjustment row must still be written.
	ctx = context.WithoutCancel(ctx)

	// Return stock first, in line order, same abandon-on-failure contract as
	// the forward pipeline.
	for i, item := range sale.Items {
		size := item.Size
		if size == "" {
			size = inventory.DefaultSize
		}
		ref := "POSVOID-" + sale.SaleNumber
		if _, err := s.inventory.Adjust(ctx, token, item.ProductID, size, item.Quantity, string(inventory.MovementReturn), ref); err != nil {
			return pos.SaleAdjustment{}, fmt.Errorf("stock return for line %d: %w", i, err)
		}
	}
	adj := pos.SaleAdjustment{
		ID:        uuid.New(),
		SaleID:    sale.ID,
		Kind:      pos.AdjustmentVoid,
		Amount:    sale.Total,
		CreatedBy: actor.Username,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.writer.CreateAdjustment(ctx, adj)
	if err != nil {
		return pos.SaleAdjustment{}, err
	}
	s.enqueue("void", sale.SaleNumber, created.ID.String(), token)
	return created, nil
}

// Refund records a partial or full money-only compensation; stock stays put.
func (s *service) Refund(ctx context.Context, saleID uuid.UUID, amount decimal.Decimal, actor identity.Profile, token string) (pos.SaleAdjustment, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return pos.SaleAdjustment{}, err
	}
	amount = round2(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return pos.SaleAdjustment{}, fmt.Errorf("%w: refund amount must be > 0", errs.ErrInvalid)
	}
	existing, err := s.repo.AdjustmentsFor(ctx, saleID)
	if err != nil {
		return pos.SaleAdjustment{}, err
	}
	refunded := decimal.Zero
	for _, a := range existing {
		if a.Kind == pos.AdjustmentVoid {
			return pos.SaleAdjustment{}, fmt.Errorf("%w: sale already voided", errs.ErrConflict)
		}
		refunded = refunded.Add(a.Amount)
	}
	if refunded.Add(amount).GreaterThan(sale.Total) {
		return pos.SaleAdjustment{}, fmt.Errorf("%w: refund exceeds remaining total %s", errs.ErrInvalid,
			sale.Total.Sub(refunded).StringFixed(2))
	}
	adj := pos.SaleAdjustment{
		ID:        uuid.New(),
		SaleID:    sale.ID,
		Kind:      pos.AdjustmentRefund,
		Amount:    amount,
		CreatedBy: actor.Username,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.writer.CreateAdjustment(ctx, adj)
	if err != nil {
		return pos.SaleAdjustment{}, err
	}
	s.enqueue("refund", sale.SaleNumber, created.ID.String(), token)
	return created, nil
}

func (s *service) Settings(ctx context.Context) (pos.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *service) UpdateSettings(ctx context.Context, in pos.Settings) (pos.Settings, error) {
	if in.TaxRate.IsNegative() {
		return pos.Settings{}, fmt.Errorf("%w: tax_rate must be >= 0", errs.ErrInvalid)
	}
	if in.Currency == "" {
		return pos.Settings{}, fmt.Errorf("%w: currency is required", errs.ErrInvalid)
	}
	if err := s.writer.SaveSettings(ctx, in); err != nil {
		return pos.Settings{}, err
	}
	return in, nil
}
