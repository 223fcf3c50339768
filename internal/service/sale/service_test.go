package sale_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/backoffice/internal/broker"
	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/identity"
	"github.com/tinoosan/backoffice/internal/pos"
	"github.com/tinoosan/backoffice/internal/service/sale"
	"github.com/tinoosan/backoffice/internal/storage/memory"
)

type adjustCall struct {
	ProductID uuid.UUID
	Size      string
	Delta     int64
	Type      string
	Reference string
}

// fakeInventory records adjust calls, can fail at a given 1-based call, and
// can run a hook after each successful adjust.
type fakeInventory struct {
	mu     sync.Mutex
	calls  []adjustCall
	failAt int
	after  func()
}

func (f *fakeInventory) Adjust(_ context.Context, _ string, productID uuid.UUID, size string, delta int64, movementType, referenceID string) (client.StockLevel, error) {
	f.mu.Lock()
	n := len(f.calls) + 1
	if f.failAt != 0 && n >= f.failAt {
		f.mu.Unlock()
		return client.StockLevel{}, fmt.Errorf("%w: inventory unreachable", errs.ErrUnavailable)
	}
	f.calls = append(f.calls, adjustCall{ProductID: productID, Size: size, Delta: delta, Type: movementType, Reference: referenceID})
	f.mu.Unlock()
	if f.after != nil {
		f.after()
	}
	return client.StockLevel{ProductID: productID, Size: size, Quantity: 10 + delta}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cashier() identity.Profile {
	return identity.Profile{ID: uuid.New(), Username: "cashier1", Role: "cashier", IsActive: true}
}

func newPipeline(inv *fakeInventory) (sale.Service, *memory.POSStore, *broker.Queue) {
	store := memory.NewPOSStore()
	queue := broker.New(16, broker.Config{})
	return sale.New(store, store, inv, queue, discard()), store, queue
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func saleInput(tendered string) sale.Input {
	in := sale.Input{
		PaymentMethod: pos.PaymentCash,
		Lines: []sale.LineInput{{
			ProductID: uuid.New(),
			SKU:       "TSH-001",
			Name:      "Plain T-Shirt",
			Quantity:  2,
			UnitPrice: d("50.00"),
			Size:      "M",
		}},
	}
	if tendered != "" {
		t := d(tendered)
		in.Tendered = &t
	}
	return in
}

func TestCreateSaleTotals(t *testing.T) {
	inv := &fakeInventory{}
	svc, store, queue := newPipeline(inv)

	created, err := svc.CreateSale(context.Background(), saleInput("120.00"), cashier(), "tok")
	require.NoError(t, err)

	// 2 x 50.00 at the default 14% exclusive rate.
	require.True(t, created.Subtotal.Equal(d("100.00")), "subtotal %s", created.Subtotal)
	require.True(t, created.TaxAmount.Equal(d("14.00")), "tax %s", created.TaxAmount)
	require.True(t, created.Total.Equal(d("114.00")), "total %s", created.Total)
	require.NotNil(t, created.Change)
	require.True(t, created.Change.Equal(d("6.00")), "change %s", created.Change)
	require.Equal(t, pos.SyncPending, created.Status)
	require.Equal(t, "cashier1", created.CashierName)

	// One decrement per line, forwarded with the sale reference.
	require.Len(t, inv.calls, 1)
	require.Equal(t, int64(-2), inv.calls[0].Delta)
	require.Equal(t, "sale", inv.calls[0].Type)
	require.Equal(t, "POSSALE-"+created.SaleNumber, inv.calls[0].Reference)

	// Persisted locally and queued for the worker.
	got, err := store.SaleByNumber(context.Background(), created.SaleNumber)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, 1, queue.Depth())
}

func TestCreateSaleTaxInclusive(t *testing.T) {
	inv := &fakeInventory{}
	svc, store, _ := newPipeline(inv)

	settings := pos.DefaultSettings()
	settings.TaxInclusive = true
	require.NoError(t, store.SaveSettings(context.Background(), settings))

	created, err := svc.CreateSale(context.Background(), saleInput(""), cashier(), "tok")
	require.NoError(t, err)
	// Total stays at the sticker price; tax reports the included portion.
	require.True(t, created.Total.Equal(d("100.00")), "total %s", created.Total)
	require.True(t, created.TaxAmount.Equal(d("12.28")), "tax %s", created.TaxAmount)
}

func TestCreateSaleTenderedTooLow(t *testing.T) {
	inv := &fakeInventory{}
	svc, store, queue := newPipeline(inv)

	_, err := svc.CreateSale(context.Background(), saleInput("100.00"), cashier(), "tok")
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.Contains(t, err.Error(), "tendered (100.00) is less than total (114.00)")

	// Nothing moved, nothing persisted, nothing queued.
	require.Empty(t, inv.calls)
	_, total, err := store.ListSales(context.Background(), sale.Filter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Zero(t, queue.Depth())
}

func TestCreateSaleAbortsOnStockFailure(t *testing.T) {
	inv := &fakeInventory{failAt: 2}
	svc, store, queue := newPipeline(inv)

	in := saleInput("")
	in.Lines = append(in.Lines, sale.LineInput{
		ProductID: uuid.New(), SKU: "MUG-001", Name: "Coffee Mug",
		Quantity: 1, UnitPrice: d("8.50"),
	})
	_, err := svc.CreateSale(context.Background(), in, cashier(), "tok")
	require.Error(t, err)
	require.Contains(t, err.Error(), "stock decrement for line 1")

	// The first decrement stays applied; the sale itself never persists.
	require.Len(t, inv.calls, 1)
	_, total, err := store.ListSales(context.Background(), sale.Filter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Zero(t, queue.Depth())
}

func TestSaleNumberSequence(t *testing.T) {
	inv := &fakeInventory{}
	svc, _, _ := newPipeline(inv)
	ctx := context.Background()

	day := time.Now().UTC().Format("20060102")
	first, err := svc.CreateSale(ctx, saleInput(""), cashier(), "tok")
	require.NoError(t, err)
	second, err := svc.CreateSale(ctx, saleInput(""), cashier(), "tok")
	require.NoError(t, err)

	require.Equal(t, "POS-"+day+"-0001", first.SaleNumber)
	require.Equal(t, "POS-"+day+"-0002", second.SaleNumber)
}

func TestVoidReturnsStockOnce(t *testing.T) {
	inv := &fakeInventory{}
	svc, store, queue := newPipeline(inv)
	ctx := context.Background()

	created, err := svc.CreateSale(ctx, saleInput(""), cashier(), "tok")
	require.NoError(t, err)

	adj, err := svc.Void(ctx, created.ID, identity.Profile{Username: "manager1", Role: "manager", IsActive: true}, "tok")
	require.NoError(t, err)
	require.Equal(t, pos.AdjustmentVoid, adj.Kind)
	require.True(t, adj.Amount.Equal(created.Total))
	require.Equal(t, "manager1", adj.CreatedBy)

	// Sale decrement plus the compensating return.
	require.Len(t, inv.calls, 2)
	ret := inv.calls[1]
	require.Equal(t, int64(2), ret.Delta)
	require.Equal(t, "return", ret.Type)
	require.Equal(t, "POSVOID-"+created.SaleNumber, ret.Reference)
	require.Equal(t, 2, queue.Depth())

	// Voiding twice is a conflict and must not move stock again.
	_, err = svc.Void(ctx, created.ID, identity.Profile{Username: "manager1"}, "tok")
	require.ErrorIs(t, err, errs.ErrConflict)
	require.Len(t, inv.calls, 2)

	adjs, err := store.AdjustmentsFor(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
}

func TestRefundCappedAtRemainingTotal(t *testing.T) {
	inv := &fakeInventory{}
	svc, _, _ := newPipeline(inv)
	ctx := context.Background()
	actor := identity.Profile{Username: "manager1", Role: "manager", IsActive: true}

	created, err := svc.CreateSale(ctx, saleInput(""), cashier(), "tok")
	require.NoError(t, err)

	_, err = svc.Refund(ctx, created.ID, d("0"), actor, "tok")
	require.ErrorIs(t, err, errs.ErrInvalid)

	first, err := svc.Refund(ctx, created.ID, d("60.00"), actor, "tok")
	require.NoError(t, err)
	require.Equal(t, pos.AdjustmentRefund, first.Kind)

	// 114.00 total, 60.00 refunded, so 55.00 exceeds the remainder.
	_, err = svc.Refund(ctx, created.ID, d("55.00"), actor, "tok")
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.Contains(t, err.Error(), "refund exceeds remaining total 54.00")

	_, err = svc.Refund(ctx, created.ID, d("54.00"), actor, "tok")
	require.NoError(t, err)

	// Refunds never move stock.
	require.Len(t, inv.calls, 1)
}

// cancelStore refuses writes once the caller's context is gone, the way the
// sqlite store does.
type cancelStore struct {
	*memory.POSStore
}

func (s *cancelStore) CreateSale(ctx context.Context, sl pos.Sale) (pos.Sale, error) {
	if err := ctx.Err(); err != nil {
		return pos.Sale{}, err
	}
	return s.POSStore.CreateSale(ctx, sl)
}

func TestCreateSaleSurvivesCallerDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The caller disconnects right after the first stock decrement lands.
	inv := &fakeInventory{after: cancel}
	store := memory.NewPOSStore()
	queue := broker.New(16, broker.Config{})
	svc := sale.New(store, &cancelStore{POSStore: store}, inv, queue, discard())

	created, err := svc.CreateSale(ctx, saleInput(""), cashier(), "tok")
	require.NoError(t, err)

	// The decrement must never stand without its sale row.
	require.Len(t, inv.calls, 1)
	got, err := store.SaleByNumber(context.Background(), created.SaleNumber)
	require.NoError(t, err)
	require.Equal(t, pos.SyncPending, got.Status)
	require.Equal(t, 1, queue.Depth())
}

func TestNegativeLineDiscountAndTaxRejected(t *testing.T) {
	inv := &fakeInventory{}
	svc, _, _ := newPipeline(inv)
	ctx := context.Background()

	in := saleInput("")
	in.Lines[0].Discount = d("-5.00")
	_, err := svc.CreateSale(ctx, in, cashier(), "tok")
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.Contains(t, err.Error(), "discount must be >= 0")

	in = saleInput("")
	in.Lines[0].Tax = d("-1.00")
	_, err = svc.CreateSale(ctx, in, cashier(), "tok")
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.Contains(t, err.Error(), "tax must be >= 0")

	require.Empty(t, inv.calls)
}

func TestDiscountExceedingTotalRejected(t *testing.T) {
	inv := &fakeInventory{}
	svc, _, _ := newPipeline(inv)

	in := saleInput("")
	in.DiscountAmount = d("150.00")
	_, err := svc.CreateSale(context.Background(), in, cashier(), "tok")
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.Empty(t, inv.calls)
}
