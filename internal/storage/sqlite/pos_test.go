package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/pos"
	"github.com/tinoosan/backoffice/internal/service/sale"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleSale(number string, at time.Time) pos.Sale {
	tendered := d("120.00")
	change := d("6.00")
	saleID := uuid.New()
	return pos.Sale{
		ID:             saleID,
		SaleNumber:     number,
		Subtotal:       d("100.00"),
		TaxAmount:      d("14.00"),
		DiscountAmount: d("0"),
		Total:          d("114.00"),
		PaymentMethod:  pos.PaymentCash,
		Tendered:       &tendered,
		Change:         &change,
		CustomerName:   "Walk-in",
		CashierID:      uuid.New(),
		CashierName:    "cashier1",
		CreatedAt:      at,
		Status:         pos.SyncPending,
		Items: []pos.SaleItem{{
			ID:        uuid.New(),
			SaleID:    saleID,
			ProductID: uuid.New(),
			SKU:       "TSH-001",
			Name:      "Plain T-Shirt",
			Quantity:  2,
			UnitPrice: d("50.00"),
			Discount:  d("0"),
			Tax:       d("0"),
			LineTotal: d("100.00"),
			Size:      "M",
		}},
	}
}

func TestCreateAndLoadSale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	in := sampleSale("POS-20260310-0001", now)
	_, err := store.CreateSale(ctx, in)
	require.NoError(t, err)

	got, err := store.GetSale(ctx, in.ID)
	require.NoError(t, err)
	require.Equal(t, in.SaleNumber, got.SaleNumber)
	require.True(t, got.Total.Equal(in.Total))
	require.NotNil(t, got.Tendered)
	require.True(t, got.Tendered.Equal(*in.Tendered))
	require.True(t, got.Change.Equal(*in.Change))
	require.Nil(t, got.LedgerEntryID)
	require.Len(t, got.Items, 1)
	require.True(t, got.Items[0].UnitPrice.Equal(d("50.00")))
	require.True(t, got.CreatedAt.Equal(in.CreatedAt))

	byNum, err := store.SaleByNumber(ctx, in.SaleNumber)
	require.NoError(t, err)
	require.Equal(t, in.ID, byNum.ID)

	_, err = store.GetSale(ctx, uuid.New())
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDuplicateSaleNumberConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.CreateSale(ctx, sampleSale("POS-20260310-0001", now))
	require.NoError(t, err)
	_, err = store.CreateSale(ctx, sampleSale("POS-20260310-0001", now))
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestUpdateSaleSync(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := sampleSale("POS-20260310-0002", time.Now().UTC())
	_, err := store.CreateSale(ctx, in)
	require.NoError(t, err)

	require.NoError(t, store.UpdateSaleSync(ctx, in.ID, pos.SyncFailed, nil))
	got, _ := store.GetSale(ctx, in.ID)
	require.Equal(t, pos.SyncFailed, got.Status)
	require.Nil(t, got.LedgerEntryID)

	entryID := uuid.New()
	require.NoError(t, store.UpdateSaleSync(ctx, in.ID, pos.SyncSynced, &entryID))
	got, _ = store.GetSale(ctx, in.ID)
	require.Equal(t, pos.SyncSynced, got.Status)
	require.Equal(t, entryID, *got.LedgerEntryID)

	require.ErrorIs(t, store.UpdateSaleSync(ctx, uuid.New(), pos.SyncSynced, nil), errs.ErrNotFound)
}

func TestListSalesFilterAndPaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		sl := sampleSale(time.Date(2026, 3, 10, 9, i, 0, 0, time.UTC).Format("POS-20060102-1504"), base.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			sl.Status = pos.SyncSynced
		}
		_, err := store.CreateSale(ctx, sl)
		require.NoError(t, err)
	}

	sales, total, err := store.ListSales(ctx, sale.Filter{Page: 1, PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, sales, 3)
	// Newest first.
	require.True(t, sales[0].CreatedAt.After(sales[1].CreatedAt))

	pending := pos.SyncPending
	sales, total, err = store.ListSales(ctx, sale.Filter{Page: 1, PageSize: 10, Status: &pending})
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, sales, 4)

	from := base.Add(3 * time.Minute)
	sales, total, err = store.ListSales(ctx, sale.Filter{Page: 1, PageSize: 10, From: &from})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, sales, 2)
}

func TestSalesByStatusAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	today := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	a := sampleSale("POS-20260310-0001", today)
	b := sampleSale("POS-20260310-0002", today.Add(time.Minute))
	c := sampleSale("POS-20260309-0001", today.Add(-24*time.Hour))
	for _, sl := range []pos.Sale{a, b, c} {
		_, err := store.CreateSale(ctx, sl)
		require.NoError(t, err)
	}
	entryID := uuid.New()
	require.NoError(t, store.UpdateSaleSync(ctx, b.ID, pos.SyncSynced, &entryID))
	require.NoError(t, store.UpdateSaleSync(ctx, c.ID, pos.SyncFailed, nil))

	unsynced, err := store.SalesByStatus(ctx, pos.SyncPending, pos.SyncFailed)
	require.NoError(t, err)
	require.Len(t, unsynced, 2)

	n, err := store.CountSalesOn(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetSettings(ctx)
	require.NoError(t, err)
	def := pos.DefaultSettings()
	require.True(t, got.TaxRate.Equal(def.TaxRate))
	require.Equal(t, def.Currency, got.Currency)

	updated := pos.Settings{TaxRate: d("0.20"), TaxInclusive: true, Currency: "EUR", LowStockThreshold: 3}
	require.NoError(t, store.SaveSettings(ctx, updated))
	got, err = store.GetSettings(ctx)
	require.NoError(t, err)
	require.True(t, got.TaxRate.Equal(d("0.20")))
	require.True(t, got.TaxInclusive)
	require.Equal(t, "EUR", got.Currency)
	require.Equal(t, int64(3), got.LowStockThreshold)
}

func TestAdjustments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sl := sampleSale("POS-20260310-0003", time.Now().UTC())
	_, err := store.CreateSale(ctx, sl)
	require.NoError(t, err)

	adj := pos.SaleAdjustment{
		ID: uuid.New(), SaleID: sl.ID, Kind: pos.AdjustmentRefund,
		Amount: d("60.00"), CreatedBy: "manager1", CreatedAt: time.Now().UTC(),
	}
	_, err = store.CreateAdjustment(ctx, adj)
	require.NoError(t, err)

	adjs, err := store.AdjustmentsFor(ctx, sl.ID)
	require.NoError(t, err)
	require.Len(t, adjs, 1)
	require.Nil(t, adjs[0].LedgerEntryID)
	require.True(t, adjs[0].Amount.Equal(d("60.00")))

	entryID := uuid.New()
	require.NoError(t, store.SetAdjustmentEntry(ctx, adj.ID, entryID))
	adjs, _ = store.AdjustmentsFor(ctx, sl.ID)
	require.Equal(t, entryID, *adjs[0].LedgerEntryID)

	require.True(t, errors.Is(store.SetAdjustmentEntry(ctx, uuid.New(), entryID), errs.ErrNotFound))
}
