package sale_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/backoffice/internal/broker"
	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/pos"
	"github.com/tinoosan/backoffice/internal/service/sale"
	"github.com/tinoosan/backoffice/internal/storage/memory"
)

type postedEntry struct {
	Token string
	Body  client.JournalRequest
}

// fakeLedger mimics the ledger surface the worker sees: posting creates an
// entry under its reference, a duplicate reference is a conflict.
type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]client.JournalEntry
	posts   []postedEntry
	postErr error
	findErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]client.JournalEntry)}
}

func (f *fakeLedger) Post(_ context.Context, token string, body client.JournalRequest) (client.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return client.JournalEntry{}, f.postErr
	}
	if _, ok := f.entries[body.Reference]; ok {
		return client.JournalEntry{}, fmt.Errorf("%w: duplicate reference", errs.ErrConflict)
	}
	entry := client.JournalEntry{ID: uuid.New(), Reference: body.Reference}
	f.entries[body.Reference] = entry
	f.posts = append(f.posts, postedEntry{Token: token, Body: body})
	return entry, nil
}

func (f *fakeLedger) FindByReference(_ context.Context, _ string, _ string, reference string) (client.JournalEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return client.JournalEntry{}, false, f.findErr
	}
	entry, ok := f.entries[reference]
	return entry, ok, nil
}

func pendingSale(store *memory.POSStore, number string) pos.Sale {
	sl := pos.Sale{
		ID:            uuid.New(),
		SaleNumber:    number,
		Subtotal:      d("100.00"),
		TaxAmount:     d("14.00"),
		Total:         d("114.00"),
		PaymentMethod: pos.PaymentCash,
		CashierName:   "cashier1",
		CreatedAt:     time.Now().UTC(),
		Status:        pos.SyncPending,
	}
	store.SeedSale(sl)
	return sl
}

func saleMessage(kind, number, adjustmentID, token string) broker.Message {
	payload, _ := json.Marshal(map[string]string{
		"kind": kind, "sale_number": number, "adjustment_id": adjustmentID, "auth_token": token,
	})
	return broker.Message{Type: kind, Key: number, Payload: payload}
}

func TestWorkerPublishesSale(t *testing.T) {
	store := memory.NewPOSStore()
	ledger := newFakeLedger()
	w := sale.NewWorker(store, store, ledger, sale.DefaultWorkerConfig(), discard())
	sl := pendingSale(store, "POS-20260310-0001")

	err := w.Handle(context.Background(), saleMessage("sale", sl.SaleNumber, "", "tok"))
	require.NoError(t, err)

	got, err := store.GetSale(context.Background(), sl.ID)
	require.NoError(t, err)
	require.Equal(t, pos.SyncSynced, got.Status)
	require.NotNil(t, got.LedgerEntryID)

	require.Len(t, ledger.posts, 1)
	body := ledger.posts[0].Body
	require.Equal(t, "pos", body.Source)
	require.Equal(t, sl.SaleNumber, body.Reference)
	require.Equal(t, "POS sale "+sl.SaleNumber, body.Description)
	require.Len(t, body.Lines, 3)
	require.Equal(t, client.JournalLine{Account: "Cash", Type: "debit", Amount: 114.00}, body.Lines[0])
	require.Equal(t, client.JournalLine{Account: "Sales Revenue", Type: "credit", Amount: 100.00}, body.Lines[1])
	require.Equal(t, client.JournalLine{Account: "Sales Tax Payable", Type: "credit", Amount: 14.00}, body.Lines[2])
}

func TestWorkerOmitsZeroTaxLine(t *testing.T) {
	store := memory.NewPOSStore()
	ledger := newFakeLedger()
	w := sale.NewWorker(store, store, ledger, sale.DefaultWorkerConfig(), discard())

	sl := pos.Sale{
		ID: uuid.New(), SaleNumber: "POS-20260310-0002",
		Subtotal: d("50.00"), TaxAmount: d("0"), Total: d("50.00"),
		CreatedAt: time.Now().UTC(), Status: pos.SyncPending,
	}
	store.SeedSale(sl)

	require.NoError(t, w.Handle(context.Background(), saleMessage("sale", sl.SaleNumber, "", "tok")))
	require.Len(t, ledger.posts, 1)
	require.Len(t, ledger.posts[0].Body.Lines, 2)
}

func TestWorkerRetriesAfterLedgerOutage(t *testing.T) {
	store := memory.NewPOSStore()
	ledger := newFakeLedger()
	ledger.findErr = fmt.Errorf("%w: connection refused", errs.ErrUnavailable)
	w := sale.NewWorker(store, store, ledger, sale.DefaultWorkerConfig(), discard())
	sl := pendingSale(store, "POS-20260310-0003")
	ctx := context.Background()

	// First delivery fails and flips the sale to failed so the broker retries.
	err := w.Handle(ctx, saleMessage("sale", sl.SaleNumber, "", "tok"))
	require.Error(t, err)
	got, _ := store.GetSale(ctx, sl.ID)
	require.Equal(t, pos.SyncFailed, got.Status)
	require.Nil(t, got.LedgerEntryID)

	// The ledger comes back and the redelivery succeeds.
	ledger.findErr = nil
	require.NoError(t, w.Handle(ctx, saleMessage("sale", sl.SaleNumber, "", "tok")))
	got, _ = store.GetSale(ctx, sl.ID)
	require.Equal(t, pos.SyncSynced, got.Status)
}

func TestWorkerDedupByReference(t *testing.T) {
	store := memory.NewPOSStore()
	ledger := newFakeLedger()
	w := sale.NewWorker(store, store, ledger, sale.DefaultWorkerConfig(), discard())
	sl := pendingSale(store, "POS-20260310-0004")

	// The entry already exists upstream; a redelivery must not double-post.
	existing := client.JournalEntry{ID: uuid.New(), Reference: sl.SaleNumber}
	ledger.entries[sl.SaleNumber] = existing

	require.NoError(t, w.Handle(context.Background(), saleMessage("sale", sl.SaleNumber, "", "tok")))
	require.Empty(t, ledger.posts)

	got, _ := store.GetSale(context.Background(), sl.ID)
	require.Equal(t, pos.SyncSynced, got.Status)
	require.Equal(t, existing.ID, *got.LedgerEntryID)
}

func TestWorkerSkipsSyncedSale(t *testing.T) {
	store := memory.NewPOSStore()
	ledger := newFakeLedger()
	w := sale.NewWorker(store, store, ledger, sale.DefaultWorkerConfig(), discard())

	entryID := uuid.New()
	sl := pendingSale(store, "POS-20260310-0005")
	require.NoError(t, store.UpdateSaleSync(context.Background(), sl.ID, pos.SyncSynced, &entryID))

	require.NoError(t, w.Handle(context.Background(), saleMessage("sale", sl.SaleNumber, "", "tok")))
	require.Empty(t, ledger.posts)
}

func TestWorkerUsesServiceTokenFallback(t *testing.T) {
	store := memory.NewPOSStore()
	ledger := newFakeLedger()
	cfg := sale.DefaultWorkerConfig()
	cfg.ServiceToken = "service-token"
	w := sale.NewWorker(store, store, ledger, cfg, discard())
	sl := pendingSale(store, "POS-20260310-0006")

	// Boot-scan republishes carry no caller token.
	require.NoError(t, w.Handle(context.Background(), saleMessage("sale", sl.SaleNumber, "", "")))
	require.Len(t, ledger.posts, 1)
	require.Equal(t, "service-token", ledger.posts[0].Token)
}

func TestWorkerAcksMalformedPayload(t *testing.T) {
	store := memory.NewPOSStore()
	w := sale.NewWorker(store, store, newFakeLedger(), sale.DefaultWorkerConfig(), discard())

	err := w.Handle(context.Background(), broker.Message{Type: "sale", Key: "x", Payload: []byte("{not json")})
	require.NoError(t, err)
}

func TestWorkerPublishesVoidAdjustment(t *testing.T) {
	store := memory.NewPOSStore()
	ledger := newFakeLedger()
	w := sale.NewWorker(store, store, ledger, sale.DefaultWorkerConfig(), discard())
	ctx := context.Background()
	sl := pendingSale(store, "POS-20260310-0007")

	adj, err := store.CreateAdjustment(ctx, pos.SaleAdjustment{
		ID: uuid.New(), SaleID: sl.ID, Kind: pos.AdjustmentVoid,
		Amount: sl.Total, CreatedBy: "manager1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, w.Handle(ctx, saleMessage("void", sl.SaleNumber, adj.ID.String(), "tok")))
	require.Len(t, ledger.posts, 1)
	body := ledger.posts[0].Body
	require.Equal(t, "VOID-"+sl.SaleNumber+"-"+adj.ID.String()[:8], body.Reference)
	require.Equal(t, client.JournalLine{Account: "Sales Revenue", Type: "debit", Amount: 114.00}, body.Lines[0])
	require.Equal(t, client.JournalLine{Account: "Cash", Type: "credit", Amount: 114.00}, body.Lines[1])

	adjs, err := store.AdjustmentsFor(ctx, sl.ID)
	require.NoError(t, err)
	require.NotNil(t, adjs[0].LedgerEntryID)

	// Redelivery is a no-op once the entry id is recorded.
	require.NoError(t, w.Handle(ctx, saleMessage("void", sl.SaleNumber, adj.ID.String(), "tok")))
	require.Len(t, ledger.posts, 1)
}

func TestResyncRequeuesUnsyncedSales(t *testing.T) {
	store := memory.NewPOSStore()
	ledger := newFakeLedger()
	w := sale.NewWorker(store, store, ledger, sale.DefaultWorkerConfig(), discard())
	ctx := context.Background()

	pendingSale(store, "POS-20260310-0010")
	failed := pendingSale(store, "POS-20260310-0011")
	require.NoError(t, store.UpdateSaleSync(ctx, failed.ID, pos.SyncFailed, nil))
	syncedID := uuid.New()
	synced := pendingSale(store, "POS-20260310-0012")
	require.NoError(t, store.UpdateSaleSync(ctx, synced.ID, pos.SyncSynced, &syncedID))

	queue := broker.New(16, broker.Config{})
	n, err := w.Resync(ctx, queue)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, queue.Depth())
}
