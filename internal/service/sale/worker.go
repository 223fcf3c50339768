package sale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/backoffice/internal/broker"
	"github.com/tinoosan/backoffice/internal/client"
	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/pos"
)

// WorkerConfig carries the accounting policy and the fallback credential used
// when a message has no caller token (boot-scan republishes).
type WorkerConfig struct {
	CashAccount    string
	RevenueAccount string
	TaxAccount     string
	ServiceToken   string
}

// DefaultWorkerConfig matches the seeded chart of accounts.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		CashAccount:    "Cash",
		RevenueAccount: "Sales Revenue",
		TaxAccount:     "Sales Tax Payable",
	}
}

// Worker consumes broker messages and publishes journal entries to the
// ledger. It is the only component that flips a sale from pending to synced.
type Worker struct {
	repo   Repo
	writer Writer
	ledger Ledger
	cfg    WorkerConfig
	log    *slog.Logger
}

func NewWorker(repo Repo, writer Writer, ledger Ledger, cfg WorkerConfig, log *slog.Logger) *Worker {
	if cfg.CashAccount == "" {
		cfg = DefaultWorkerConfig()
	}
	return &Worker{repo: repo, writer: writer, ledger: ledger, cfg: cfg, log: log}
}

// Handle is the broker handler. A nil return acknowledges the message; an
// error hands it back for backoff and redelivery.
func (w *Worker) Handle(ctx context.Context, m broker.Message) error {
	var msg message
	if err := json.Unmarshal(m.Payload, &msg); err != nil {
		// Malformed payloads never become deliverable; ack and log.
		w.log.Error("discarding malformed broker payload", "key", m.Key, "err", err)
		return nil
	}
	token := msg.AuthToken
	if token == "" {
		token = w.cfg.ServiceToken
	}
	switch msg.Kind {
	case "void", "refund":
		return w.publishAdjustment(ctx, msg, token)
	default:
		return w.publishSale(ctx, msg.SaleNumber, token)
	}
}

// publishSale is idempotent: it checks the local status, then asks the ledger
// whether the reference was already posted, and only then posts. A 409 from
// the ledger is treated as success.
func (w *Worker) publishSale(ctx context.Context, saleNumber, token string) error {
	sale, err := w.repo.SaleByNumber(ctx, saleNumber)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			w.log.Error("sale vanished before publication", "sale_number", saleNumber)
			return nil
		}
		return err
	}
	if sale.Status == pos.SyncSynced {
		return nil
	}

	if entry, found, err := w.ledger.FindByReference(ctx, token, "pos", sale.SaleNumber); err == nil && found {
		return w.markSynced(ctx, sale.ID, entry.ID)
	} else if err != nil {
		return w.markFailed(ctx, sale.ID, err)
	}

	entry, err := w.ledger.Post(ctx, token, w.saleJournal(sale))
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			// Posted by an earlier delivery whose response we lost.
			if prior, found, ferr := w.ledger.FindByReference(ctx, token, "pos", sale.SaleNumber); ferr == nil && found {
				return w.markSynced(ctx, sale.ID, prior.ID)
			}
			return w.markFailed(ctx, sale.ID, err)
		}
		return w.markFailed(ctx, sale.ID, err)
	}
	return w.markSynced(ctx, sale.ID, entry.ID)
}

func (w *Worker) markSynced(ctx context.Context, saleID, entryID uuid.UUID) error {
	if err := w.writer.UpdateSaleSync(ctx, saleID, pos.SyncSynced, &entryID); err != nil {
		return err
	}
	w.log.Info("sale published to ledger", "sale_id", saleID, "ledger_entry_id", entryID)
	return nil
}

// markFailed records the failure locally and returns the cause so the broker
// schedules a retry.
func (w *Worker) markFailed(ctx context.Context, saleID uuid.UUID, cause error) error {
	if err := w.writer.UpdateSaleSync(ctx, saleID, pos.SyncFailed, nil); err != nil {
		w.log.Error("could not mark sale failed", "sale_id", saleID, "err", err)
	}
	return cause
}

// saleJournal maps a sale to its journal entry: debit Cash for the total,
// credit Sales Revenue for the net, credit Sales Tax Payable for the tax.
func (w *Worker) saleJournal(sale pos.Sale) client.JournalRequest {
	total, _ := sale.Total.Float64()
	tax, _ := sale.TaxAmount.Float64()
	net, _ := sale.Total.Sub(sale.TaxAmount).Float64()
	out := client.JournalRequest{
		Date:        sale.CreatedAt,
		Description: fmt.Sprintf("POS sale %s", sale.SaleNumber),
		Source:      "pos",
		Reference:   sale.SaleNumber,
		CreatedBy:   sale.CashierName,
	}
	out.Lines = append(out.Lines, client.JournalLine{Account: w.cfg.CashAccount, Type: "debit", Amount: total})
	out.Lines = append(out.Lines, client.JournalLine{Account: w.cfg.RevenueAccount, Type: "credit", Amount: net})
	if sale.TaxAmount.GreaterThan(decimal.Zero) {
		out.Lines = append(out.Lines, client.JournalLine{Account: w.cfg.TaxAccount, Type: "credit", Amount: tax})
	}
	return out
}

// publishAdjustment posts the compensating entry for a void or refund under a
// prefixed reference, then records the entry id on the adjustment row.
func (w *Worker) publishAdjustment(ctx context.Context, msg message, token string) error {
	sale, err := w.repo.SaleByNumber(ctx, msg.SaleNumber)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			w.log.Error("sale vanished before adjustment publication", "sale_number", msg.SaleNumber)
			return nil
		}
		return err
	}
	adjID, err := uuid.Parse(msg.AdjustmentID)
	if err != nil {
		w.log.Error("discarding adjustment message with bad id", "adjustment_id", msg.AdjustmentID)
		return nil
	}
	adjs, err := w.repo.AdjustmentsFor(ctx, sale.ID)
	if err != nil {
		return err
	}
	var adj *pos.SaleAdjustment
	for i := range adjs {
		if adjs[i].ID == adjID {
			adj = &adjs[i]
			break
		}
	}
	if adj == nil {
		w.log.Error("adjustment vanished before publication", "adjustment_id", adjID)
		return nil
	}
	if adj.LedgerEntryID != nil {
		return nil
	}

	prefix := "REFUND"
	if adj.Kind == pos.AdjustmentVoid {
		prefix = "VOID"
	}
	reference := fmt.Sprintf("%s-%s-%s", prefix, sale.SaleNumber, shortID(adjID))
	if entry, found, ferr := w.ledger.FindByReference(ctx, token, "pos", reference); ferr == nil && found {
		return w.writer.SetAdjustmentEntry(ctx, adjID, entry.ID)
	} else if ferr != nil {
		return ferr
	}

	amount, _ := adj.Amount.Float64()
	body := client.JournalRequest{
		Date:        adj.CreatedAt,
		Description: fmt.Sprintf("POS %s of sale %s", adj.Kind, sale.SaleNumber),
		Source:      "pos",
		Reference:   reference,
		CreatedBy:   adj.CreatedBy,
		Lines: []client.JournalLine{
			{Account: w.cfg.RevenueAccount, Type: "debit", Amount: amount},
			{Account: w.cfg.CashAccount, Type: "credit", Amount: amount},
		},
	}
	entry, err := w.ledger.Post(ctx, token, body)
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			if prior, found, ferr := w.ledger.FindByReference(ctx, token, "pos", reference); ferr == nil && found {
				return w.writer.SetAdjustmentEntry(ctx, adjID, prior.ID)
			}
		}
		return err
	}
	return w.writer.SetAdjustmentEntry(ctx, adjID, entry.ID)
}

func shortID(id uuid.UUID) string {
	s := id.String()
	return s[:8]
}

// OnDrop is wired as the broker's drop callback: after the final attempt the
// sale stays failed locally and waits for the next boot scan.
func (w *Worker) OnDrop(m broker.Message) {
	w.log.Error("broker dropped message after max attempts", "key", m.Key, "attempts", m.Attempts)
}

// Resync re-enqueues every pending or failed sale. Called once at startup so
// sales captured before a crash still reach the ledger.
func (w *Worker) Resync(ctx context.Context, queue *broker.Queue) (int, error) {
	sales, err := w.repo.SalesByStatus(ctx, pos.SyncPending, pos.SyncFailed)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range sales {
		payload, _ := json.Marshal(message{Kind: "sale", SaleNumber: s.SaleNumber})
		if err := queue.Enqueue(broker.Message{Type: "sale", Key: s.SaleNumber, Payload: payload}); err != nil {
			w.log.Error("resync enqueue failed", "sale_number", s.SaleNumber, "err", err)
			continue
		}
		n++
	}
	if n > 0 {
		w.log.Info("requeued unsynced sales", "count", n)
	}
	return n, nil
}
