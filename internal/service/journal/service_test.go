package journal_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/ledger"
	"github.com/tinoosan/backoffice/internal/service/journal"
	"github.com/tinoosan/backoffice/internal/storage/memory"
)

func newStore(t *testing.T) *memory.LedgerStore {
	t.Helper()
	store := memory.NewLedgerStore()
	seed := []struct {
		code, name string
		typ        ledger.AccountType
		active     bool
	}{
		{"1000", "Cash", ledger.AccountTypeAsset, true},
		{"4000", "Sales Revenue", ledger.AccountTypeIncome, true},
		{"2100", "Sales Tax Payable", ledger.AccountTypeLiability, true},
		{"5100", "Rent", ledger.AccountTypeExpense, true},
		{"5999", "Old Expense", ledger.AccountTypeExpense, false},
	}
	for _, a := range seed {
		store.SeedAccount(ledger.Account{
			ID:        uuid.New(),
			Code:      a.code,
			Name:      a.name,
			Type:      a.typ,
			Active:    a.active,
			CreatedAt: time.Now().UTC(),
		})
	}
	return store
}

func amount(minor int64) money.Amount {
	return ledger.AmountFromMinor("USD", minor)
}

func saleTx(reference string) ledger.Transaction {
	return ledger.Transaction{
		Date:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Description: "POS sale " + reference,
		Source:      ledger.SourcePOS,
		Reference:   reference,
		CreatedBy:   "cashier1",
		Lines: []ledger.TransactionLine{
			{AccountName: "Cash", Side: ledger.SideDebit, Amount: amount(11400)},
			{AccountName: "Sales Revenue", Side: ledger.SideCredit, Amount: amount(10000)},
			{AccountName: "Sales Tax Payable", Side: ledger.SideCredit, Amount: amount(1400)},
		},
	}
}

func TestPostBalancedCommits(t *testing.T) {
	store := newStore(t)
	svc := journal.New(store, store)

	committed, err := svc.Post(context.Background(), saleTx("POS-20260310-0001"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if committed.ID == uuid.Nil {
		t.Fatalf("missing transaction id")
	}
	if len(committed.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(committed.Lines))
	}
	for i, line := range committed.Lines {
		if line.AccountID == uuid.Nil {
			t.Fatalf("line %d not resolved to an account", i)
		}
		if line.TransactionID != committed.ID {
			t.Fatalf("line %d not linked to transaction", i)
		}
	}
	got, err := svc.Get(context.Background(), committed.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reference != "POS-20260310-0001" {
		t.Fatalf("reference lost on re-read: %q", got.Reference)
	}
}

func TestPostUnbalanced(t *testing.T) {
	store := newStore(t)
	svc := journal.New(store, store)

	tx := saleTx("POS-20260310-0002")
	tx.Lines[1].Amount = amount(9000)
	_, err := svc.Post(context.Background(), tx)
	if !errors.Is(err, errs.ErrUnbalanced) {
		t.Fatalf("expected ErrUnbalanced, got %v", err)
	}
	if !strings.Contains(err.Error(), "Transaction not balanced: Debits (114.00)") {
		t.Fatalf("unexpected message: %v", err)
	}
	if !strings.Contains(err.Error(), "Credits (104.00)") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestPostLineValidation(t *testing.T) {
	store := newStore(t)
	svc := journal.New(store, store)
	ctx := context.Background()

	tx := saleTx("")
	tx.Lines = tx.Lines[:1]
	if _, err := svc.Post(ctx, tx); !errors.Is(err, errs.ErrTooFewLines) {
		t.Fatalf("expected ErrTooFewLines, got %v", err)
	}

	tx = saleTx("")
	tx.Lines[0].Amount = amount(0)
	if _, err := svc.Post(ctx, tx); !errors.Is(err, errs.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	tx = saleTx("")
	tx.Lines[0].AccountName = "No Such Account"
	if _, err := svc.Post(ctx, tx); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown account, got %v", err)
	}

	tx = ledger.Transaction{
		Date:        time.Now().UTC(),
		Description: "rent via dead account",
		Source:      ledger.SourceManual,
		Lines: []ledger.TransactionLine{
			{AccountName: "Old Expense", Side: ledger.SideDebit, Amount: amount(5000)},
			{AccountName: "Cash", Side: ledger.SideCredit, Amount: amount(5000)},
		},
	}
	if _, err := svc.Post(ctx, tx); !errors.Is(err, errs.ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestPostClosedPeriod(t *testing.T) {
	store := newStore(t)
	svc := journal.New(store, store)
	ctx := context.Background()

	period, err := svc.CreatePeriod(ctx, ledger.Period{
		Name:        "March 2026",
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC),
		FiscalYear:  2026,
	})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	if _, err := svc.Post(ctx, saleTx("POS-20260310-0003")); err != nil {
		t.Fatalf("post into open period: %v", err)
	}

	if _, err := svc.ClosePeriod(ctx, period.ID, "cfo"); err != nil {
		t.Fatalf("close period: %v", err)
	}
	if _, err := svc.Post(ctx, saleTx("POS-20260310-0004")); !errors.Is(err, errs.ErrClosedPeriod) {
		t.Fatalf("expected ErrClosedPeriod, got %v", err)
	}

	if _, err := svc.ReopenPeriod(ctx, period.ID); err != nil {
		t.Fatalf("reopen period: %v", err)
	}
	if _, err := svc.Post(ctx, saleTx("POS-20260310-0004")); err != nil {
		t.Fatalf("post after reopen: %v", err)
	}

	if _, err := svc.LockPeriod(ctx, period.ID, "cfo"); err != nil {
		t.Fatalf("lock period: %v", err)
	}
	if _, err := svc.Post(ctx, saleTx("POS-20260310-0005")); !errors.Is(err, errs.ErrClosedPeriod) {
		t.Fatalf("expected ErrClosedPeriod for locked, got %v", err)
	}
	if _, err := svc.ReopenPeriod(ctx, period.ID); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict reopening locked period, got %v", err)
	}
}

func TestPostPOSDuplicateReference(t *testing.T) {
	store := newStore(t)
	svc := journal.New(store, store)
	ctx := context.Background()

	first, err := svc.Post(ctx, saleTx("POS-20260310-0009"))
	if err != nil {
		t.Fatalf("first post: %v", err)
	}
	_, err = svc.Post(ctx, saleTx("POS-20260310-0009"))
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate reference, got %v", err)
	}

	found, ok, err := svc.ByReference(ctx, ledger.SourcePOS, "POS-20260310-0009")
	if err != nil || !ok {
		t.Fatalf("by reference: found=%v err=%v", ok, err)
	}
	if found.ID != first.ID {
		t.Fatalf("by reference returned wrong transaction")
	}
}

func TestPeriodOverlapRejected(t *testing.T) {
	store := newStore(t)
	svc := journal.New(store, store)
	ctx := context.Background()

	_, err := svc.CreatePeriod(ctx, ledger.Period{
		Name:        "Q1 2026",
		PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		FiscalYear:  2026,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.CreatePeriod(ctx, ledger.Period{
		Name:        "March 2026",
		PeriodStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		FiscalYear:  2026,
	})
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict for overlap, got %v", err)
	}
}
