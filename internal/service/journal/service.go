// Package journal implements the posting engine: validation of double-entry
// invariants, period gating, atomic persistence, and the period state machine.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/ledger"
)

// Filter narrows transaction listings.
type Filter struct {
	Source    *ledger.Source
	Reference string
	From      *time.Time
	To        *time.Time
	AccountID *uuid.UUID
}

// Repo defines read operations needed by the service.
type Repo interface {
	AccountsByNames(ctx context.Context, names []string) (map[string]ledger.Account, error)
	ListTransactions(ctx context.Context, f Filter) ([]ledger.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error)
	ListPeriods(ctx context.Context) ([]ledger.Period, error)
	GetPeriod(ctx context.Context, id uuid.UUID) (ledger.Period, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	// CreateTransaction persists header and lines atomically.
	CreateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	CreatePeriod(ctx context.Context, p ledger.Period) (ledger.Period, error)
	UpdatePeriod(ctx context.Context, p ledger.Period) (ledger.Period, error)
}

// Service exposes posting, lookup, and the period lifecycle.
type Service interface {
	Post(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error)
	List(ctx context.Context, f Filter) ([]ledger.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Transaction, error)
	ByReference(ctx context.Context, source ledger.Source, reference string) (ledger.Transaction, bool, error)

	CreatePeriod(ctx context.Context, p ledger.Period) (ledger.Period, error)
	ClosePeriod(ctx context.Context, id uuid.UUID, actor string) (ledger.Period, error)
	LockPeriod(ctx context.Context, id uuid.UUID, actor string) (ledger.Period, error)
	ReopenPeriod(ctx context.Context, id uuid.UUID) (ledger.Period, error)
	ListPeriods(ctx context.Context) ([]ledger.Period, error)
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// ErrDuplicateReference indicates a POS posting whose reference was already used.
var ErrDuplicateReference = errors.New("duplicate reference for source pos")

// Post validates and persists a journal entry:
// shape, account resolution by exact name, positive amounts, balance in minor
// units, open-period gate, then a single atomic insert and a committed re-read.
func (s *service) Post(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	if tx.Description == "" {
		return ledger.Transaction{}, fmt.Errorf("%w: description is required", errs.ErrInvalid)
	}
	if tx.Date.IsZero() {
		return ledger.Transaction{}, fmt.Errorf("%w: date is required", errs.ErrInvalid)
	}
	if !ledger.ValidSource(tx.Source) {
		return ledger.Transaction{}, fmt.Errorf("%w: invalid source %q", errs.ErrInvalid, tx.Source)
	}
	if len(tx.Lines) < 2 {
		return ledger.Transaction{}, fmt.Errorf("%w: at least 2 lines", errs.ErrTooFewLines)
	}
	if tx.Metadata != nil {
		if err := tx.Metadata.Validate(); err != nil {
			return ledger.Transaction{}, fmt.Errorf("%w: %s", errs.ErrInvalid, err)
		}
	}

	names := make([]string, 0, len(tx.Lines))
	var sumDebits, sumCredits int64
	for i := range tx.Lines {
		line := &tx.Lines[i]
		if line.AccountName == "" {
			return ledger.Transaction{}, lineErr(i, "account is required")
		}
		minor := ledger.Minor(line.Amount)
		if minor <= 0 {
			return ledger.Transaction{}, fmt.Errorf("%w: line[%d]: amount must be > 0", errs.ErrInvalidAmount, i)
		}
		switch line.Side {
		case ledger.SideDebit:
			sumDebits += minor
		case ledger.SideCredit:
			sumCredits += minor
		default:
			return ledger.Transaction{}, lineErr(i, "type must be debit or credit")
		}
		names = append(names, line.AccountName)
	}
	// Line amounts are already rounded to 2 decimals, so the 0.005 epsilon on
	// totals collapses to exact equality in minor units.
	if sumDebits != sumCredits {
		return ledger.Transaction{}, fmt.Errorf("%w: Transaction not balanced: Debits (%.2f) ≠ Credits (%.2f)",
			errs.ErrUnbalanced, float64(sumDebits)/100, float64(sumCredits)/100)
	}

	accMap, err := s.repo.AccountsByNames(ctx, names)
	if err != nil {
		return ledger.Transaction{}, err
	}
	for i := range tx.Lines {
		line := &tx.Lines[i]
		acc, ok := accMap[line.AccountName]
		if !ok {
			return ledger.Transaction{}, lineErr(i, "account "+line.AccountName+" not found")
		}
		if !acc.Active {
			return ledger.Transaction{}, fmt.Errorf("%w: line[%d]: account %s is inactive", errs.ErrInactiveAccount, i, line.AccountName)
		}
		line.AccountID = acc.ID
		line.AccountType = acc.Type
	}

	if err := s.checkPeriodOpen(ctx, tx.Date); err != nil {
		return ledger.Transaction{}, err
	}

	// Dedup guard for POS postings: reference doubles as the idempotency key.
	if tx.Source == ledger.SourcePOS && tx.Reference != "" {
		if _, found, err := s.ByReference(ctx, ledger.SourcePOS, tx.Reference); err != nil {
			return ledger.Transaction{}, err
		} else if found {
			return ledger.Transaction{}, fmt.Errorf("%w: %s", errs.ErrConflict, ErrDuplicateReference)
		}
	}

	tx.ID = uuid.New()
	tx.CreatedAt = time.Now().UTC()
	if tx.Date.Location() != time.UTC {
		tx.Date = tx.Date.UTC()
	}
	for i := range tx.Lines {
		tx.Lines[i].ID = uuid.New()
		tx.Lines[i].TransactionID = tx.ID
	}
	if _, err := s.writer.CreateTransaction(ctx, tx); err != nil {
		return ledger.Transaction{}, err
	}
	committed, err := s.repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	// Post-commit integrity check. A mismatch here is a bug, never user input.
	var d, c int64
	for _, line := range committed.Lines {
		if line.Side == ledger.SideDebit {
			d += ledger.Minor(line.Amount)
		} else {
			c += ledger.Minor(line.Amount)
		}
	}
	if d != c {
		return ledger.Transaction{}, fmt.Errorf("committed transaction %s unbalanced: %d vs %d", committed.ID, d, c)
	}
	return committed, nil
}

func (s *service) List(ctx context.Context, f Filter) ([]ledger.Transaction, error) {
	return s.repo.ListTransactions(ctx, f)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	if id == uuid.Nil {
		return ledger.Transaction{}, errs.ErrInvalid
	}
	return s.repo.GetTransaction(ctx, id)
}

// ByReference looks up a transaction by (source, reference). Serves the POS
// worker's pre-check and the dedup guard.
func (s *service) ByReference(ctx context.Context, source ledger.Source, reference string) (ledger.Transaction, bool, error) {
	if reference == "" {
		return ledger.Transaction{}, false, errs.ErrInvalid
	}
	matches, err := s.repo.ListTransactions(ctx, Filter{Source: &source, Reference: reference})
	if err != nil {
		return ledger.Transaction{}, false, err
	}
	if len(matches) == 0 {
		return ledger.Transaction{}, false, nil
	}
	return matches[0], true, nil
}

// checkPeriodOpen rejects postings dated inside a closed or locked period.
// Dates outside any period are allowed.
func (s *service) checkPeriodOpen(ctx context.Context, date time.Time) error {
	periods, err := s.repo.ListPeriods(ctx)
	if err != nil {
		return err
	}
	for _, p := range periods {
		if !p.Covers(date) {
			continue
		}
		switch p.Status {
		case ledger.PeriodOpen:
			return nil
		case ledger.PeriodClosed:
			return fmt.Errorf("%w: Period is closed", errs.ErrClosedPeriod)
		case ledger.PeriodLocked:
			return fmt.Errorf("%w: Period is locked", errs.ErrClosedPeriod)
		}
	}
	return nil
}

// --- Period lifecycle ---

func (s *service) CreatePeriod(ctx context.Context, p ledger.Period) (ledger.Period, error) {
	if p.PeriodStart.IsZero() || p.PeriodEnd.IsZero() {
		return ledger.Period{}, fmt.Errorf("%w: period bounds are required", errs.ErrInvalid)
	}
	if !p.PeriodEnd.After(p.PeriodStart) {
		return ledger.Period{}, fmt.Errorf("%w: period_end must be after period_start", errs.ErrInvalid)
	}
	existing, err := s.repo.ListPeriods(ctx)
	if err != nil {
		return ledger.Period{}, err
	}
	for _, other := range existing {
		if p.Overlaps(other) {
			return ledger.Period{}, fmt.Errorf("%w: period overlaps %s", errs.ErrConflict, other.Name)
		}
	}
	p.ID = uuid.New()
	p.Status = ledger.PeriodOpen
	p.ClosedBy = ""
	p.ClosedAt = nil
	return s.writer.CreatePeriod(ctx, p)
}

func (s *service) ClosePeriod(ctx context.Context, id uuid.UUID, actor string) (ledger.Period, error) {
	p, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return ledger.Period{}, err
	}
	if p.Status != ledger.PeriodOpen {
		return ledger.Period{}, fmt.Errorf("%w: cannot close period in status %s", errs.ErrConflict, p.Status)
	}
	now := time.Now().UTC()
	p.Status = ledger.PeriodClosed
	p.ClosedBy = actor
	p.ClosedAt = &now
	return s.writer.UpdatePeriod(ctx, p)
}

// LockPeriod is valid from both open and closed. Locked is terminal.
func (s *service) LockPeriod(ctx context.Context, id uuid.UUID, actor string) (ledger.Period, error) {
	p, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return ledger.Period{}, err
	}
	if p.Status == ledger.PeriodLocked {
		return ledger.Period{}, fmt.Errorf("%w: period already locked", errs.ErrConflict)
	}
	p.Status = ledger.PeriodLocked
	if p.ClosedAt == nil {
		now := time.Now().UTC()
		p.ClosedBy = actor
		p.ClosedAt = &now
	}
	return s.writer.UpdatePeriod(ctx, p)
}

// ReopenPeriod restores a closed period to open and clears the closing audit
// fields. Locked periods are never reopened.
func (s *service) ReopenPeriod(ctx context.Context, id uuid.UUID) (ledger.Period, error) {
	p, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return ledger.Period{}, err
	}
	switch p.Status {
	case ledger.PeriodClosed:
	case ledger.PeriodLocked:
		return ledger.Period{}, fmt.Errorf("%w: cannot reopen a locked period", errs.ErrConflict)
	default:
		return ledger.Period{}, fmt.Errorf("%w: cannot reopen period in status %s", errs.ErrConflict, p.Status)
	}
	p.Status = ledger.PeriodOpen
	p.ClosedBy = ""
	p.ClosedAt = nil
	return s.writer.UpdatePeriod(ctx, p)
}

func (s *service) ListPeriods(ctx context.Context) ([]ledger.Period, error) {
	return s.repo.ListPeriods(ctx)
}

func lineErr(i int, msg string) error {
	return fmt.Errorf("%w: line[%d]: %s", errs.ErrInvalid, i, msg)
}
