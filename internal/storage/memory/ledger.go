// Package memory provides in-memory store implementations used for
// development and tests. Each store mirrors the interface pairs of one
// service so a real database can be plugged in without touching handlers.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/ledger"
	"github.com/tinoosan/backoffice/internal/service/account"
	"github.com/tinoosan/backoffice/internal/service/journal"
	"github.com/tinoosan/backoffice/internal/service/report"
)

var (
	_ account.Repo   = (*LedgerStore)(nil)
	_ account.Writer = (*LedgerStore)(nil)
	_ journal.Repo   = (*LedgerStore)(nil)
	_ journal.Writer = (*LedgerStore)(nil)
	_ report.Repo    = (*LedgerStore)(nil)
)

// LedgerStore keeps accounts, transactions, and periods behind one RWMutex.
type LedgerStore struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]ledger.Account
	transactions map[uuid.UUID]ledger.Transaction
	periods      map[uuid.UUID]ledger.Period
}

// NewLedgerStore constructs an empty store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts:     make(map[uuid.UUID]ledger.Account),
		transactions: make(map[uuid.UUID]ledger.Transaction),
		periods:      make(map[uuid.UUID]ledger.Period),
	}
}

// SeedAccount inserts an account directly, bypassing validation. Tests only.
func (s *LedgerStore) SeedAccount(a ledger.Account) {
	s.mu.Lock()
	s.accounts[a.ID] = a
	s.mu.Unlock()
}

// SeedPeriod inserts a period directly. Tests only.
func (s *LedgerStore) SeedPeriod(p ledger.Period) {
	s.mu.Lock()
	s.periods[p.ID] = p
	s.mu.Unlock()
}

func (s *LedgerStore) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *LedgerStore) GetAccount(_ context.Context, accountID uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

func (s *LedgerStore) AccountsByNames(_ context.Context, names []string) (map[string]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := make(map[string]ledger.Account, len(want))
	for _, a := range s.accounts {
		if _, ok := want[a.Name]; ok {
			out[a.Name] = a
		}
	}
	return out, nil
}

func (s *LedgerStore) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return a, nil
}

func (s *LedgerStore) UpdateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	s.accounts[a.ID] = a
	return a, nil
}

// CreateTransaction stores header and lines together; the single map write
// under the lock is the in-memory stand-in for a database transaction.
func (s *LedgerStore) CreateTransaction(_ context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := tx
	cp.Lines = append([]ledger.TransactionLine(nil), tx.Lines...)
	s.transactions[cp.ID] = cp
	return cp, nil
}

func (s *LedgerStore) GetTransaction(_ context.Context, id uuid.UUID) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return tx, nil
}

func (s *LedgerStore) ListTransactions(_ context.Context, f journal.Filter) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if f.Source != nil && tx.Source != *f.Source {
			continue
		}
		if f.Reference != "" && tx.Reference != f.Reference {
			continue
		}
		if f.From != nil && tx.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && tx.Date.After(*f.To) {
			continue
		}
		if f.AccountID != nil {
			hit := false
			for _, line := range tx.Lines {
				if line.AccountID == *f.AccountID {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *LedgerStore) ListPeriods(_ context.Context) ([]ledger.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Period, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

func (s *LedgerStore) GetPeriod(_ context.Context, id uuid.UUID) (ledger.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.periods[id]
	if !ok {
		return ledger.Period{}, errs.ErrNotFound
	}
	return p, nil
}

func (s *LedgerStore) CreatePeriod(_ context.Context, p ledger.Period) (ledger.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[p.ID] = p
	return p, nil
}

func (s *LedgerStore) UpdatePeriod(_ context.Context, p ledger.Period) (ledger.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[p.ID]; !ok {
		return ledger.Period{}, errs.ErrNotFound
	}
	s.periods[p.ID] = p
	return p, nil
}
