package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/pos"
	"github.com/tinoosan/backoffice/internal/service/sale"
)

var (
	_ sale.Repo   = (*POSStore)(nil)
	_ sale.Writer = (*POSStore)(nil)
)

// POSStore keeps sales, adjustments, and the settings singleton.
type POSStore struct {
	mu          sync.RWMutex
	sales       map[uuid.UUID]pos.Sale
	byNumber    map[string]uuid.UUID
	adjustments map[uuid.UUID][]pos.SaleAdjustment
	settings    pos.Settings
}

// NewPOSStore constructs a store seeded with the default settings.
func NewPOSStore() *POSStore {
	return &POSStore{
		sales:       make(map[uuid.UUID]pos.Sale),
		byNumber:    make(map[string]uuid.UUID),
		adjustments: make(map[uuid.UUID][]pos.SaleAdjustment),
		settings:    pos.DefaultSettings(),
	}
}

// SeedSale inserts a sale directly, bypassing the pipeline. Tests only.
func (s *POSStore) SeedSale(sl pos.Sale) {
	s.mu.Lock()
	s.sales[sl.ID] = sl
	s.byNumber[sl.SaleNumber] = sl.ID
	s.mu.Unlock()
}

func (s *POSStore) GetSale(_ context.Context, saleID uuid.UUID) (pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.sales[saleID]
	if !ok {
		return pos.Sale{}, errs.ErrNotFound
	}
	return sl, nil
}

func (s *POSStore) SaleByNumber(_ context.Context, saleNumber string) (pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[saleNumber]
	if !ok {
		return pos.Sale{}, errs.ErrNotFound
	}
	return s.sales[id], nil
}

func (s *POSStore) ListSales(_ context.Context, f sale.Filter) ([]pos.Sale, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]pos.Sale, 0, len(s.sales))
	for _, sl := range s.sales {
		if f.From != nil && sl.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && sl.CreatedAt.After(*f.To) {
			continue
		}
		if f.Status != nil && sl.Status != *f.Status {
			continue
		}
		all = append(all, sl)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return []pos.Sale{}, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *POSStore) SalesByStatus(_ context.Context, statuses ...pos.SyncStatus) ([]pos.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[pos.SyncStatus]struct{}, len(statuses))
	for _, st := range statuses {
		want[st] = struct{}{}
	}
	out := make([]pos.Sale, 0)
	for _, sl := range s.sales {
		if _, ok := want[sl.Status]; ok {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *POSStore) CountSalesOn(_ context.Context, day time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	y, m, d := day.UTC().Date()
	n := 0
	for _, sl := range s.sales {
		sy, sm, sd := sl.CreatedAt.UTC().Date()
		if sy == y && sm == m && sd == d {
			n++
		}
	}
	return n, nil
}

func (s *POSStore) GetSettings(_ context.Context) (pos.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *POSStore) AdjustmentsFor(_ context.Context, saleID uuid.UUID) ([]pos.SaleAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	adjs := s.adjustments[saleID]
	out := make([]pos.SaleAdjustment, len(adjs))
	copy(out, adjs)
	return out, nil
}

func (s *POSStore) CreateSale(_ context.Context, sl pos.Sale) (pos.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byNumber[sl.SaleNumber]; ok {
		return pos.Sale{}, errs.ErrConflict
	}
	cp := sl
	cp.Items = append([]pos.SaleItem(nil), sl.Items...)
	s.sales[cp.ID] = cp
	s.byNumber[cp.SaleNumber] = cp.ID
	return cp, nil
}

func (s *POSStore) UpdateSaleSync(_ context.Context, saleID uuid.UUID, status pos.SyncStatus, ledgerEntryID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.sales[saleID]
	if !ok {
		return errs.ErrNotFound
	}
	sl.Status = status
	if ledgerEntryID != nil {
		sl.LedgerEntryID = ledgerEntryID
	}
	s.sales[saleID] = sl
	return nil
}

func (s *POSStore) SaveSettings(_ context.Context, settings pos.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *POSStore) CreateAdjustment(_ context.Context, a pos.SaleAdjustment) (pos.SaleAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustments[a.SaleID] = append(s.adjustments[a.SaleID], a)
	return a, nil
}

func (s *POSStore) SetAdjustmentEntry(_ context.Context, adjustmentID uuid.UUID, ledgerEntryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for saleID, adjs := range s.adjustments {
		for i := range adjs {
			if adjs[i].ID == adjustmentID {
				adjs[i].LedgerEntryID = &ledgerEntryID
				s.adjustments[saleID] = adjs
				return nil
			}
		}
	}
	return errs.ErrNotFound
}
