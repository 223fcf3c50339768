// Package account implements the chart-of-accounts rules: unique code and
// name, five fixed types, soft-deletes, and explicit creation only.
package account

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	GetAccount(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
}

// Service exposes validation and lifecycle of chart-of-accounts rows.
type Service interface {
	ValidateCreate(a ledger.Account) error
	Create(ctx context.Context, a ledger.Account) (ledger.Account, error)
	List(ctx context.Context, onlyActive bool) ([]ledger.Account, error)
	Get(ctx context.Context, accountID uuid.UUID) (ledger.Account, error)
	Deactivate(ctx context.Context, accountID uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
}

func New(repo Repo, writer Writer) Service { return &service{repo: repo, writer: writer} }

// ErrCodeExists indicates an account with the same code already exists.
var ErrCodeExists = errors.New("account code already exists")

// ErrNameExists indicates an account with the same name already exists.
var ErrNameExists = errors.New("account name already exists")

func (s *service) ValidateCreate(a ledger.Account) error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(a.Code) == "" {
		return errors.New("code is required")
	}
	if !ledger.ValidType(a.Type) {
		return errors.New("invalid account type")
	}
	if a.Metadata != nil {
		if err := a.Metadata.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Create(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Code = strings.TrimSpace(a.Code)
	if err := s.ValidateCreate(a); err != nil {
		return ledger.Account{}, err
	}
	existing, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return ledger.Account{}, err
	}
	for _, other := range existing {
		if other.Code == a.Code {
			return ledger.Account{}, ErrCodeExists
		}
		if other.Name == a.Name {
			return ledger.Account{}, ErrNameExists
		}
	}
	a.ID = uuid.New()
	a.Active = true
	return s.writer.CreateAccount(ctx, a)
}

func (s *service) List(ctx context.Context, onlyActive bool) ([]ledger.Account, error) {
	accs, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if !onlyActive {
		return accs, nil
	}
	out := make([]ledger.Account, 0, len(accs))
	for _, a := range accs {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	if accountID == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.GetAccount(ctx, accountID)
}

// Deactivate sets Active=false (soft delete). Accounts are never deleted.
func (s *service) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return errs.ErrInvalid
	}
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	acc.Active = false
	_, err = s.writer.UpdateAccount(ctx, acc)
	return err
}
