package ledgerapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/ledger"
	"github.com/tinoosan/backoffice/internal/meta"
)

// Amounts cross the wire as decimal-2 JSON numbers; the posting engine works
// in minor units internally.
const wireCurrency = "USD"

type accountRequest struct {
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Type        ledger.AccountType `json:"type"`
	Description string             `json:"description,omitempty"`
	Metadata    meta.Metadata      `json:"metadata,omitempty"`
}

type accountResponse struct {
	ID          uuid.UUID          `json:"id"`
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Type        ledger.AccountType `json:"type"`
	Description string             `json:"description,omitempty"`
	Metadata    meta.Metadata      `json:"metadata,omitempty"`
	Active      bool               `json:"active"`
	CreatedAt   time.Time          `json:"created_at"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Type:        a.Type,
		Description: a.Description,
		Metadata:    a.Metadata,
		Active:      a.Active,
		CreatedAt:   a.CreatedAt,
	}
}

type lineRequest struct {
	Account string      `json:"account"`
	Type    ledger.Side `json:"type"`
	Amount  float64     `json:"amount"`
}

type transactionRequest struct {
	Date        time.Time     `json:"date"`
	Description string        `json:"description"`
	Source      ledger.Source `json:"source"`
	Reference   string        `json:"reference,omitempty"`
	CreatedBy   string        `json:"created_by,omitempty"`
	Metadata    meta.Metadata `json:"metadata,omitempty"`
	Lines       []lineRequest `json:"lines"`
}

func (req transactionRequest) toDomain() ledger.Transaction {
	tx := ledger.Transaction{
		Date:        req.Date,
		Description: req.Description,
		Source:      req.Source,
		Reference:   req.Reference,
		CreatedBy:   req.CreatedBy,
		Metadata:    req.Metadata,
	}
	for _, line := range req.Lines {
		tx.Lines = append(tx.Lines, ledger.TransactionLine{
			AccountName: line.Account,
			Side:        line.Type,
			Amount:      ledger.AmountFromMinor(wireCurrency, ledger.MinorFromNumber(line.Amount)),
		})
	}
	return tx
}

type lineResponse struct {
	ID        uuid.UUID          `json:"id"`
	AccountID uuid.UUID          `json:"account_id"`
	Account   string             `json:"account"`
	Type      ledger.Side        `json:"type"`
	Amount    float64            `json:"amount"`
	AccType   ledger.AccountType `json:"account_type,omitempty"`
}

type transactionResponse struct {
	ID          uuid.UUID      `json:"id"`
	Date        time.Time      `json:"date"`
	Description string         `json:"description"`
	Source      ledger.Source  `json:"source"`
	Reference   string         `json:"reference,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Metadata    meta.Metadata  `json:"metadata,omitempty"`
	Lines       []lineResponse `json:"lines"`
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	out := transactionResponse{
		ID:          tx.ID,
		Date:        tx.Date,
		Description: tx.Description,
		Source:      tx.Source,
		Reference:   tx.Reference,
		CreatedBy:   tx.CreatedBy,
		CreatedAt:   tx.CreatedAt,
		Metadata:    tx.Metadata,
	}
	for _, line := range tx.Lines {
		out.Lines = append(out.Lines, lineResponse{
			ID:        line.ID,
			AccountID: line.AccountID,
			Account:   line.AccountName,
			Type:      line.Side,
			Amount:    ledger.NumberFromMinor(ledger.Minor(line.Amount)),
			AccType:   line.AccountType,
		})
	}
	return out
}

type periodRequest struct {
	Name        string    `json:"name"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	FiscalYear  int       `json:"fiscal_year"`
}

type periodResponse struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	PeriodStart time.Time           `json:"period_start"`
	PeriodEnd   time.Time           `json:"period_end"`
	FiscalYear  int                 `json:"fiscal_year"`
	Status      ledger.PeriodStatus `json:"status"`
	ClosedBy    string              `json:"closed_by,omitempty"`
	ClosedAt    *time.Time          `json:"closed_at,omitempty"`
}

func toPeriodResponse(p ledger.Period) periodResponse {
	return periodResponse{
		ID:          p.ID,
		Name:        p.Name,
		PeriodStart: p.PeriodStart,
		PeriodEnd:   p.PeriodEnd,
		FiscalYear:  p.FiscalYear,
		Status:      p.Status,
		ClosedBy:    p.ClosedBy,
		ClosedAt:    p.ClosedAt,
	}
}
