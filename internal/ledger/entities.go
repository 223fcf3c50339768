package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/backoffice/internal/meta"
)

// Side represents the accounting position of a transaction line.
type Side string

const (
	// SideDebit records a value on the debit side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit side of an account.
	SideCredit Side = "credit"
)

// AccountType enumerates the broad classification of an account in the ledger.
type AccountType string

const (
	// AccountTypeAsset increases on the debit side and holds resources owned by the business.
	AccountTypeAsset AccountType = "asset"
	// AccountTypeLiability increases on the credit side and tracks obligations.
	AccountTypeLiability AccountType = "liability"
	// AccountTypeEquity captures the owners' residual interest in the entity.
	AccountTypeEquity AccountType = "equity"
	// AccountTypeIncome represents inflows that increase equity.
	AccountTypeIncome AccountType = "income"
	// AccountTypeExpense represents outflows that decrease equity.
	AccountTypeExpense AccountType = "expense"
)

// ValidType reports whether t is one of the five account types.
func ValidType(t AccountType) bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether accounts of type t carry their natural balance
// on the debit side (assets and expenses).
func DebitNormal(t AccountType) bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Source identifies the origin system of a transaction. The wire format is
// lowercase and enforced at the edge of every service.
type Source string

const (
	SourcePOS    Source = "pos"
	SourceAPI    Source = "api"
	SourceImport Source = "import"
	SourceManual Source = "manual"
	SourceWeb    Source = "web"
)

// ValidSource reports whether s is one of the canonical source tags.
func ValidSource(s Source) bool {
	switch s {
	case SourcePOS, SourceAPI, SourceImport, SourceManual, SourceWeb:
		return true
	}
	return false
}

// PeriodStatus enumerates the lifecycle states of an accounting period.
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
	// PeriodLocked is terminal; a locked period can never be reopened.
	PeriodLocked PeriodStatus = "locked"
)

// Account represents a node in the chart of accounts.
type Account struct {
	ID          uuid.UUID
	Code        string
	Name        string
	Type        AccountType
	Description string
	// Metadata holds additional key-value attributes for the account.
	Metadata meta.Metadata `json:"metadata,omitempty"`
	// Active indicates whether the account accepts postings (soft-delete when false).
	Active    bool
	CreatedAt time.Time
}

// Transaction is a dated, described, balanced group of debit and credit lines.
// Transactions are append-only; corrections are posted as new compensating
// transactions, never as mutations.
type Transaction struct {
	ID          uuid.UUID
	Date        time.Time
	Description string
	Source      Source
	// Reference carries an external correlation id, e.g. a POS sale number.
	Reference string
	CreatedBy string
	CreatedAt time.Time
	// Metadata holds additional key-value attributes for the transaction.
	Metadata meta.Metadata `json:"metadata,omitempty"`
	Lines    []TransactionLine
}

// TransactionLine links a transaction to an account with an amount on a side.
type TransactionLine struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	// AccountName and AccountType are snapshots resolved at read time.
	AccountName string
	AccountType AccountType
	Side        Side
	Amount      money.Amount
}

// Period is a time interval over which transactions may be posted (open) or
// not (closed/locked). Periods never overlap.
type Period struct {
	ID          uuid.UUID
	Name        string
	PeriodStart time.Time
	PeriodEnd   time.Time
	FiscalYear  int
	Status      PeriodStatus
	ClosedBy    string
	ClosedAt    *time.Time
}

// Covers reports whether t falls inside the period [start, end] inclusive.
func (p Period) Covers(t time.Time) bool {
	return !t.Before(p.PeriodStart) && !t.After(p.PeriodEnd)
}

// Overlaps reports whether two periods share any instant.
func (p Period) Overlaps(other Period) bool {
	return !p.PeriodEnd.Before(other.PeriodStart) && !other.PeriodEnd.Before(p.PeriodStart)
}
