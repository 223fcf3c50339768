// Package report derives the financial statements from the journal by pure
// aggregation. No report mutates state and no denormalized balances are kept.
package report

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/backoffice/internal/ledger"
	"github.com/tinoosan/backoffice/internal/service/journal"
)

// Repo is the read surface the generator needs.
type Repo interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	ListTransactions(ctx context.Context, f journal.Filter) ([]ledger.Transaction, error)
}

// Service generates the five statements plus the dashboard summary.
type Service interface {
	TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error)
	BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error)
	IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error)
	GeneralLedger(ctx context.Context, accountID *uuid.UUID, from, to time.Time) (GeneralLedger, error)
	CashFlow(ctx context.Context, from, to time.Time) (CashFlow, error)
	Dashboard(ctx context.Context, asOf time.Time) (Dashboard, error)
}

type service struct {
	repo Repo
}

func New(repo Repo) Service { return &service{repo: repo} }

// TrialBalanceRow carries one account's side totals and natural-sign balance.
type TrialBalanceRow struct {
	AccountID uuid.UUID          `json:"account_id"`
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Type      ledger.AccountType `json:"type"`
	Debit     float64            `json:"debit"`
	Credit    float64            `json:"credit"`
	Balance   float64            `json:"balance"`
}

type TrialBalance struct {
	AsOf        time.Time         `json:"as_of"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  float64           `json:"total_debit"`
	TotalCredit float64           `json:"total_credit"`
	Balanced    bool              `json:"balanced"`
}

type BalanceSheetRow struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Balance   float64   `json:"balance"`
}

type BalanceSheet struct {
	AsOf             time.Time         `json:"as_of"`
	Assets           []BalanceSheetRow `json:"assets"`
	Liabilities      []BalanceSheetRow `json:"liabilities"`
	Equity           []BalanceSheetRow `json:"equity"`
	RetainedEarnings float64           `json:"retained_earnings"`
	TotalAssets      float64           `json:"total_assets"`
	TotalLiabilities float64           `json:"total_liabilities"`
	TotalEquity      float64           `json:"total_equity"`
	Balanced         bool              `json:"balanced"`
}

type IncomeStatement struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Income    float64   `json:"income"`
	Expense   float64   `json:"expense"`
	NetIncome float64   `json:"net_income"`
}

type GeneralLedgerLine struct {
	TransactionID uuid.UUID   `json:"transaction_id"`
	Date          time.Time   `json:"date"`
	Description   string      `json:"description"`
	Side          ledger.Side `json:"type"`
	Amount        float64     `json:"amount"`
	Running       float64     `json:"running_balance"`
}

type GeneralLedgerAccount struct {
	AccountID uuid.UUID           `json:"account_id"`
	Code      string              `json:"code"`
	Name      string              `json:"name"`
	Type      ledger.AccountType  `json:"type"`
	Lines     []GeneralLedgerLine `json:"lines"`
	Closing   float64             `json:"closing_balance"`
}

type GeneralLedger struct {
	From     time.Time              `json:"from"`
	To       time.Time              `json:"to"`
	Accounts []GeneralLedgerAccount `json:"accounts"`
}

type CashMovement struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
	Account       string    `json:"account"`
	Direction     string    `json:"direction"`
	Amount        float64   `json:"amount"`
}

type CashFlow struct {
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
	Movements []CashMovement `json:"movements"`
	Inflow    float64        `json:"total_inflow"`
	Outflow   float64        `json:"total_outflow"`
	Net       float64        `json:"net_cash_flow"`
}

type Dashboard struct {
	AsOf             time.Time `json:"as_of"`
	CashBalance      float64   `json:"cash_balance"`
	TotalAssets      float64   `json:"total_assets"`
	TotalLiabilities float64   `json:"total_liabilities"`
	TotalEquity      float64   `json:"total_equity"`
	NetIncome        float64   `json:"net_income"`
	TransactionCount int       `json:"transaction_count"`
	Balanced         bool      `json:"balanced"`
}

// sideTotals accumulates raw debit/credit minor units per account.
type sideTotals struct {
	debit  int64
	credit int64
}

// naturalBalance applies the account-type sign convention.
func (t sideTotals) naturalBalance(typ ledger.AccountType) int64 {
	if ledger.DebitNormal(typ) {
		return t.debit - t.credit
	}
	return t.credit - t.debit
}

// totalsAsOf walks the journal once and sums per-account side totals for
// lines whose transaction date is not after asOf.
func (s *service) totalsAsOf(ctx context.Context, asOf time.Time) (map[uuid.UUID]sideTotals, int, error) {
	txs, err := s.repo.ListTransactions(ctx, journal.Filter{To: &asOf})
	if err != nil {
		return nil, 0, err
	}
	totals := make(map[uuid.UUID]sideTotals)
	for _, tx := range txs {
		for _, line := range tx.Lines {
			t := totals[line.AccountID]
			if line.Side == ledger.SideDebit {
				t.debit += ledger.Minor(line.Amount)
			} else {
				t.credit += ledger.Minor(line.Amount)
			}
			totals[line.AccountID] = t
		}
	}
	return totals, len(txs), nil
}

func (s *service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	totals, _, err := s.totalsAsOf(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	out := TrialBalance{AsOf: asOf, Rows: make([]TrialBalanceRow, 0, len(accounts))}
	var sumDebit, sumCredit int64
	for _, acc := range sortedByCode(accounts) {
		t := totals[acc.ID]
		if t.debit == 0 && t.credit == 0 {
			continue
		}
		sumDebit += t.debit
		sumCredit += t.credit
		out.Rows = append(out.Rows, TrialBalanceRow{
			AccountID: acc.ID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Debit:     ledger.NumberFromMinor(t.debit),
			Credit:    ledger.NumberFromMinor(t.credit),
			Balance:   ledger.NumberFromMinor(t.naturalBalance(acc.Type)),
		})
	}
	out.TotalDebit = ledger.NumberFromMinor(sumDebit)
	out.TotalCredit = ledger.NumberFromMinor(sumCredit)
	out.Balanced = sumDebit == sumCredit
	return out, nil
}

func (s *service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return BalanceSheet{}, err
	}
	totals, _, err := s.totalsAsOf(ctx, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}
	out := BalanceSheet{AsOf: asOf}
	var assets, liabilities, equity, income, expense int64
	for _, acc := range sortedByCode(accounts) {
		bal := totals[acc.ID].naturalBalance(acc.Type)
		row := BalanceSheetRow{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Balance: ledger.NumberFromMinor(bal)}
		switch acc.Type {
		case ledger.AccountTypeAsset:
			assets += bal
			out.Assets = append(out.Assets, row)
		case ledger.AccountTypeLiability:
			liabilities += bal
			out.Liabilities = append(out.Liabilities, row)
		case ledger.AccountTypeEquity:
			equity += bal
			out.Equity = append(out.Equity, row)
		case ledger.AccountTypeIncome:
			income += bal
		case ledger.AccountTypeExpense:
			expense += bal
		}
	}
	// Income and expense fold into equity as derived Retained Earnings; the
	// journal never posts a closing entry for them.
	retained := income - expense
	out.RetainedEarnings = ledger.NumberFromMinor(retained)
	out.TotalAssets = ledger.NumberFromMinor(assets)
	out.TotalLiabilities = ledger.NumberFromMinor(liabilities)
	out.TotalEquity = ledger.NumberFromMinor(equity + retained)
	out.Balanced = assets == liabilities+equity+retained
	return out, nil
}

func (s *service) IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return IncomeStatement{}, err
	}
	types := make(map[uuid.UUID]ledger.AccountType, len(accounts))
	for _, acc := range accounts {
		types[acc.ID] = acc.Type
	}
	txs, err := s.repo.ListTransactions(ctx, journal.Filter{From: &from, To: &to})
	if err != nil {
		return IncomeStatement{}, err
	}
	var income, expense int64
	for _, tx := range txs {
		for _, line := range tx.Lines {
			minor := ledger.Minor(line.Amount)
			switch types[line.AccountID] {
			case ledger.AccountTypeIncome:
				if line.Side == ledger.SideCredit {
					income += minor
				} else {
					income -= minor
				}
			case ledger.AccountTypeExpense:
				if line.Side == ledger.SideDebit {
					expense += minor
				} else {
					expense -= minor
				}
			}
		}
	}
	return IncomeStatement{
		From:      from,
		To:        to,
		Income:    ledger.NumberFromMinor(income),
		Expense:   ledger.NumberFromMinor(expense),
		NetIncome: ledger.NumberFromMinor(income - expense),
	}, nil
}

func (s *service) GeneralLedger(ctx context.Context, accountID *uuid.UUID, from, to time.Time) (GeneralLedger, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return GeneralLedger{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, journal.Filter{From: &from, To: &to})
	if err != nil {
		return GeneralLedger{}, err
	}
	out := GeneralLedger{From: from, To: to}
	for _, acc := range sortedByCode(accounts) {
		if accountID != nil && acc.ID != *accountID {
			continue
		}
		ga := GeneralLedgerAccount{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Type: acc.Type}
		var running int64
		for _, tx := range txs {
			for _, line := range tx.Lines {
				if line.AccountID != acc.ID {
					continue
				}
				minor := ledger.Minor(line.Amount)
				if ledger.DebitNormal(acc.Type) == (line.Side == ledger.SideDebit) {
					running += minor
				} else {
					running -= minor
				}
				ga.Lines = append(ga.Lines, GeneralLedgerLine{
					TransactionID: tx.ID,
					Date:          tx.Date,
					Description:   tx.Description,
					Side:          line.Side,
					Amount:        ledger.NumberFromMinor(minor),
					Running:       ledger.NumberFromMinor(running),
				})
			}
		}
		if len(ga.Lines) == 0 && accountID == nil {
			continue
		}
		ga.Closing = ledger.NumberFromMinor(running)
		out.Accounts = append(out.Accounts, ga)
	}
	return out, nil
}

// CashFlow walks lines against the cash-account set, by convention accounts
// whose name contains "Cash". Debits are inflows, credits outflows.
func (s *service) CashFlow(ctx context.Context, from, to time.Time) (CashFlow, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return CashFlow{}, err
	}
	cashNames := make(map[uuid.UUID]string)
	for _, acc := range accounts {
		if strings.Contains(acc.Name, "Cash") {
			cashNames[acc.ID] = acc.Name
		}
	}
	txs, err := s.repo.ListTransactions(ctx, journal.Filter{From: &from, To: &to})
	if err != nil {
		return CashFlow{}, err
	}
	out := CashFlow{From: from, To: to}
	var inflow, outflow int64
	for _, tx := range txs {
		for _, line := range tx.Lines {
			name, ok := cashNames[line.AccountID]
			if !ok {
				continue
			}
			minor := ledger.Minor(line.Amount)
			m := CashMovement{
				TransactionID: tx.ID,
				Date:          tx.Date,
				Description:   tx.Description,
				Account:       name,
				Amount:        ledger.NumberFromMinor(minor),
			}
			if line.Side == ledger.SideDebit {
				m.Direction = "inflow"
				inflow += minor
			} else {
				m.Direction = "outflow"
				outflow += minor
			}
			out.Movements = append(out.Movements, m)
		}
	}
	out.Inflow = ledger.NumberFromMinor(inflow)
	out.Outflow = ledger.NumberFromMinor(outflow)
	out.Net = ledger.NumberFromMinor(inflow - outflow)
	return out, nil
}

func (s *service) Dashboard(ctx context.Context, asOf time.Time) (Dashboard, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	totals, txCount, err := s.totalsAsOf(ctx, asOf)
	if err != nil {
		return Dashboard{}, err
	}
	var assets, liabilities, equity, income, expense, cash int64
	for _, acc := range accounts {
		bal := totals[acc.ID].naturalBalance(acc.Type)
		switch acc.Type {
		case ledger.AccountTypeAsset:
			assets += bal
			if strings.Contains(acc.Name, "Cash") {
				cash += bal
			}
		case ledger.AccountTypeLiability:
			liabilities += bal
		case ledger.AccountTypeEquity:
			equity += bal
		case ledger.AccountTypeIncome:
			income += bal
		case ledger.AccountTypeExpense:
			expense += bal
		}
	}
	retained := income - expense
	return Dashboard{
		AsOf:             asOf,
		CashBalance:      ledger.NumberFromMinor(cash),
		TotalAssets:      ledger.NumberFromMinor(assets),
		TotalLiabilities: ledger.NumberFromMinor(liabilities),
		TotalEquity:      ledger.NumberFromMinor(equity + retained),
		NetIncome:        ledger.NumberFromMinor(retained),
		TransactionCount: txCount,
		Balanced:         assets == liabilities+equity+retained,
	}, nil
}

func sortedByCode(accounts []ledger.Account) []ledger.Account {
	out := make([]ledger.Account, len(accounts))
	copy(out, accounts)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
