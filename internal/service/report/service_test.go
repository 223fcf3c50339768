package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/tinoosan/backoffice/internal/ledger"
	"github.com/tinoosan/backoffice/internal/service/journal"
	"github.com/tinoosan/backoffice/internal/service/report"
	"github.com/tinoosan/backoffice/internal/storage/memory"
)

func amount(minor int64) money.Amount {
	return ledger.AmountFromMinor("USD", minor)
}

// seedJournal posts an opening contribution, one taxed sale, and a rent
// payment through the real posting engine so reports see committed data.
func seedJournal(t *testing.T) *memory.LedgerStore {
	t.Helper()
	store := memory.NewLedgerStore()
	accounts := []struct {
		code, name string
		typ        ledger.AccountType
	}{
		{"1000", "Cash", ledger.AccountTypeAsset},
		{"2100", "Sales Tax Payable", ledger.AccountTypeLiability},
		{"3000", "Owner Equity", ledger.AccountTypeEquity},
		{"4000", "Sales Revenue", ledger.AccountTypeIncome},
		{"5100", "Rent", ledger.AccountTypeExpense},
	}
	for _, a := range accounts {
		store.SeedAccount(ledger.Account{
			ID: uuid.New(), Code: a.code, Name: a.name, Type: a.typ,
			Active: true, CreatedAt: time.Now().UTC(),
		})
	}
	svc := journal.New(store, store)
	ctx := context.Background()
	post := func(desc string, date time.Time, lines []ledger.TransactionLine) {
		t.Helper()
		_, err := svc.Post(ctx, ledger.Transaction{
			Date: date, Description: desc, Source: ledger.SourceManual, Lines: lines,
		})
		if err != nil {
			t.Fatalf("post %q: %v", desc, err)
		}
	}
	jan := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	post("owner contribution", jan, []ledger.TransactionLine{
		{AccountName: "Cash", Side: ledger.SideDebit, Amount: amount(50000)},
		{AccountName: "Owner Equity", Side: ledger.SideCredit, Amount: amount(50000)},
	})
	post("POS sale POS-20260210-0001", feb, []ledger.TransactionLine{
		{AccountName: "Cash", Side: ledger.SideDebit, Amount: amount(11400)},
		{AccountName: "Sales Revenue", Side: ledger.SideCredit, Amount: amount(10000)},
		{AccountName: "Sales Tax Payable", Side: ledger.SideCredit, Amount: amount(1400)},
	})
	post("store rent", mar, []ledger.TransactionLine{
		{AccountName: "Rent", Side: ledger.SideDebit, Amount: amount(20000)},
		{AccountName: "Cash", Side: ledger.SideCredit, Amount: amount(20000)},
	})
	return store
}

func TestTrialBalanceBalances(t *testing.T) {
	store := seedJournal(t)
	svc := report.New(store)

	tb, err := svc.TrialBalance(context.Background(), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	if !tb.Balanced {
		t.Fatalf("trial balance not balanced: debit %v credit %v", tb.TotalDebit, tb.TotalCredit)
	}
	if tb.TotalDebit != tb.TotalCredit {
		t.Fatalf("totals differ: %v vs %v", tb.TotalDebit, tb.TotalCredit)
	}
	// Every account saw movement, so all five appear.
	if len(tb.Rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(tb.Rows))
	}
	for _, row := range tb.Rows {
		if row.Name == "Cash" && row.Balance != 414.00 {
			t.Fatalf("cash balance = %v, want 414.00", row.Balance)
		}
	}
}

func TestBalanceSheetIdentity(t *testing.T) {
	store := seedJournal(t)
	svc := report.New(store)

	bs, err := svc.BalanceSheet(context.Background(), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("balance sheet: %v", err)
	}
	if !bs.Balanced {
		t.Fatalf("identity violated: assets %v, liabilities %v, equity %v", bs.TotalAssets, bs.TotalLiabilities, bs.TotalEquity)
	}
	// Net income 100.00 - 200.00 folds into equity as retained earnings.
	if bs.RetainedEarnings != -100.00 {
		t.Fatalf("retained earnings = %v, want -100.00", bs.RetainedEarnings)
	}
	if bs.TotalAssets != 414.00 {
		t.Fatalf("total assets = %v, want 414.00", bs.TotalAssets)
	}
	if bs.TotalLiabilities != 14.00 {
		t.Fatalf("total liabilities = %v, want 14.00", bs.TotalLiabilities)
	}
	if bs.TotalEquity != 400.00 {
		t.Fatalf("total equity = %v, want 400.00", bs.TotalEquity)
	}
}

func TestBalanceSheetAsOfExcludesLaterPostings(t *testing.T) {
	store := seedJournal(t)
	svc := report.New(store)

	// As of end of February the rent expense has not happened yet.
	bs, err := svc.BalanceSheet(context.Background(), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("balance sheet: %v", err)
	}
	if bs.RetainedEarnings != 100.00 {
		t.Fatalf("retained earnings = %v, want 100.00", bs.RetainedEarnings)
	}
	if bs.TotalAssets != 614.00 {
		t.Fatalf("total assets = %v, want 614.00", bs.TotalAssets)
	}
	if !bs.Balanced {
		t.Fatalf("identity violated as of feb")
	}
}

func TestIncomeStatementWindow(t *testing.T) {
	store := seedJournal(t)
	svc := report.New(store)

	is, err := svc.IncomeStatement(context.Background(),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("income statement: %v", err)
	}
	if is.Income != 100.00 || is.Expense != 0 || is.NetIncome != 100.00 {
		t.Fatalf("unexpected february results: %+v", is)
	}

	full, err := svc.IncomeStatement(context.Background(),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("income statement: %v", err)
	}
	if full.NetIncome != -100.00 {
		t.Fatalf("net income = %v, want -100.00", full.NetIncome)
	}
}

func TestCashFlowDirections(t *testing.T) {
	store := seedJournal(t)
	svc := report.New(store)

	cf, err := svc.CashFlow(context.Background(),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("cash flow: %v", err)
	}
	if cf.Inflow != 614.00 {
		t.Fatalf("inflow = %v, want 614.00", cf.Inflow)
	}
	if cf.Outflow != 200.00 {
		t.Fatalf("outflow = %v, want 200.00", cf.Outflow)
	}
	if cf.Net != 414.00 {
		t.Fatalf("net = %v, want 414.00", cf.Net)
	}
	if len(cf.Movements) != 3 {
		t.Fatalf("expected 3 cash movements, got %d", len(cf.Movements))
	}
}

func TestGeneralLedgerRunningBalance(t *testing.T) {
	store := seedJournal(t)
	svc := report.New(store)

	gl, err := svc.GeneralLedger(context.Background(), nil,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("general ledger: %v", err)
	}
	var cash *report.GeneralLedgerAccount
	for i := range gl.Accounts {
		if gl.Accounts[i].Name == "Cash" {
			cash = &gl.Accounts[i]
		}
	}
	if cash == nil {
		t.Fatalf("cash account missing from general ledger")
	}
	if len(cash.Lines) != 3 {
		t.Fatalf("expected 3 cash lines, got %d", len(cash.Lines))
	}
	want := []float64{500.00, 614.00, 414.00}
	for i, line := range cash.Lines {
		if line.Running != want[i] {
			t.Fatalf("running balance[%d] = %v, want %v", i, line.Running, want[i])
		}
	}
	if cash.Closing != 414.00 {
		t.Fatalf("closing = %v, want 414.00", cash.Closing)
	}
}

func TestDashboardSummary(t *testing.T) {
	store := seedJournal(t)
	svc := report.New(store)

	d, err := svc.Dashboard(context.Background(), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.TransactionCount != 3 {
		t.Fatalf("transaction count = %d, want 3", d.TransactionCount)
	}
	if d.CashBalance != 414.00 {
		t.Fatalf("cash = %v, want 414.00", d.CashBalance)
	}
	if d.NetIncome != -100.00 {
		t.Fatalf("net income = %v, want -100.00", d.NetIncome)
	}
	if !d.Balanced {
		t.Fatalf("dashboard identity violated")
	}
}
