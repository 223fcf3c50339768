package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/ledger"
	"github.com/tinoosan/backoffice/internal/meta"
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

// LedgerStore holds a pgx pool over the ledger schema. All methods are safe
// for concurrent use.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// OpenLedger establishes a pool using the provided connection string.
func OpenLedger(ctx context.Context, dsn string) (*LedgerStore, error) {
	pool, err := open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &LedgerStore{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *LedgerStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *LedgerStore) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// defaultCurrency tags amounts reloaded from minor units. The suite posts in
// a single currency.
const defaultCurrency = "USD"

const accountCols = `id, code, name, type, description, metadata, active, created_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var mdBytes []byte
	if err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Description, &mdBytes, &a.Active, &a.CreatedAt); err != nil {
		return ledger.Account{}, err
	}
	if len(mdBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(mdBytes); err == nil {
			a.Metadata = m
		}
	}
	return a, nil
}

func (s *LedgerStore) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `select `+accountCols+` from accounts order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *LedgerStore) GetAccount(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where id = $1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, err
}

func (s *LedgerStore) AccountsByNames(ctx context.Context, names []string) (map[string]ledger.Account, error) {
	if len(names) == 0 {
		return map[string]ledger.Account{}, nil
	}
	rows, err := s.pool.Query(ctx, `select `+accountCols+` from accounts where name = any($1)`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]ledger.Account)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.Name] = a
	}
	return out, rows.Err()
}

func (s *LedgerStore) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	md, _ := a.Metadata.MarshalStableJSON()
	_, err := s.pool.Exec(ctx, `
		insert into accounts (id, code, name, type, description, metadata, active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,now())
	`, a.ID, a.Code, a.Name, a.Type, a.Description, md, a.Active)
	if err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func (s *LedgerStore) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	md, _ := a.Metadata.MarshalStableJSON()
	ct, err := s.pool.Exec(ctx, `
		update accounts set name=$1, description=$2, metadata=$3, active=$4 where id=$5
	`, a.Name, a.Description, md, a.Active, a.ID)
	if err != nil {
		return ledger.Account{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Account{}, errs.ErrNotFound
	}
	return a, nil
}

// CreateTransaction inserts the header and its lines in one transaction.
func (s *LedgerStore) CreateTransaction(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	defer func() { _ = dbtx.Rollback(ctx) }()
	md, _ := tx.Metadata.MarshalStableJSON()
	if _, err := dbtx.Exec(ctx, `
		insert into transactions (id, date, description, source, reference, created_by, metadata, created_at)
		values ($1,$2,$3,$4,nullif($5,''),$6,$7,$8)
	`, tx.ID, tx.Date, tx.Description, tx.Source, tx.Reference, tx.CreatedBy, md, tx.CreatedAt); err != nil {
		return ledger.Transaction{}, err
	}
	for _, line := range tx.Lines {
		if _, err := dbtx.Exec(ctx, `
			insert into transaction_lines (id, transaction_id, account_id, side, amount_minor)
			values ($1,$2,$3,$4,$5)
		`, line.ID, line.TransactionID, line.AccountID, line.Side, ledger.Minor(line.Amount)); err != nil {
			return ledger.Transaction{}, err
		}
	}
	if err := dbtx.Commit(ctx); err != nil {
		return ledger.Transaction{}, err
	}
	return tx, nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	txs, err := s.queryTransactions(ctx, `where t.id = $1`, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if len(txs) == 0 {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return txs[0], nil
}

func (s *LedgerStore) ListTransactions(ctx context.Context, f journal.Filter) ([]ledger.Transaction, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Source != nil {
		conds = append(conds, "t.source = "+arg(*f.Source))
	}
	if f.Reference != "" {
		conds = append(conds, "t.reference = "+arg(f.Reference))
	}
	if f.From != nil {
		conds = append(conds, "t.date >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "t.date <= "+arg(*f.To))
	}
	if f.AccountID != nil {
		conds = append(conds, "exists (select 1 from transaction_lines l where l.transaction_id = t.id and l.account_id = "+arg(*f.AccountID)+")")
	}
	where := ""
	if len(conds) > 0 {
		where = "where " + strings.Join(conds, " and ")
	}
	return s.queryTransactions(ctx, where, args...)
}

// queryTransactions loads headers matching where, then their lines in one
// follow-up query, joining account name and type snapshots.
func (s *LedgerStore) queryTransactions(ctx context.Context, where string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		select t.id, t.date, t.description, t.source, coalesce(t.reference,''), t.created_by, t.metadata, t.created_at
		from transactions t `+where+`
		order by t.date asc, t.created_at asc
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	txs := make([]ledger.Transaction, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var tx ledger.Transaction
		var mdBytes []byte
		if err := rows.Scan(&tx.ID, &tx.Date, &tx.Description, &tx.Source, &tx.Reference, &tx.CreatedBy, &mdBytes, &tx.CreatedAt); err != nil {
			return nil, err
		}
		if len(mdBytes) > 0 {
			var m meta.Metadata
			if err := m.UnmarshalJSON(mdBytes); err == nil {
				tx.Metadata = m
			}
		}
		txs = append(txs, tx)
		ids = append(ids, tx.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return txs, nil
	}
	lineRows, err := s.pool.Query(ctx, `
		select l.id, l.transaction_id, l.account_id, a.name, a.type, l.side, l.amount_minor
		from transaction_lines l
		join accounts a on a.id = l.account_id
		where l.transaction_id = any($1)
		order by l.id asc
	`, ids)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	idx := make(map[uuid.UUID]*ledger.Transaction, len(txs))
	for i := range txs {
		idx[txs[i].ID] = &txs[i]
	}
	for lineRows.Next() {
		var line ledger.TransactionLine
		var minor int64
		if err := lineRows.Scan(&line.ID, &line.TransactionID, &line.AccountID, &line.AccountName, &line.AccountType, &line.Side, &minor); err != nil {
			return nil, err
		}
		line.Amount = ledger.AmountFromMinor(defaultCurrency, minor)
		if tx := idx[line.TransactionID]; tx != nil {
			tx.Lines = append(tx.Lines, line)
		}
	}
	return txs, lineRows.Err()
}

func (s *LedgerStore) ListPeriods(ctx context.Context) ([]ledger.Period, error) {
	rows, err := s.pool.Query(ctx, `
		select id, name, period_start, period_end, fiscal_year, status, coalesce(closed_by,''), closed_at
		from periods order by period_start asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Period, 0)
	for rows.Next() {
		var p ledger.Period
		if err := rows.Scan(&p.ID, &p.Name, &p.PeriodStart, &p.PeriodEnd, &p.FiscalYear, &p.Status, &p.ClosedBy, &p.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *LedgerStore) GetPeriod(ctx context.Context, id uuid.UUID) (ledger.Period, error) {
	var p ledger.Period
	err := s.pool.QueryRow(ctx, `
		select id, name, period_start, period_end, fiscal_year, status, coalesce(closed_by,''), closed_at
		from periods where id = $1
	`, id).Scan(&p.ID, &p.Name, &p.PeriodStart, &p.PeriodEnd, &p.FiscalYear, &p.Status, &p.ClosedBy, &p.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Period{}, errs.ErrNotFound
	}
	return p, err
}

func (s *LedgerStore) CreatePeriod(ctx context.Context, p ledger.Period) (ledger.Period, error) {
	_, err := s.pool.Exec(ctx, `
		insert into periods (id, name, period_start, period_end, fiscal_year, status, closed_by, closed_at)
		values ($1,$2,$3,$4,$5,$6,nullif($7,''),$8)
	`, p.ID, p.Name, p.PeriodStart, p.PeriodEnd, p.FiscalYear, p.Status, p.ClosedBy, p.ClosedAt)
	if err != nil {
		return ledger.Period{}, err
	}
	return p, nil
}

func (s *LedgerStore) UpdatePeriod(ctx context.Context, p ledger.Period) (ledger.Period, error) {
	ct, err := s.pool.Exec(ctx, `
		update periods set status=$1, closed_by=nullif($2,''), closed_at=$3 where id=$4
	`, p.Status, p.ClosedBy, p.ClosedAt, p.ID)
	if err != nil {
		return ledger.Period{}, err
	}
	if ct.RowsAffected() == 0 {
		return ledger.Period{}, errs.ErrNotFound
	}
	return p, nil
}
