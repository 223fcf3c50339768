// Package sqlite provides the POS service's local store. The POS keeps its
// own durable copy of every sale so a ledger outage never loses a transaction;
// SQLite in WAL mode gives crash-safe single-writer durability without a
// server dependency.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/tinoosan/backoffice/internal/errs"
	"github.com/tinoosan/backoffice/internal/pos"
	"github.com/tinoosan/backoffice/internal/service/sale"
)

var (
	_ sale.Repo   = (*Store)(nil)
	_ sale.Writer = (*Store)(nil)
)

// Store implements the POS repository and writer over one SQLite file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open pos db: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY under concurrent sales.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate pos db: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ready verifies the connection.
func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		sale_number TEXT NOT NULL UNIQUE,
		subtotal TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		total TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		tendered TEXT,
		change TEXT,
		customer_name TEXT,
		notes TEXT,
		cashier_id TEXT NOT NULL,
		cashier_name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		status TEXT NOT NULL,
		ledger_entry_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status);
	CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at);

	CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		product_id TEXT NOT NULL,
		sku TEXT,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		discount TEXT NOT NULL,
		tax TEXT NOT NULL,
		line_total TEXT NOT NULL,
		size TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);

	CREATE TABLE IF NOT EXISTS sale_adjustments (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id),
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		ledger_entry_id TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sale_adjustments_sale ON sale_adjustments(sale_id);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		tax_rate TEXT NOT NULL,
		tax_inclusive INTEGER NOT NULL,
		currency TEXT NOT NULL,
		low_stock_threshold INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	def := pos.DefaultSettings()
	_, err := s.db.Exec(`
		INSERT INTO settings (id, tax_rate, tax_inclusive, currency, low_stock_threshold)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, def.TaxRate.String(), boolInt(def.TaxInclusive), def.Currency, def.LowStockThreshold)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func optDec(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	d := dec(s.String)
	return &d
}

func optUUID(s sql.NullString) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}

const saleCols = `id, sale_number, subtotal, tax_amount, discount_amount, total, payment_method,
	tendered, change, coalesce(customer_name,''), coalesce(notes,''), cashier_id, cashier_name,
	created_at, status, ledger_entry_id`

func scanSale(row interface{ Scan(...any) error }) (pos.Sale, error) {
	var sl pos.Sale
	var idStr, cashierID, subtotal, tax, discount, total, createdAt string
	var tendered, change, entryID sql.NullString
	err := row.Scan(&idStr, &sl.SaleNumber, &subtotal, &tax, &discount, &total, &sl.PaymentMethod,
		&tendered, &change, &sl.CustomerName, &sl.Notes, &cashierID, &sl.CashierName,
		&createdAt, &sl.Status, &entryID)
	if err != nil {
		return pos.Sale{}, err
	}
	sl.ID, _ = uuid.Parse(idStr)
	sl.CashierID, _ = uuid.Parse(cashierID)
	sl.Subtotal = dec(subtotal)
	sl.TaxAmount = dec(tax)
	sl.DiscountAmount = dec(discount)
	sl.Total = dec(total)
	sl.Tendered = optDec(tendered)
	sl.Change = optDec(change)
	sl.LedgerEntryID = optUUID(entryID)
	sl.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return sl, nil
}

func (s *Store) loadItems(ctx context.Context, saleID uuid.UUID) ([]pos.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, coalesce(sku,''), name, quantity, unit_price, discount, tax, line_total, coalesce(size,'')
		FROM sale_items WHERE sale_id = ? ORDER BY rowid
	`, saleID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]pos.SaleItem, 0)
	for rows.Next() {
		var item pos.SaleItem
		var id, sid, pid, unit, disc, tax, lineTotal string
		if err := rows.Scan(&id, &sid, &pid, &item.SKU, &item.Name, &item.Quantity, &unit, &disc, &tax, &lineTotal, &item.Size); err != nil {
			return nil, err
		}
		item.ID, _ = uuid.Parse(id)
		item.SaleID, _ = uuid.Parse(sid)
		item.ProductID, _ = uuid.Parse(pid)
		item.UnitPrice = dec(unit)
		item.Discount = dec(disc)
		item.Tax = dec(tax)
		item.LineTotal = dec(lineTotal)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) GetSale(ctx context.Context, saleID uuid.UUID) (pos.Sale, error) {
	sl, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleCols+` FROM sales WHERE id = ?`, saleID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return pos.Sale{}, errs.ErrNotFound
	}
	if err != nil {
		return pos.Sale{}, err
	}
	sl.Items, err = s.loadItems(ctx, sl.ID)
	return sl, err
}

func (s *Store) SaleByNumber(ctx context.Context, saleNumber string) (pos.Sale, error) {
	sl, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleCols+` FROM sales WHERE sale_number = ?`, saleNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return pos.Sale{}, errs.ErrNotFound
	}
	if err != nil {
		return pos.Sale{}, err
	}
	sl.Items, err = s.loadItems(ctx, sl.ID)
	return sl, err
}

func (s *Store) ListSales(ctx context.Context, f sale.Filter) ([]pos.Sale, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	if f.From != nil {
		where += " AND created_at >= ?"
		args = append(args, f.From.UTC().Format(time.RFC3339Nano))
	}
	if f.To != nil {
		where += " AND created_at <= ?"
		args = append(args, f.To.UTC().Format(time.RFC3339Nano))
	}
	if f.Status != nil {
		where += " AND status = ?"
		args = append(args, string(*f.Status))
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sales `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleCols+` FROM sales `+where+`
		ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]pos.Sale, 0)
	for rows.Next() {
		sl, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if out[i].Items, err = s.loadItems(ctx, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (s *Store) SalesByStatus(ctx context.Context, statuses ...pos.SyncStatus) ([]pos.Sale, error) {
	if len(statuses) == 0 {
		return []pos.Sale{}, nil
	}
	query := `SELECT ` + saleCols + ` FROM sales WHERE status IN (?` // at least one
	args := []any{string(statuses[0])}
	for _, st := range statuses[1:] {
		query += ",?"
		args = append(args, string(st))
	}
	query += ") ORDER BY created_at ASC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]pos.Sale, 0)
	for rows.Next() {
		sl, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (s *Store) CountSalesOn(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM sales WHERE created_at >= ? AND created_at < ?
	`, start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano)).Scan(&n)
	return n, err
}

func (s *Store) GetSettings(ctx context.Context) (pos.Settings, error) {
	var out pos.Settings
	var rate string
	var inclusive int
	err := s.db.QueryRowContext(ctx, `
		SELECT tax_rate, tax_inclusive, currency, low_stock_threshold FROM settings WHERE id = 1
	`).Scan(&rate, &inclusive, &out.Currency, &out.LowStockThreshold)
	if err != nil {
		return pos.Settings{}, err
	}
	out.TaxRate = dec(rate)
	out.TaxInclusive = inclusive != 0
	return out, nil
}

func (s *Store) AdjustmentsFor(ctx context.Context, saleID uuid.UUID) ([]pos.SaleAdjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, kind, amount, ledger_entry_id, created_by, created_at
		FROM sale_adjustments WHERE sale_id = ? ORDER BY created_at ASC
	`, saleID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]pos.SaleAdjustment, 0)
	for rows.Next() {
		var a pos.SaleAdjustment
		var id, sid, amount, createdAt string
		var entryID sql.NullString
		if err := rows.Scan(&id, &sid, &a.Kind, &amount, &entryID, &a.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		a.ID, _ = uuid.Parse(id)
		a.SaleID, _ = uuid.Parse(sid)
		a.Amount = dec(amount)
		a.LedgerEntryID = optUUID(entryID)
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateSale writes the sale row and its items in one transaction so a crash
// never leaves a sale without lines.
func (s *Store) CreateSale(ctx context.Context, sl pos.Sale) (pos.Sale, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pos.Sale{}, err
	}
	defer func() { _ = tx.Rollback() }()
	var tendered, change, entryID any
	if sl.Tendered != nil {
		tendered = sl.Tendered.String()
	}
	if sl.Change != nil {
		change = sl.Change.String()
	}
	if sl.LedgerEntryID != nil {
		entryID = sl.LedgerEntryID.String()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, sale_number, subtotal, tax_amount, discount_amount, total, payment_method,
			tendered, change, customer_name, notes, cashier_id, cashier_name, created_at, status, ledger_entry_id)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, sl.ID.String(), sl.SaleNumber, sl.Subtotal.String(), sl.TaxAmount.String(), sl.DiscountAmount.String(),
		sl.Total.String(), string(sl.PaymentMethod), tendered, change, sl.CustomerName, sl.Notes,
		sl.CashierID.String(), sl.CashierName, sl.CreatedAt.UTC().Format(time.RFC3339Nano), string(sl.Status), entryID); err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			// The unique index on sale_number backstops the in-process sequence.
			return pos.Sale{}, fmt.Errorf("%w: sale number %s already exists", errs.ErrConflict, sl.SaleNumber)
		}
		return pos.Sale{}, err
	}
	for _, item := range sl.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, sku, name, quantity, unit_price, discount, tax, line_total, size)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)
		`, item.ID.String(), item.SaleID.String(), item.ProductID.String(), item.SKU, item.Name, item.Quantity,
			item.UnitPrice.String(), item.Discount.String(), item.Tax.String(), item.LineTotal.String(), item.Size); err != nil {
			return pos.Sale{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return pos.Sale{}, err
	}
	return sl, nil
}

func (s *Store) UpdateSaleSync(ctx context.Context, saleID uuid.UUID, status pos.SyncStatus, ledgerEntryID *uuid.UUID) error {
	var res sql.Result
	var err error
	if ledgerEntryID != nil {
		res, err = s.db.ExecContext(ctx, `UPDATE sales SET status = ?, ledger_entry_id = ? WHERE id = ?`,
			string(status), ledgerEntryID.String(), saleID.String())
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE sales SET status = ? WHERE id = ?`, string(status), saleID.String())
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) SaveSettings(ctx context.Context, settings pos.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE settings SET tax_rate = ?, tax_inclusive = ?, currency = ?, low_stock_threshold = ? WHERE id = 1
	`, settings.TaxRate.String(), boolInt(settings.TaxInclusive), settings.Currency, settings.LowStockThreshold)
	return err
}

func (s *Store) CreateAdjustment(ctx context.Context, a pos.SaleAdjustment) (pos.SaleAdjustment, error) {
	var entryID any
	if a.LedgerEntryID != nil {
		entryID = a.LedgerEntryID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_adjustments (id, sale_id, kind, amount, ledger_entry_id, created_by, created_at)
		VALUES (?,?,?,?,?,?,?)
	`, a.ID.String(), a.SaleID.String(), string(a.Kind), a.Amount.String(), entryID, a.CreatedBy,
		a.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return pos.SaleAdjustment{}, err
	}
	return a, nil
}

func (s *Store) SetAdjustmentEntry(ctx context.Context, adjustmentID uuid.UUID, ledgerEntryID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sale_adjustments SET ledger_entry_id = ? WHERE id = ?`,
		ledgerEntryID.String(), adjustmentID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
