// Package sqlite implements store.Store on an embedded SQLite database.
// Bill transactions take the database write lock with BEGIN IMMEDIATE, so
// concurrent tills in one process or across processes serialise on it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
	tillstore "github.com/xraph/till/store"
)

// compile-time interface check
var _ tillstore.Store = (*Store)(nil)

const defaultWait = 5 * time.Second

// Store implements store.Store using SQLite via modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database file at path with WAL journaling
// and foreign keys enabled.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		path, defaultWait.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("till/sqlite: open: %w", err)
	}
	return New(db), nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Catalog Store ====================

func (s *Store) GetProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM till_products WHERE product_id = ?`, productID)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, till.ErrProductNotFound
		}
		return nil, fmt.Errorf("till/sqlite: get product: %w", err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM till_products ORDER BY product_id LIMIT ? OFFSET ?`,
		limitArg(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("till/sqlite: list products: %w", err)
	}
	return scanProducts(rows)
}

func (s *Store) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO till_products (product_id, name, stock, unit_price, tax_rate, currency, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (product_id) DO UPDATE SET
    name       = excluded.name,
    stock      = excluded.stock,
    unit_price = excluded.unit_price,
    tax_rate   = excluded.tax_rate,
    currency   = excluded.currency,
    updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Stock, p.UnitPrice.Amount, p.TaxRate.String(), p.UnitPrice.Currency,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return mapError("upsert product", err)
	}

	var created string
	if err := s.db.QueryRowContext(ctx, `SELECT created_at FROM till_products WHERE product_id = ?`, p.ID).Scan(&created); err != nil {
		return fmt.Errorf("till/sqlite: upsert product: %w", err)
	}
	p.CreatedAt, err = parseTime(created)
	return err
}

// ==================== Drawer Store ====================

func (s *Store) ListDenominations(ctx context.Context) ([]*drawer.Denomination, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+denominationColumns+` FROM till_denominations ORDER BY value`)
	if err != nil {
		return nil, fmt.Errorf("till/sqlite: list denominations: %w", err)
	}
	return scanDenominations(rows)
}

func (s *Store) UpsertDenomination(ctx context.Context, d *drawer.Denomination) error {
	_, err := s.db.ExecContext(ctx, upsertDenominationSQL,
		d.Value.Amount, d.Count, d.Value.Currency, formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	if err != nil {
		return mapError("upsert denomination", err)
	}
	return nil
}

const upsertDenominationSQL = `
INSERT INTO till_denominations (value, count, currency, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (value) DO UPDATE SET
    count      = excluded.count,
    updated_at = excluded.updated_at`

// ==================== Purchase Store ====================

func (s *Store) GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM till_purchases WHERE id = ?`, purchaseID.String())
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, till.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("till/sqlite: get purchase: %w", err)
	}
	if err := s.loadLines(ctx, []*purchase.Purchase{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPurchases(ctx context.Context, opts purchase.ListOpts) ([]*purchase.Purchase, error) {
	email := strings.TrimSpace(opts.CustomerEmail)
	rows, err := s.db.QueryContext(ctx, `
SELECT `+purchaseColumns+` FROM till_purchases
WHERE (? = '' OR lower(customer_email) = lower(?))
ORDER BY created_at DESC, rowid DESC
LIMIT ? OFFSET ?`,
		email, email, limitArg(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("till/sqlite: list purchases: %w", err)
	}
	defer rows.Close()

	var result []*purchase.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) loadLines(ctx context.Context, purchases []*purchase.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	byID := make(map[string]*purchase.Purchase, len(purchases))
	args := make([]any, 0, len(purchases))
	for _, p := range purchases {
		byID[p.ID.String()] = p
		args = append(args, p.ID.String())
	}
	in := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	currencyOf := func(pid string) string { return byID[pid].Currency }

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM till_purchase_items WHERE purchase_id IN (`+in+`) ORDER BY purchase_id, position`, args...)
	if err != nil {
		return fmt.Errorf("till/sqlite: load items: %w", err)
	}
	for rows.Next() {
		pid, it, err := scanItem(rows, currencyOf)
		if err != nil {
			rows.Close()
			return err
		}
		byID[pid].Items = append(byID[pid].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT purchase_id, value, count FROM till_change_entries WHERE purchase_id IN (`+in+`) ORDER BY purchase_id, position`, args...)
	if err != nil {
		return fmt.Errorf("till/sqlite: load change: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pid          string
			value, count int64
		)
		if err := rows.Scan(&pid, &value, &count); err != nil {
			return err
		}
		p := byID[pid]
		p.ChangeGiven = append(p.ChangeGiven, drawer.Stack{
			Value: till.Money{Amount: value, Currency: p.Currency},
			Count: count,
		})
	}
	return rows.Err()
}

// ==================== Helpers ====================

func scanProducts(rows *sql.Rows) ([]*catalog.Product, error) {
	defer rows.Close()
	var out []*catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanDenominations(rows *sql.Rows) ([]*drawer.Denomination, error) {
	defer rows.Close()
	var out []*drawer.Denomination
	for rows.Next() {
		d, err := scanDenomination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// limitArg maps a non-positive limit to -1, which SQLite reads as no limit.
func limitArg(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// mapError turns lock contention into till.ErrBusy and unique violations
// into till.ErrAlreadyExists.
func mapError(op string, err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("till/sqlite: %s: %w", op, till.ErrBusy)
		case sqlite3.SQLITE_CONSTRAINT:
			if sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
				return fmt.Errorf("till/sqlite: %s: %w", op, till.ErrAlreadyExists)
			}
		}
	}
	return fmt.Errorf("till/sqlite: %s: %w", op, err)
}
