package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Store implements store.Store on PostgreSQL through a pgx connection pool.
type Store struct {
	pool  *pgxpool.Pool
	owned bool
}

// New opens a pool for dsn. The pool is closed by Close.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("till/postgres: open pool: %w", err)
	}
	return &Store{pool: pool, owned: true}, nil
}

// NewFromPool wraps an existing pool. Close leaves it open.
func NewFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool when the store opened it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

// ==================== Catalog Store ====================

func (s *Store) GetProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	m := new(productModel)
	err := s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM till_products WHERE product_id = $1`, productID,
	).Scan(m.scanArgs()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, till.ErrProductNotFound
		}
		return nil, fmt.Errorf("till/postgres: get product: %w", err)
	}
	return fromProductModel(m)
}

func (s *Store) ListProducts(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM till_products ORDER BY product_id LIMIT $1 OFFSET $2`,
		limitArg(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("till/postgres: list products: %w", err)
	}
	return scanProducts(rows)
}

func (s *Store) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	m := toProductModel(p)
	err := s.pool.QueryRow(ctx, `
INSERT INTO till_products (product_id, name, stock, unit_price, tax_rate, currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
ON CONFLICT (product_id) DO UPDATE SET
    name       = EXCLUDED.name,
    stock      = EXCLUDED.stock,
    unit_price = EXCLUDED.unit_price,
    tax_rate   = EXCLUDED.tax_rate,
    currency   = EXCLUDED.currency,
    updated_at = EXCLUDED.updated_at
RETURNING created_at`,
		m.ProductID, m.Name, m.Stock, m.UnitPrice, m.TaxRate, m.Currency, m.CreatedAt, m.UpdatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		return mapError("upsert product", err)
	}
	return nil
}

// ==================== Drawer Store ====================

func (s *Store) ListDenominations(ctx context.Context) ([]*drawer.Denomination, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+denominationColumns+` FROM till_denominations ORDER BY value`)
	if err != nil {
		return nil, fmt.Errorf("till/postgres: list denominations: %w", err)
	}
	return scanDenominations(rows)
}

func (s *Store) UpsertDenomination(ctx context.Context, d *drawer.Denomination) error {
	_, err := s.pool.Exec(ctx, upsertDenominationSQL,
		d.Value.Amount, d.Count, d.Value.Currency, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return mapError("upsert denomination", err)
	}
	return nil
}

const upsertDenominationSQL = `
INSERT INTO till_denominations (value, count, currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (value) DO UPDATE SET
    count      = EXCLUDED.count,
    updated_at = EXCLUDED.updated_at`

// ==================== Purchase Store ====================

func (s *Store) GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	m := new(purchaseModel)
	err := s.pool.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM till_purchases WHERE id = $1`, purchaseID.String(),
	).Scan(m.scanArgs()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, till.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("till/postgres: get purchase: %w", err)
	}

	p, err := fromPurchaseModel(m)
	if err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, []*purchase.Purchase{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPurchases(ctx context.Context, opts purchase.ListOpts) ([]*purchase.Purchase, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+purchaseColumns+` FROM till_purchases
WHERE ($1::text = '' OR lower(customer_email) = lower($1::text))
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`,
		opts.CustomerEmail, limitArg(opts.Limit), opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("till/postgres: list purchases: %w", err)
	}
	defer rows.Close()

	var result []*purchase.Purchase
	for rows.Next() {
		m := new(purchaseModel)
		if err := rows.Scan(m.scanArgs()...); err != nil {
			return nil, err
		}
		p, err := fromPurchaseModel(m)
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

// loadLines fills items and change breakdowns for a page of purchases
// with one query per child table.
func (s *Store) loadLines(ctx context.Context, purchases []*purchase.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	byID := make(map[string]*purchase.Purchase, len(purchases))
	ids := make([]string, 0, len(purchases))
	for _, p := range purchases {
		byID[p.ID.String()] = p
		ids = append(ids, p.ID.String())
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM till_purchase_items WHERE purchase_id = ANY($1) ORDER BY purchase_id, position`, ids)
	if err != nil {
		return fmt.Errorf("till/postgres: load items: %w", err)
	}
	for rows.Next() {
		m := new(itemModel)
		if err := rows.Scan(m.scanArgs()...); err != nil {
			rows.Close()
			return err
		}
		p := byID[m.PurchaseID]
		it, err := fromItemModel(m, p.Currency)
		if err != nil {
			rows.Close()
			return err
		}
		p.Items = append(p.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT purchase_id, value, count FROM till_change_entries WHERE purchase_id = ANY($1) ORDER BY purchase_id, position`, ids)
	if err != nil {
		return fmt.Errorf("till/postgres: load change: %w", err)
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

func scanProducts(rows pgx.Rows) ([]*catalog.Product, error) {
	defer rows.Close()
	var out []*catalog.Product
	for rows.Next() {
		m := new(productModel)
		if err := rows.Scan(m.scanArgs()...); err != nil {
			return nil, err
		}
		p, err := fromProductModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanDenominations(rows pgx.Rows) ([]*drawer.Denomination, error) {
	defer rows.Close()
	var out []*drawer.Denomination
	for rows.Next() {
		m := new(denominationModel)
		if err := rows.Scan(m.scanArgs()...); err != nil {
			return nil, err
		}
		out = append(out, fromDenominationModel(m))
	}
	return out, rows.Err()
}

// limitArg turns a non-positive limit into NULL, which Postgres reads as
// no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// Lock, serialization and deadlock failures all mean another till holds
// the rows; callers may retry.
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("till/postgres: %s: %w", op, till.ErrBusy)
		case codeUniqueViolation:
			return fmt.Errorf("till/postgres: %s: %w", op, till.ErrAlreadyExists)
		}
	}
	return fmt.Errorf("till/postgres: %s: %w", op, err)
}
