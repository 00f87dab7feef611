package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	tillstore "github.com/xraph/till/store"
)

// Begin pins a connection, sets its busy timeout to set.Wait and takes the
// database write lock. SQLite has no row locks, so every Begin excludes
// every other writer regardless of the lock set.
func (s *Store) Begin(ctx context.Context, set tillstore.LockSet) (tillstore.Tx, error) {
	wait := set.Wait
	if wait <= 0 {
		wait = defaultWait
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("till/sqlite: acquire conn: %w", err)
	}
	t := &tx{conn: conn, products: make(map[string]*catalog.Product)}

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", wait.Milliseconds())); err != nil {
		t.release()
		return nil, mapError("set busy timeout", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		t.release()
		return nil, mapError("begin", err)
	}
	t.open = true

	if err := t.load(ctx, set); err != nil {
		_ = t.Rollback(context.WithoutCancel(ctx))
		return nil, err
	}
	return t, nil
}

type tx struct {
	conn          *sql.Conn
	mu            sync.Mutex
	open          bool
	products      map[string]*catalog.Product
	denominations []*drawer.Denomination
}

func (t *tx) load(ctx context.Context, set tillstore.LockSet) error {
	for _, pid := range set.SortedProductIDs() {
		row := t.conn.QueryRowContext(ctx, `SELECT `+productColumns+` FROM till_products WHERE product_id = ?`, pid)
		p, err := scanProduct(row)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return mapError("load product", err)
		}
		t.products[pid] = p
	}

	if set.Drawer {
		rows, err := t.conn.QueryContext(ctx, `SELECT `+denominationColumns+` FROM till_denominations ORDER BY value`)
		if err != nil {
			return mapError("load drawer", err)
		}
		if t.denominations, err = scanDenominations(rows); err != nil {
			return mapError("load drawer", err)
		}
	}
	return nil
}

func (t *tx) Products() map[string]*catalog.Product { return t.products }

func (t *tx) Denominations() []*drawer.Denomination { return t.denominations }

func (t *tx) Commit(ctx context.Context, changes *tillstore.Changes) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return till.ErrStoreClosed
	}
	defer t.release()

	if err := t.write(ctx, changes); err != nil {
		_, _ = t.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return err
	}
	if _, err := t.conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = t.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		return mapError("commit", err)
	}
	return nil
}

func (t *tx) write(ctx context.Context, changes *tillstore.Changes) error {
	if changes.Empty() {
		return nil
	}
	now := formatTime(till.NewEntity().UpdatedAt)

	pids := make([]string, 0, len(changes.Stock))
	for pid := range changes.Stock {
		pids = append(pids, pid)
	}
	sort.Strings(pids)
	for _, pid := range pids {
		res, err := t.conn.ExecContext(ctx,
			`UPDATE till_products SET stock = ?, updated_at = ? WHERE product_id = ?`, changes.Stock[pid], now, pid)
		if err != nil {
			return mapError("update stock", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("till/sqlite: update stock %s: %w", pid, till.ErrProductNotFound)
		}
	}

	for _, st := range changes.Drawer {
		if _, err := t.conn.ExecContext(ctx, upsertDenominationSQL, st.Value.Amount, st.Count, st.Value.Currency, now, now); err != nil {
			return mapError("update drawer", err)
		}
	}

	p := changes.Purchase
	if p == nil {
		return nil
	}
	_, err := t.conn.ExecContext(ctx, `INSERT INTO till_purchases (`+purchaseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.CustomerEmail, p.Currency, p.Total.Amount, p.Tax.Amount,
		p.GrandTotal.Amount, p.AmountPaid.Amount, p.Change.Amount, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return mapError("insert purchase", err)
	}
	for i, it := range p.Items {
		_, err := t.conn.ExecContext(ctx, `
INSERT INTO till_purchase_items (id, purchase_id, position, product_id, name, quantity, unit_price, tax_rate, subtotal, tax_amount)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID.String(), p.ID.String(), i, it.ProductID, it.Name, it.Quantity,
			it.UnitPrice.Amount, it.TaxRate.String(), it.Subtotal.Amount, it.Tax.Amount,
		)
		if err != nil {
			return mapError("insert item", err)
		}
	}
	for i, st := range p.ChangeGiven {
		_, err := t.conn.ExecContext(ctx,
			`INSERT INTO till_change_entries (purchase_id, position, value, count) VALUES (?, ?, ?, ?)`,
			p.ID.String(), i, st.Value.Amount, st.Count)
		if err != nil {
			return mapError("insert change", err)
		}
	}
	return nil
}

// Rollback is safe after Commit.
func (t *tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil
	}
	defer t.release()
	if _, err := t.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		return mapError("rollback", err)
	}
	return nil
}

// release restores the default busy timeout and hands the connection
// back to the pool.
func (t *tx) release() {
	t.open = false
	_, _ = t.conn.ExecContext(context.Background(), fmt.Sprintf("PRAGMA busy_timeout = %d", defaultWait.Milliseconds()))
	_ = t.conn.Close()
}
