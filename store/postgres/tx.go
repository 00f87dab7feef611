package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	tillstore "github.com/xraph/till/store"
)

// drawerLockKey is the advisory lock serialising drawer writers. Row locks
// alone cannot cover denominations inserted by a concurrent transaction.
const drawerLockKey int64 = 0x7469_6c6c_6472_7772 // "tilldrwr"

// Begin opens a transaction, bounds lock waits with lock_timeout and locks
// products ascending by ID followed by the drawer.
func (s *Store) Begin(ctx context.Context, set tillstore.LockSet) (tillstore.Tx, error) {
	wait := set.Wait
	if wait <= 0 {
		wait = defaultWait
	}

	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, mapError("begin", err)
	}
	t := &tx{pgTx: pgTx, products: make(map[string]*catalog.Product)}

	if err := t.lock(ctx, set, wait.Milliseconds()); err != nil {
		_ = pgTx.Rollback(context.WithoutCancel(ctx))
		return nil, err
	}
	return t, nil
}

type tx struct {
	pgTx          pgx.Tx
	products      map[string]*catalog.Product
	denominations []*drawer.Denomination
}

func (t *tx) lock(ctx context.Context, set tillstore.LockSet, waitMillis int64) error {
	if waitMillis < 1 {
		waitMillis = 1
	}
	// SET does not take bind parameters.
	if _, err := t.pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", waitMillis)); err != nil {
		return mapError("set lock timeout", err)
	}

	if ids := set.SortedProductIDs(); len(ids) > 0 {
		rows, err := t.pgTx.Query(ctx,
			`SELECT `+productColumns+` FROM till_products WHERE product_id = ANY($1) ORDER BY product_id FOR UPDATE`, ids)
		if err != nil {
			return mapError("lock products", err)
		}
		products, err := scanProducts(rows)
		if err != nil {
			return mapError("lock products", err)
		}
		for _, p := range products {
			t.products[p.ID] = p
		}
	}

	if set.Drawer {
		if _, err := t.pgTx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, drawerLockKey); err != nil {
			return mapError("lock drawer", err)
		}
		rows, err := t.pgTx.Query(ctx,
			`SELECT `+denominationColumns+` FROM till_denominations ORDER BY value FOR UPDATE`)
		if err != nil {
			return mapError("lock drawer", err)
		}
		denoms, err := scanDenominations(rows)
		if err != nil {
			return mapError("lock drawer", err)
		}
		t.denominations = denoms
	}
	return nil
}

func (t *tx) Products() map[string]*catalog.Product { return t.products }

func (t *tx) Denominations() []*drawer.Denomination { return t.denominations }

// Commit queues every write in one batch and commits.
func (t *tx) Commit(ctx context.Context, changes *tillstore.Changes) error {
	if !changes.Empty() {
		if err := t.write(ctx, changes); err != nil {
			_ = t.pgTx.Rollback(context.WithoutCancel(ctx))
			return err
		}
	}
	if err := t.pgTx.Commit(ctx); err != nil {
		return mapError("commit", err)
	}
	return nil
}

func (t *tx) write(ctx context.Context, changes *tillstore.Changes) error {
	batch := &pgx.Batch{}
	now := till.NewEntity()

	pids := make([]string, 0, len(changes.Stock))
	for pid := range changes.Stock {
		pids = append(pids, pid)
	}
	sort.Strings(pids)
	for _, pid := range pids {
		batch.Queue(`UPDATE till_products SET stock = $2, updated_at = $3 WHERE product_id = $1`,
			pid, changes.Stock[pid], now.UpdatedAt)
	}

	for _, st := range changes.Drawer {
		batch.Queue(upsertDenominationSQL, st.Value.Amount, st.Count, st.Value.Currency, now.CreatedAt, now.UpdatedAt)
	}

	if p := changes.Purchase; p != nil {
		m := toPurchaseModel(p)
		batch.Queue(`
INSERT INTO till_purchases (`+purchaseColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			m.ID, m.CustomerEmail, m.Currency, m.TotalAmount, m.TaxAmount,
			m.GrandTotal, m.AmountPaid, m.ChangeAmount, m.CreatedAt, m.UpdatedAt,
		)
		for i, it := range p.Items {
			batch.Queue(`
INSERT INTO till_purchase_items (id, purchase_id, position, product_id, name, quantity, unit_price, tax_rate, subtotal, tax_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10)`,
				it.ID.String(), m.ID, i, it.ProductID, it.Name, it.Quantity,
				it.UnitPrice.Amount, it.TaxRate.String(), it.Subtotal.Amount, it.Tax.Amount,
			)
		}
		for i, st := range p.ChangeGiven {
			batch.Queue(`INSERT INTO till_change_entries (purchase_id, position, value, count) VALUES ($1, $2, $3, $4)`,
				m.ID, i, st.Value.Amount, st.Count)
		}
	}

	br := t.pgTx.SendBatch(ctx, batch)
	for i := 0; i < len(pids); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return mapError("update stock", err)
		}
		if tag.RowsAffected() == 0 {
			_ = br.Close()
			return fmt.Errorf("till/postgres: update stock %s: %w", pids[i], till.ErrProductNotFound)
		}
	}
	if err := br.Close(); err != nil {
		return mapError("commit batch", err)
	}
	return nil
}

// Rollback is safe after Commit.
func (t *tx) Rollback(ctx context.Context) error {
	err := t.pgTx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("till/postgres: rollback: %w", err)
	}
	return nil
}
