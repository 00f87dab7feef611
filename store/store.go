// Package store defines the persistence contract for Till.
//
// Reads go through the narrow entity stores. Every mutation of stock,
// drawer counts or the purchase ledger goes through a Tx obtained from
// Begin, which holds exclusive locks on the rows it loaded until Commit
// or Rollback.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
)

// Store is the unified storage interface for all Till records.
// Methods are declared explicitly rather than by embedding the entity
// interfaces so each backend documents the whole surface in one place.
type Store interface {
	// Catalog methods
	GetProduct(ctx context.Context, productID string) (*catalog.Product, error)
	ListProducts(ctx context.Context, opts catalog.ListOpts) ([]*catalog.Product, error)
	UpsertProduct(ctx context.Context, p *catalog.Product) error

	// Drawer methods
	ListDenominations(ctx context.Context) ([]*drawer.Denomination, error)
	UpsertDenomination(ctx context.Context, d *drawer.Denomination) error

	// Purchase methods
	GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error)
	ListPurchases(ctx context.Context, opts purchase.ListOpts) ([]*purchase.Purchase, error)

	// Begin opens a transaction holding exclusive locks on the rows named
	// by set. Locks are taken in the global order: products ascending by
	// ID, then denominations ascending by value. When a lock cannot be
	// acquired within set.Wait, Begin returns an error matching till.ErrBusy
	// and nothing is held.
	Begin(ctx context.Context, set LockSet) (Tx, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// LockSet names the rows a transaction will read and possibly write.
type LockSet struct {
	// ProductIDs to lock. Duplicates are ignored and order does not matter.
	ProductIDs []string

	// Drawer locks every denomination row.
	Drawer bool

	// Wait bounds the time spent waiting for locks. Zero means the
	// backend default.
	Wait time.Duration
}

// Tx is an open store transaction. Products and Denominations return the
// rows as loaded under lock; callers stage changes in memory and hand the
// final values to Commit. Rollback is always safe to call, including
// after Commit.
type Tx interface {
	// Products returns the locked products keyed by ID. Requested IDs that
	// do not exist are absent.
	Products() map[string]*catalog.Product

	// Denominations returns the locked drawer rows, ascending by value.
	// Empty unless LockSet.Drawer was set.
	Denominations() []*drawer.Denomination

	// Commit durably writes changes in one step and releases the locks.
	Commit(ctx context.Context, changes *Changes) error

	// Rollback releases the locks without writing.
	Rollback(ctx context.Context) error
}

// Changes is the complete write set of one transaction.
type Changes struct {
	// Stock maps product ID to its new stock level.
	Stock map[string]int64

	// Drawer holds the denominations whose count changed, with their final
	// counts. Values not yet stored are inserted.
	Drawer []drawer.Stack

	// Purchase is appended to the ledger when set.
	Purchase *purchase.Purchase
}

// Empty reports whether there is nothing to write.
func (c *Changes) Empty() bool {
	return c == nil || (len(c.Stock) == 0 && len(c.Drawer) == 0 && c.Purchase == nil)
}

// SortedProductIDs returns the unique product IDs of set in lock order.
func (set LockSet) SortedProductIDs() []string {
	seen := make(map[string]struct{}, len(set.ProductIDs))
	out := make([]string, 0, len(set.ProductIDs))
	for _, pid := range set.ProductIDs {
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		out = append(out, pid)
	}
	sort.Strings(out)
	return out
}
