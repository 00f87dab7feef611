// Package plugin provides an extensible plugin system for Till.
// Plugins hook into bill, drawer and catalog events. Hooks run after the
// owning transaction has committed or been rejected, so a plugin can never
// change the outcome of a bill.
package plugin

import (
	"context"

	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/purchase"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the till starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, t interface{}) error
}

// OnShutdown is called when the till stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Bill hooks
// ──────────────────────────────────────────────────

// OnBillCommitted is called once a purchase is durable. drawerAfter is the
// drawer snapshot as committed, highest value first.
type OnBillCommitted interface {
	Plugin
	OnBillCommitted(ctx context.Context, p *purchase.Purchase, drawerAfter []drawer.Stack) error
}

// OnBillRejected is called when a bill is aborted. stage names the point
// the bill reached before it failed.
type OnBillRejected interface {
	Plugin
	OnBillRejected(ctx context.Context, customerEmail, stage string, err error) error
}

// ──────────────────────────────────────────────────
// Drawer & catalog hooks
// ──────────────────────────────────────────────────

// OnDrawerReconciled is called after an administrative drawer update.
type OnDrawerReconciled interface {
	Plugin
	OnDrawerReconciled(ctx context.Context, drawerAfter []drawer.Stack) error
}

// OnProductSaved is called after a product is created or updated.
type OnProductSaved interface {
	Plugin
	OnProductSaved(ctx context.Context, p *catalog.Product) error
}

// OnStockDepleted is called when a committed bill takes a product's stock
// to zero.
type OnStockDepleted interface {
	Plugin
	OnStockDepleted(ctx context.Context, productID string) error
}
