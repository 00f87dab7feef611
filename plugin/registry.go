package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/purchase"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onBillCommitted    []OnBillCommitted
	onBillRejected     []OnBillRejected
	onDrawerReconciled []OnDrawerReconciled
	onProductSaved     []OnProductSaved
	onStockDepleted    []OnStockDepleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout. Non-positive values are ignored.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnBillCommitted); ok {
		r.onBillCommitted = append(r.onBillCommitted, v)
	}
	if v, ok := p.(OnBillRejected); ok {
		r.onBillRejected = append(r.onBillRejected, v)
	}
	if v, ok := p.(OnDrawerReconciled); ok {
		r.onDrawerReconciled = append(r.onDrawerReconciled, v)
	}
	if v, ok := p.(OnProductSaved); ok {
		r.onProductSaved = append(r.onProductSaved, v)
	}
	if v, ok := p.(OnStockDepleted); ok {
		r.onStockDepleted = append(r.onStockDepleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnBillCommitted)(nil)).Elem(), "OnBillCommitted"},
	{reflect.TypeOf((*OnBillRejected)(nil)).Elem(), "OnBillRejected"},
	{reflect.TypeOf((*OnDrawerReconciled)(nil)).Elem(), "OnDrawerReconciled"},
	{reflect.TypeOf((*OnProductSaved)(nil)).Elem(), "OnProductSaved"},
	{reflect.TypeOf((*OnStockDepleted)(nil)).Elem(), "OnStockDepleted"},
}

// implementedInterfaces returns the hook names a plugin implements.
func implementedInterfaces(p Plugin) []string {
	var out []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			out = append(out, h.name)
		}
	}
	return out
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, t interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, t)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitBillCommitted emits a bill committed event.
func (r *Registry) EmitBillCommitted(ctx context.Context, pur *purchase.Purchase, drawerAfter []drawer.Stack) {
	r.mu.RLock()
	plugins := r.onBillCommitted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnBillCommitted", func() error {
			return p.OnBillCommitted(ctx, pur, drawerAfter)
		})
	}
}

// EmitBillRejected emits a bill rejected event.
func (r *Registry) EmitBillRejected(ctx context.Context, customerEmail, stage string, err error) {
	r.mu.RLock()
	plugins := r.onBillRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnBillRejected", func() error {
			return p.OnBillRejected(ctx, customerEmail, stage, err)
		})
	}
}

// EmitDrawerReconciled emits a drawer reconciled event.
func (r *Registry) EmitDrawerReconciled(ctx context.Context, drawerAfter []drawer.Stack) {
	r.mu.RLock()
	plugins := r.onDrawerReconciled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnDrawerReconciled", func() error {
			return p.OnDrawerReconciled(ctx, drawerAfter)
		})
	}
}

// EmitProductSaved emits a product saved event.
func (r *Registry) EmitProductSaved(ctx context.Context, prod *catalog.Product) {
	r.mu.RLock()
	plugins := r.onProductSaved
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnProductSaved", func() error {
			return p.OnProductSaved(ctx, prod)
		})
	}
}

// EmitStockDepleted emits a stock depleted event.
func (r *Registry) EmitStockDepleted(ctx context.Context, productID string) {
	r.mu.RLock()
	plugins := r.onStockDepleted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnStockDepleted", func() error {
			return p.OnStockDepleted(ctx, productID)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
