// Package observability provides a metrics extension for Till that records
// billing and drawer event counts through a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/purchase"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnBillCommitted    = (*MetricsExtension)(nil)
	_ plugin.OnBillRejected     = (*MetricsExtension)(nil)
	_ plugin.OnDrawerReconciled = (*MetricsExtension)(nil)
	_ plugin.OnProductSaved     = (*MetricsExtension)(nil)
	_ plugin.OnStockDepleted    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// Gauge interface for metric gauges.
type Gauge interface {
	Set(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// MetricsExtension records till-wide billing metrics.
// Register it as a Till plugin to track bills automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Bill metrics
	BillsCommitted Counter
	BillGrandTotal Histogram
	BillItems      Histogram
	ChangeGiven    Histogram
	ChangePieces   Histogram

	// Rejection metrics, one counter per error kind
	BillsRejected map[till.Kind]Counter
	BusyRejected  Counter

	// Drawer metrics
	DrawerValue       Gauge
	DrawerReconciled  Counter
	ExactChangeMissed Counter

	// Catalog metrics
	ProductsSaved Counter
	StockDepleted Counter
	UnitsSold     Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		// Bill metrics
		BillsCommitted: factory.Counter("till.bill.committed"),
		BillGrandTotal: factory.Histogram("till.bill.grand_total_minor"),
		BillItems:      factory.Histogram("till.bill.items"),
		ChangeGiven:    factory.Histogram("till.bill.change_minor"),
		ChangePieces:   factory.Histogram("till.bill.change_pieces"),

		// Rejection metrics
		BillsRejected: make(map[till.Kind]Counter),
		BusyRejected:  factory.Counter("till.bill.rejected.busy"),

		// Drawer metrics
		DrawerValue:       factory.Gauge("till.drawer.value_minor"),
		DrawerReconciled:  factory.Counter("till.drawer.reconciled"),
		ExactChangeMissed: factory.Counter("till.drawer.exact_change_unavailable"),

		// Catalog metrics
		ProductsSaved: factory.Counter("till.product.saved"),
		StockDepleted: factory.Counter("till.product.stock_depleted"),
		UnitsSold:     factory.Counter("till.product.units_sold"),
	}
	for _, k := range []till.Kind{
		till.KindInternal, till.KindValidation, till.KindStock, till.KindPayment,
		till.KindDenomination, till.KindExactChange, till.KindNotFound,
	} {
		m.BillsRejected[k] = factory.Counter("till.bill.rejected." + k.String())
	}
	m.BillsRejected[till.KindBusy] = m.BusyRejected
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit. It primes the drawer gauge.
func (m *MetricsExtension) OnInit(ctx context.Context, t interface{}) error {
	tl, ok := t.(*till.Till)
	if !ok {
		return nil
	}
	snap, err := tl.DrawerSnapshot(ctx)
	if err != nil {
		return err
	}
	m.DrawerValue.Set(float64(drawer.Total(tl.Currency(), snap).Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Bill hooks
// ──────────────────────────────────────────────────

// OnBillCommitted implements plugin.OnBillCommitted.
func (m *MetricsExtension) OnBillCommitted(_ context.Context, p *purchase.Purchase, drawerAfter []drawer.Stack) error {
	m.BillsCommitted.Inc()
	m.BillGrandTotal.Observe(float64(p.GrandTotal.Amount))
	m.BillItems.Observe(float64(len(p.Items)))
	m.ChangeGiven.Observe(float64(p.Change.Amount))
	m.ChangePieces.Observe(float64(drawer.Pieces(p.ChangeGiven)))
	m.UnitsSold.Add(float64(p.Quantity()))
	m.DrawerValue.Set(float64(drawer.Total(p.Currency, drawerAfter).Amount))
	return nil
}

// OnBillRejected implements plugin.OnBillRejected.
func (m *MetricsExtension) OnBillRejected(_ context.Context, _, _ string, err error) error {
	kind := till.KindOf(err)
	if c, ok := m.BillsRejected[kind]; ok {
		c.Inc()
	}
	if errors.Is(err, till.ErrExactChangeUnavailable) {
		m.ExactChangeMissed.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Drawer & catalog hooks
// ──────────────────────────────────────────────────

// OnDrawerReconciled implements plugin.OnDrawerReconciled.
func (m *MetricsExtension) OnDrawerReconciled(_ context.Context, drawerAfter []drawer.Stack) error {
	m.DrawerReconciled.Inc()
	if len(drawerAfter) > 0 {
		m.DrawerValue.Set(float64(drawer.Total(drawerAfter[0].Value.Currency, drawerAfter).Amount))
	} else {
		m.DrawerValue.Set(0)
	}
	return nil
}

// OnProductSaved implements plugin.OnProductSaved.
func (m *MetricsExtension) OnProductSaved(_ context.Context, _ *catalog.Product) error {
	m.ProductsSaved.Inc()
	return nil
}

// OnStockDepleted implements plugin.OnStockDepleted.
func (m *MetricsExtension) OnStockDepleted(_ context.Context, _ string) error {
	m.StockDepleted.Inc()
	return nil
}
