// Package audithook bridges Till billing events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any audit service. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/purchase"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnBillCommitted    = (*Extension)(nil)
	_ plugin.OnBillRejected     = (*Extension)(nil)
	_ plugin.OnDrawerReconciled = (*Extension)(nil)
	_ plugin.OnProductSaved     = (*Extension)(nil)
	_ plugin.OnStockDepleted    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Till events to an audit trail backend.
type Extension struct {
	recorder   Recorder
	only       map[string]bool // nil records every action
	skip       map[string]bool
	categories map[string]bool // nil records every category
	logger     *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Bill hooks
// ──────────────────────────────────────────────────

// OnBillCommitted implements plugin.OnBillCommitted.
func (e *Extension) OnBillCommitted(ctx context.Context, p *purchase.Purchase, drawerAfter []drawer.Stack) error {
	return e.record(ctx, ActionBillCommitted, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, p.ID.String(), CategoryBilling, nil,
		"customer_email", p.CustomerEmail,
		"grand_total", p.GrandTotal.String(),
		"amount_paid", p.AmountPaid.String(),
		"change", p.Change.String(),
		"items", len(p.Items),
		"drawer_total", drawer.Total(p.Currency, drawerAfter).String(),
	)
}

// OnBillRejected implements plugin.OnBillRejected. Busy rejections are
// warnings; internal failures are errors.
func (e *Extension) OnBillRejected(ctx context.Context, customerEmail, stage string, err error) error {
	kind := till.KindOf(err)
	severity := SeverityWarning
	switch kind {
	case till.KindInternal:
		severity = SeverityError
	case till.KindValidation:
		severity = SeverityInfo
	}
	return e.record(ctx, ActionBillRejected, severity, OutcomeFailure,
		ResourcePurchase, "", CategoryBilling, err,
		"customer_email", customerEmail,
		"stage", stage,
		"kind", kind.String(),
	)
}

// ──────────────────────────────────────────────────
// Drawer & catalog hooks
// ──────────────────────────────────────────────────

// OnDrawerReconciled implements plugin.OnDrawerReconciled.
func (e *Extension) OnDrawerReconciled(ctx context.Context, drawerAfter []drawer.Stack) error {
	counts := make(map[string]int64, len(drawerAfter))
	for _, s := range drawerAfter {
		counts[s.Value.String()] = s.Count
	}
	return e.record(ctx, ActionDrawerReconciled, SeverityWarning, OutcomeSuccess,
		ResourceDrawer, "", CategoryCash, nil,
		"denominations", counts,
		"pieces", drawer.Pieces(drawerAfter),
	)
}

// OnProductSaved implements plugin.OnProductSaved.
func (e *Extension) OnProductSaved(ctx context.Context, p *catalog.Product) error {
	return e.record(ctx, ActionProductSaved, SeverityInfo, OutcomeSuccess,
		ResourceProduct, p.ID, CategoryInventory, nil,
		"name", p.Name,
		"unit_price", p.UnitPrice.String(),
		"tax_rate", p.TaxRate.String(),
		"stock", p.Stock,
	)
}

// OnStockDepleted implements plugin.OnStockDepleted.
func (e *Extension) OnStockDepleted(ctx context.Context, productID string) error {
	return e.record(ctx, ActionStockDepleted, SeverityWarning, OutcomeSuccess,
		ResourceProduct, productID, CategoryInventory, nil,
		"product_id", productID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) wants(action, category string) bool {
	if e.skip[action] {
		return false
	}
	if e.only != nil && !e.only[action] {
		return false
	}
	return e.categories == nil || e.categories[category]
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if !e.wants(action, category) {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
