package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	audithook "github.com/xraph/till/audit_hook"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/types"
)

type trail struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (tr *trail) Record(_ context.Context, evt *audithook.AuditEvent) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, evt)
	return nil
}

func (tr *trail) actions() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, 0, len(tr.events))
	for _, e := range tr.events {
		out = append(out, e.Action)
	}
	return out
}

func (tr *trail) last() *audithook.AuditEvent {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.events[len(tr.events)-1]
}

func newTill(t *testing.T, ext *audithook.Extension) *till.Till {
	t.Helper()
	tl := till.New(memory.New(),
		till.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		till.WithPlugin(ext),
	)
	require.NoError(t, tl.Start(context.Background()))
	t.Cleanup(func() { _ = tl.Stop() })
	return tl
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	tr := &trail{}
	tl := newTill(t, audithook.New(tr))

	require.NoError(t, tl.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Sugar", Stock: 1, UnitPrice: types.INR(4550), TaxRate: decimal.RequireFromString("5"),
	}))
	_, err := tl.ReconcileDrawer(ctx, []drawer.Stack{{Value: types.Units(2, "inr"), Count: 10}})
	require.NoError(t, err)

	bill, err := tl.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 1}},
		AmountPaid:    types.INR(5000),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		audithook.ActionProductSaved,
		audithook.ActionDrawerReconciled,
		audithook.ActionBillCommitted,
		audithook.ActionStockDepleted,
	}, tr.actions())

	committed := tr.events[2]
	assert.Equal(t, bill.Purchase.ID.String(), committed.ResourceID)
	assert.Equal(t, "₹48.00", committed.Metadata["grand_total"])

	_, err = tl.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 1}},
		AmountPaid:    types.INR(5000),
	})
	require.Error(t, err)

	rejected := tr.last()
	assert.Equal(t, audithook.ActionBillRejected, rejected.Action)
	assert.Equal(t, audithook.OutcomeFailure, rejected.Outcome)
	assert.Equal(t, "stock", rejected.Metadata["kind"])
	assert.Equal(t, string(till.StageStart), rejected.Metadata["stage"])
	assert.NotEmpty(t, rejected.Reason)
}

func TestAuditWithoutActions(t *testing.T) {
	ctx := context.Background()
	tr := &trail{}
	tl := newTill(t, audithook.New(tr, audithook.WithoutActions(audithook.ActionProductSaved)))

	require.NoError(t, tl.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Sugar", Stock: 1, UnitPrice: types.INR(4550), TaxRate: decimal.Zero,
	}))
	_, err := tl.ReconcileDrawer(ctx, []drawer.Stack{{Value: types.Units(2, "inr"), Count: 1}})
	require.NoError(t, err)

	assert.Equal(t, []string{audithook.ActionDrawerReconciled}, tr.actions())
}

func TestAuditWithCategories(t *testing.T) {
	ctx := context.Background()
	tr := &trail{}
	tl := newTill(t, audithook.New(tr, audithook.WithCategories(audithook.CategoryInventory)))

	require.NoError(t, tl.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Sugar", Stock: 1, UnitPrice: types.INR(4550), TaxRate: decimal.Zero,
	}))
	_, err := tl.ReconcileDrawer(ctx, []drawer.Stack{{Value: types.Units(2, "inr"), Count: 1}})
	require.NoError(t, err)

	assert.Equal(t, []string{audithook.ActionProductSaved}, tr.actions())
}

func TestAuditRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("trail offline")
	}), audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	assert.NoError(t, ext.OnStockDepleted(context.Background(), "P001"))
}
