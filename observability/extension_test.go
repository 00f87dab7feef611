package observability_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/observability"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/types"
)

func u(n int64) types.Money { return types.Units(n, "inr") }

func value(metric any) float64 { return testutil.ToFloat64(metric.(prometheus.Collector)) }

func TestMetricsExtension(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	factory := observability.NewPrometheusFactory(reg)
	metrics := observability.NewMetricsExtension(factory)

	tl := till.New(memory.New(),
		till.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		till.WithPlugin(metrics),
	)
	require.NoError(t, tl.Start(ctx))
	t.Cleanup(func() { _ = tl.Stop() })

	require.NoError(t, tl.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Sugar", Stock: 2, UnitPrice: types.INR(4550), TaxRate: decimal.RequireFromString("5"),
	}))
	_, err := tl.ReconcileDrawer(ctx, []drawer.Stack{{Value: u(50), Count: 10}, {Value: u(2), Count: 10}})
	require.NoError(t, err)

	bill, err := tl.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 2}},
		Tendered:      []drawer.Stack{{Value: u(50), Count: 2}},
	})
	require.NoError(t, err)
	require.True(t, bill.Purchase.Change.Equal(u(4)))

	_, err = tl.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 1}},
		Tendered:      []drawer.Stack{{Value: u(50), Count: 1}},
	})
	require.True(t, errors.Is(err, till.ErrOutOfStock), "got %v", err)

	assert.Equal(t, 1.0, value(metrics.BillsCommitted))
	assert.Equal(t, 2.0, value(metrics.UnitsSold))
	assert.Equal(t, 1.0, value(metrics.ProductsSaved))
	assert.Equal(t, 1.0, value(metrics.StockDepleted))
	assert.Equal(t, 1.0, value(metrics.DrawerReconciled))
	assert.Equal(t, 1.0, value(metrics.BillsRejected[till.KindStock]))
	assert.Equal(t, 0.0, value(metrics.BillsRejected[till.KindPayment]))

	// 50×10 + 2×10 + 50×2 in, 2×2 out.
	assert.Equal(t, float64(u(616).Amount), value(metrics.DrawerValue))
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := observability.NewPrometheusFactory(reg)
	b := observability.NewPrometheusFactory(reg)

	a.Counter("till.bill.committed").Inc()
	b.Counter("till.bill.committed").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "till_bill_committed", families[0].GetName())
	assert.Equal(t, 2.0, families[0].GetMetric()[0].GetCounter().GetValue())
}
