package redis_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	cache "github.com/xraph/till/cache/redis"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestReadThrough(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)

	var loads atomic.Int32
	loader := cache.LoaderFunc(func(_ context.Context, pid string) (*catalog.Product, error) {
		loads.Add(1)
		if pid != "P001" {
			return nil, till.ErrProductNotFound
		}
		return &catalog.Product{
			ID: "P001", Name: "Sugar", Stock: 7, UnitPrice: types.INR(4550), TaxRate: decimal.RequireFromString("5"),
		}, nil
	})
	c := cache.New(client, loader, cache.WithLogger(quiet), cache.WithTTL(time.Minute))

	for i := 0; i < 3; i++ {
		p, err := c.Product(ctx, "P001")
		require.NoError(t, err)
		assert.Equal(t, "Sugar", p.Name)
		assert.Equal(t, int64(7), p.Stock)
		assert.True(t, p.UnitPrice.Equal(types.INR(4550)))
		assert.True(t, p.TaxRate.Equal(decimal.RequireFromString("5")))
	}
	assert.Equal(t, int32(1), loads.Load())
	assert.True(t, mr.Exists(cache.DefaultPrefix+"P001"))
	assert.Equal(t, time.Minute, mr.TTL(cache.DefaultPrefix+"P001"))

	_, err := c.Product(ctx, "P404")
	assert.ErrorIs(t, err, till.ErrProductNotFound)
	assert.False(t, mr.Exists(cache.DefaultPrefix+"P404"))
}

func TestRedisDownFallsBackToLoader(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	loader := cache.LoaderFunc(func(context.Context, string) (*catalog.Product, error) {
		return &catalog.Product{ID: "P001", Name: "Sugar", Stock: 1, UnitPrice: types.INR(100)}, nil
	})
	c := cache.New(client, loader, cache.WithLogger(quiet))
	mr.Close()

	p, err := c.Product(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, "Sugar", p.Name)
}

func TestEvictedByBillsAndSaves(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)

	tl := till.New(memory.New(), till.WithLogger(quiet))
	c := cache.New(client, tl, cache.WithLogger(quiet))
	require.NoError(t, tl.Plugins().Register(c))
	require.NoError(t, tl.Start(ctx))
	t.Cleanup(func() { _ = tl.Stop() })

	require.NoError(t, tl.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Sugar", Stock: 5, UnitPrice: types.Units(10, "inr"), TaxRate: decimal.Zero,
	}))

	p, err := c.Product(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Stock)

	_, err = tl.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 2}},
		AmountPaid:    types.Units(20, "inr"),
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.DefaultPrefix+"P001"))

	p, err = c.Product(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Stock)

	require.NoError(t, tl.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Fine Sugar", Stock: 10, UnitPrice: types.Units(12, "inr"), TaxRate: decimal.Zero,
	}))
	p, err = c.Product(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, "Fine Sugar", p.Name)
	assert.Equal(t, int64(10), p.Stock)
}
