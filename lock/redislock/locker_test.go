package redislock_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/lock/redislock"
	"github.com/xraph/till/store"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLockAndRelease(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	l := redislock.New(client, redislock.WithLogger(quiet))

	keys := till.LockKeys(store.LockSet{ProductIDs: []string{"P002", "P001"}, Drawer: true})
	unlock, err := l.Lock(ctx, keys, time.Second)
	require.NoError(t, err)
	for _, k := range keys {
		assert.True(t, mr.Exists(k), k)
	}

	require.NoError(t, unlock(ctx))
	for _, k := range keys {
		assert.False(t, mr.Exists(k), k)
	}
}

func TestLockBusyReleasesPartialSet(t *testing.T) {
	ctx := context.Background()
	mr, client := newClient(t)
	holder := redislock.New(client, redislock.WithLogger(quiet))
	contender := redislock.New(client, redislock.WithLogger(quiet), redislock.WithRetryDelay(10*time.Millisecond))

	unlock, err := holder.Lock(ctx, []string{till.DrawerLockKey}, time.Second)
	require.NoError(t, err)

	keys := []string{till.ProductLockKey("P001"), till.DrawerLockKey}
	start := time.Now()
	_, err = contender.Lock(ctx, keys, 100*time.Millisecond)
	require.ErrorIs(t, err, till.ErrBusy)
	assert.Equal(t, till.KindBusy, till.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, mr.Exists(till.ProductLockKey("P001")), "partial set must be released")

	require.NoError(t, unlock(ctx))
	again, err := contender.Lock(ctx, keys, time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestTillsShareLocker(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)
	st := memory.New()

	newTill := func() *till.Till {
		tl := till.New(st,
			till.WithLogger(quiet),
			till.WithLocker(redislock.New(client, redislock.WithLogger(quiet))),
			till.WithLockTimeout(5*time.Second),
		)
		require.NoError(t, tl.Start(ctx))
		t.Cleanup(func() { _ = tl.Stop() })
		return tl
	}
	a, b := newTill(), newTill()

	require.NoError(t, a.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Sugar", Stock: 20, UnitPrice: types.Units(10, "inr"), TaxRate: decimal.Zero,
	}))
	_, err := a.ReconcileDrawer(ctx, []drawer.Stack{{Value: types.Units(10, "inr"), Count: 0}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		tl := a
		if i%2 == 1 {
			tl = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tl.GenerateBill(ctx, &till.BillRequest{
				CustomerEmail: "buyer@example.com",
				Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 1}},
				Tendered:      []drawer.Stack{{Value: types.Units(10, "inr"), Count: 1}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := a.Product(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Stock)

	snap, err := b.DrawerSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []drawer.Stack{{Value: types.Units(10, "inr"), Count: 20}}, snap)
}
