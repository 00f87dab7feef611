// Package storetest is a behavioural test suite shared by every
// store.Store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/store"
	"github.com/xraph/till/types"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"products", testProducts},
		{"denominations", testDenominations},
		{"commit", testCommit},
		{"rollback discards", testRollback},
		{"missing product", testMissingProduct},
		{"purchase history", testPurchaseHistory},
		{"lock wait", testLockWait},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func inr(units int64) types.Money { return types.Units(units, "inr") }

// Product builds a catalog product priced in whole rupees.
func Product(pid string, priceUnits int64, rate string, stock int64) *catalog.Product {
	return &catalog.Product{
		Entity:    till.NewEntity(),
		ID:        pid,
		Name:      "Product " + pid,
		Stock:     stock,
		UnitPrice: inr(priceUnits),
		TaxRate:   decimal.RequireFromString(rate),
	}
}

func seedDrawer(t *testing.T, s store.Store, pairs ...int64) {
	t.Helper()
	for i := 0; i+1 < len(pairs); i += 2 {
		require.NoError(t, s.UpsertDenomination(context.Background(), &drawer.Denomination{
			Entity: till.NewEntity(),
			Value:  inr(pairs[i]),
			Count:  pairs[i+1],
		}))
	}
}

func newPurchase(email string, at time.Time) *purchase.Purchase {
	return &purchase.Purchase{
		Entity:        types.Entity{CreatedAt: at, UpdatedAt: at},
		ID:            id.NewPurchaseID(),
		CustomerEmail: email,
		Currency:      "inr",
		Total:         inr(91),
		Tax:           types.INR(455),
		GrandTotal:    inr(96),
		AmountPaid:    inr(100),
		Change:        inr(4),
		Items: []purchase.Item{{
			ID:        id.NewPurchaseItemID(),
			ProductID: "P001",
			Name:      "Sugar",
			Quantity:  2,
			UnitPrice: types.INR(4550),
			TaxRate:   decimal.RequireFromString("5"),
			Subtotal:  types.INR(9100),
			Tax:       types.INR(455),
		}},
		ChangeGiven: []drawer.Stack{{Value: inr(2), Count: 2}},
	}
}

func testProducts(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetProduct(ctx, "P404")
	assert.ErrorIs(t, err, till.ErrProductNotFound)

	for _, p := range []*catalog.Product{
		Product("P002", 60, "5", 150),
		Product("P001", 45, "5", 200),
		Product("P003", 25, "12.5", 100),
	} {
		require.NoError(t, s.UpsertProduct(ctx, p))
	}

	got, err := s.GetProduct(ctx, "P003")
	require.NoError(t, err)
	assert.Equal(t, "Product P003", got.Name)
	assert.Equal(t, int64(100), got.Stock)
	assert.True(t, got.UnitPrice.Equal(inr(25)))
	assert.True(t, got.TaxRate.Equal(decimal.RequireFromString("12.5")), "tax rate %s", got.TaxRate)

	created := got.CreatedAt
	update := Product("P003", 30, "12", 90)
	update.CreatedAt = created.Add(time.Hour)
	require.NoError(t, s.UpsertProduct(ctx, update))
	got, err = s.GetProduct(ctx, "P003")
	require.NoError(t, err)
	assert.True(t, got.UnitPrice.Equal(inr(30)))
	assert.Equal(t, int64(90), got.Stock)
	assert.WithinDuration(t, created, got.CreatedAt, time.Millisecond, "created_at must survive an update")

	all, err := s.ListProducts(ctx, catalog.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"P001", "P002", "P003"}, []string{all[0].ID, all[1].ID, all[2].ID})

	pageTwo, err := s.ListProducts(ctx, catalog.ListOpts{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, pageTwo, 1)
	assert.Equal(t, "P003", pageTwo[0].ID)
}

func testDenominations(t *testing.T, s store.Store) {
	ctx := context.Background()

	empty, err := s.ListDenominations(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	seedDrawer(t, s, 50, 20, 500, 5, 2, 50)
	seedDrawer(t, s, 50, 19)

	got, err := s.ListDenominations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []drawer.Stack{
		{Value: inr(2), Count: 50},
		{Value: inr(50), Count: 19},
		{Value: inr(500), Count: 5},
	}, stacksOf(got))
}

func testCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, Product("P001", 45, "5", 200)))
	require.NoError(t, s.UpsertProduct(ctx, Product("P002", 60, "5", 150)))
	seedDrawer(t, s, 500, 5, 50, 20, 2, 50)

	tx, err := s.Begin(ctx, store.LockSet{ProductIDs: []string{"P002", "P001", "P002"}, Drawer: true, Wait: time.Second})
	require.NoError(t, err)

	products := tx.Products()
	require.Len(t, products, 2)
	assert.Equal(t, int64(200), products["P001"].Stock)
	assert.Equal(t, []drawer.Stack{
		{Value: inr(2), Count: 50},
		{Value: inr(50), Count: 20},
		{Value: inr(500), Count: 5},
	}, stacksOf(tx.Denominations()))

	p := newPurchase("buyer@example.com", time.Now().UTC())
	require.NoError(t, tx.Commit(ctx, &store.Changes{
		Stock:    map[string]int64{"P001": 198},
		Drawer:   []drawer.Stack{{Value: inr(2), Count: 48}, {Value: inr(100), Count: 1}},
		Purchase: p,
	}))
	require.NoError(t, tx.Rollback(ctx), "rollback after commit must be safe")

	got, err := s.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, int64(198), got.Stock)
	untouched, err := s.GetProduct(ctx, "P002")
	require.NoError(t, err)
	assert.Equal(t, int64(150), untouched.Stock)

	denoms, err := s.ListDenominations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []drawer.Stack{
		{Value: inr(2), Count: 48},
		{Value: inr(50), Count: 20},
		{Value: inr(100), Count: 1},
		{Value: inr(500), Count: 5},
	}, stacksOf(denoms))

	stored, err := s.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), stored.ID.String())
	assert.Equal(t, "buyer@example.com", stored.CustomerEmail)
	assert.True(t, stored.GrandTotal.Equal(inr(96)))
	assert.True(t, stored.Tax.Equal(types.INR(455)))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, p.Items[0].ID.String(), stored.Items[0].ID.String())
	assert.Equal(t, int64(2), stored.Items[0].Quantity)
	assert.True(t, stored.Items[0].TaxRate.Equal(decimal.RequireFromString("5")))
	assert.True(t, stored.Items[0].Subtotal.Equal(types.INR(9100)))
	assert.Equal(t, []drawer.Stack{{Value: inr(2), Count: 2}}, stored.ChangeGiven)

	_, err = s.GetPurchase(ctx, id.NewPurchaseID())
	assert.ErrorIs(t, err, till.ErrPurchaseNotFound)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, Product("P001", 45, "5", 10)))

	tx, err := s.Begin(ctx, store.LockSet{ProductIDs: []string{"P001"}, Wait: time.Second})
	require.NoError(t, err)
	tx.Products()["P001"].Stock = 0
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))

	got, err := s.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Stock)

	// The lock was released.
	tx, err = s.Begin(ctx, store.LockSet{ProductIDs: []string{"P001"}, Wait: time.Second})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
}

func testMissingProduct(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, Product("P001", 45, "5", 10)))

	tx, err := s.Begin(ctx, store.LockSet{ProductIDs: []string{"P001", "P999"}, Wait: time.Second})
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, ok := tx.Products()["P999"]
	assert.False(t, ok, "unknown products are absent")
	assert.Empty(t, tx.Denominations(), "drawer not requested")

	err = tx.Commit(ctx, &store.Changes{Stock: map[string]int64{"P001": 9, "P999": 1}})
	assert.ErrorIs(t, err, till.ErrProductNotFound)

	got, err := s.GetProduct(ctx, "P001")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Stock, "failed commit must write nothing")
}

func testPurchaseHistory(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	var ids []string
	for i, email := range []string{"a@example.com", "b@example.com", "A@example.com"} {
		p := newPurchase(email, base.Add(time.Duration(i)*time.Second))
		p.Items = nil
		p.ChangeGiven = nil
		tx, err := s.Begin(ctx, store.LockSet{Wait: time.Second})
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx, &store.Changes{Purchase: p}))
		ids = append(ids, p.ID.String())
	}

	all, err := s.ListPurchases(ctx, purchase.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, purchaseIDs(all), "newest first")

	mine, err := s.ListPurchases(ctx, purchase.ListOpts{CustomerEmail: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2], ids[0]}, purchaseIDs(mine))

	paged, err := s.ListPurchases(ctx, purchase.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1]}, purchaseIDs(paged))
}

func testLockWait(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, Product("P001", 45, "5", 10)))
	seedDrawer(t, s, 10, 1)

	holder, err := s.Begin(ctx, store.LockSet{ProductIDs: []string{"P001"}, Drawer: true, Wait: time.Second})
	require.NoError(t, err)

	start := time.Now()
	_, err = s.Begin(ctx, store.LockSet{ProductIDs: []string{"P001"}, Drawer: true, Wait: 100 * time.Millisecond})
	assert.ErrorIs(t, err, till.ErrBusy)
	assert.Less(t, time.Since(start), 5*time.Second, "wait must be bounded")

	require.NoError(t, holder.Rollback(ctx))

	tx, err := s.Begin(ctx, store.LockSet{ProductIDs: []string{"P001"}, Drawer: true, Wait: time.Second})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
}

func stacksOf(denoms []*drawer.Denomination) []drawer.Stack {
	out := make([]drawer.Stack, 0, len(denoms))
	for _, d := range denoms {
		out = append(out, drawer.Stack{Value: d.Value, Count: d.Count})
	}
	return out
}

func purchaseIDs(ps []*purchase.Purchase) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID.String())
	}
	return out
}
