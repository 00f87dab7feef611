// Package seed loads the default shop catalog and drawer.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/types"
)

// DefaultDenominationCount is the opening count of every denomination.
const DefaultDenominationCount = 100

type productSeed struct {
	id, name string
	price    string
	tax      string
	stock    int64
}

var defaultProducts = []productSeed{
	{"P001", "Sugar", "45.50", "5", 200},
	{"P002", "Rice", "60.00", "5", 150},
	{"P003", "Milk", "25.00", "12", 100},
	{"P004", "Tea Powder", "150.00", "18", 80},
	{"P005", "Cooking Oil", "120.00", "12", 90},
}

var defaultDenominations = []int64{500, 50, 20, 10, 5, 2, 1}

// Products returns the default catalog priced in currency.
func Products(currency string) ([]*catalog.Product, error) {
	out := make([]*catalog.Product, 0, len(defaultProducts))
	for _, s := range defaultProducts {
		price, err := types.ParseMajor(s.price, currency)
		if err != nil {
			return nil, fmt.Errorf("seed: %s price: %w", s.id, err)
		}
		out = append(out, &catalog.Product{
			Entity:    types.NewEntity(),
			ID:        s.id,
			Name:      s.name,
			Stock:     s.stock,
			UnitPrice: price,
			TaxRate:   decimal.RequireFromString(s.tax),
		})
	}
	return out, nil
}

// Drawer returns the opening drawer, highest value first.
func Drawer(currency string) []drawer.Stack {
	out := make([]drawer.Stack, 0, len(defaultDenominations))
	for _, v := range defaultDenominations {
		out = append(out, drawer.Stack{Value: types.Units(v, currency), Count: DefaultDenominationCount})
	}
	return out
}

// Load saves the default catalog and sets the drawer to its opening
// counts. Products that already exist are left untouched.
func Load(ctx context.Context, t *till.Till, logger *slog.Logger) error {
	products, err := Products(t.Currency())
	if err != nil {
		return err
	}
	created := 0
	for _, p := range products {
		if _, err := t.Product(ctx, p.ID); err == nil {
			continue
		} else if !till.IsNotFound(err) {
			return fmt.Errorf("seed: lookup %s: %w", p.ID, err)
		}
		if err := t.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("seed: save %s: %w", p.ID, err)
		}
		created++
	}

	snap, err := t.DrawerSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("seed: drawer: %w", err)
	}
	if len(snap) == 0 {
		if _, err := t.ReconcileDrawer(ctx, Drawer(t.Currency())); err != nil {
			return fmt.Errorf("seed: drawer: %w", err)
		}
	}

	logger.Info("seed data loaded", "products_created", created, "drawer_seeded", len(snap) == 0)
	return nil
}
