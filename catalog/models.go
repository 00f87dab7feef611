// Package catalog holds the product records a till sells from.
package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/till/types"
)

// Product is a sellable item with its current stock.
// Stock only changes through a committed purchase.
type Product struct {
	types.Entity
	ID        string          `json:"product_id"`
	Name      string          `json:"name"`
	Stock     int64           `json:"stock"`
	UnitPrice types.Money     `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"` // percentage, e.g. 18 for 18%
}

// Clone returns a copy safe to hand outside a store.
func (p *Product) Clone() *Product {
	c := *p
	return &c
}
