// Package purchase holds the immutable purchase ledger.
package purchase

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/types"
)

// Purchase is one committed bill. It is written once and never updated.
type Purchase struct {
	types.Entity
	ID            id.PurchaseID  `json:"purchase_id"`
	CustomerEmail string         `json:"customer_email"`
	Currency      string         `json:"currency"`
	Total         types.Money    `json:"total_amount"`
	Tax           types.Money    `json:"tax_amount"`
	GrandTotal    types.Money    `json:"grand_total"`
	AmountPaid    types.Money    `json:"amount_paid"`
	Change        types.Money    `json:"change_amount"`
	Items         []Item         `json:"items"`
	ChangeGiven   []drawer.Stack `json:"change_breakdown"`
}

// Item is a purchased line. Price and tax rate are copied from the
// product at purchase time so later catalog edits never rewrite history.
type Item struct {
	ID        id.PurchaseItemID `json:"id"`
	ProductID string            `json:"product_id"`
	Name      string            `json:"name"`
	Quantity  int64             `json:"quantity"`
	UnitPrice types.Money       `json:"unit_price"`
	TaxRate   decimal.Decimal   `json:"tax_percentage"`
	Subtotal  types.Money       `json:"subtotal"`
	Tax       types.Money       `json:"tax_amount"`
}

// Quantity returns the number of units across all items.
func (p *Purchase) Quantity() int64 {
	var n int64
	for _, it := range p.Items {
		n += it.Quantity
	}
	return n
}
