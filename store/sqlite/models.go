package sqlite

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/types"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("till/sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ==================== Catalog ====================

const productColumns = `product_id, name, stock, unit_price, tax_rate, currency, created_at, updated_at`

func scanProduct(row scanner) (*catalog.Product, error) {
	var (
		p                catalog.Product
		price            int64
		rate, currency   string
		created, updated string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Stock, &price, &rate, &currency, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.TaxRate, err = decimal.NewFromString(rate); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	p.UnitPrice = types.Money{Amount: price, Currency: currency}
	return &p, nil
}

// ==================== Drawer ====================

const denominationColumns = `value, count, currency, created_at, updated_at`

func scanDenomination(row scanner) (*drawer.Denomination, error) {
	var (
		d                drawer.Denomination
		value            int64
		currency         string
		created, updated string
	)
	if err := row.Scan(&value, &d.Count, &currency, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if d.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	d.Value = types.Money{Amount: value, Currency: currency}
	return &d, nil
}

// ==================== Purchases ====================

const purchaseColumns = `id, customer_email, currency, total_amount, tax_amount, grand_total, amount_paid, change_amount, created_at, updated_at`

func scanPurchase(row scanner) (*purchase.Purchase, error) {
	var (
		p                               purchase.Purchase
		rawID, created, updated         string
		total, tax, grand, paid, change int64
	)
	if err := row.Scan(&rawID, &p.CustomerEmail, &p.Currency, &total, &tax, &grand, &paid, &change, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.ID, err = id.ParsePurchaseID(rawID); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	money := func(amount int64) types.Money { return types.Money{Amount: amount, Currency: p.Currency} }
	p.Total, p.Tax, p.GrandTotal = money(total), money(tax), money(grand)
	p.AmountPaid, p.Change = money(paid), money(change)
	return &p, nil
}

const itemColumns = `purchase_id, id, product_id, name, quantity, unit_price, tax_rate, subtotal, tax_amount`

// scanItem returns an item with the ID of its purchase. currencyOf
// supplies the purchase currency for the item amounts.
func scanItem(row scanner, currencyOf func(purchaseID string) string) (string, purchase.Item, error) {
	var (
		it                      purchase.Item
		purchaseID, rawID, rate string
		price, subtotal, tax    int64
	)
	if err := row.Scan(&purchaseID, &rawID, &it.ProductID, &it.Name, &it.Quantity, &price, &rate, &subtotal, &tax); err != nil {
		return "", it, err
	}
	var err error
	if it.ID, err = id.ParsePurchaseItemID(rawID); err != nil {
		return "", it, err
	}
	if it.TaxRate, err = decimal.NewFromString(rate); err != nil {
		return "", it, err
	}
	cur := currencyOf(purchaseID)
	it.UnitPrice = types.Money{Amount: price, Currency: cur}
	it.Subtotal = types.Money{Amount: subtotal, Currency: cur}
	it.Tax = types.Money{Amount: tax, Currency: cur}
	return purchaseID, it, nil
}
