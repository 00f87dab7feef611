package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/types"
)

// ==================== Catalog models ====================

// productColumns is the select list matching productModel.scanArgs.
const productColumns = `product_id, name, stock, unit_price, tax_rate::text, currency, created_at, updated_at`

type productModel struct {
	ProductID string
	Name      string
	Stock     int64
	UnitPrice int64
	TaxRate   string
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *productModel) scanArgs() []any {
	return []any{&m.ProductID, &m.Name, &m.Stock, &m.UnitPrice, &m.TaxRate, &m.Currency, &m.CreatedAt, &m.UpdatedAt}
}

func toProductModel(p *catalog.Product) *productModel {
	return &productModel{
		ProductID: p.ID,
		Name:      p.Name,
		Stock:     p.Stock,
		UnitPrice: p.UnitPrice.Amount,
		TaxRate:   p.TaxRate.String(),
		Currency:  p.UnitPrice.Currency,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func fromProductModel(m *productModel) (*catalog.Product, error) {
	rate, err := decimal.NewFromString(m.TaxRate)
	if err != nil {
		return nil, err
	}
	return &catalog.Product{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        m.ProductID,
		Name:      m.Name,
		Stock:     m.Stock,
		UnitPrice: types.Money{Amount: m.UnitPrice, Currency: m.Currency},
		TaxRate:   rate,
	}, nil
}

// ==================== Drawer models ====================

const denominationColumns = `value, count, currency, created_at, updated_at`

type denominationModel struct {
	Value     int64
	Count     int64
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m *denominationModel) scanArgs() []any {
	return []any{&m.Value, &m.Count, &m.Currency, &m.CreatedAt, &m.UpdatedAt}
}

func fromDenominationModel(m *denominationModel) *drawer.Denomination {
	return &drawer.Denomination{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Value: types.Money{Amount: m.Value, Currency: m.Currency},
		Count: m.Count,
	}
}

// ==================== Purchase models ====================

const purchaseColumns = `id, customer_email, currency, total_amount, tax_amount, grand_total, amount_paid, change_amount, created_at, updated_at`

type purchaseModel struct {
	ID            string
	CustomerEmail string
	Currency      string
	TotalAmount   int64
	TaxAmount     int64
	GrandTotal    int64
	AmountPaid    int64
	ChangeAmount  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (m *purchaseModel) scanArgs() []any {
	return []any{
		&m.ID, &m.CustomerEmail, &m.Currency, &m.TotalAmount, &m.TaxAmount,
		&m.GrandTotal, &m.AmountPaid, &m.ChangeAmount, &m.CreatedAt, &m.UpdatedAt,
	}
}

func toPurchaseModel(p *purchase.Purchase) *purchaseModel {
	return &purchaseModel{
		ID:            p.ID.String(),
		CustomerEmail: p.CustomerEmail,
		Currency:      p.Currency,
		TotalAmount:   p.Total.Amount,
		TaxAmount:     p.Tax.Amount,
		GrandTotal:    p.GrandTotal.Amount,
		AmountPaid:    p.AmountPaid.Amount,
		ChangeAmount:  p.Change.Amount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func fromPurchaseModel(m *purchaseModel) (*purchase.Purchase, error) {
	purID, err := id.ParsePurchaseID(m.ID)
	if err != nil {
		return nil, err
	}
	money := func(amount int64) types.Money { return types.Money{Amount: amount, Currency: m.Currency} }

	return &purchase.Purchase{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            purID,
		CustomerEmail: m.CustomerEmail,
		Currency:      m.Currency,
		Total:         money(m.TotalAmount),
		Tax:           money(m.TaxAmount),
		GrandTotal:    money(m.GrandTotal),
		AmountPaid:    money(m.AmountPaid),
		Change:        money(m.ChangeAmount),
	}, nil
}

const itemColumns = `purchase_id, id, product_id, name, quantity, unit_price, tax_rate::text, subtotal, tax_amount`

type itemModel struct {
	PurchaseID string
	ID         string
	ProductID  string
	Name       string
	Quantity   int64
	UnitPrice  int64
	TaxRate    string
	Subtotal   int64
	TaxAmount  int64
}

func (m *itemModel) scanArgs() []any {
	return []any{
		&m.PurchaseID, &m.ID, &m.ProductID, &m.Name, &m.Quantity,
		&m.UnitPrice, &m.TaxRate, &m.Subtotal, &m.TaxAmount,
	}
}

func fromItemModel(m *itemModel, currency string) (purchase.Item, error) {
	itemID, err := id.ParsePurchaseItemID(m.ID)
	if err != nil {
		return purchase.Item{}, err
	}
	rate, err := decimal.NewFromString(m.TaxRate)
	if err != nil {
		return purchase.Item{}, err
	}
	return purchase.Item{
		ID:        itemID,
		ProductID: m.ProductID,
		Name:      m.Name,
		Quantity:  m.Quantity,
		UnitPrice: types.Money{Amount: m.UnitPrice, Currency: currency},
		TaxRate:   rate,
		Subtotal:  types.Money{Amount: m.Subtotal, Currency: currency},
		Tax:       types.Money{Amount: m.TaxAmount, Currency: currency},
	}, nil
}
