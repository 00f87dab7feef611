package mongo

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/types"
)

// receiptModel is the archived form of a purchase. Amounts are minor
// units in the receipt currency.
type receiptModel struct {
	ID            string             `bson:"_id"`
	CustomerEmail string             `bson:"customer_email"`
	EmailKey      string             `bson:"email_key"`
	Currency      string             `bson:"currency"`
	TotalAmount   int64              `bson:"total_amount"`
	TaxAmount     int64              `bson:"tax_amount"`
	GrandTotal    int64              `bson:"grand_total"`
	AmountPaid    int64              `bson:"amount_paid"`
	ChangeAmount  int64              `bson:"change_amount"`
	Items         []receiptItemModel `bson:"items"`
	ChangeGiven   []stackModel       `bson:"change_given"`
	DrawerAfter   []stackModel       `bson:"drawer_after,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	ArchivedAt    time.Time          `bson:"archived_at"`
}

type receiptItemModel struct {
	ID        string `bson:"id"`
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	Quantity  int64  `bson:"quantity"`
	UnitPrice int64  `bson:"unit_price"`
	TaxRate   string `bson:"tax_rate"`
	Subtotal  int64  `bson:"subtotal"`
	TaxAmount int64  `bson:"tax_amount"`
}

type stackModel struct {
	Value int64 `bson:"value"`
	Count int64 `bson:"count"`
}

func toReceiptModel(p *purchase.Purchase, drawerAfter []drawer.Stack) *receiptModel {
	m := &receiptModel{
		ID:            p.ID.String(),
		CustomerEmail: p.CustomerEmail,
		EmailKey:      emailKey(p.CustomerEmail),
		Currency:      p.Currency,
		TotalAmount:   p.Total.Amount,
		TaxAmount:     p.Tax.Amount,
		GrandTotal:    p.GrandTotal.Amount,
		AmountPaid:    p.AmountPaid.Amount,
		ChangeAmount:  p.Change.Amount,
		Items:         make([]receiptItemModel, 0, len(p.Items)),
		ChangeGiven:   toStackModels(p.ChangeGiven),
		DrawerAfter:   toStackModels(drawerAfter),
		CreatedAt:     p.CreatedAt,
		ArchivedAt:    time.Now().UTC(),
	}
	for _, it := range p.Items {
		m.Items = append(m.Items, receiptItemModel{
			ID:        it.ID.String(),
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.Amount,
			TaxRate:   it.TaxRate.String(),
			Subtotal:  it.Subtotal.Amount,
			TaxAmount: it.Tax.Amount,
		})
	}
	return m
}

func fromReceiptModel(m *receiptModel) (*purchase.Purchase, error) {
	purID, err := id.ParsePurchaseID(m.ID)
	if err != nil {
		return nil, err
	}
	money := func(amount int64) types.Money { return types.Money{Amount: amount, Currency: m.Currency} }

	p := &purchase.Purchase{
		Entity:        types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.CreatedAt},
		ID:            purID,
		CustomerEmail: m.CustomerEmail,
		Currency:      m.Currency,
		Total:         money(m.TotalAmount),
		Tax:           money(m.TaxAmount),
		GrandTotal:    money(m.GrandTotal),
		AmountPaid:    money(m.AmountPaid),
		Change:        money(m.ChangeAmount),
		ChangeGiven:   fromStackModels(m.ChangeGiven, m.Currency),
	}
	for _, im := range m.Items {
		itemID, err := id.ParsePurchaseItemID(im.ID)
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(im.TaxRate)
		if err != nil {
			return nil, err
		}
		p.Items = append(p.Items, purchase.Item{
			ID:        itemID,
			ProductID: im.ProductID,
			Name:      im.Name,
			Quantity:  im.Quantity,
			UnitPrice: money(im.UnitPrice),
			TaxRate:   rate,
			Subtotal:  money(im.Subtotal),
			Tax:       money(im.TaxAmount),
		})
	}
	return p, nil
}

func toStackModels(stacks []drawer.Stack) []stackModel {
	out := make([]stackModel, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, stackModel{Value: s.Value.Amount, Count: s.Count})
	}
	return out
}

func fromStackModels(models []stackModel, currency string) []drawer.Stack {
	if len(models) == 0 {
		return nil
	}
	out := make([]drawer.Stack, 0, len(models))
	for _, m := range models {
		out = append(out, drawer.Stack{Value: types.Money{Amount: m.Value, Currency: currency}, Count: m.Count})
	}
	return out
}

// emailKey is the lookup form of an address; history lookups ignore case.
func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
