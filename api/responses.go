package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/types"
)

// number renders money as an exact JSON number in major units.
func number(m types.Money) json.Number {
	return json.Number(m.FormatMajor())
}

// denomKey renders a denomination the way clients send it: "500", "0.50".
func denomKey(m types.Money) string {
	if m.IsWholeUnit() {
		return strconv.FormatInt(m.Amount/types.UnitSize(m.Currency), 10)
	}
	return m.FormatMajor()
}

func countsOf(stacks []drawer.Stack) map[string]int64 {
	out := make(map[string]int64, len(stacks))
	for _, s := range stacks {
		out[denomKey(s.Value)] = s.Count
	}
	return out
}

type itemView struct {
	Name          string      `json:"name"`
	ProductID     string      `json:"product_id"`
	Quantity      int64       `json:"quantity"`
	UnitPrice     json.Number `json:"unit_price"`
	TaxPercentage json.Number `json:"tax_percentage"`
	Subtotal      json.Number `json:"subtotal"`
	TaxAmount     json.Number `json:"tax_amount"`
}

type changeView struct {
	Value json.Number `json:"value"`
	Count int64       `json:"count"`
	Total json.Number `json:"total"`
}

type purchaseView struct {
	PurchaseID      string       `json:"purchase_id"`
	CustomerEmail   string       `json:"customer_email"`
	TotalAmount     json.Number  `json:"total_amount"`
	TaxAmount       json.Number  `json:"tax_amount"`
	GrandTotal      json.Number  `json:"grand_total"`
	AmountPaid      json.Number  `json:"amount_paid"`
	ChangeAmount    json.Number  `json:"change_amount"`
	Items           []itemView   `json:"items"`
	ChangeBreakdown []changeView `json:"change_breakdown"`
	CreatedAt       time.Time    `json:"created_at"`
}

func newPurchaseView(p *purchase.Purchase) purchaseView {
	v := purchaseView{
		PurchaseID:      p.ID.String(),
		CustomerEmail:   p.CustomerEmail,
		TotalAmount:     number(p.Total),
		TaxAmount:       number(p.Tax),
		GrandTotal:      number(p.GrandTotal),
		AmountPaid:      number(p.AmountPaid),
		ChangeAmount:    number(p.Change),
		Items:           make([]itemView, 0, len(p.Items)),
		ChangeBreakdown: make([]changeView, 0, len(p.ChangeGiven)),
		CreatedAt:       p.CreatedAt,
	}
	for _, it := range p.Items {
		v.Items = append(v.Items, itemView{
			Name:          it.Name,
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			UnitPrice:     number(it.UnitPrice),
			TaxPercentage: json.Number(it.TaxRate.String()),
			Subtotal:      number(it.Subtotal),
			TaxAmount:     number(it.Tax),
		})
	}
	for _, s := range p.ChangeGiven {
		v.ChangeBreakdown = append(v.ChangeBreakdown, changeView{
			Value: number(s.Value),
			Count: s.Count,
			Total: number(s.Total()),
		})
	}
	return v
}

type drawerView struct {
	TotalValue    json.Number      `json:"total_value"`
	Denominations map[string]int64 `json:"denominations"`
	Pieces        int64            `json:"pieces"`
}

func newDrawerView(currency string, stacks []drawer.Stack) drawerView {
	return drawerView{
		TotalValue:    number(drawer.Total(currency, stacks)),
		Denominations: countsOf(stacks),
		Pieces:        drawer.Pieces(stacks),
	}
}

type summaryView struct {
	Stage         string    `json:"stage"`
	ItemsCount    int       `json:"items_count"`
	TotalQuantity int64     `json:"total_quantity"`
	ChangePieces  int64     `json:"change_pieces"`
	CreatedAt     time.Time `json:"created_at"`
}

type billView struct {
	Success bool `json:"success"`
	purchaseView
	AvailableDenominations map[string]int64 `json:"available_denominations"`
	TotalCustomerPayment   json.Number      `json:"total_customer_payment"`
	TotalChangeGiven       json.Number      `json:"total_change_given"`
	ShopDrawerStatus       drawerView       `json:"shop_drawer_status"`
	TransactionSummary     summaryView      `json:"transaction_summary"`
}

func newBillView(b *till.Bill) billView {
	p := b.Purchase
	var qty int64
	for _, it := range p.Items {
		qty += it.Quantity
	}
	return billView{
		Success:                true,
		purchaseView:           newPurchaseView(p),
		AvailableDenominations: countsOf(b.Drawer),
		TotalCustomerPayment:   number(b.Payment),
		TotalChangeGiven:       number(p.Change),
		ShopDrawerStatus:       newDrawerView(p.Currency, b.Drawer),
		TransactionSummary: summaryView{
			Stage:         string(b.Stage),
			ItemsCount:    len(p.Items),
			TotalQuantity: qty,
			ChangePieces:  b.ChangePieces(),
			CreatedAt:     p.CreatedAt,
		},
	}
}

type productView struct {
	Success   bool        `json:"success"`
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Tax       json.Number `json:"tax"`
	Stock     int64       `json:"stock"`
}

func newProductView(p *catalog.Product) productView {
	return productView{
		Success:   true,
		ProductID: p.ID,
		Name:      p.Name,
		Price:     number(p.UnitPrice),
		Tax:       json.Number(p.TaxRate.String()),
		Stock:     p.Stock,
	}
}

type errorView struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
