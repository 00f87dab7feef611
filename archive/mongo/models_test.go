package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/types"
)

func TestReceiptModelKeepsLedgerFields(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	p := &purchase.Purchase{
		Entity:        types.Entity{CreatedAt: created, UpdatedAt: created},
		ID:            id.NewPurchaseID(),
		CustomerEmail: "buyer@example.com",
		Currency:      "inr",
		Total:         types.INR(40000),
		Tax:           types.INR(4600),
		GrandTotal:    types.INR(44600),
		AmountPaid:    types.INR(50000),
		Change:        types.INR(5400),
		Items: []purchase.Item{{
			ID:        id.NewPurchaseItemID(),
			ProductID: "P004",
			Name:      "Tea Powder",
			Quantity:  2,
			UnitPrice: types.INR(15000),
			TaxRate:   decimal.RequireFromString("18"),
			Subtotal:  types.INR(30000),
			Tax:       types.INR(5400),
		}},
		ChangeGiven: []drawer.Stack{{Value: types.Units(50, "inr"), Count: 1}, {Value: types.Units(2, "inr"), Count: 2}},
	}

	m := toReceiptModel(p, []drawer.Stack{{Value: types.Units(500, "inr"), Count: 6}})

	// Through BSON and back, the way the driver stores it.
	raw, err := bson.Marshal(m)
	require.NoError(t, err)
	var decoded receiptModel
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	got, err := fromReceiptModel(&decoded)
	require.NoError(t, err)

	assert.Equal(t, p.ID.String(), got.ID.String())
	assert.Equal(t, p.CustomerEmail, got.CustomerEmail)
	assert.True(t, got.GrandTotal.Equal(p.GrandTotal))
	assert.True(t, got.Change.Equal(p.Change))
	assert.True(t, got.CreatedAt.Equal(created))
	require.Len(t, got.Items, 1)
	assert.Equal(t, p.Items[0].ID.String(), got.Items[0].ID.String())
	assert.True(t, got.Items[0].TaxRate.Equal(decimal.RequireFromString("18")))
	assert.True(t, got.Items[0].Tax.Equal(types.INR(5400)))
	assert.Equal(t, p.ChangeGiven, got.ChangeGiven)
	assert.Equal(t, []stackModel{{Value: 50000, Count: 6}}, decoded.DrawerAfter)
}

func TestReceiptModelRejectsForeignID(t *testing.T) {
	m := &receiptModel{ID: id.NewPurchaseItemID().String(), Currency: "inr"}
	_, err := fromReceiptModel(m)
	assert.Error(t, err)
}
