package amqp_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/events/amqp"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	mu        sync.Mutex
	declared  []string
	published []published
	closed    bool
	failWith  error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp091.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func (f *fakeChannel) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.published))
	for _, p := range f.published {
		out = append(out, p.key)
	}
	return out
}

func decode(t *testing.T, p published) (amqp.Event, map[string]any) {
	t.Helper()
	var evt amqp.Event
	require.NoError(t, json.Unmarshal(p.msg.Body, &evt))
	var data map[string]any
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	return evt, data
}

func TestNewRequiresChannel(t *testing.T) {
	_, err := amqp.New(nil)
	assert.ErrorIs(t, err, amqp.ErrChannelRequired)
}

func TestPublishesBillLifecycle(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{}
	pub, err := amqp.New(ch, amqp.WithExchange("shop.events"), amqp.WithLogger(quiet))
	require.NoError(t, err)

	tl := till.New(memory.New(), till.WithLogger(quiet), till.WithPlugin(pub))
	require.NoError(t, tl.Start(ctx))
	assert.Equal(t, []string{"shop.events:topic"}, ch.declared)

	require.NoError(t, tl.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Sugar", Stock: 1, UnitPrice: types.Units(10, "inr"), TaxRate: decimal.Zero,
	}))
	_, err = tl.ReconcileDrawer(ctx, []drawer.Stack{{Value: types.Units(5, "inr"), Count: 4}})
	require.NoError(t, err)

	bill, err := tl.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 1}},
		Tendered:      []drawer.Stack{{Value: types.Units(5, "inr"), Count: 3}},
	})
	require.NoError(t, err)

	_, err = tl.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "late@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 1}},
		AmountPaid:    types.Units(10, "inr"),
	})
	require.Error(t, err)

	require.NoError(t, tl.Stop())
	assert.True(t, ch.closed)

	assert.Equal(t, []string{
		amqp.EventProductSaved,
		amqp.EventDrawerReconciled,
		amqp.EventBillCommitted,
		amqp.EventStockDepleted,
		amqp.EventBillRejected,
	}, ch.keys())

	committed := ch.published[2]
	assert.Equal(t, "shop.events", committed.exchange)
	assert.Equal(t, "application/json", committed.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, committed.msg.DeliveryMode)

	evt, data := decode(t, committed)
	assert.Equal(t, id.PrefixEvent, evt.ID.Prefix())
	assert.Equal(t, evt.ID.String(), committed.msg.MessageId)
	assert.Equal(t, amqp.EventBillCommitted, evt.Type)
	assert.Equal(t, bill.Purchase.ID.String(), data["purchase_id"])
	assert.Equal(t, "5.00", data["change_amount"])

	_, rejected := decode(t, ch.published[4])
	assert.Equal(t, "stock", rejected["kind"])
	assert.Equal(t, "late@example.com", rejected["customer_email"])
}

func TestPublishFailureLeavesBillCommitted(t *testing.T) {
	ctx := context.Background()
	ch := &fakeChannel{failWith: errors.New("broker gone")}
	pub, err := amqp.New(ch, amqp.WithLogger(quiet))
	require.NoError(t, err)

	tl := till.New(memory.New(), till.WithLogger(quiet), till.WithPlugin(pub))
	require.NoError(t, tl.Start(ctx))
	t.Cleanup(func() { _ = tl.Stop() })

	require.NoError(t, tl.SaveProduct(ctx, &catalog.Product{
		ID: "P001", Name: "Sugar", Stock: 3, UnitPrice: types.Units(10, "inr"), TaxRate: decimal.Zero,
	}))
	_, err = tl.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "buyer@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 1}},
		AmountPaid:    types.Units(10, "inr"),
	})
	require.NoError(t, err)

	history, err := tl.Purchases(ctx, purchase.ListOpts{CustomerEmail: "buyer@example.com"})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
