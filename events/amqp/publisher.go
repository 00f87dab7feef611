// Package amqp publishes till domain events to a RabbitMQ topic exchange.
//
// Each hook becomes one JSON message routed by event type
// ("bill.committed", "bill.rejected", ...). Publishing happens after the
// owning transaction settled, so a broker outage only loses the event.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/purchase"
)

// Event types, also used as routing keys.
const (
	EventBillCommitted    = "bill.committed"
	EventBillRejected     = "bill.rejected"
	EventDrawerReconciled = "drawer.reconciled"
	EventProductSaved     = "product.saved"
	EventStockDepleted    = "product.stock_depleted"
)

// Defaults.
const (
	DefaultExchange       = "till.events"
	DefaultPublishTimeout = 5 * time.Second

	contentTypeJSON = "application/json"
)

// ErrChannelRequired is returned by New for a nil channel.
var ErrChannelRequired = errors.New("till/amqp: channel is required")

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Publisher)(nil)
	_ plugin.OnInit             = (*Publisher)(nil)
	_ plugin.OnShutdown         = (*Publisher)(nil)
	_ plugin.OnBillCommitted    = (*Publisher)(nil)
	_ plugin.OnBillRejected     = (*Publisher)(nil)
	_ plugin.OnDrawerReconciled = (*Publisher)(nil)
	_ plugin.OnProductSaved     = (*Publisher)(nil)
	_ plugin.OnStockDepleted    = (*Publisher)(nil)
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Event is the message envelope.
type Event struct {
	ID         id.ID           `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Publisher is a till plugin emitting domain events.
type Publisher struct {
	ch       Channel
	conn     *amqp.Connection // set by Dial
	exchange string
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithExchange overrides the exchange name.
func WithExchange(name string) Option {
	return func(p *Publisher) { p.exchange = name }
}

// WithPublishTimeout bounds a single publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger for the publisher.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// New creates a Publisher on an open channel.
func New(ch Channel, opts ...Option) (*Publisher, error) {
	if ch == nil {
		return nil, ErrChannelRequired
	}
	p := &Publisher{
		ch:       ch,
		exchange: DefaultExchange,
		timeout:  DefaultPublishTimeout,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Dial connects to url and opens a dedicated channel. The connection is
// closed on shutdown.
func Dial(url string, opts ...Option) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("till/amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("till/amqp: open channel: %w", err)
	}
	p, err := New(ch, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "amqp-events" }

// OnInit declares the topic exchange.
func (p *Publisher) OnInit(_ context.Context, _ interface{}) error {
	if err := p.ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("till/amqp: declare exchange %s: %w", p.exchange, err)
	}
	return nil
}

// OnShutdown closes the channel, and the connection when owned.
func (p *Publisher) OnShutdown(_ context.Context) error {
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}

type stackPayload struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

type itemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Subtotal  string `json:"subtotal"`
	Tax       string `json:"tax_amount"`
}

type billCommittedPayload struct {
	PurchaseID    string         `json:"purchase_id"`
	CustomerEmail string         `json:"customer_email"`
	Currency      string         `json:"currency"`
	GrandTotal    string         `json:"grand_total"`
	AmountPaid    string         `json:"amount_paid"`
	Change        string         `json:"change_amount"`
	Items         []itemPayload  `json:"items"`
	ChangeGiven   []stackPayload `json:"change_given"`
	DrawerAfter   []stackPayload `json:"drawer_after"`
}

type billRejectedPayload struct {
	CustomerEmail string `json:"customer_email"`
	Stage         string `json:"stage"`
	Kind          string `json:"kind"`
	Error         string `json:"error"`
}

type drawerPayload struct {
	Drawer []stackPayload `json:"drawer"`
}

type productPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Stock     int64  `json:"stock"`
	UnitPrice string `json:"unit_price,omitempty"`
	TaxRate   string `json:"tax_rate,omitempty"`
}

// OnBillCommitted implements plugin.OnBillCommitted.
func (p *Publisher) OnBillCommitted(ctx context.Context, pur *purchase.Purchase, drawerAfter []drawer.Stack) error {
	payload := billCommittedPayload{
		PurchaseID:    pur.ID.String(),
		CustomerEmail: pur.CustomerEmail,
		Currency:      pur.Currency,
		GrandTotal:    pur.GrandTotal.FormatMajor(),
		AmountPaid:    pur.AmountPaid.FormatMajor(),
		Change:        pur.Change.FormatMajor(),
		Items:         make([]itemPayload, 0, len(pur.Items)),
		ChangeGiven:   stacks(pur.ChangeGiven),
		DrawerAfter:   stacks(drawerAfter),
	}
	for _, it := range pur.Items {
		payload.Items = append(payload.Items, itemPayload{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal.FormatMajor(),
			Tax:       it.Tax.FormatMajor(),
		})
	}
	return p.publish(ctx, EventBillCommitted, payload)
}

// OnBillRejected implements plugin.OnBillRejected.
func (p *Publisher) OnBillRejected(ctx context.Context, customerEmail, stage string, err error) error {
	return p.publish(ctx, EventBillRejected, billRejectedPayload{
		CustomerEmail: customerEmail,
		Stage:         stage,
		Kind:          till.KindOf(err).String(),
		Error:         err.Error(),
	})
}

// OnDrawerReconciled implements plugin.OnDrawerReconciled.
func (p *Publisher) OnDrawerReconciled(ctx context.Context, drawerAfter []drawer.Stack) error {
	return p.publish(ctx, EventDrawerReconciled, drawerPayload{Drawer: stacks(drawerAfter)})
}

// OnProductSaved implements plugin.OnProductSaved.
func (p *Publisher) OnProductSaved(ctx context.Context, prod *catalog.Product) error {
	return p.publish(ctx, EventProductSaved, productPayload{
		ProductID: prod.ID,
		Name:      prod.Name,
		Stock:     prod.Stock,
		UnitPrice: prod.UnitPrice.FormatMajor(),
		TaxRate:   prod.TaxRate.String(),
	})
}

// OnStockDepleted implements plugin.OnStockDepleted.
func (p *Publisher) OnStockDepleted(ctx context.Context, productID string) error {
	return p.publish(ctx, EventStockDepleted, productPayload{ProductID: productID})
}

func (p *Publisher) publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("till/amqp: encode %s: %w", eventType, err)
	}
	evt := Event{
		ID:         id.NewEventID(),
		Type:       eventType,
		OccurredAt: p.now(),
		Data:       data,
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("till/amqp: encode envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID.String(),
		Timestamp:    evt.OccurredAt,
		Type:         eventType,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("till/amqp: publish %s: %w", eventType, err)
	}
	p.logger.Debug("event published", "type", eventType, "event_id", evt.ID.String())
	return nil
}

func stacks(in []drawer.Stack) []stackPayload {
	out := make([]stackPayload, 0, len(in))
	for _, s := range in {
		out = append(out, stackPayload{Value: s.Value.FormatMajor(), Count: s.Count})
	}
	return out
}
