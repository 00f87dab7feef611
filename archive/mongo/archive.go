// Package mongo archives committed receipts to MongoDB. The archive is a
// read-optimised copy for reporting; the SQL ledger stays authoritative.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/till"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/purchase"
)

// Collection name constants.
const (
	colReceipts = "till_receipts"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin          = (*Archive)(nil)
	_ plugin.OnInit          = (*Archive)(nil)
	_ plugin.OnBillCommitted = (*Archive)(nil)
	_ plugin.OnShutdown      = (*Archive)(nil)
)

// Archive writes one document per committed purchase.
type Archive struct {
	db     *mongo.Database
	client *mongo.Client // set when the archive owns the connection
	logger *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for the archive.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) { a.logger = logger }
}

// New creates an Archive on db.
func New(db *mongo.Database, opts ...Option) *Archive {
	a := &Archive{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect dials uri and archives into database. The client is disconnected
// on shutdown.
func Connect(ctx context.Context, uri, database string, opts ...Option) (*Archive, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("till/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("till/mongo: ping: %w", err)
	}
	a := New(client.Database(database), opts...)
	a.client = client
	return a, nil
}

// Name implements plugin.Plugin.
func (a *Archive) Name() string { return "mongo-archive" }

// OnInit implements plugin.OnInit.
func (a *Archive) OnInit(ctx context.Context, _ interface{}) error {
	return a.Migrate(ctx)
}

// OnShutdown implements plugin.OnShutdown.
func (a *Archive) OnShutdown(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

// Migrate creates the archive indexes.
func (a *Archive) Migrate(ctx context.Context) error {
	_, err := a.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email_key", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "items.product_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("till/mongo: migrate %s indexes: %w", colReceipts, err)
	}
	return nil
}

// OnBillCommitted implements plugin.OnBillCommitted. Re-archiving the same
// purchase replaces the earlier document.
func (a *Archive) OnBillCommitted(ctx context.Context, p *purchase.Purchase, drawerAfter []drawer.Stack) error {
	m := toReceiptModel(p, drawerAfter)
	_, err := a.collection().ReplaceOne(ctx,
		bson.M{"_id": m.ID}, m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("till/mongo: archive %s: %w", m.ID, err)
	}
	a.logger.Debug("receipt archived", "purchase_id", m.ID)
	return nil
}

// Get returns an archived purchase.
func (a *Archive) Get(ctx context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	var m receiptModel
	err := a.collection().FindOne(ctx, bson.M{"_id": purchaseID.String()}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, till.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("till/mongo: get receipt: %w", err)
	}
	return fromReceiptModel(&m)
}

// List returns archived purchases newest first, optionally for one customer.
func (a *Archive) List(ctx context.Context, opts purchase.ListOpts) ([]*purchase.Purchase, error) {
	filter := bson.M{}
	if key := emailKey(opts.CustomerEmail); key != "" {
		filter["email_key"] = key
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := a.collection().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("till/mongo: list receipts: %w", err)
	}
	var models []receiptModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("till/mongo: list receipts: %w", err)
	}

	out := make([]*purchase.Purchase, 0, len(models))
	for i := range models {
		p, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (a *Archive) collection() *mongo.Collection {
	return a.db.Collection(colReceipts)
}
