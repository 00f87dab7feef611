// Package redis caches product lookups in Redis. Reads go through the
// cache; committed bills and product saves evict the affected entries so
// stock figures never outlive the write that changed them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/types"
)

// Defaults.
const (
	DefaultTTL    = time.Minute
	DefaultPrefix = "till:cache:product:"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin          = (*ProductCache)(nil)
	_ plugin.OnBillCommitted = (*ProductCache)(nil)
	_ plugin.OnProductSaved  = (*ProductCache)(nil)
)

// Loader reads a product from the source of truth.
type Loader interface {
	Product(ctx context.Context, productID string) (*catalog.Product, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, productID string) (*catalog.Product, error)

// Product implements Loader.
func (f LoaderFunc) Product(ctx context.Context, productID string) (*catalog.Product, error) {
	return f(ctx, productID)
}

// ProductCache is a read-through product cache and a till plugin.
type ProductCache struct {
	client redis.UniversalClient
	loader Loader
	ttl    time.Duration
	prefix string
	logger *slog.Logger
	group  singleflight.Group
}

// Option configures a ProductCache.
type Option func(*ProductCache)

// WithTTL sets how long an entry lives without eviction.
func WithTTL(d time.Duration) Option {
	return func(c *ProductCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *ProductCache) { c.prefix = prefix }
}

// WithLogger sets the logger for the cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ProductCache) { c.logger = logger }
}

// New creates a ProductCache in front of loader.
func New(client redis.UniversalClient, loader Loader, opts ...Option) *ProductCache {
	c := &ProductCache{
		client: client,
		loader: loader,
		ttl:    DefaultTTL,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements plugin.Plugin.
func (c *ProductCache) Name() string { return "redis-product-cache" }

type entry struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Stock     int64           `json:"stock"`
	UnitPrice int64           `json:"unit_price"`
	Currency  string          `json:"currency"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toEntry(p *catalog.Product) entry {
	return entry{
		ID:        p.ID,
		Name:      p.Name,
		Stock:     p.Stock,
		UnitPrice: p.UnitPrice.Amount,
		Currency:  p.UnitPrice.Currency,
		TaxRate:   p.TaxRate,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (e entry) product() *catalog.Product {
	return &catalog.Product{
		Entity:    types.Entity{CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt},
		ID:        e.ID,
		Name:      e.Name,
		Stock:     e.Stock,
		UnitPrice: types.Money{Amount: e.UnitPrice, Currency: e.Currency},
		TaxRate:   e.TaxRate,
	}
}

// Product returns the cached product or loads and caches it. Cache
// failures fall back to the loader.
func (c *ProductCache) Product(ctx context.Context, productID string) (*catalog.Product, error) {
	key := c.key(productID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var e entry
		if jsonErr := json.Unmarshal(raw, &e); jsonErr == nil {
			return e.product(), nil
		}
		c.logger.Warn("discarding corrupt cache entry", "product_id", productID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("product cache read failed", "product_id", productID, "error", err)
	}

	v, err, _ := c.group.Do(productID, func() (any, error) {
		p, err := c.loader.Product(ctx, productID)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(toEntry(p))
		if err != nil {
			return nil, fmt.Errorf("till/redis: encode product: %w", err)
		}
		if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
			c.logger.Warn("product cache write failed", "product_id", productID, "error", err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog.Product).Clone(), nil
}

// Invalidate evicts productIDs.
func (c *ProductCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, pid := range productIDs {
		keys = append(keys, c.key(pid))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("till/redis: invalidate: %w", err)
	}
	return nil
}

// OnBillCommitted evicts every product on the bill.
func (c *ProductCache) OnBillCommitted(ctx context.Context, p *purchase.Purchase, _ []drawer.Stack) error {
	ids := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		ids = append(ids, it.ProductID)
	}
	return c.Invalidate(ctx, ids...)
}

// OnProductSaved evicts the saved product.
func (c *ProductCache) OnProductSaved(ctx context.Context, p *catalog.Product) error {
	return c.Invalidate(ctx, p.ID)
}

func (c *ProductCache) key(productID string) string {
	return c.prefix + productID
}
