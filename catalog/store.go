package catalog

import "context"

// Store persists products.
type Store interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
	ListProducts(ctx context.Context, opts ListOpts) ([]*Product, error)
	UpsertProduct(ctx context.Context, p *Product) error
}

// ListOpts pages through the catalog ordered by product ID.
type ListOpts struct {
	Limit  int
	Offset int
}
