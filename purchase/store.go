package purchase

import (
	"context"

	"github.com/xraph/till/id"
)

// Store reads committed purchases. Purchases are written only as part
// of a bill transaction, see store.Tx.
type Store interface {
	GetPurchase(ctx context.Context, purchaseID id.PurchaseID) (*Purchase, error)
	ListPurchases(ctx context.Context, opts ListOpts) ([]*Purchase, error)
}

// ListOpts filters purchase history. Results are newest first.
type ListOpts struct {
	CustomerEmail string
	Limit         int
	Offset        int
}
