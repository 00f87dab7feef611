package till

import (
	"context"
	"time"

	"github.com/xraph/till/store"
)

// Locker serialises tills that share one store from different processes.
// Lock acquires every key in the given order within wait and returns a
// release func. If any key cannot be taken, keys already held are
// released and the error matches ErrBusy.
type Locker interface {
	Lock(ctx context.Context, keys []string, wait time.Duration) (unlock func(context.Context) error, err error)
}

// Lock key layout shared by every Locker.
const (
	LockKeyPrefix = "till:"
	DrawerLockKey = LockKeyPrefix + "drawer"
)

// ProductLockKey is the lock key for a product row.
func ProductLockKey(productID string) string {
	return LockKeyPrefix + "product:" + productID
}

// LockKeys returns the keys for set in the global lock order: products
// ascending by ID, then the drawer.
func LockKeys(set store.LockSet) []string {
	ids := set.SortedProductIDs()
	keys := make([]string, 0, len(ids)+1)
	for _, pid := range ids {
		keys = append(keys, ProductLockKey(pid))
	}
	if set.Drawer {
		keys = append(keys, DrawerLockKey)
	}
	return keys
}
