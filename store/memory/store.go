// Package memory provides an in-process Store. Row locks are per-key
// semaphores, so it gives the same exclusion and ordering guarantees as
// the SQL backends within one process.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/till"
	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/id"
	"github.com/xraph/till/purchase"
	"github.com/xraph/till/store"
)

const defaultWait = 5 * time.Second

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Catalog storage
	products map[string]*catalog.Product

	// Drawer storage, keyed by minor-unit value
	denominations map[int64]*drawer.Denomination

	// Purchase ledger, in commit order
	purchases []*purchase.Purchase
	byID      map[string]*purchase.Purchase

	locks *keyLocks
}

func New() *Store {
	return &Store{
		products:      make(map[string]*catalog.Product),
		denominations: make(map[int64]*drawer.Denomination),
		byID:          make(map[string]*purchase.Purchase),
		locks:         newKeyLocks(),
	}
}

// ──────────────────────────────────────────────────
// Catalog Store implementation
// ──────────────────────────────────────────────────

func (s *Store) GetProduct(_ context.Context, productID string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.products[productID]; ok {
		return p.Clone(), nil
	}
	return nil, till.ErrProductNotFound
}

func (s *Store) ListProducts(_ context.Context, opts catalog.ListOpts) ([]*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	release, err := s.locks.acquire(ctx, []string{productKey(p.ID)}, defaultWait)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return till.ErrStoreClosed
	}
	if existing, ok := s.products[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	s.products[p.ID] = p.Clone()
	return nil
}

// ──────────────────────────────────────────────────
// Drawer Store implementation
// ──────────────────────────────────────────────────

func (s *Store) ListDenominations(_ context.Context) ([]*drawer.Denomination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.denominationsLocked(), nil
}

func (s *Store) UpsertDenomination(ctx context.Context, d *drawer.Denomination) error {
	release, err := s.locks.acquire(ctx, []string{drawerKey}, defaultWait)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return till.ErrStoreClosed
	}
	c := *d
	s.denominations[d.Value.Amount] = &c
	return nil
}

func (s *Store) denominationsLocked() []*drawer.Denomination {
	out := make([]*drawer.Denomination, 0, len(s.denominations))
	for _, d := range s.denominations {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value.Amount < out[j].Value.Amount })
	return out
}

// ──────────────────────────────────────────────────
// Purchase Store implementation
// ──────────────────────────────────────────────────

func (s *Store) GetPurchase(_ context.Context, purchaseID id.PurchaseID) (*purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.byID[purchaseID.String()]; ok {
		return clonePurchase(p), nil
	}
	return nil, till.ErrPurchaseNotFound
}

func (s *Store) ListPurchases(_ context.Context, opts purchase.ListOpts) ([]*purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email := strings.TrimSpace(opts.CustomerEmail)
	result := make([]*purchase.Purchase, 0)
	// Newest first: walk the ledger backwards.
	for i := len(s.purchases) - 1; i >= 0; i-- {
		p := s.purchases[i]
		if email != "" && !strings.EqualFold(p.CustomerEmail, email) {
			continue
		}
		result = append(result, clonePurchase(p))
	}

	return page(result, opts.Limit, opts.Offset), nil
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

func (s *Store) Begin(ctx context.Context, set store.LockSet) (store.Tx, error) {
	keys := make([]string, 0, len(set.ProductIDs)+1)
	ids := set.SortedProductIDs()
	for _, pid := range ids {
		keys = append(keys, productKey(pid))
	}
	if set.Drawer {
		keys = append(keys, drawerKey)
	}

	wait := set.Wait
	if wait <= 0 {
		wait = defaultWait
	}
	release, err := s.locks.acquire(ctx, keys, wait)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		release()
		return nil, till.ErrStoreClosed
	}
	tx := &tx{
		store:    s,
		release:  release,
		products: make(map[string]*catalog.Product, len(ids)),
	}
	for _, pid := range ids {
		if p, ok := s.products[pid]; ok {
			tx.products[pid] = p.Clone()
		}
	}
	if set.Drawer {
		tx.denominations = s.denominationsLocked()
	}
	s.mu.RUnlock()

	return tx, nil
}

type tx struct {
	store         *Store
	release       func()
	once          sync.Once
	products      map[string]*catalog.Product
	denominations []*drawer.Denomination
}

func (t *tx) Products() map[string]*catalog.Product { return t.products }

func (t *tx) Denominations() []*drawer.Denomination { return t.denominations }

func (t *tx) Commit(_ context.Context, changes *store.Changes) error {
	committed := false
	var err error
	t.once.Do(func() {
		defer t.release()
		committed = true
		err = t.store.apply(changes)
	})
	if !committed {
		return till.ErrStoreClosed
	}
	return err
}

func (t *tx) Rollback(_ context.Context) error {
	t.once.Do(t.release)
	return nil
}

// apply writes a change set in one critical section, so readers observe
// either none or all of it.
func (s *Store) apply(changes *store.Changes) error {
	if changes.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return till.ErrStoreClosed
	}
	if changes.Purchase != nil {
		if _, exists := s.byID[changes.Purchase.ID.String()]; exists {
			return till.ErrAlreadyExists
		}
	}
	for pid := range changes.Stock {
		if _, ok := s.products[pid]; !ok {
			return till.ErrProductNotFound
		}
	}

	for pid, level := range changes.Stock {
		p := s.products[pid]
		p.Stock = level
		p.Touch()
	}
	for _, st := range changes.Drawer {
		if d, ok := s.denominations[st.Value.Amount]; ok {
			d.Count = st.Count
			d.Touch()
			continue
		}
		s.denominations[st.Value.Amount] = &drawer.Denomination{
			Entity: till.NewEntity(),
			Value:  st.Value,
			Count:  st.Count,
		}
	}
	if changes.Purchase != nil {
		p := clonePurchase(changes.Purchase)
		s.purchases = append(s.purchases, p)
		s.byID[p.ID.String()] = p
	}
	return nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return till.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func page[T any](items []T, limit, offset int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	if start < 0 {
		start = 0
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func clonePurchase(p *purchase.Purchase) *purchase.Purchase {
	c := *p
	c.Items = append([]purchase.Item(nil), p.Items...)
	c.ChangeGiven = append([]drawer.Stack(nil), p.ChangeGiven...)
	return &c
}
