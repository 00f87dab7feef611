package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/till"
)

const drawerKey = "drawer"

func productKey(productID string) string { return "product:" + productID }

// keyLocks hands out one exclusive semaphore per key. A semaphore is a
// buffered channel of capacity one: holding the lock means having sent
// into it.
type keyLocks struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{sems: make(map[string]chan struct{})}
}

func (l *keyLocks) sem(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.sems[key]
	if !ok {
		c = make(chan struct{}, 1)
		l.sems[key] = c
	}
	return c
}

// acquire takes keys in the order given, all within wait. On timeout or
// cancellation every key already taken is released and ErrBusy (or the
// context error) is returned.
func (l *keyLocks) acquire(ctx context.Context, keys []string, wait time.Duration) (func(), error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range keys {
		c := l.sem(key)
		select {
		case c <- struct{}{}:
			held = append(held, c)
		case <-timer.C:
			release()
			return nil, till.ErrBusy
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
