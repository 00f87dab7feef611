package memory_test

import (
	"testing"

	"github.com/xraph/till/store"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
