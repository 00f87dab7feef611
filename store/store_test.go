package store

import (
	"reflect"
	"testing"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/types"
)

func TestSortedProductIDs(t *testing.T) {
	set := LockSet{ProductIDs: []string{"P003", "P001", "P003", "P002", "P001"}}
	got := set.SortedProductIDs()
	want := []string{"P001", "P002", "P003"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestChangesEmpty(t *testing.T) {
	var nilChanges *Changes
	if !nilChanges.Empty() {
		t.Error("nil changes should be empty")
	}
	if !(&Changes{}).Empty() {
		t.Error("zero changes should be empty")
	}
	c := &Changes{Drawer: []drawer.Stack{{Value: types.Units(5, "inr"), Count: 1}}}
	if c.Empty() {
		t.Error("changes with drawer rows should not be empty")
	}
}
