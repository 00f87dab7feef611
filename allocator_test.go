package till

import (
	"errors"
	"reflect"
	"testing"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/types"
)

func stacks(pairs ...int64) []drawer.Stack {
	out := make([]drawer.Stack, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, drawer.Stack{Value: units(pairs[i]), Count: pairs[i+1]})
	}
	return out
}

func TestAllocate(t *testing.T) {
	full := stacks(500, 6, 50, 20, 20, 50, 10, 50, 5, 50, 2, 50, 1, 50)

	tests := []struct {
		name     string
		change   types.Money
		snapshot []drawer.Stack
		want     []drawer.Stack
	}{
		{"fifty four", units(54), full, stacks(50, 1, 2, 2)},
		{"zero change", units(0), full, nil},
		{"limited by count", units(100), stacks(50, 1, 20, 5, 10, 1), stacks(50, 1, 20, 2, 10, 1)},
		{"skips empty stacks", units(7), stacks(5, 0, 2, 3, 1, 1), stacks(2, 3, 1, 1)},
		{"unsorted snapshot", units(54), stacks(2, 50, 50, 20, 500, 6), stacks(50, 1, 2, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.change, tt.snapshot)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got.Breakdown, tt.want) {
				t.Errorf("breakdown: got %v, want %v", got.Breakdown, tt.want)
			}
			if sum := drawer.Total("inr", got.Breakdown); !sum.Equal(tt.change) {
				t.Errorf("dispensed %v, want %v", sum, tt.change)
			}
			if !got.Dispensed.Equal(tt.change) || !got.Remaining.IsZero() {
				t.Errorf("dispensed=%v remaining=%v", got.Dispensed, got.Remaining)
			}
		})
	}
}

func TestAllocateGreedyNotOptimal(t *testing.T) {
	// 6 from {4, 3, 3}: greedy takes the 4 and cannot finish even though
	// 3 + 3 would.
	_, err := Allocate(units(6), stacks(4, 1, 3, 2))
	if !errors.Is(err, ErrExactChangeUnavailable) {
		t.Fatalf("got %v, want ErrExactChangeUnavailable", err)
	}
}

func TestAllocateExactChangeUnavailable(t *testing.T) {
	_, err := Allocate(units(3), stacks(500, 5, 50, 21))
	if KindOf(err) != KindExactChange {
		t.Fatalf("kind: got %v, want exact_change", KindOf(err))
	}
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if !te.Shortfall.Equal(units(3)) {
		t.Errorf("shortfall: got %v, want %v", te.Shortfall, units(3))
	}
}

func TestAllocateNeverExceedsSnapshot(t *testing.T) {
	snapshot := stacks(500, 1, 100, 2, 50, 1, 20, 3, 10, 1, 5, 2, 2, 4, 1, 3)
	original := append([]drawer.Stack(nil), snapshot...)

	for change := int64(0); change <= 900; change++ {
		got, err := Allocate(units(change), snapshot)
		if err != nil {
			continue
		}
		avail := make(map[int64]int64)
		for _, s := range snapshot {
			avail[s.Value.Amount] = s.Count
		}
		for _, s := range got.Breakdown {
			if s.Count > avail[s.Value.Amount] {
				t.Fatalf("change %d: took %d × %v, only %d held", change, s.Count, s.Value, avail[s.Value.Amount])
			}
		}
		if sum := drawer.Total("inr", got.Breakdown); sum.Amount != units(change).Amount {
			t.Fatalf("change %d: dispensed %v", change, sum)
		}
	}

	if !reflect.DeepEqual(snapshot, original) {
		t.Error("snapshot was modified")
	}
}

func TestAllocateDeterministic(t *testing.T) {
	snapshot := stacks(50, 3, 20, 4, 10, 2, 5, 1, 1, 9)
	first, err := Allocate(units(137), snapshot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := Allocate(units(137), snapshot)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first.Breakdown, again.Breakdown) {
			t.Fatalf("run %d: got %v, want %v", i, again.Breakdown, first.Breakdown)
		}
	}
}

func TestAllocateNegative(t *testing.T) {
	if _, err := Allocate(units(-1), stacks(1, 10)); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("got %v, want ErrInvalidAmount", err)
	}
}

func BenchmarkAllocate(b *testing.B) {
	snapshot := stacks(500, 6, 50, 20, 20, 50, 10, 50, 5, 50, 2, 50, 1, 50)
	change := units(789)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Allocate(change, snapshot)
	}
}
