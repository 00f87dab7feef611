// Package drawer holds the cash drawer records: one row per denomination.
package drawer

import (
	"sort"

	"github.com/xraph/till/types"
)

// Denomination is one physical note or coin value and how many are held.
type Denomination struct {
	types.Entity
	Value types.Money `json:"value"`
	Count int64       `json:"count"`
}

// Stack is a count of pieces of a single denomination. It describes
// drawer snapshots, tendered payments, overrides and change breakdowns.
type Stack struct {
	Value types.Money `json:"value"`
	Count int64       `json:"count"`
}

// Total is Value × Count.
func (s Stack) Total() types.Money { return s.Value.Multiply(s.Count) }

// TotalChecked is Total that fails with types.ErrOverflow when the
// value does not fit in an int64 amount.
func (s Stack) TotalChecked() (types.Money, error) { return s.Value.MultiplyChecked(s.Count) }

// Total sums the value of all stacks.
func Total(currency string, stacks []Stack) types.Money {
	sum := types.Zero(currency)
	for _, s := range stacks {
		sum = sum.Add(s.Total())
	}
	return sum
}

// Pieces counts individual notes and coins.
func Pieces(stacks []Stack) int64 {
	var n int64
	for _, s := range stacks {
		n += s.Count
	}
	return n
}

// SortDescending orders stacks by value, highest first.
func SortDescending(stacks []Stack) {
	sort.Slice(stacks, func(i, j int) bool { return stacks[i].Value.Amount > stacks[j].Value.Amount })
}

// Stacks converts denomination rows to stacks, highest value first.
func Stacks(denoms []*Denomination) []Stack {
	out := make([]Stack, 0, len(denoms))
	for _, d := range denoms {
		out = append(out, Stack{Value: d.Value, Count: d.Count})
	}
	SortDescending(out)
	return out
}
