package till

import (
	"fmt"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/types"
)

// Allocation is a successful change selection.
type Allocation struct {
	Breakdown []drawer.Stack // highest value first
	Dispensed types.Money
	Remaining types.Money // always zero on success
}

// Pieces is the number of notes and coins to hand over.
func (a *Allocation) Pieces() int64 { return drawer.Pieces(a.Breakdown) }

// Allocate chooses denominations for change greedily, highest value first,
// taking as many of each as fit without exceeding what the snapshot holds.
// The result is not guaranteed to use the fewest pieces, only to be
// deterministic for a given snapshot. The snapshot is never modified.
//
// When the drawer cannot make change exactly, Allocate returns an error of
// KindExactChange carrying the amount it could not cover. The caller must
// not apply any part of the selection in that case.
func Allocate(change types.Money, snapshot []drawer.Stack) (*Allocation, error) {
	if change.IsNegative() {
		return nil, validationError(ErrInvalidAmount, "change", fmt.Sprintf("negative change %s", change))
	}

	stacks := make([]drawer.Stack, len(snapshot))
	copy(stacks, snapshot)
	drawer.SortDescending(stacks)

	a := &Allocation{
		Dispensed: types.Zero(change.Currency),
		Remaining: change,
	}

	for _, s := range stacks {
		if a.Remaining.IsZero() {
			break
		}
		if s.Count <= 0 || !s.Value.IsPositive() {
			continue
		}
		take := a.Remaining.Amount / s.Value.Amount
		if take > s.Count {
			take = s.Count
		}
		if take == 0 {
			continue
		}
		given := s.Value.Multiply(take)
		a.Breakdown = append(a.Breakdown, drawer.Stack{Value: s.Value, Count: take})
		a.Remaining = a.Remaining.Subtract(given)
		a.Dispensed = a.Dispensed.Add(given)
	}

	if !a.Remaining.IsZero() {
		return nil, &Error{
			Kind:      KindExactChange,
			Err:       ErrExactChangeUnavailable,
			Shortfall: a.Remaining,
			Requested: change.Amount,
			Available: a.Dispensed.Amount,
			Message:   fmt.Sprintf("cannot make %s from the drawer, %s short", change, a.Remaining),
		}
	}
	return a, nil
}
