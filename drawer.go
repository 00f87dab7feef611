package till

import (
	"fmt"
	"math"
	"sort"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/types"
)

// Drawer is the staged view of the cash drawer inside one transaction.
// It is loaded from the locked denomination rows and is the only thing
// that changes counts. Nothing it does is durable until the enclosing
// store transaction commits its Changes, so discarding a Drawer is a
// complete rollback.
type Drawer struct {
	currency string
	loaded   map[int64]int64
	counts   map[int64]int64
}

// NewDrawer stages the given rows. The rows themselves are not modified.
func NewDrawer(currency string, rows []*drawer.Denomination) *Drawer {
	d := &Drawer{
		currency: currency,
		loaded:   make(map[int64]int64, len(rows)),
		counts:   make(map[int64]int64, len(rows)),
	}
	for _, r := range rows {
		d.loaded[r.Value.Amount] = r.Count
		d.counts[r.Value.Amount] = r.Count
	}
	return d
}

// Count returns the staged count of value, zero when absent.
func (d *Drawer) Count(value types.Money) int64 {
	return d.counts[value.Amount]
}

// Has reports whether value is a known denomination.
func (d *Drawer) Has(value types.Money) bool {
	_, ok := d.counts[value.Amount]
	return ok
}

// Increase adds count pieces of value, creating the entry if absent.
func (d *Drawer) Increase(value types.Money, count int64) error {
	if err := d.checkValue(value); err != nil {
		return err
	}
	if count <= 0 {
		return denominationError(ErrInvalidDenomination, value, count, d.counts[value.Amount],
			fmt.Sprintf("increase of %s must be positive, got %d", value, count))
	}
	current := d.counts[value.Amount]
	if current > math.MaxInt64-count {
		return denominationError(ErrInvalidDenomination, value, count, current,
			fmt.Sprintf("%d more × %s overflows the drawer count", count, value))
	}
	if _, err := value.MultiplyChecked(current + count); err != nil {
		return denominationError(ErrInvalidDenomination, value, count, current,
			fmt.Sprintf("%d × %s is out of range", current+count, value))
	}
	d.counts[value.Amount] = current + count
	return nil
}

// Decrease removes count pieces of value. It never takes a count below
// zero: asking for more than is held fails and changes nothing.
func (d *Drawer) Decrease(value types.Money, count int64) error {
	if err := d.checkValue(value); err != nil {
		return err
	}
	if count <= 0 {
		return denominationError(ErrInvalidDenomination, value, count, d.counts[value.Amount],
			fmt.Sprintf("decrease of %s must be positive, got %d", value, count))
	}
	current := d.counts[value.Amount]
	if count > current {
		return denominationError(ErrInsufficientDenomination, value, count, current,
			fmt.Sprintf("need %d × %s, drawer holds %d", count, value, current))
	}
	d.counts[value.Amount] = current - count
	return nil
}

// SetAbsolute overwrites the count of value.
func (d *Drawer) SetAbsolute(value types.Money, count int64) error {
	if err := d.checkValue(value); err != nil {
		return err
	}
	if count < 0 {
		return denominationError(ErrInvalidDenomination, value, count, d.counts[value.Amount],
			fmt.Sprintf("count of %s must not be negative, got %d", value, count))
	}
	d.counts[value.Amount] = count
	return nil
}

// Snapshot returns every denomination with its staged count, highest
// value first. The result is a copy.
func (d *Drawer) Snapshot() []drawer.Stack {
	out := make([]drawer.Stack, 0, len(d.counts))
	for amount, count := range d.counts {
		out = append(out, drawer.Stack{Value: types.Money{Amount: amount, Currency: d.currency}, Count: count})
	}
	drawer.SortDescending(out)
	return out
}

// Total is the staged value of the whole drawer.
func (d *Drawer) Total() types.Money {
	return drawer.Total(d.currency, d.Snapshot())
}

// Changes lists the denominations whose count differs from what was
// loaded, with their final counts, ascending by value.
func (d *Drawer) Changes() []drawer.Stack {
	var out []drawer.Stack
	for amount, count := range d.counts {
		before, existed := d.loaded[amount]
		if existed && before == count {
			continue
		}
		out = append(out, drawer.Stack{Value: types.Money{Amount: amount, Currency: d.currency}, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value.Amount < out[j].Value.Amount })
	return out
}

func (d *Drawer) checkValue(value types.Money) error {
	return checkDenomination(d.currency, value)
}

// checkDenomination enforces that a denomination is a positive whole
// currency unit in the till currency.
func checkDenomination(currency string, value types.Money) error {
	switch {
	case value.Currency != currency:
		return denominationError(ErrInvalidDenomination, value, 0, 0,
			fmt.Sprintf("denomination currency %q, till currency %q", value.Currency, currency))
	case !value.IsPositive():
		return denominationError(ErrInvalidDenomination, value, 0, 0, "denomination must be positive")
	case !value.IsWholeUnit():
		return denominationError(ErrInvalidDenomination, value, 0, 0, "denomination must be a whole currency unit")
	}
	return nil
}
