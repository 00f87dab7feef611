package till

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/till/catalog"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/types"
)

const (
	// DefaultMaxQuantity caps a single line's quantity.
	DefaultMaxQuantity int64 = 9999

	// DefaultMaxPaymentMultiple rejects payments above this multiple of
	// the grand total as probable input errors.
	DefaultMaxPaymentMultiple int64 = 10

	// DefaultMaxPieces caps the count of one denomination in a tender,
	// an override or a reconciliation.
	DefaultMaxPieces int64 = 1_000_000
)

// Line is one product at the price and rate read under lock, with the
// quantity requested.
type Line struct {
	Product  *catalog.Product
	Quantity int64
}

// LineTotal is a priced line.
type LineTotal struct {
	Line
	Subtotal types.Money
	ExactTax decimal.Decimal // minor units, unrounded
	Tax      types.Money     // ExactTax rounded, for display
}

// Totals is the result of pricing a set of lines.
type Totals struct {
	Lines      []LineTotal
	Total      types.Money // pre-tax
	Tax        types.Money // Σ exact line taxes, rounded once
	GrandTotal types.Money
}

// Quantity is the number of units across all lines.
func (t *Totals) Quantity() int64 {
	var n int64
	for _, l := range t.Lines {
		n += l.Quantity
	}
	return n
}

// Calculator prices bills and checks payments. It holds no state beyond
// its limits and is safe for concurrent use.
type Calculator struct {
	Currency           string
	MaxQuantity        int64
	MaxPaymentMultiple int64
	MaxPieces          int64
}

// NewCalculator returns a Calculator with the default limits.
func NewCalculator(currency string) Calculator {
	return Calculator{
		Currency:           currency,
		MaxQuantity:        DefaultMaxQuantity,
		MaxPaymentMultiple: DefaultMaxPaymentMultiple,
		MaxPieces:          DefaultMaxPieces,
	}
}

// CheckQuantity validates a single line quantity.
func (c Calculator) CheckQuantity(productID string, qty int64) error {
	if qty <= 0 || qty > c.MaxQuantity {
		e := validationError(ErrInvalidQuantity, "quantity",
			fmt.Sprintf("product %s: quantity %d outside 1..%d", productID, qty, c.MaxQuantity))
		e.ProductID = productID
		e.Requested = qty
		return e
	}
	return nil
}

// CheckStacks validates denomination counts as given by a caller: each
// value must be a whole unit in the till currency, listed once, with a
// count in 0..MaxPieces.
func (c Calculator) CheckStacks(field string, stacks []drawer.Stack) error {
	seen := make(map[int64]struct{}, len(stacks))
	for _, s := range stacks {
		if err := checkDenomination(c.Currency, s.Value); err != nil {
			return err
		}
		if _, dup := seen[s.Value.Amount]; dup {
			return denominationError(ErrInvalidDenomination, s.Value, s.Count, 0,
				fmt.Sprintf("%s: %s listed more than once", field, s.Value))
		}
		seen[s.Value.Amount] = struct{}{}
		if s.Count < 0 || s.Count > c.MaxPieces {
			return denominationError(ErrInvalidDenomination, s.Value, s.Count, 0,
				fmt.Sprintf("%s: count of %s outside 0..%d", field, s.Value, c.MaxPieces))
		}
	}
	return nil
}

// LineTotals prices every line. Tax is accumulated exactly and rounded
// half-up to the minor unit once for the whole bill.
func (c Calculator) LineTotals(lines []Line) (*Totals, error) {
	out := &Totals{
		Lines: make([]LineTotal, 0, len(lines)),
		Total: types.Zero(c.Currency),
	}
	exactTax := decimal.Zero

	for _, l := range lines {
		if err := c.CheckQuantity(l.Product.ID, l.Quantity); err != nil {
			return nil, err
		}
		if l.Product.UnitPrice.Currency != c.Currency {
			e := validationError(ErrCurrencyMismatch, "unit_price",
				fmt.Sprintf("product %s priced in %q", l.Product.ID, l.Product.UnitPrice.Currency))
			e.ProductID = l.Product.ID
			return nil, e
		}

		subtotal, err := l.Product.UnitPrice.MultiplyChecked(l.Quantity)
		if err == nil {
			out.Total, err = out.Total.AddChecked(subtotal)
		}
		if err != nil {
			e := validationError(ErrInvalidAmount, "products",
				fmt.Sprintf("product %s: bill total out of range", l.Product.ID))
			e.ProductID = l.Product.ID
			return nil, e
		}
		tax := subtotal.Percent(l.Product.TaxRate)

		out.Lines = append(out.Lines, LineTotal{
			Line:     l,
			Subtotal: subtotal,
			ExactTax: tax,
			Tax:      types.RoundMinor(tax, c.Currency),
		})
		exactTax = exactTax.Add(tax)
	}

	out.Tax = types.RoundMinor(exactTax, c.Currency)
	out.GrandTotal = c.GrandTotal(out.Total, out.Tax)
	return out, nil
}

// GrandTotal rounds total + tax half-up to a whole currency unit.
func (c Calculator) GrandTotal(total, tax types.Money) types.Money {
	return total.Add(tax).RoundToUnit()
}

// ResolvePayment returns the customer's payment. An itemised tender is
// summed; every value in it must be a denomination the drawer knows.
// Without a tender the scalar fallback is used.
func (c Calculator) ResolvePayment(tendered, snapshot []drawer.Stack, fallback types.Money) (types.Money, error) {
	if len(tendered) == 0 {
		if fallback.Currency != c.Currency {
			return types.Money{}, validationError(ErrCurrencyMismatch, "amount_paid",
				fmt.Sprintf("amount paid in %q", fallback.Currency))
		}
		if fallback.IsNegative() {
			return types.Money{}, validationError(ErrInvalidAmount, "amount_paid", "amount paid must not be negative")
		}
		return fallback, nil
	}

	known := make(map[int64]struct{}, len(snapshot))
	for _, s := range snapshot {
		known[s.Value.Amount] = struct{}{}
	}

	if err := c.CheckStacks("customer_payment_denominations", tendered); err != nil {
		return types.Money{}, err
	}

	payment := types.Zero(c.Currency)
	for _, s := range tendered {
		if _, ok := known[s.Value.Amount]; !ok {
			return types.Money{}, denominationError(ErrInvalidDenomination, s.Value, s.Count, 0,
				fmt.Sprintf("%s is not a drawer denomination", s.Value))
		}
		total, err := s.TotalChecked()
		if err == nil {
			payment, err = payment.AddChecked(total)
		}
		if err != nil {
			e := validationError(ErrInvalidAmount, "customer_payment_denominations", "payment out of range")
			return types.Money{}, e
		}
	}
	return payment, nil
}

// ValidatePayment checks payment against the grand total.
func (c Calculator) ValidatePayment(payment, grandTotal types.Money) error {
	if !grandTotal.IsPositive() {
		return validationError(ErrInvalidAmount, "products",
			fmt.Sprintf("bill rounds to %s, nothing to charge", grandTotal))
	}
	if payment.LessThan(grandTotal) {
		return paymentError(ErrInsufficientPayment, grandTotal.Subtract(payment),
			fmt.Sprintf("paid %s, due %s", payment, grandTotal))
	}
	limit, err := grandTotal.MultiplyChecked(c.MaxPaymentMultiple)
	if err == nil && payment.GreaterThan(limit) {
		return paymentError(ErrPaymentOutOfRange, types.Zero(c.Currency),
			fmt.Sprintf("paid %s, more than %d × %s", payment, c.MaxPaymentMultiple, grandTotal))
	}
	return nil
}

// ChangeAmount rounds payment − grand total half-up to a whole unit.
func (c Calculator) ChangeAmount(payment, grandTotal types.Money) types.Money {
	return payment.Subtract(grandTotal).RoundToUnit()
}
