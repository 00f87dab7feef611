// Package till provides a point-of-sale billing engine for Go applications.
//
// Till is designed as a library, not a service. Import it directly into your
// Go application. Its core is the cash drawer ledger and change allocation:
//
//   - Stock and payment checks under exclusive row locks
//   - Integer minor-unit money with a single round-half-up policy
//   - Greedy change selection from the denominations physically present
//   - All-or-nothing commits of stock, drawer counts and the purchase record
//   - Post-commit hooks for receipts, metrics, audit and events
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/till"
//	    "github.com/xraph/till/store/postgres"
//	)
//
//	s, err := postgres.New(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	t := till.New(s, till.WithLogger(logger))
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Stop()
//
//	bill, err := t.GenerateBill(ctx, &till.BillRequest{
//	    CustomerEmail: "a@example.com",
//	    Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 2}},
//	    Tendered:      []till.Stack{{Value: till.Units(500, "inr"), Count: 1}},
//	})
//
// # Rounding
//
// Tax is accumulated exactly and rounded to the minor unit once per bill.
// The grand total and the change are rounded half-up to a whole currency
// unit, because the drawer only holds whole-unit denominations.
//
// # Errors
//
// Every failure is an *Error with a Kind (validation, stock, payment,
// denomination, exact change, busy or internal) and the Stage the bill had
// reached. Nothing is written unless the bill commits. Busy errors are
// safe to retry:
//
//	if till.IsRetryable(err) {
//	    // resubmit
//	}
//
// # Concurrency
//
// Each bill locks its products in ascending ID order and then the drawer,
// so overlapping bills cannot deadlock. A bill that cannot get its locks
// within the lock timeout fails with ErrBusy and changes nothing.
//
// # TypeID
//
// Purchases use TypeID identifiers:
//
//	pur_01h2xcejqtf2nbrexx3vqjhp41   // Purchase ID
//	pitm_01h2xcejqtf2nbrexx3vqjhp41  // Purchase item ID
package till
