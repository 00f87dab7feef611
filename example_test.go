package till_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xraph/till"
	"github.com/xraph/till/seed"
	"github.com/xraph/till/store/memory"
)

func Example() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t := till.New(memory.New(), till.WithLogger(logger))
	if err := t.Start(ctx); err != nil {
		panic(err)
	}
	defer t.Stop()

	if err := seed.Load(ctx, t, logger); err != nil {
		panic(err)
	}

	bill, err := t.GenerateBill(ctx, &till.BillRequest{
		CustomerEmail: "a@example.com",
		Lines:         []till.LineRequest{{ProductID: "P001", Quantity: 2}},
		Tendered:      []till.Stack{{Value: till.Units(500, "inr"), Count: 1}},
	})
	if err != nil {
		panic(err)
	}

	p := bill.Purchase
	fmt.Println("grand total", p.GrandTotal.FormatMajor())
	fmt.Println("change", p.Change.FormatMajor())
	for _, s := range p.ChangeGiven {
		fmt.Printf("%s x %d\n", s.Value.FormatMajor(), s.Count)
	}
	// Output:
	// grand total 96.00
	// change 404.00
	// 50.00 x 8
	// 2.00 x 2
}

func ExampleIsRetryable() {
	err := fmt.Errorf("checkout: %w", till.ErrBusy)
	fmt.Println(till.IsRetryable(err))
	// Output: true
}
