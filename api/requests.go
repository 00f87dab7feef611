package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xraph/till"
	"github.com/xraph/till/drawer"
	"github.com/xraph/till/types"
)

// amount is a major-unit value sent either as a JSON number or a decimal
// string. The literal text is kept so no float ever touches it.
type amount string

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amount(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or decimal string")
	}
	*a = amount(n.String())
	return nil
}

type lineBody struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type billBody struct {
	CustomerEmail string           `json:"customer_email"`
	AmountPaid    amount           `json:"amount_paid"`
	Products      []lineBody       `json:"products"`
	Denominations map[string]int64 `json:"denominations"`
	Tendered      map[string]int64 `json:"customer_payment_denominations"`
}

type drawerBody struct {
	Denominations map[string]int64 `json:"denominations"`
}

// billRequest converts the wire body into a till request.
func (b *billBody) billRequest(currency string) (*till.BillRequest, error) {
	req := &till.BillRequest{
		CustomerEmail: strings.TrimSpace(b.CustomerEmail),
		Lines:         make([]till.LineRequest, 0, len(b.Products)),
		AmountPaid:    types.Zero(currency),
	}
	for _, l := range b.Products {
		req.Lines = append(req.Lines, till.LineRequest{ProductID: strings.TrimSpace(l.ProductID), Quantity: l.Quantity})
	}
	if b.AmountPaid != "" {
		paid, err := types.ParseMajor(string(b.AmountPaid), currency)
		if err != nil {
			return nil, badRequest("amount_paid", err)
		}
		req.AmountPaid = paid
	}

	var err error
	if req.Tendered, err = stacksOf(b.Tendered, currency, "customer_payment_denominations"); err != nil {
		return nil, err
	}
	if req.Overrides, err = stacksOf(b.Denominations, currency, "denominations"); err != nil {
		return nil, err
	}
	return req, nil
}

// stacksOf parses a {value: count} map into stacks, highest value first.
func stacksOf(counts map[string]int64, currency, field string) ([]drawer.Stack, error) {
	if len(counts) == 0 {
		return nil, nil
	}
	out := make([]drawer.Stack, 0, len(counts))
	keys := make(map[int64]string, len(counts))
	for raw, count := range counts {
		value, err := types.ParseMajor(raw, currency)
		if err != nil {
			return nil, badRequest(field, err)
		}
		if prev, dup := keys[value.Amount]; dup {
			return nil, badRequest(field, fmt.Errorf("%q and %q are the same denomination", prev, raw))
		}
		keys[value.Amount] = raw
		out = append(out, drawer.Stack{Value: value, Count: count})
	}
	drawer.SortDescending(out)
	return out, nil
}
