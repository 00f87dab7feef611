package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/xraph/till/drawer"
	"github.com/xraph/till/purchase"
)

// Subject is the receipt e-mail subject line.
func Subject(p *purchase.Purchase) string {
	return "Invoice - Purchase " + p.ID.String()
}

// Receipt renders the HTML invoice for a committed purchase.
func Receipt(p *purchase.Purchase) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		esc := templ.EscapeString[string]

		b.WriteString(`<!DOCTYPE html><html><body style="font-family:sans-serif">`)
		fmt.Fprintf(&b, `<h2>Invoice</h2><p>Purchase <strong>%s</strong><br>%s</p>`,
			esc(p.ID.String()), esc(p.CreatedAt.Format("02 Jan 2006 15:04 MST")))
		fmt.Fprintf(&b, `<p>Customer: %s</p>`, esc(p.CustomerEmail))

		b.WriteString(`<table cellpadding="4" border="1" style="border-collapse:collapse">`)
		b.WriteString(`<tr><th>Product</th><th>Qty</th><th>Unit price</th><th>Tax %</th><th>Tax</th><th>Subtotal</th></tr>`)
		for _, it := range p.Items {
			fmt.Fprintf(&b, `<tr><td>%s (%s)</td><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				esc(it.Name), esc(it.ProductID), it.Quantity,
				esc(it.UnitPrice.String()), esc(it.TaxRate.String()), esc(it.Tax.String()), esc(it.Subtotal.String()))
		}
		b.WriteString(`</table>`)

		b.WriteString(`<table cellpadding="4">`)
		row := func(label, value string) {
			fmt.Fprintf(&b, `<tr><td>%s</td><td align="right">%s</td></tr>`, esc(label), esc(value))
		}
		row("Total", p.Total.String())
		row("Tax", p.Tax.String())
		row("Grand total", p.GrandTotal.String())
		row("Paid", p.AmountPaid.String())
		row("Change", p.Change.String())
		b.WriteString(`</table>`)

		if len(p.ChangeGiven) > 0 {
			b.WriteString(`<p>Change given:</p><ul>`)
			for _, s := range p.ChangeGiven {
				fmt.Fprintf(&b, `<li>%s × %d</li>`, esc(s.Value.String()), s.Count)
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`<p>Thank you for shopping with us.</p></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ReceiptText is the plain-text alternative of Receipt.
func ReceiptText(p *purchase.Purchase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice for purchase %s\n", p.ID)
	fmt.Fprintf(&b, "Date: %s\n\n", p.CreatedAt.Format("02 Jan 2006 15:04 MST"))
	for _, it := range p.Items {
		fmt.Fprintf(&b, "%-20s %4d x %10s  tax %s  = %s\n",
			it.Name, it.Quantity, it.UnitPrice, it.Tax, it.Subtotal)
	}
	fmt.Fprintf(&b, "\nTotal:       %s\n", p.Total)
	fmt.Fprintf(&b, "Tax:         %s\n", p.Tax)
	fmt.Fprintf(&b, "Grand total: %s\n", p.GrandTotal)
	fmt.Fprintf(&b, "Paid:        %s\n", p.AmountPaid)
	fmt.Fprintf(&b, "Change:      %s\n", p.Change)
	if len(p.ChangeGiven) > 0 {
		fmt.Fprintf(&b, "Change given: %s\n", formatStacks(p.ChangeGiven))
	}
	return b.String()
}

func formatStacks(stacks []drawer.Stack) string {
	parts := make([]string, 0, len(stacks))
	for _, s := range stacks {
		parts = append(parts, fmt.Sprintf("%s x %d", s.Value, s.Count))
	}
	return strings.Join(parts, ", ")
}
