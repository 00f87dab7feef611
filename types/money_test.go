package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"INR", INR(44600), 44600, "inr", "₹446.00"},
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"JPY", JPY(100), 100, "jpy", "¥100"},
		{"Units INR", Units(500, "INR"), 50000, "inr", "₹500.00"},
		{"Units JPY", Units(500, "jpy"), 500, "jpy", "¥500"},
		{"Zero INR", Zero("INR"), 0, "inr", "₹0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return INR(100).Add(INR(200)) }, INR(300)},
		{"Subtract", func() Money { return INR(500).Subtract(INR(200)) }, INR(300)},
		{"Multiply", func() Money { return INR(100).Multiply(3) }, INR(300)},
		{"Divide", func() Money { return INR(900).Divide(3) }, INR(300)},
		{"Negate", func() Money { return INR(100).Negate() }, INR(-100)},
		{"Abs negative", func() Money { return INR(-100).Abs() }, INR(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCheckedArithmetic(t *testing.T) {
	if _, err := INR(50000).MultiplyChecked(1<<60 + 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("multiply: got %v, want ErrOverflow", err)
	}
	if _, err := INR(math.MinInt64).MultiplyChecked(-1); !errors.Is(err, ErrOverflow) {
		t.Errorf("multiply min by -1: got %v, want ErrOverflow", err)
	}
	if got, err := INR(50000).MultiplyChecked(3); err != nil || !got.Equal(INR(150000)) {
		t.Errorf("multiply: got %v, %v", got, err)
	}
	if _, err := INR(math.MaxInt64).AddChecked(INR(1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("add: got %v, want ErrOverflow", err)
	}
	if _, err := INR(math.MinInt64).AddChecked(INR(-1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("add negative: got %v, want ErrOverflow", err)
	}
	if got, err := INR(100).AddChecked(INR(-40)); err != nil || !got.Equal(INR(60)) {
		t.Errorf("add: got %v, %v", got, err)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = INR(100).Add(USD(100))
}

func TestMoneyDivisionByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	_ = INR(100).Divide(0)
}

func TestRoundToUnit(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		expected Money
	}{
		{"Already whole", INR(44600), INR(44600)},
		{"Below half", INR(44649), INR(44600)},
		{"Exactly half rounds up", INR(44650), INR(44700)},
		{"Above half", INR(44651), INR(44700)},
		{"Sub-unit half", INR(50), INR(100)},
		{"Sub-unit below half", INR(49), INR(0)},
		{"Negative half away from zero", INR(-150), INR(-200)},
		{"Zero decimal currency", JPY(7), JPY(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.RoundToUnit(); !got.Equal(tt.expected) {
				t.Errorf("RoundToUnit: got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsWholeUnit(t *testing.T) {
	if !INR(50000).IsWholeUnit() {
		t.Error("INR(50000) should be a whole unit")
	}
	if INR(50).IsWholeUnit() {
		t.Error("INR(50) should not be a whole unit")
	}
	if !JPY(3).IsWholeUnit() {
		t.Error("JPY amounts are always whole units")
	}
}

func TestPercentAndRoundMinor(t *testing.T) {
	tests := []struct {
		name     string
		base     Money
		rate     string
		expected Money
	}{
		{"18 percent of 200", INR(20000), "18", INR(3600)},
		{"5 percent of 200", INR(20000), "5", INR(1000)},
		{"12.5 percent of 45.50", INR(4550), "12.5", INR(569)}, // 568.75
		{"5 percent of 0.10", INR(10), "5", INR(1)},            // 0.5 rounds up
		{"zero rate", INR(4550), "0", INR(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exact := tt.base.Percent(decimal.RequireFromString(tt.rate))
			if got := RoundMinor(exact, "inr"); !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v (exact %s)", got, tt.expected, exact)
			}
		})
	}
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		input    string
		currency string
		expected Money
		wantErr  bool
	}{
		{"500", "inr", INR(50000), false},
		{"45.5", "inr", INR(4550), false},
		{" 0.01 ", "inr", INR(1), false},
		{"100", "jpy", JPY(100), false},
		{"0.001", "inr", Money{}, true},
		{"1.5", "jpy", Money{}, true},
		{"abc", "inr", Money{}, true},
		{"184467440737096016.16", "inr", Money{}, true},
		{"-92233720368547758.09", "inr", Money{}, true},
		{"92233720368547758.07", "inr", INR(math.MaxInt64), false},
	}

	for _, tt := range tests {
		t.Run(tt.input+"/"+tt.currency, func(t *testing.T) {
			got, err := ParseMajor(tt.input, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyDecimal(t *testing.T) {
	if got := INR(4550).Decimal().String(); got != "45.5" {
		t.Errorf("Decimal: got %s, want 45.5", got)
	}
	if got := JPY(100).Decimal().String(); got != "100" {
		t.Errorf("Decimal: got %s, want 100", got)
	}
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", INR(100), INR(100), false, false, true},
		{"Less", INR(50), INR(100), true, false, false},
		{"Greater", INR(200), INR(100), false, true, false},
		{"Zero equal", INR(0), Zero("inr"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{INR(44600), "446.00"},
		{INR(1), "0.01"},
		{INR(0), "0.00"},
		{INR(-4900), "-49.00"},
		{JPY(12345), "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(INR(44600))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":44600,"currency":"inr","display":"₹446.00"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", []Money{}, Zero("inr")},
		{"Single", []Money{INR(100)}, INR(100)},
		{"Multiple", []Money{INR(100), INR(200), INR(300)}, INR(600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Sum("inr", tt.values...)
			if !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}
}

func BenchmarkRoundToUnit(b *testing.B) {
	m := INR(44649)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.RoundToUnit()
	}
}
