// Package types provides common types used across Till.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency a till runs in unless configured otherwise.
const DefaultCurrency = "inr"

// Money represents a monetary value in the smallest currency unit.
// All arithmetic is integer-only. Decimal maths happens at the edges
// (tax rates, parsing) and is folded back into minor units immediately.
//
// Examples:
//   - INR(44600) = ₹446.00 (44600 paise)
//   - USD(4900) = $49.00 (4900 cents)
//   - JPY(100) = ¥100
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (paise, cents, etc)
	Currency string `json:"currency"` // ISO 4217 lowercase: "inr", "usd", "eur"
}

// ErrOverflow reports an amount outside the int64 minor-unit range.
var ErrOverflow = errors.New("money: amount out of range")

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// INR creates a Money value in Indian Rupees (paise).
func INR(paise int64) Money { return Money{Amount: paise, Currency: "inr"} }

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// JPY creates a Money value in Japanese Yen (no decimal).
func JPY(yen int64) Money { return Money{Amount: yen, Currency: "jpy"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// Units creates a Money value from a whole number of major units,
// e.g. Units(500, "inr") is ₹500.00.
func Units(n int64, currency string) Money {
	return Money{Amount: n * UnitSize(currency), Currency: strings.ToLower(currency)}
}

// ParseMajor parses a major-unit decimal string ("446", "45.50") into Money.
// More fractional digits than the currency carries is an error, so no
// rounding ever happens on input.
func ParseMajor(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d, currency)
}

// FromDecimal converts a major-unit decimal into Money.
func FromDecimal(d decimal.Decimal, currency string) (Money, error) {
	scaled := d.Shift(int32(currencyDecimals(currency)))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Money{}, fmt.Errorf("money: %s has more than %d decimal places", d.String(), currencyDecimals(currency))
	}
	if scaled.GreaterThan(maxAmount) || scaled.LessThan(minAmount) {
		return Money{}, fmt.Errorf("money: parse %s: %w", d.String(), ErrOverflow)
	}
	return Money{Amount: scaled.IntPart(), Currency: strings.ToLower(currency)}, nil
}

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// AddChecked is Add that fails with ErrOverflow instead of wrapping.
func (m Money) AddChecked(other Money) (Money, error) {
	m.assertSameCurrency(other)
	sum := m.Amount + other.Amount
	if (other.Amount > 0 && sum < m.Amount) || (other.Amount < 0 && sum > m.Amount) {
		return Money{}, fmt.Errorf("money: %s + %s: %w", m, other, ErrOverflow)
	}
	return Money{Amount: sum, Currency: m.Currency}, nil
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// MultiplyChecked is Multiply that fails with ErrOverflow instead of
// wrapping.
func (m Money) MultiplyChecked(qty int64) (Money, error) {
	if m.Amount == 0 || qty == 0 {
		return Money{Amount: 0, Currency: m.Currency}, nil
	}
	p := m.Amount * qty
	if p/qty != m.Amount || (p < 0) != ((m.Amount < 0) != (qty < 0)) {
		return Money{}, fmt.Errorf("money: %s × %d: %w", m, qty, ErrOverflow)
	}
	return Money{Amount: p, Currency: m.Currency}, nil
}

// Divide divides the Money by a divisor. Uses integer division.
func (m Money) Divide(divisor int64) Money {
	if divisor == 0 {
		panic("money: division by zero")
	}
	return Money{Amount: m.Amount / divisor, Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return Money{Amount: -m.Amount, Currency: m.Currency}
	}
	return m
}

// Rounding policy
//
// Every monetary derivation (tax, grand total, change) is rounded exactly
// once, half away from zero, which is half-up for the non-negative amounts
// a till produces.

// UnitSize returns the number of minor units in one major unit.
func UnitSize(currency string) int64 {
	size := int64(1)
	for i := 0; i < currencyDecimals(currency); i++ {
		size *= 10
	}
	return size
}

// RoundToUnit rounds half-up to the nearest whole currency unit.
func (m Money) RoundToUnit() Money {
	unit := UnitSize(m.Currency)
	if unit == 1 {
		return m
	}
	if m.Amount < 0 {
		return Money{Amount: -((-m.Amount + unit/2) / unit * unit), Currency: m.Currency}
	}
	return Money{Amount: (m.Amount + unit/2) / unit * unit, Currency: m.Currency}
}

// IsWholeUnit reports whether the amount has no sub-unit part.
func (m Money) IsWholeUnit() bool {
	return m.Amount%UnitSize(m.Currency) == 0
}

// Percent returns the exact, unrounded m × rate / 100 in minor units.
func (m Money) Percent(rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Mul(rate).Div(decimal.NewFromInt(100))
}

// RoundMinor rounds an exact minor-unit decimal half-up to Money.
func RoundMinor(d decimal.Decimal, currency string) Money {
	return Money{Amount: d.Round(0).IntPart(), Currency: strings.ToLower(currency)}
}

// Decimal returns the amount in major units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Formatting methods

// FormatMajor returns the major unit string without currency symbol.
// For currencies with 2 decimal places: "446.00" for INR(44600).
// For currencies with 0 decimal places (JPY): "100" for JPY(100).
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := UnitSize(m.Currency)

	isNegative := m.Amount < 0
	absAmount := m.Amount
	if isNegative {
		absAmount = -absAmount
	}

	major := absAmount / divisor
	minor := absAmount % divisor

	format := fmt.Sprintf("%%d.%%0%dd", decimals)
	result := fmt.Sprintf(format, major, minor)

	if isNegative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with currency symbol.
// Examples: "₹446.00", "$49.00", "¥100"
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Helper functions

// assertSameCurrency panics if currencies don't match.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// currencySymbol returns the symbol for a currency code.
func currencySymbol(currency string) string {
	symbols := map[string]string{
		"inr": "₹",
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
		"cad": "C$",
		"aud": "A$",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

// currencyDecimals returns the number of decimal places for a currency.
func currencyDecimals(currency string) int {
	zeroDecimal := map[string]bool{
		"jpy": true, // Japanese Yen
		"krw": true, // Korean Won
		"vnd": true, // Vietnamese Dong
		"clp": true, // Chilean Peso
		"idr": true, // Indonesian Rupiah
	}
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// Sum adds values in the given currency. An empty list sums to zero.
func Sum(currency string, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
