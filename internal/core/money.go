// Package core provides money parsing and handling utilities.
//
// This file contains the coercion rules used for amounts arriving from
// clients as JSON numbers or strings, and conversions between cents and
// decimal representations.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in cents.
type Money struct {
	Cents int64
}

// Cents builds Money from a cent count.
func Cents(c int64) Money { return Money{Cents: c} }

// ParseMoney converts a decimal string to Money, rounding half away from zero
// to the nearest cent. Both dot and comma decimal separators are accepted.
// Amounts whose cent count does not fit in an int64 are rejected.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("-3,5")   -> -350
//	ParseMoney("1.005")  -> 101
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(d)
}

// FromFloat converts a float amount to Money with the same rounding as ParseMoney.
func FromFloat(f float64) (Money, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(decimal.NewFromFloat(f))
}

// CoerceMoney turns a loosely typed client value into Money. Numbers and
// numeric strings convert. Anything else (absent, null, malformed) yields
// ErrInvalidAmount; numbers too large for the cent range yield ErrAmountRange.
func CoerceMoney(v any) (Money, error) {
	switch val := v.(type) {
	case float64:
		return FromFloat(val)
	case json.Number:
		return ParseMoney(val.String())
	case string:
		return ParseMoney(val)
	case int:
		return fromDecimal(decimal.NewFromInt(int64(val)))
	case int64:
		return fromDecimal(decimal.NewFromInt(val))
	default:
		return Money{}, ErrInvalidAmount
	}
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

func fromDecimal(d decimal.Decimal) (Money, error) {
	c := d.Shift(2).Round(0)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return Money{}, ErrAmountRange
	}
	return Money{Cents: c.IntPart()}, nil
}

// Decimal returns the amount as a two-place decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 returns the amount in currency units for JSON and spreadsheet output.
// Use Cents for arithmetic.
func (m Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m+o, saturating at the int64 cent range.
func (m Money) Add(o Money) Money {
	sum := m.Cents + o.Cents
	switch {
	case o.Cents > 0 && sum < m.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents < 0 && sum > m.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: sum}
}

// Sub returns m-o, saturating at the int64 cent range.
func (m Money) Sub(o Money) Money {
	diff := m.Cents - o.Cents
	switch {
	case o.Cents < 0 && diff < m.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents > 0 && diff > m.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: diff}
}

func (m Money) IsNegative() bool { return m.Cents < 0 }

// Sum adds up the amounts of the given expenses.
func Sum(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
