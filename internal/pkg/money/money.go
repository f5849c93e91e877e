// Package money holds the fixed-precision amount type used by every loan calculation.
// Values are always kept at two decimal places; any operation that can produce more
// precision rounds half-to-even before returning.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale = 2

var hundred = decimal.NewFromInt(100)

type Money struct {
	amount decimal.Decimal
}

var Zero = Money{}

func New(d decimal.Decimal) Money {
	return Money{amount: d.RoundBank(Scale)}
}

func FromInt(v int64) Money {
	return Money{amount: decimal.NewFromInt(v)}
}

func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return New(d), nil
}

func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func Sum(values ...Money) Money {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func (m Money) Add(o Money) Money { return Money{amount: m.amount.Add(o.amount)} }
func (m Money) Sub(o Money) Money { return Money{amount: m.amount.Sub(o.amount)} }

// Mul multiplies by an arbitrary factor and rounds the product back to money precision.
func (m Money) Mul(factor decimal.Decimal) Money {
	return New(m.amount.Mul(factor))
}

// Percent returns pct percent of m, e.g. Percent(18) on 200.00 is 36.00.
func (m Money) Percent(pct decimal.Decimal) Money {
	return New(m.amount.Mul(pct).Div(hundred))
}

// Split divides m into n shares floored to money precision. The remainder lost to
// flooring is added to the last share so the shares always sum back to m.
func (m Money) Split(n int) ([]Money, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cannot split %s into %d shares", m, n)
	}
	share := m.amount.Div(decimal.NewFromInt(int64(n))).RoundFloor(Scale)
	shares := make([]Money, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		shares[i] = Money{amount: share}
		allocated = allocated.Add(share)
	}
	shares[n-1] = Money{amount: m.amount.Sub(allocated)}
	return shares, nil
}

func (m Money) Cmp(o Money) int              { return m.amount.Cmp(o.amount) }
func (m Money) Equal(o Money) bool           { return m.amount.Equal(o.amount) }
func (m Money) LessThan(o Money) bool        { return m.amount.LessThan(o.amount) }
func (m Money) GreaterThan(o Money) bool     { return m.amount.GreaterThan(o.amount) }
func (m Money) IsZero() bool                 { return m.amount.IsZero() }
func (m Money) IsNegative() bool             { return m.amount.IsNegative() }
func (m Money) IsPositive() bool             { return m.amount.IsPositive() }
func (m Money) Decimal() decimal.Decimal     { return m.amount }
func (m Money) String() string               { return m.amount.StringFixed(Scale) }
func (m Money) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid money amount: %w", err)
	}
	*m = New(d)
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	*m = New(d)
	return nil
}
