// Package core provides the chore board domain: children, categories,
// reward tiers and the week archive transform.
//
// This file contains the cash amount type used for rewards and running totals.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a cash value. It is encoded as a bare JSON number so persisted
// documents keep their original shape.
type Amount struct {
	value decimal.Decimal
}

// NewAmount returns an amount of whole currency units.
func NewAmount(units int64) Amount {
	return Amount{value: decimal.NewFromInt(units)}
}

// AmountFromFloat converts a float, as found in hand-edited documents.
func AmountFromFloat(f float64) Amount {
	return Amount{value: decimal.NewFromFloat(f)}
}

// ParseAmount parses a decimal string. Both "12.5" and "12,5" are accepted.
func ParseAmount(s string) (Amount, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{value: d}, nil
}

func (a Amount) Add(b Amount) Amount {
	return Amount{value: a.value.Add(b.value)}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{value: a.value.Sub(b.value)}
}

func (a Amount) Cmp(b Amount) int {
	return a.value.Cmp(b.value)
}

func (a Amount) Equal(b Amount) bool {
	return a.value.Equal(b.value)
}

func (a Amount) GreaterThan(b Amount) bool {
	return a.value.GreaterThan(b.value)
}

func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

func (a Amount) IsNegative() bool {
	return a.value.IsNegative()
}

// Float64 returns the value for display. Use Amount arithmetic for sums.
func (a Amount) Float64() float64 {
	f, _ := a.value.Float64()
	return f
}

func (a Amount) String() string {
	return a.value.String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.value.String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings. Anything else, including
// null, decodes to zero instead of failing the whole document.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		a.value = decimal.Zero
		return nil
	}
	a.value = d
	return nil
}
