// Package core holds the month-ledger domain: month keys, money in cents,
// budgets, expenses and the installment arithmetic that ties them together.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Money is a monetary amount held in integer cents. All internal arithmetic
// happens on cents; decimal currency appears only at I/O boundaries.
type Money struct {
	Cents int64
}

// CentsFromDecimal converts a decimal float (as delivered by JSON payloads)
// to cents with half-up rounding. Returns false for NaN, infinities,
// non-positive values and values too large for int64 cents.
func CentsFromDecimal(v float64) (Money, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return Money{}, false
	}
	cents := math.Round(v * 100)
	if cents >= math.MaxInt64 || cents <= 0 {
		return Money{}, false
	}
	return Money{Cents: int64(cents)}, true
}

// ParseDecimalToCents converts a decimal string to a cent count with half-up
// rounding on the third decimal place. Both "12.34" and "12,34" are accepted.
// Only strictly positive amounts are valid.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafe = (1<<63 - 1) / 100
	if iv > maxSafe {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// Decimal returns the decimal currency value for display. Calculations must
// stay on Cents.
func (m Money) Decimal() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimal places ("33.34").
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return sign + strconv.FormatInt(c/100, 10) + "." + pad2(c%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
