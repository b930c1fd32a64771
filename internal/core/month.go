package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthKey identifies a calendar month. Its canonical string form is
// "{year}-{month}" with no zero padding ("2025-9", "2025-12").
type MonthKey struct {
	Year  int
	Month int // 1-12
}

// ParseMonthKey parses a canonical month key string.
func ParseMonthKey(s string) (MonthKey, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey{Year: year, Month: month}, nil
}

// MonthKeyOf returns the month key for a point in time.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: int(t.Month())}
}

func (k MonthKey) String() string {
	return strconv.Itoa(k.Year) + "-" + strconv.Itoa(k.Month)
}

// IsZero reports whether k is the zero value, used as "no month" in payloads.
func (k MonthKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

func (k MonthKey) Validate() error {
	if k.Month < 1 || k.Month > 12 {
		return fmt.Errorf("%w: %q", ErrInvalidMonthKey, k.String())
	}
	return nil
}

// Shift returns the key offset months away, rolling over year boundaries in
// both directions.
func (k MonthKey) Shift(offset int) MonthKey {
	total := k.Year*12 + (k.Month - 1) + offset
	year := total / 12
	month := total%12 + 1
	if total < 0 && total%12 != 0 {
		year--
		month += 12
	}
	return MonthKey{Year: year, Month: month}
}

// Compare orders keys chronologically: -1 when k is before other, 0 when
// equal, +1 when after.
func (k MonthKey) Compare(other MonthKey) int {
	if k.Year != other.Year {
		if k.Year < other.Year {
			return -1
		}
		return 1
	}
	if k.Month != other.Month {
		if k.Month < other.Month {
			return -1
		}
		return 1
	}
	return 0
}

func (k MonthKey) Before(other MonthKey) bool { return k.Compare(other) < 0 }

func (k MonthKey) After(other MonthKey) bool { return k.Compare(other) > 0 }

// MarshalText makes MonthKey render as its canonical string in JSON.
func (k MonthKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MonthKey) UnmarshalText(text []byte) error {
	parsed, err := ParseMonthKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
