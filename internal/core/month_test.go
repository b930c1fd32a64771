package core

import (
	"testing"
	"time"
)

func TestParseMonthKey(t *testing.T) {
	cases := []struct {
		in   string
		out  MonthKey
		ok   bool
	}{
		{"2025-9", MonthKey{2025, 9}, true},
		{"2025-12", MonthKey{2025, 12}, true},
		{" 2024-1 ", MonthKey{2024, 1}, true},
		{"2025-13", MonthKey{}, false},
		{"2025-0", MonthKey{}, false},
		{"2025", MonthKey{}, false},
		{"abc-9", MonthKey{}, false},
		{"2025-x", MonthKey{}, false},
		{"", MonthKey{}, false},
	}
	for _, tc := range cases {
		got, err := ParseMonthKey(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMonthKeyString(t *testing.T) {
	if s := (MonthKey{2025, 9}).String(); s != "2025-9" {
		t.Fatalf("expected 2025-9 without padding, got %q", s)
	}
	if s := (MonthKey{2025, 12}).String(); s != "2025-12" {
		t.Fatalf("expected 2025-12, got %q", s)
	}
}

func TestMonthKeyShift(t *testing.T) {
	cases := []struct {
		in     MonthKey
		offset int
		out    MonthKey
	}{
		{MonthKey{2025, 9}, 0, MonthKey{2025, 9}},
		{MonthKey{2025, 9}, 1, MonthKey{2025, 10}},
		{MonthKey{2025, 11}, 2, MonthKey{2026, 1}},
		{MonthKey{2025, 1}, -1, MonthKey{2024, 12}},
		{MonthKey{2025, 12}, 1, MonthKey{2026, 1}},
		{MonthKey{2025, 6}, 24, MonthKey{2027, 6}},
		{MonthKey{2025, 3}, -15, MonthKey{2023, 12}},
	}
	for i, tc := range cases {
		if got := tc.in.Shift(tc.offset); got != tc.out {
			t.Fatalf("case %d: %v shift %d expected %v, got %v", i, tc.in, tc.offset, tc.out, got)
		}
	}
}

func TestMonthKeyShiftComposes(t *testing.T) {
	// Shift(Shift(k, a), b) == Shift(k, a+b) across year boundaries.
	k := MonthKey{2025, 9}
	for a := -30; a <= 30; a += 7 {
		for b := -30; b <= 30; b += 11 {
			if got, want := k.Shift(a).Shift(b), k.Shift(a+b); got != want {
				t.Fatalf("shift %d then %d: got %v, want %v", a, b, got, want)
			}
		}
	}
}

func TestMonthKeyCompare(t *testing.T) {
	cases := []struct {
		a, b MonthKey
		want int
	}{
		{MonthKey{2025, 9}, MonthKey{2025, 9}, 0},
		{MonthKey{2025, 9}, MonthKey{2025, 10}, -1},
		{MonthKey{2025, 10}, MonthKey{2025, 9}, 1},
		{MonthKey{2024, 12}, MonthKey{2025, 1}, -1},
		{MonthKey{2026, 1}, MonthKey{2025, 12}, 1},
	}
	for i, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.want {
			t.Fatalf("case %d: compare(%v, %v) expected %d, got %d", i, tc.a, tc.b, tc.want, got)
		}
	}
}

func TestMonthKeyOf(t *testing.T) {
	ts := time.Date(2025, time.September, 14, 10, 0, 0, 0, time.UTC)
	if got := MonthKeyOf(ts); got != (MonthKey{2025, 9}) {
		t.Fatalf("expected 2025-9, got %v", got)
	}
}

func TestMonthKeyTextRoundTrip(t *testing.T) {
	k := MonthKey{2025, 9}
	text, err := k.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back MonthKey
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != k {
		t.Fatalf("round trip expected %v, got %v", k, back)
	}
	if err := back.UnmarshalText([]byte("2025-14")); err == nil {
		t.Fatalf("expected error for invalid month")
	}
}
