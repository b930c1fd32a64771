package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestCentsFromDecimal(t *testing.T) {
	cases := []struct {
		in    float64
		cents int64
		ok    bool
	}{
		{50, 5000, true},
		{33.33, 3333, true},
		{0.1, 10, true},
		{0.005, 1, true}, // rounds half up
		{0, 0, false},
		{-1, 0, false},
	}
	for _, tc := range cases {
		got, ok := CentsFromDecimal(tc.in)
		if ok != tc.ok {
			t.Fatalf("%v expected ok=%v", tc.in, tc.ok)
		}
		if ok && got.Cents != tc.cents {
			t.Fatalf("%v expected %d cents, got %d", tc.in, tc.cents, got.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{3334, "33.34"},
		{100, "1.00"},
		{5, "0.05"},
		{-250, "-2.50"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("%d cents expected %q, got %q", tc.cents, tc.want, got)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}
