package core

import (
	"testing"
	"time"
)

func TestBudgetLookup(t *testing.T) {
	b := Budget{"Mercado": {Cents: 50000}, "Lazer": {Cents: 20000}}

	name, amount, ok := b.Lookup("mercado")
	if !ok || name != "Mercado" || amount.Cents != 50000 {
		t.Fatalf("expected case-insensitive hit preserving stored name, got %q %v %v", name, amount, ok)
	}
	if _, _, ok := b.Lookup("Transporte"); ok {
		t.Fatalf("expected miss for absent category")
	}
}

func TestBudgetMerge(t *testing.T) {
	b := Budget{"Mercado": {Cents: 50000}}
	merged := b.Merge(Budget{"mercado": {Cents: 60000}, "Lazer": {Cents: 10000}})

	if len(merged) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(merged))
	}
	if merged["Mercado"].Cents != 60000 {
		t.Fatalf("expected case-insensitive patch onto stored key, got %v", merged)
	}
	if merged["Lazer"].Cents != 10000 {
		t.Fatalf("expected new key added, got %v", merged)
	}
	if b["Mercado"].Cents != 50000 {
		t.Fatalf("merge must not mutate the receiver")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		ID:        "e1",
		Category:  "Mercado",
		Amount:    Money{Cents: 5000},
		Month:     MonthKey{2025, 9},
		CreatedAt: time.Now(),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{ID: "", Category: "c", Amount: Money{Cents: 1}, Month: MonthKey{2025, 9}},
		{ID: "x", Category: "", Amount: Money{Cents: 1}, Month: MonthKey{2025, 9}},
		{ID: "x", Category: "c", Amount: Money{Cents: 0}, Month: MonthKey{2025, 9}},
		{ID: "x", Category: "c", Amount: Money{Cents: 1}, Month: MonthKey{2025, 13}},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestInstallmentPlanValidate(t *testing.T) {
	amount := Money{Cents: 10000}
	cases := []struct {
		plan InstallmentPlan
		ok   bool
	}{
		{InstallmentPlan{Count: 3, Total: &amount}, true},
		{InstallmentPlan{Count: 2, PerInstallment: &amount, BaseMonth: BaseCurrent}, true},
		{InstallmentPlan{Count: 1, Total: &amount}, false},
		{InstallmentPlan{Count: 3, Total: &amount, StartOffsetMonths: -1}, false},
		{InstallmentPlan{Count: 3, Total: &amount, BaseMonth: "next"}, false},
	}
	for i, tc := range cases {
		err := tc.plan.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestInstallmentPlanAmounts(t *testing.T) {
	per := Money{Cents: 10000}
	parts, ok := (InstallmentPlan{Count: 3, PerInstallment: &per}).Amounts()
	if !ok || len(parts) != 3 {
		t.Fatalf("expected 3 literal parts, got %v %v", parts, ok)
	}
	for _, p := range parts {
		if p != 10000 {
			t.Fatalf("literal per-installment must be replicated, got %v", parts)
		}
	}

	total := Money{Cents: 10000}
	parts, ok = (InstallmentPlan{Count: 3, Total: &total}).Amounts()
	if !ok || parts[0] != 3334 || parts[1] != 3333 || parts[2] != 3333 {
		t.Fatalf("expected split [3334 3333 3333], got %v", parts)
	}

	if _, ok := (InstallmentPlan{Count: 3}).Amounts(); ok {
		t.Fatalf("expected not-ok when neither amount shape is present")
	}
}

func TestGroupLabel(t *testing.T) {
	if got := GroupLabel(2, 3); got != "2/3" {
		t.Fatalf("expected 2/3, got %q", got)
	}
}
