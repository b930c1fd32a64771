package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bolso/internal/core"
	"bolso/internal/storage"
)

func newTestDispatcher(t *testing.T, month core.MonthKey) (*Dispatcher, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	d := NewDispatcher(store, nil, NewSession(month))
	d.now = func() time.Time {
		return time.Date(2025, 9, 14, 12, 0, 0, 0, time.UTC)
	}
	return d, store
}

func TestDispatchSetBudget(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})

	if _, err := d.Apply(ctx, SetBudgetCommand{
		Entries: core.Budget{"Mercado": {Cents: 50000}},
	}); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	// Merge-patch: a second call updates one key, keeps the other.
	if _, err := d.Apply(ctx, SetBudgetCommand{
		Entries: core.Budget{"mercado": {Cents: 60000}, "Lazer": {Cents: 10000}},
	}); err != nil {
		t.Fatalf("patch budget: %v", err)
	}

	b, err := store.GetBudget(ctx, core.MonthKey{Year: 2025, Month: 9})
	if err != nil {
		t.Fatalf("get budget: %v", err)
	}
	if len(b) != 2 || b["Mercado"].Cents != 60000 || b["Lazer"].Cents != 10000 {
		t.Fatalf("unexpected merged budget: %v", b)
	}
}

func TestDispatchSetBudgetAdvancesCeiling(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})

	if _, err := d.Apply(ctx, SetBudgetCommand{
		Month:   core.MonthKey{Year: 2025, Month: 12},
		Entries: core.Budget{"Mercado": {Cents: 50000}},
	}); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if d.Session().Current() != (core.MonthKey{Year: 2025, Month: 12}) {
		t.Fatalf("budget write to a later month must advance the ceiling, got %v", d.Session().Current())
	}
	if d.Session().Viewed() != (core.MonthKey{Year: 2025, Month: 9}) {
		t.Fatalf("viewed month must not move, got %v", d.Session().Viewed())
	}
}

func TestDispatchAddExpensesDelegatesToResolver(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})
	seedBudget(t, store, core.MonthKey{Year: 2025, Month: 9}, "Mercado")

	result, err := d.Apply(ctx, AddExpensesCommand{Intents: []core.ExpenseIntent{
		{Category: "Mercado", Amount: money(5000)},
	}})
	if err != nil {
		t.Fatalf("add expenses: %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("expected one created expense, got %+v", result)
	}
}

func TestDispatchReplayLegacyEntries(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})

	// Legacy payloads carry precomputed months and group linkage; they are
	// replayed without category validation, and the ceiling still advances.
	result, err := d.Apply(ctx, ReplayExpensesCommand{Entries: []LegacyExpenseEntry{
		{Category: "Eletrônicos", Amount: core.Money{Cents: 10000}, Month: core.MonthKey{Year: 2025, Month: 9}, GroupID: "g1", GroupLabel: "1/2"},
		{Category: "Eletrônicos", Amount: core.Money{Cents: 10000}, Month: core.MonthKey{Year: 2025, Month: 10}, GroupID: "g1", GroupLabel: "2/2"},
	}})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(result.Created) != 2 {
		t.Fatalf("expected 2 replayed expenses, got %d", len(result.Created))
	}
	for _, e := range result.Created {
		if e.GroupID != "g1" {
			t.Fatalf("replay must keep the caller's group id, got %q", e.GroupID)
		}
		if e.ID == "" || e.ID == "g1" {
			t.Fatalf("replayed records still get fresh ids, got %q", e.ID)
		}
	}
	if d.Session().Current() != (core.MonthKey{Year: 2025, Month: 10}) {
		t.Fatalf("replay must advance the ceiling, got %v", d.Session().Current())
	}

	all, _ := store.ListAllExpenses(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 persisted expenses, got %d", len(all))
	}
}

func TestDispatchMonthNavigationClamped(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})
	d.Session().Advance(core.MonthKey{Year: 2025, Month: 10})

	if _, err := d.Apply(ctx, StepMonthCommand{Delta: -1}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if d.Session().Viewed() != (core.MonthKey{Year: 2025, Month: 8}) {
		t.Fatalf("expected viewed 2025-8, got %v", d.Session().Viewed())
	}

	if _, err := d.Apply(ctx, ViewMonthCommand{Month: core.MonthKey{Year: 2026, Month: 5}}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if d.Session().Viewed() != (core.MonthKey{Year: 2025, Month: 10}) {
		t.Fatalf("navigation past the ceiling must clamp, got %v", d.Session().Viewed())
	}
}

func TestDispatchDeleteExpensePicksMostRecent(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})

	older := core.Expense{
		ID: "e1", Category: "Mercado", Amount: core.Money{Cents: 3000},
		Month: core.MonthKey{Year: 2025, Month: 9}, CreatedAt: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := older
	newer.ID = "e2"
	newer.CreatedAt = older.CreatedAt.Add(48 * time.Hour)
	for _, e := range []core.Expense{older, newer} {
		if err := store.SaveExpense(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	result, err := d.Apply(ctx, DeleteExpenseCommand{Category: "mercado", Amount: core.Money{Cents: 3000}})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0].ID != "e2" {
		t.Fatalf("expected the most recent match deleted, got %+v", result.Deleted)
	}

	left, _ := store.ListExpenses(ctx, core.MonthKey{Year: 2025, Month: 9})
	if len(left) != 1 || left[0].ID != "e1" {
		t.Fatalf("expected e1 to remain, got %+v", left)
	}
}

func TestDispatchDeleteExpenseNoMatch(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})

	result, err := d.Apply(ctx, DeleteExpenseCommand{Category: "Mercado", Amount: core.Money{Cents: 3000}})
	if err != nil {
		t.Fatalf("no match is a diagnostic, not an error: %v", err)
	}
	if len(result.Deleted) != 0 || len(result.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic, got %+v", result)
	}
}

func TestDispatchDeleteCategoryCascades(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})
	month := core.MonthKey{Year: 2025, Month: 9}
	seedBudget(t, store, month, "Mercado", "Lazer")

	for _, e := range []core.Expense{
		{ID: "e1", Category: "Mercado", Amount: core.Money{Cents: 100}, Month: month, CreatedAt: time.Now()},
		{ID: "e2", Category: "MERCADO", Amount: core.Money{Cents: 200}, Month: month, CreatedAt: time.Now()},
		{ID: "e3", Category: "Lazer", Amount: core.Money{Cents: 300}, Month: month, CreatedAt: time.Now()},
	} {
		if err := store.SaveExpense(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if _, err := d.Apply(ctx, DeleteCategoryCommand{Category: "mercado"}); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	b, _ := store.GetBudget(ctx, month)
	if _, _, ok := b.Lookup("Mercado"); ok {
		t.Fatalf("budget key must be removed")
	}
	left, _ := store.ListExpenses(ctx, month)
	if len(left) != 1 || left[0].ID != "e3" {
		t.Fatalf("expected only the Lazer expense to remain, got %+v", left)
	}
}

func TestDispatchClearAllResetsSession(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 3})
	d.Session().Advance(core.MonthKey{Year: 2026, Month: 1})
	seedBudget(t, store, core.MonthKey{Year: 2025, Month: 3}, "Mercado")

	if _, err := d.Apply(ctx, ClearAllCommand{}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	// Session resets to the dispatcher clock's month.
	if d.Session().Current() != (core.MonthKey{Year: 2025, Month: 9}) || d.Session().Viewed() != (core.MonthKey{Year: 2025, Month: 9}) {
		t.Fatalf("expected session reset to 2025-9, got %v/%v", d.Session().Viewed(), d.Session().Current())
	}
	if b, _ := store.GetBudget(ctx, core.MonthKey{Year: 2025, Month: 3}); b != nil {
		t.Fatalf("expected budgets wiped, got %v", b)
	}
}

func TestDispatchConfirmationStateMachine(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})

	payload := json.RawMessage(`{"category":"Mercado"}`)
	if _, err := d.Apply(ctx, ConfirmCommand{Action: "DELETE_CATEGORY", Payload: payload}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	pending := d.Pending()
	if pending == nil || pending.Action != "DELETE_CATEGORY" {
		t.Fatalf("expected pending action armed, got %+v", pending)
	}

	// Any terminal action returns the machine to idle.
	if _, err := d.Apply(ctx, CancelCommand{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if d.Pending() != nil {
		t.Fatalf("expected pending cleared after cancel")
	}

	d.Apply(ctx, ConfirmCommand{Action: "CLEAR_ALL_DATA"})
	d.Apply(ctx, StepMonthCommand{Delta: -1})
	if d.Pending() != nil {
		t.Fatalf("expected pending cleared by a concrete action")
	}
}

func TestDispatchCurrentMonthMonotonic(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t, core.MonthKey{Year: 2025, Month: 9})
	seedBudget(t, store, core.MonthKey{Year: 2025, Month: 9}, "Casa")

	commands := []Command{
		SetBudgetCommand{Month: core.MonthKey{Year: 2025, Month: 11}, Entries: core.Budget{"Casa": {Cents: 1000}}},
		StepMonthCommand{Delta: -3},
		AddExpensesCommand{Intents: []core.ExpenseIntent{{Category: "Casa", Amount: money(100)}}},
		ViewMonthCommand{Month: core.MonthKey{Year: 2025, Month: 9}},
		SetBudgetCommand{Entries: core.Budget{"Luz": {Cents: 500}}},
	}
	prev := d.Session().Current()
	for i, cmd := range commands {
		if _, err := d.Apply(ctx, cmd); err != nil {
			t.Fatalf("command %d: %v", i, err)
		}
		cur := d.Session().Current()
		if cur.Before(prev) {
			t.Fatalf("command %d: current month went backward (%v -> %v)", i, prev, cur)
		}
		if d.Session().Viewed().After(cur) {
			t.Fatalf("command %d: viewed month passed the ceiling", i)
		}
		prev = cur
	}
}
