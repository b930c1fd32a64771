package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bolso/internal/core"
	"bolso/internal/ledger"
)

// Command is the typed action set the dispatcher routes. Boundary adapters
// (chat payload decoding, HTTP handlers) build these; the dispatcher never
// inspects raw payloads itself.
type Command interface{ isCommand() }

type (
	// SetBudgetCommand merge-patches the budget for Month (zero value means
	// the viewed month).
	SetBudgetCommand struct {
		Month   core.MonthKey
		Entries core.Budget
	}

	// AddExpensesCommand carries the current intent shape; materialization
	// is delegated to the resolver.
	AddExpensesCommand struct {
		Intents []core.ExpenseIntent
	}

	// ReplayExpensesCommand carries the legacy pre-split shape: months and
	// installment grouping were computed by the caller and are replayed
	// as-is, still advancing the current-month ceiling.
	ReplayExpensesCommand struct {
		Entries []LegacyExpenseEntry
	}

	LegacyExpenseEntry struct {
		Category    string
		Description string
		Amount      core.Money
		Month       core.MonthKey
		GroupID     string
		GroupLabel  string
	}

	// ViewMonthCommand jumps the viewed month (assistant-driven), clamped
	// at the current-month ceiling.
	ViewMonthCommand struct {
		Month core.MonthKey
	}

	// StepMonthCommand moves the viewed month relatively (UI-driven).
	StepMonthCommand struct {
		Delta int
	}

	// DeleteExpenseCommand removes one expense matching category and
	// amount within the viewed month. With several candidates the most
	// recently created one is removed.
	DeleteExpenseCommand struct {
		Category string
		Amount   core.Money
	}

	// DeleteCategoryCommand removes the viewed month's budget key and
	// cascades to its expenses.
	DeleteCategoryCommand struct {
		Category string
	}

	ClearAllCommand struct{}

	// ConfirmCommand parks an action until the user's next message, which
	// is forwarded to the oracle together with the pending payload.
	ConfirmCommand struct {
		Action  string
		Payload json.RawMessage
	}

	CancelCommand struct{}

	UnknownCommand struct{}
)

func (SetBudgetCommand) isCommand()      {}
func (AddExpensesCommand) isCommand()    {}
func (ReplayExpensesCommand) isCommand() {}
func (ViewMonthCommand) isCommand()      {}
func (StepMonthCommand) isCommand()      {}
func (DeleteExpenseCommand) isCommand()  {}
func (DeleteCategoryCommand) isCommand() {}
func (ClearAllCommand) isCommand()       {}
func (ConfirmCommand) isCommand()        {}
func (CancelCommand) isCommand()         {}
func (UnknownCommand) isCommand()        {}

// PendingAction is a parked oracle action awaiting user confirmation.
type PendingAction struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result reports a dispatched command's ledger effects.
type Result struct {
	Created     []core.Expense
	Deleted     []core.Expense
	Diagnostics []string
}

// Dispatcher applies typed commands to the ledger store and session view
// state, and owns the pending-confirmation state machine.
type Dispatcher struct {
	store    ledger.Store
	events   ledger.EventPublisher
	resolver *Resolver
	session  *Session
	now      func() time.Time
	newID    func() string

	pending *PendingAction
}

func NewDispatcher(store ledger.Store, events ledger.EventPublisher, sess *Session) *Dispatcher {
	return &Dispatcher{
		store:    store,
		events:   events,
		resolver: NewResolver(store, events),
		session:  sess,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (d *Dispatcher) Session() *Session { return d.session }

// Pending returns the parked action, or nil when the machine is idle.
func (d *Dispatcher) Pending() *PendingAction { return d.pending }

// Apply routes one command. Any terminal command leaves the confirmation
// machine idle; only ConfirmCommand arms it.
func (d *Dispatcher) Apply(ctx context.Context, cmd Command) (Result, error) {
	if _, ok := cmd.(ConfirmCommand); !ok {
		d.pending = nil
	}

	switch c := cmd.(type) {
	case SetBudgetCommand:
		return d.setBudget(ctx, c)
	case AddExpensesCommand:
		return d.addExpenses(ctx, c)
	case ReplayExpensesCommand:
		return d.replayExpenses(ctx, c)
	case ViewMonthCommand:
		d.session.SetViewed(c.Month)
		return Result{}, nil
	case StepMonthCommand:
		d.session.StepViewed(c.Delta)
		return Result{}, nil
	case DeleteExpenseCommand:
		return d.deleteExpense(ctx, c)
	case DeleteCategoryCommand:
		return d.deleteCategory(ctx, c)
	case ClearAllCommand:
		return d.clearAll(ctx)
	case ConfirmCommand:
		d.pending = &PendingAction{Action: c.Action, Payload: c.Payload}
		return Result{}, nil
	case CancelCommand, UnknownCommand:
		return Result{}, nil
	default:
		return Result{}, fmt.Errorf("unhandled command type %T", cmd)
	}
}

func (d *Dispatcher) setBudget(ctx context.Context, cmd SetBudgetCommand) (Result, error) {
	target := cmd.Month
	if target.IsZero() {
		target = d.session.Viewed()
	}

	existing, err := d.store.GetBudget(ctx, target)
	if err != nil {
		return Result{}, fmt.Errorf("load budget %s: %w", target, err)
	}
	merged := existing.Merge(cmd.Entries)
	if err := d.store.SaveBudget(ctx, target, merged); err != nil {
		return Result{}, fmt.Errorf("save budget %s: %w", target, err)
	}
	d.session.Advance(target)

	slog.InfoContext(ctx, "Budget updated",
		"month", target.String(), "patched", len(cmd.Entries), "total", len(merged))
	return Result{}, nil
}

func (d *Dispatcher) addExpenses(ctx context.Context, cmd AddExpensesCommand) (Result, error) {
	resolved, err := d.resolver.Resolve(ctx, d.session, cmd.Intents)
	if err != nil {
		return Result{}, err
	}
	return Result{Created: resolved.Created, Diagnostics: resolved.Diagnostics}, nil
}

// replayExpenses persists pre-split legacy entries as-is: the caller already
// computed months and installment grouping, so no category validation or
// splitting happens here. The ceiling still advances.
func (d *Dispatcher) replayExpenses(ctx context.Context, cmd ReplayExpensesCommand) (Result, error) {
	var result Result
	var maxMonth core.MonthKey
	touched := false

	for _, entry := range cmd.Entries {
		e := core.Expense{
			ID:          d.newID(),
			Category:    strings.TrimSpace(entry.Category),
			Description: entry.Description,
			Amount:      entry.Amount,
			Month:       entry.Month,
			CreatedAt:   d.now(),
			GroupID:     entry.GroupID,
			GroupLabel:  entry.GroupLabel,
		}
		if err := e.Validate(); err != nil {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf(
				"I skipped one entry for %q: %v.", entry.Category, err))
			continue
		}
		if err := d.store.SaveExpense(ctx, e); err != nil {
			return result, fmt.Errorf("persist expense: %w", err)
		}
		d.publishSaved(ctx, e)
		result.Created = append(result.Created, e)
		if !touched || e.Month.After(maxMonth) {
			maxMonth = e.Month
			touched = true
		}
	}

	if touched {
		d.session.Advance(maxMonth)
	}
	return result, nil
}

func (d *Dispatcher) deleteExpense(ctx context.Context, cmd DeleteExpenseCommand) (Result, error) {
	expenses, err := d.store.ListExpenses(ctx, d.session.Viewed())
	if err != nil {
		return Result{}, fmt.Errorf("list expenses %s: %w", d.session.Viewed(), err)
	}

	var match *core.Expense
	for i := range expenses {
		e := &expenses[i]
		if !strings.EqualFold(e.Category, cmd.Category) || e.Amount != cmd.Amount {
			continue
		}
		if match == nil || e.CreatedAt.After(match.CreatedAt) {
			match = e
		}
	}
	if match == nil {
		return Result{Diagnostics: []string{fmt.Sprintf(
			"I couldn't find a %s expense of %s in %s.",
			cmd.Category, cmd.Amount, d.session.Viewed())}}, nil
	}

	if err := d.store.DeleteExpense(ctx, match.ID); err != nil {
		return Result{}, fmt.Errorf("delete expense %s: %w", match.ID, err)
	}
	d.publishDeleted(ctx, *match)
	return Result{Deleted: []core.Expense{*match}}, nil
}

// DeleteExpenseByID is the unambiguous deletion path exposed over HTTP.
func (d *Dispatcher) DeleteExpenseByID(ctx context.Context, id string) (Result, error) {
	expenses, err := d.store.ListAllExpenses(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list expenses: %w", err)
	}
	for _, e := range expenses {
		if e.ID != id {
			continue
		}
		if err := d.store.DeleteExpense(ctx, id); err != nil {
			return Result{}, fmt.Errorf("delete expense %s: %w", id, err)
		}
		d.publishDeleted(ctx, e)
		return Result{Deleted: []core.Expense{e}}, nil
	}
	return Result{}, fmt.Errorf("delete expense %s: %w", id, core.ErrExpenseNotFound)
}

func (d *Dispatcher) deleteCategory(ctx context.Context, cmd DeleteCategoryCommand) (Result, error) {
	month := d.session.Viewed()
	if err := d.store.DeleteCategory(ctx, cmd.Category, month); err != nil {
		return Result{}, fmt.Errorf("delete category %q in %s: %w", cmd.Category, month, err)
	}
	return Result{}, nil
}

func (d *Dispatcher) clearAll(ctx context.Context) (Result, error) {
	if err := d.store.ClearAll(ctx); err != nil {
		return Result{}, fmt.Errorf("clear all data: %w", err)
	}
	d.session.Reset(core.MonthKeyOf(d.now()))
	slog.InfoContext(ctx, "Ledger cleared, session reset",
		"month", d.session.Current().String())
	return Result{}, nil
}

func (d *Dispatcher) publishSaved(ctx context.Context, e core.Expense) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishExpenseSaved(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event", "id", e.ID, "error", err)
	}
}

func (d *Dispatcher) publishDeleted(ctx context.Context, e core.Expense) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishExpenseDeleted(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete event", "id", e.ID, "error", err)
	}
}
