// Package ledger declares the outbound ports of the month ledger: the
// persistence contract every store backend implements and the event sink the
// mirror pipeline listens on.
package ledger

import (
	"context"

	"bolso/internal/core"
)

type (
	// Store persists budgets keyed by month and expenses keyed by id,
	// queryable by month. Implementations are assumed single-writer; no
	// transaction spans multiple SaveExpense calls.
	Store interface {
		// GetBudget returns the month's snapshot, or nil when absent.
		GetBudget(ctx context.Context, month core.MonthKey) (core.Budget, error)
		SaveBudget(ctx context.Context, month core.MonthKey, b core.Budget) error

		ListExpenses(ctx context.Context, month core.MonthKey) ([]core.Expense, error)
		ListAllExpenses(ctx context.Context) ([]core.Expense, error)
		// SaveExpense upserts by id.
		SaveExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id string) error

		// DeleteCategory removes the month's budget key and cascades to
		// that month's expenses matching the category case-insensitively.
		DeleteCategory(ctx context.Context, category string, month core.MonthKey) error
		ClearAll(ctx context.Context) error
	}

	// EventPublisher mirrors ledger writes to interested consumers.
	// Publishing is best-effort: callers log failures and carry on.
	EventPublisher interface {
		PublishExpenseSaved(ctx context.Context, e core.Expense) error
		PublishExpenseDeleted(ctx context.Context, e core.Expense) error
	}
)
