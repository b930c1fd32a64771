// Package storage provides the ledger store backends: SQLite for local
// persistence, Postgres for a shared database and an in-memory store for
// tests and zero-config runs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bolso/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) GetBudget(ctx context.Context, month core.MonthKey) (core.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, amount_cents FROM budgets WHERE month_key = ?`, month.String())
	if err != nil {
		return nil, fmt.Errorf("get budget %s: %w", month, err)
	}
	defer rows.Close()

	var budget core.Budget
	for rows.Next() {
		var category string
		var cents int64
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("scan budget row: %w", err)
		}
		if budget == nil {
			budget = make(core.Budget)
		}
		budget[category] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget rows: %w", err)
	}
	return budget, nil
}

func (s *SQLiteStore) SaveBudget(ctx context.Context, month core.MonthKey, b core.Budget) error {
	if err := month.Validate(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("save budget %s: %w", month, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin budget tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM budgets WHERE month_key = ?`, month.String()); err != nil {
		return fmt.Errorf("clear budget %s: %w", month, err)
	}
	for category, amount := range b {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (month_key, category, amount_cents) VALUES (?, ?, ?)`,
			month.String(), category, amount.Cents); err != nil {
			return fmt.Errorf("insert budget entry %q: %w", category, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit budget %s: %w", month, err)
	}

	slog.InfoContext(ctx, "Budget saved", "month", month.String(), "categories", len(b))
	return nil
}

const expenseColumns = `id, category, description, amount_cents, month_key, created_at, group_id, group_label`

func (s *SQLiteStore) ListExpenses(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE month_key = ? ORDER BY created_at, id`,
		month.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses %s: %w", month, err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func (s *SQLiteStore) ListAllExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses ORDER BY year, month, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list all expenses: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func (s *SQLiteStore) SaveExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("save expense: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, category, description, amount_cents, month_key, year, month, created_at, group_id, group_label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			category = excluded.category,
			description = excluded.description,
			amount_cents = excluded.amount_cents,
			month_key = excluded.month_key,
			year = excluded.year,
			month = excluded.month,
			group_id = excluded.group_id,
			group_label = excluded.group_label`,
		e.ID, e.Category, e.Description, e.Amount.Cents, e.Month.String(),
		e.Month.Year, e.Month.Month, e.CreatedAt, e.GroupID, e.GroupLabel)
	if err != nil {
		return fmt.Errorf("save expense %s: %w", e.ID, err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"month", e.Month.String(),
		"group_id", e.GroupID)
	return nil
}

func (s *SQLiteStore) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete expense %s: %w", id, core.ErrExpenseNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, category string, month core.MonthKey) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM budgets WHERE month_key = ? AND category = ? COLLATE NOCASE`,
		month.String(), category); err != nil {
		return fmt.Errorf("delete budget key %q: %w", category, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM expenses WHERE month_key = ? AND category = ? COLLATE NOCASE`,
		month.String(), category); err != nil {
		return fmt.Errorf("delete category expenses %q: %w", category, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete category %q: %w", category, err)
	}

	slog.InfoContext(ctx, "Category deleted", "category", category, "month", month.String())
	return nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM budgets`); err != nil {
		return fmt.Errorf("clear budgets: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}

	slog.InfoContext(ctx, "All ledger data cleared")
	return nil
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var out []core.Expense
	for rows.Next() {
		var e core.Expense
		var monthKey string
		if err := rows.Scan(&e.ID, &e.Category, &e.Description, &e.Amount.Cents,
			&monthKey, &e.CreatedAt, &e.GroupID, &e.GroupLabel); err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		month, err := core.ParseMonthKey(monthKey)
		if err != nil {
			return nil, fmt.Errorf("stored month key: %w", err)
		}
		e.Month = month
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense rows: %w", err)
	}
	return out, nil
}
