package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"bolso/internal/core"

	_ "github.com/lib/pq"
)

// PostgresStore implements the ledger store over a shared Postgres database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS budgets (
			month_key    TEXT NOT NULL,
			category     TEXT NOT NULL,
			amount_cents BIGINT NOT NULL CHECK (amount_cents >= 0)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_budgets_month_category
			ON budgets (month_key, LOWER(category))`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id           TEXT PRIMARY KEY,
			category     TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			month_key    TEXT NOT NULL,
			year         INTEGER NOT NULL,
			month        INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
			created_at   TIMESTAMPTZ NOT NULL,
			group_id     TEXT NOT NULL DEFAULT '',
			group_label  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_month ON expenses (month_key)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) GetBudget(ctx context.Context, month core.MonthKey) (core.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, amount_cents FROM budgets WHERE month_key = $1`, month.String())
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

func (s *PostgresStore) SaveBudget(ctx context.Context, month core.MonthKey, b core.Budget) error {
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
		`DELETE FROM budgets WHERE month_key = $1`, month.String()); err != nil {
		return fmt.Errorf("clear budget %s: %w", month, err)
	}
	for category, amount := range b {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (month_key, category, amount_cents) VALUES ($1, $2, $3)`,
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

func (s *PostgresStore) ListExpenses(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE month_key = $1 ORDER BY created_at, id`,
		month.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses %s: %w", month, err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func (s *PostgresStore) ListAllExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses ORDER BY year, month, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list all expenses: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

func (s *PostgresStore) SaveExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("save expense: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, category, description, amount_cents, month_key, year, month, created_at, group_id, group_label)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			amount_cents = EXCLUDED.amount_cents,
			month_key = EXCLUDED.month_key,
			year = EXCLUDED.year,
			month = EXCLUDED.month,
			group_id = EXCLUDED.group_id,
			group_label = EXCLUDED.group_label`,
		e.ID, e.Category, e.Description, e.Amount.Cents, e.Month.String(),
		e.Month.Year, e.Month.Month, e.CreatedAt, e.GroupID, e.GroupLabel)
	if err != nil {
		return fmt.Errorf("save expense %s: %w", e.ID, err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"month", e.Month.String())
	return nil
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
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

func (s *PostgresStore) DeleteCategory(ctx context.Context, category string, month core.MonthKey) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM budgets WHERE month_key = $1 AND LOWER(category) = LOWER($2)`,
		month.String(), category); err != nil {
		return fmt.Errorf("delete budget key %q: %w", category, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM expenses WHERE month_key = $1 AND LOWER(category) = LOWER($2)`,
		month.String(), category); err != nil {
		return fmt.Errorf("delete category expenses %q: %w", category, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete category %q: %w", category, err)
	}

	slog.InfoContext(ctx, "Category deleted", "category", category, "month", month.String())
	return nil
}

func (s *PostgresStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE expenses, budgets`); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	slog.InfoContext(ctx, "All ledger data cleared")
	return nil
}
