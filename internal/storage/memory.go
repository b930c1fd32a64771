package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bolso/internal/core"
)

// MemoryStore is a map-backed ledger store. It backs the zero-config default
// run and the test suites.
type MemoryStore struct {
	mu       sync.RWMutex
	budgets  map[string]core.Budget // keyed by MonthKey string
	expenses map[string]core.Expense
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		budgets:  make(map[string]core.Budget),
		expenses: make(map[string]core.Expense),
	}
}

func (s *MemoryStore) GetBudget(ctx context.Context, month core.MonthKey) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.budgets[month.String()]
	if !ok {
		return nil, nil
	}
	copied := make(core.Budget, len(b))
	for name, amount := range b {
		copied[name] = amount
	}
	return copied, nil
}

func (s *MemoryStore) SaveBudget(ctx context.Context, month core.MonthKey, b core.Budget) error {
	if err := month.Validate(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("save budget %s: %w", month, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(core.Budget, len(b))
	for name, amount := range b {
		copied[name] = amount
	}
	s.budgets[month.String()] = copied
	return nil
}

func (s *MemoryStore) ListExpenses(ctx context.Context, month core.MonthKey) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Expense
	for _, e := range s.expenses {
		if e.Month == month {
			out = append(out, e)
		}
	}
	sortExpenses(out)
	return out, nil
}

func (s *MemoryStore) ListAllExpenses(ctx context.Context) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sortExpenses(out)
	return out, nil
}

func (s *MemoryStore) SaveExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("save expense: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses[e.ID] = e
	return nil
}

func (s *MemoryStore) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return fmt.Errorf("delete expense %s: %w", id, core.ErrExpenseNotFound)
	}
	delete(s.expenses, id)
	return nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, category string, month core.MonthKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.budgets[month.String()]; ok {
		for name := range b {
			if strings.EqualFold(name, category) {
				delete(b, name)
			}
		}
	}
	for id, e := range s.expenses {
		if e.Month == month && strings.EqualFold(e.Category, category) {
			delete(s.expenses, id)
		}
	}
	return nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.budgets = make(map[string]core.Budget)
	s.expenses = make(map[string]core.Expense)
	return nil
}

// sortExpenses orders by month, then creation time, then id for a stable
// listing across backends.
func sortExpenses(expenses []core.Expense) {
	sort.Slice(expenses, func(i, j int) bool {
		if c := expenses[i].Month.Compare(expenses[j].Month); c != 0 {
			return c < 0
		}
		if !expenses[i].CreatedAt.Equal(expenses[j].CreatedAt) {
			return expenses[i].CreatedAt.Before(expenses[j].CreatedAt)
		}
		return expenses[i].ID < expenses[j].ID
	})
}
