package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bolso/internal/core"
	"bolso/internal/ledger"
)

// Resolver turns expense intents into persisted expense records. Validation
// failures (unknown category, unrecognized amount shape) become diagnostics
// and skip the offending intent; store failures abort the batch and
// propagate.
type Resolver struct {
	store  ledger.Store
	events ledger.EventPublisher
	now    func() time.Time
	newID  func() string
}

func NewResolver(store ledger.Store, events ledger.EventPublisher) *Resolver {
	return &Resolver{
		store:  store,
		events: events,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// ResolveResult reports what one intent batch produced.
type ResolveResult struct {
	// Created holds every persisted expense, in creation order.
	Created []core.Expense
	// Visible holds the subset of Created owned by the viewed month.
	Visible []core.Expense
	// Diagnostics are conversational messages for skipped intents.
	Diagnostics []string
}

// Resolve materializes a batch of intents against the session's view state,
// advancing the current-month ceiling once at the end to the latest month any
// installment landed in.
//
// Writes are sequential, one per installment. A store failure stops the batch
// and leaves earlier installments persisted; there is no rollback.
func (r *Resolver) Resolve(ctx context.Context, sess *Session, intents []core.ExpenseIntent) (ResolveResult, error) {
	var result ResolveResult

	budget, err := r.store.GetBudget(ctx, sess.Viewed())
	if err != nil {
		return result, fmt.Errorf("load budget %s: %w", sess.Viewed(), err)
	}

	var maxMonth core.MonthKey
	touched := false
	for _, intent := range intents {
		category, _, ok := budget.Lookup(intent.Category)
		if !ok {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf(
				"I couldn't find a %q category in the %s budget. Create it or confirm the name and I'll log this expense.",
				intent.Category, sess.Viewed()))
			continue
		}

		switch {
		case intent.Installments != nil && intent.Installments.Count > 1:
			created, diag, err := r.materializeInstallments(ctx, sess, category, intent)
			if err != nil {
				return result, err
			}
			if diag != "" {
				result.Diagnostics = append(result.Diagnostics, diag)
				continue
			}
			for _, e := range created {
				result.Created = append(result.Created, e)
				if e.Month == sess.Viewed() {
					result.Visible = append(result.Visible, e)
				}
				if !touched || e.Month.After(maxMonth) {
					maxMonth = e.Month
					touched = true
				}
			}

		case intent.Amount != nil:
			e, err := r.persist(ctx, core.Expense{
				ID:          r.newID(),
				Category:    category,
				Description: intent.Description,
				Amount:      *intent.Amount,
				Month:       sess.Viewed(),
				CreatedAt:   r.now(),
			})
			if err != nil {
				return result, err
			}
			result.Created = append(result.Created, e)
			result.Visible = append(result.Visible, e)
			if !touched || e.Month.After(maxMonth) {
				maxMonth = e.Month
				touched = true
			}

		default:
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf(
				"I couldn't work out the amount for %q, so I skipped it.", intent.Category))
		}
	}

	if touched && sess.Advance(maxMonth) {
		slog.InfoContext(ctx, "Current month advanced",
			"current", sess.Current().String(),
			"viewed", sess.Viewed().String())
	}

	return result, nil
}

// materializeInstallments writes one expense per installment, all sharing a
// fresh group id, on strictly consecutive months starting at the resolved
// base month plus the plan's offset.
func (r *Resolver) materializeInstallments(ctx context.Context, sess *Session, category string, intent core.ExpenseIntent) ([]core.Expense, string, error) {
	plan := intent.Installments
	if err := plan.Validate(); err != nil {
		return nil, fmt.Sprintf("The installment plan for %q doesn't make sense to me (%v), so I skipped it.", category, err), nil
	}

	amounts, ok := plan.Amounts()
	if !ok {
		return nil, fmt.Sprintf("I couldn't work out the amount for %q, so I skipped it.", category), nil
	}

	base := sess.Viewed()
	if plan.BaseMonth == core.BaseCurrent {
		base = sess.Current()
	}

	groupID := r.newID()
	created := make([]core.Expense, 0, plan.Count)
	for i := 0; i < plan.Count; i++ {
		e, err := r.persist(ctx, core.Expense{
			ID:          r.newID(),
			Category:    category,
			Description: intent.Description,
			Amount:      core.Money{Cents: amounts[i]},
			Month:       base.Shift(plan.StartOffsetMonths + i),
			CreatedAt:   r.now(),
			GroupID:     groupID,
			GroupLabel:  core.GroupLabel(i+1, plan.Count),
		})
		if err != nil {
			return nil, "", err
		}
		created = append(created, e)
	}
	return created, "", nil
}

func (r *Resolver) persist(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := r.store.SaveExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("persist expense: %w", err)
	}
	r.publishSaved(ctx, e)
	return e, nil
}

// publishSaved mirrors the write; a broker failure never fails the request.
func (r *Resolver) publishSaved(ctx context.Context, e core.Expense) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishExpenseSaved(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"id", e.ID, "error", err)
	}
}
