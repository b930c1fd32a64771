package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bolso/internal/assistant"
	"bolso/internal/core"
	"bolso/internal/services"
)

type expenseJSON struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Month       string  `json:"month"`
	CreatedAt   string  `json:"createdAt"`
	GroupID     string  `json:"groupId,omitempty"`
	GroupLabel  string  `json:"groupLabel,omitempty"`
}

type stateJSON struct {
	ViewedMonth  string                  `json:"viewedMonth"`
	CurrentMonth string                  `json:"currentMonth"`
	Budget       map[string]float64      `json:"budget"`
	Expenses     []expenseJSON           `json:"expenses"`
	Pending      *services.PendingAction `json:"pendingAction,omitempty"`
}

type chatRequest struct {
	Messages []assistant.Message `json:"messages"`
}

type chatResponse struct {
	Response    string        `json:"response"`
	Action      string        `json:"action,omitempty"`
	Created     []expenseJSON `json:"created,omitempty"`
	Deleted     []expenseJSON `json:"deleted,omitempty"`
	Diagnostics []string      `json:"diagnostics,omitempty"`
	State       stateJSON     `json:"state"`
}

const assistantUnavailableMsg = "Sorry, I can't reach the assistant right now. Please try again in a moment."

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.oracle == nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(ctx, w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.snapshot(r)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load ledger state", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to load ledger state")
		return
	}

	reply, err := s.oracle.Complete(ctx, assistant.Request{
		Messages: req.Messages,
		State:    snapshot,
		Pending:  s.dispatcher.Pending(),
	})
	if err != nil {
		// The raw error stays in the logs; the user gets a generic message.
		slog.ErrorContext(ctx, "Oracle completion failed", "error", err)
		state, _ := s.stateView(r)
		writeJSON(ctx, w, http.StatusOK, chatResponse{
			Response: assistantUnavailableMsg,
			State:    state,
		})
		return
	}

	resp := chatResponse{Response: reply.Response, Action: reply.Action}

	cmd, err := assistant.DecodeCommand(reply)
	if err != nil {
		slog.WarnContext(ctx, "Undecodable oracle action",
			"action", reply.Action, "error", err)
		resp.Diagnostics = append(resp.Diagnostics,
			"I understood the request but couldn't apply that action.")
	} else {
		result, err := s.dispatcher.Apply(ctx, cmd)
		if err != nil {
			slog.ErrorContext(ctx, "Command dispatch failed",
				"action", reply.Action, "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "failed to apply action")
			return
		}
		resp.Created = expenseViews(result.Created)
		resp.Deleted = expenseViews(result.Deleted)
		resp.Diagnostics = result.Diagnostics
	}

	state, err := s.stateView(r)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to reload ledger state", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to load ledger state")
		return
	}
	resp.State = state
	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.stateView(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load ledger state", "error", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "failed to load ledger state")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, state)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}

	budget, err := s.store.GetBudget(r.Context(), month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load budget", "month", month.String(), "error", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "failed to load budget")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"month":  month.String(),
		"budget": budgetDecimals(budget),
	})
}

// handlePutBudget merge-patches the month's budget. With ?from=prev the
// previous month's snapshot is copied in first, so an empty body carries a
// budget forward unchanged.
func (s *Server) handlePutBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month, ok := monthParam(w, r)
	if !ok {
		return
	}

	var decimals map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&decimals); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	patch, err := budgetFromDecimals(decimals)
	if err != nil {
		writeError(ctx, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.EqualFold(r.URL.Query().Get("from"), "prev") {
		prev, err := s.store.GetBudget(ctx, month.Shift(-1))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load previous budget", "month", month.String(), "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "failed to load budget")
			return
		}
		patch = prev.Merge(patch)
	}

	if _, err := s.dispatcher.Apply(ctx, services.SetBudgetCommand{Month: month, Entries: patch}); err != nil {
		slog.ErrorContext(ctx, "Failed to save budget", "month", month.String(), "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to save budget")
		return
	}

	budget, err := s.store.GetBudget(ctx, month)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to reload budget", "month", month.String(), "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to load budget")
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"month":  month.String(),
		"budget": budgetDecimals(budget),
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, ok := monthParam(w, r)
	if !ok {
		return
	}

	expenses, err := s.store.ListExpenses(r.Context(), month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list expenses", "month", month.String(), "error", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"month":    month.String(),
		"expenses": expenseViews(expenses),
	})
}

type createExpensesRequest struct {
	Expenses []struct {
		Category     string  `json:"category"`
		Description  string  `json:"description"`
		Amount       float64 `json:"amount"`
		Installments *struct {
			Count             int     `json:"count"`
			Amount            float64 `json:"amount"`
			Total             float64 `json:"total"`
			BaseMonth         string  `json:"baseMonth"`
			StartOffsetMonths int     `json:"startOffsetMonths"`
		} `json:"installments"`
	} `json:"expenses"`
}

func (s *Server) handleCreateExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createExpensesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Expenses) == 0 {
		writeError(ctx, w, http.StatusBadRequest, "expenses must not be empty")
		return
	}

	intents := make([]core.ExpenseIntent, 0, len(req.Expenses))
	for _, e := range req.Expenses {
		intent := core.ExpenseIntent{
			Category:    e.Category,
			Description: e.Description,
		}
		if amount, ok := core.CentsFromDecimal(e.Amount); ok {
			intent.Amount = &amount
		}
		if e.Installments != nil {
			plan := &core.InstallmentPlan{
				Count:             e.Installments.Count,
				BaseMonth:         core.BaseMonthRef(e.Installments.BaseMonth),
				StartOffsetMonths: e.Installments.StartOffsetMonths,
			}
			if per, ok := core.CentsFromDecimal(e.Installments.Amount); ok {
				plan.PerInstallment = &per
			}
			if total, ok := core.CentsFromDecimal(e.Installments.Total); ok {
				plan.Total = &total
			}
			intent.Installments = plan
		}
		intents = append(intents, intent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.dispatcher.Apply(ctx, services.AddExpensesCommand{Intents: intents})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create expenses", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to create expenses")
		return
	}

	status := http.StatusCreated
	if len(result.Created) == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(ctx, w, status, map[string]any{
		"created":     expenseViews(result.Created),
		"diagnostics": result.Diagnostics,
	})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.dispatcher.DeleteExpenseByID(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrExpenseNotFound) {
			writeError(ctx, w, http.StatusNotFound, "expense not found")
			return
		}
		slog.ErrorContext(ctx, "Failed to delete expense", "id", id, "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to delete expense")
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"deleted": expenseViews(result.Deleted),
	})
}

func (s *Server) handleStepMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.dispatcher.Apply(ctx, services.StepMonthCommand{Delta: req.Delta}); err != nil {
		slog.ErrorContext(ctx, "Failed to step month", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to step month")
		return
	}

	state, err := s.stateView(r)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load ledger state", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, "failed to load ledger state")
		return
	}
	writeJSON(ctx, w, http.StatusOK, state)
}

// snapshot loads the viewed month's data for the oracle prompt. Callers hold
// s.mu.
func (s *Server) snapshot(r *http.Request) (assistant.StateSnapshot, error) {
	sess := s.dispatcher.Session()
	budget, err := s.store.GetBudget(r.Context(), sess.Viewed())
	if err != nil {
		return assistant.StateSnapshot{}, err
	}
	expenses, err := s.store.ListExpenses(r.Context(), sess.Viewed())
	if err != nil {
		return assistant.StateSnapshot{}, err
	}
	return assistant.Snapshot(sess, budget, expenses), nil
}

// stateView builds the API state response. Callers hold s.mu.
func (s *Server) stateView(r *http.Request) (stateJSON, error) {
	sess := s.dispatcher.Session()
	budget, err := s.store.GetBudget(r.Context(), sess.Viewed())
	if err != nil {
		return stateJSON{}, err
	}
	expenses, err := s.store.ListExpenses(r.Context(), sess.Viewed())
	if err != nil {
		return stateJSON{}, err
	}
	return stateJSON{
		ViewedMonth:  sess.Viewed().String(),
		CurrentMonth: sess.Current().String(),
		Budget:       budgetDecimals(budget),
		Expenses:     expenseViews(expenses),
		Pending:      s.dispatcher.Pending(),
	}, nil
}

func expenseViews(expenses []core.Expense) []expenseJSON {
	views := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		views = append(views, expenseJSON{
			ID:          e.ID,
			Category:    e.Category,
			Description: e.Description,
			Amount:      e.Amount.Decimal(),
			Month:       e.Month.String(),
			CreatedAt:   e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			GroupID:     e.GroupID,
			GroupLabel:  e.GroupLabel,
		})
	}
	return views
}

func budgetDecimals(budget core.Budget) map[string]float64 {
	decimals := make(map[string]float64, len(budget))
	for name, amount := range budget {
		decimals[name] = amount.Decimal()
	}
	return decimals
}

// budgetFromDecimals converts a decimal patch to cents. Zero is a legal
// budget amount, negatives and non-finite values are not.
func budgetFromDecimals(decimals map[string]float64) (core.Budget, error) {
	budget := make(core.Budget, len(decimals))
	for name, v := range decimals {
		if strings.TrimSpace(name) == "" {
			return nil, core.ErrEmptyCategory
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, core.ErrInvalidAmount
		}
		budget[name] = core.Money{Cents: int64(math.Round(v * 100))}
	}
	return budget, nil
}

func monthParam(w http.ResponseWriter, r *http.Request) (core.MonthKey, bool) {
	month, err := core.ParseMonthKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid month key")
		return core.MonthKey{}, false
	}
	return month, true
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, map[string]string{"error": msg})
}
