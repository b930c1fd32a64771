package assistant

import (
	"encoding/json"
	"fmt"

	"bolso/internal/core"
	"bolso/internal/services"
)

// Oracle action names. The set is closed; anything else decodes to
// UnknownCommand.
const (
	ActionSetBudget      = "SET_BUDGET"
	ActionAddExpense     = "ADD_EXPENSE"
	ActionViewPrevMonth  = "VIEW_PREVIOUS_MONTH"
	ActionNextMonth      = "NEXT_MONTH"
	ActionDeleteExpense  = "DELETE_EXPENSE"
	ActionDeleteCategory = "DELETE_CATEGORY"
	ActionClearAllData   = "CLEAR_ALL_DATA"
	ActionConfirm        = "CONFIRM_ACTION"
	ActionCancel         = "CANCEL_ACTION"
)

type (
	wireBudgetPayload struct {
		Month   string             `json:"month"`
		Budgets map[string]float64 `json:"budgets"`
	}

	wireExpensesPayload struct {
		Expenses []wireExpenseEntry `json:"expenses"`
	}

	wireExpenseEntry struct {
		Category     string            `json:"category"`
		Description  string            `json:"description"`
		Amount       *float64          `json:"amount"`
		Installments *wireInstallments `json:"installments"`

		// Legacy pre-split shape fields.
		Month              string `json:"month"`
		InstallmentGroupID string `json:"installmentGroupId"`
		InstallmentInfo    string `json:"installmentInfo"`
	}

	wireInstallments struct {
		Count                int      `json:"count"`
		AmountPerInstallment *float64 `json:"amountPerInstallment"`
		TotalAmount          *float64 `json:"totalAmount"`
		BaseMonth            string   `json:"baseMonth"`
		StartOffsetMonths    int      `json:"startOffsetMonths"`
	}

	wireMonthPayload struct {
		Month string `json:"month"`
	}

	wireDeleteExpensePayload struct {
		Category string   `json:"category"`
		Amount   *float64 `json:"amount"`
	}

	wireDeleteCategoryPayload struct {
		Category string `json:"category"`
	}

	wireConfirmPayload struct {
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
)

// DecodeCommand converts an oracle reply into a typed dispatcher command.
// This is the only place payload shapes are inspected: the dispatcher
// receives explicit variants, never raw JSON. Malformed payloads yield
// ErrUnrecognizedPayload.
func DecodeCommand(reply Reply) (services.Command, error) {
	switch reply.Action {
	case ActionSetBudget:
		return decodeSetBudget(reply.Payload)
	case ActionAddExpense:
		return decodeAddExpense(reply.Payload)
	case ActionViewPrevMonth:
		return decodeViewMonth(reply.Payload)
	case ActionNextMonth:
		return services.StepMonthCommand{Delta: 1}, nil
	case ActionDeleteExpense:
		return decodeDeleteExpense(reply.Payload)
	case ActionDeleteCategory:
		return decodeDeleteCategory(reply.Payload)
	case ActionClearAllData:
		return services.ClearAllCommand{}, nil
	case ActionConfirm:
		return decodeConfirm(reply.Payload)
	case ActionCancel:
		return services.CancelCommand{}, nil
	default:
		return services.UnknownCommand{}, nil
	}
}

func decodeSetBudget(payload json.RawMessage) (services.Command, error) {
	var wire wireBudgetPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: SET_BUDGET: %v", ErrUnrecognizedPayload, err)
	}
	if len(wire.Budgets) == 0 {
		return nil, fmt.Errorf("%w: SET_BUDGET without budgets", ErrUnrecognizedPayload)
	}

	cmd := services.SetBudgetCommand{Entries: make(core.Budget, len(wire.Budgets))}
	if wire.Month != "" {
		month, err := core.ParseMonthKey(wire.Month)
		if err != nil {
			return nil, fmt.Errorf("%w: SET_BUDGET month: %v", ErrUnrecognizedPayload, err)
		}
		cmd.Month = month
	}
	for category, value := range wire.Budgets {
		amount, ok := core.CentsFromDecimal(value)
		if !ok {
			if value == 0 {
				amount = core.Money{}
			} else {
				return nil, fmt.Errorf("%w: SET_BUDGET amount for %q", ErrUnrecognizedPayload, category)
			}
		}
		cmd.Entries[category] = amount
	}
	return cmd, nil
}

// decodeAddExpense selects between the current intents shape and the legacy
// pre-split shape. The legacy discriminant is an explicit month on the
// entries: only the old client computed months itself.
func decodeAddExpense(payload json.RawMessage) (services.Command, error) {
	var wire wireExpensesPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		// The oldest payloads were a bare array rather than an object.
		if arrErr := json.Unmarshal(payload, &wire.Expenses); arrErr != nil {
			return nil, fmt.Errorf("%w: ADD_EXPENSE: %v", ErrUnrecognizedPayload, err)
		}
	}
	if len(wire.Expenses) == 0 {
		return nil, fmt.Errorf("%w: ADD_EXPENSE without expenses", ErrUnrecognizedPayload)
	}

	legacy := false
	for _, entry := range wire.Expenses {
		if entry.Month != "" {
			legacy = true
			break
		}
	}
	if legacy {
		return decodeLegacyExpenses(wire.Expenses)
	}

	cmd := services.AddExpensesCommand{Intents: make([]core.ExpenseIntent, 0, len(wire.Expenses))}
	for _, entry := range wire.Expenses {
		intent := core.ExpenseIntent{
			Category:    entry.Category,
			Description: entry.Description,
		}
		if entry.Amount != nil {
			if amount, ok := core.CentsFromDecimal(*entry.Amount); ok {
				intent.Amount = &amount
			}
		}
		if entry.Installments != nil {
			plan := &core.InstallmentPlan{
				Count:             entry.Installments.Count,
				BaseMonth:         core.BaseMonthRef(entry.Installments.BaseMonth),
				StartOffsetMonths: entry.Installments.StartOffsetMonths,
			}
			if entry.Installments.AmountPerInstallment != nil {
				if amount, ok := core.CentsFromDecimal(*entry.Installments.AmountPerInstallment); ok {
					plan.PerInstallment = &amount
				}
			}
			if entry.Installments.TotalAmount != nil {
				if amount, ok := core.CentsFromDecimal(*entry.Installments.TotalAmount); ok {
					plan.Total = &amount
				}
			}
			intent.Installments = plan
		}
		cmd.Intents = append(cmd.Intents, intent)
	}
	return cmd, nil
}

func decodeLegacyExpenses(entries []wireExpenseEntry) (services.Command, error) {
	cmd := services.ReplayExpensesCommand{Entries: make([]services.LegacyExpenseEntry, 0, len(entries))}
	for _, entry := range entries {
		legacy := services.LegacyExpenseEntry{
			Category:    entry.Category,
			Description: entry.Description,
			GroupID:     entry.InstallmentGroupID,
			GroupLabel:  entry.InstallmentInfo,
		}
		if entry.Amount != nil {
			if amount, ok := core.CentsFromDecimal(*entry.Amount); ok {
				legacy.Amount = amount
			}
		}
		if entry.Month != "" {
			// Left zero on parse failure; the dispatcher skips the entry
			// with a diagnostic instead of dropping the whole batch.
			if month, err := core.ParseMonthKey(entry.Month); err == nil {
				legacy.Month = month
			}
		}
		cmd.Entries = append(cmd.Entries, legacy)
	}
	return cmd, nil
}

func decodeViewMonth(payload json.RawMessage) (services.Command, error) {
	var wire wireMonthPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, fmt.Errorf("%w: VIEW_PREVIOUS_MONTH: %v", ErrUnrecognizedPayload, err)
		}
	}
	if wire.Month == "" {
		return services.StepMonthCommand{Delta: -1}, nil
	}
	month, err := core.ParseMonthKey(wire.Month)
	if err != nil {
		return nil, fmt.Errorf("%w: VIEW_PREVIOUS_MONTH month: %v", ErrUnrecognizedPayload, err)
	}
	return services.ViewMonthCommand{Month: month}, nil
}

func decodeDeleteExpense(payload json.RawMessage) (services.Command, error) {
	var wire wireDeleteExpensePayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: DELETE_EXPENSE: %v", ErrUnrecognizedPayload, err)
	}
	if wire.Category == "" || wire.Amount == nil {
		return nil, fmt.Errorf("%w: DELETE_EXPENSE needs category and amount", ErrUnrecognizedPayload)
	}
	amount, ok := core.CentsFromDecimal(*wire.Amount)
	if !ok {
		return nil, fmt.Errorf("%w: DELETE_EXPENSE amount", ErrUnrecognizedPayload)
	}
	return services.DeleteExpenseCommand{Category: wire.Category, Amount: amount}, nil
}

func decodeDeleteCategory(payload json.RawMessage) (services.Command, error) {
	var wire wireDeleteCategoryPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: DELETE_CATEGORY: %v", ErrUnrecognizedPayload, err)
	}
	if wire.Category == "" {
		return nil, fmt.Errorf("%w: DELETE_CATEGORY without category", ErrUnrecognizedPayload)
	}
	return services.DeleteCategoryCommand{Category: wire.Category}, nil
}

func decodeConfirm(payload json.RawMessage) (services.Command, error) {
	var wire wireConfirmPayload
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: CONFIRM_ACTION: %v", ErrUnrecognizedPayload, err)
	}
	return services.ConfirmCommand{Action: wire.Action, Payload: wire.Payload}, nil
}
