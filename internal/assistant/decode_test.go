package assistant

import (
	"encoding/json"
	"errors"
	"testing"

	"bolso/internal/core"
	"bolso/internal/services"
)

func TestDecodeSetBudget(t *testing.T) {
	cmd, err := DecodeCommand(Reply{
		Action:  ActionSetBudget,
		Payload: json.RawMessage(`{"month":"2025-10","budgets":{"Mercado":500,"Lazer":150.5}}`),
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	set, ok := cmd.(services.SetBudgetCommand)
	if !ok {
		t.Fatalf("expected SetBudgetCommand, got %T", cmd)
	}
	if set.Month != (core.MonthKey{Year: 2025, Month: 10}) {
		t.Fatalf("expected month 2025-10, got %v", set.Month)
	}
	if set.Entries["Mercado"].Cents != 50000 || set.Entries["Lazer"].Cents != 15050 {
		t.Fatalf("unexpected entries: %v", set.Entries)
	}
}

func TestDecodeSetBudgetDefaultsMonth(t *testing.T) {
	cmd, err := DecodeCommand(Reply{
		Action:  ActionSetBudget,
		Payload: json.RawMessage(`{"budgets":{"Mercado":500}}`),
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !cmd.(services.SetBudgetCommand).Month.IsZero() {
		t.Fatalf("absent month must decode to the zero key")
	}
}

func TestDecodeAddExpenseCurrentShape(t *testing.T) {
	payload := `{"expenses":[
		{"category":"Mercado","amount":50},
		{"category":"Eletrônicos","description":"TV","installments":
			{"count":10,"totalAmount":3000,"baseMonth":"current","startOffsetMonths":1}}
	]}`
	cmd, err := DecodeCommand(Reply{Action: ActionAddExpense, Payload: json.RawMessage(payload)})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	add, ok := cmd.(services.AddExpensesCommand)
	if !ok {
		t.Fatalf("expected AddExpensesCommand, got %T", cmd)
	}
	if len(add.Intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(add.Intents))
	}
	if add.Intents[0].Amount == nil || add.Intents[0].Amount.Cents != 5000 {
		t.Fatalf("unexpected flat amount: %+v", add.Intents[0])
	}
	plan := add.Intents[1].Installments
	if plan == nil || plan.Count != 10 || plan.Total == nil || plan.Total.Cents != 300000 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.BaseMonth != core.BaseCurrent || plan.StartOffsetMonths != 1 {
		t.Fatalf("unexpected plan anchors: %+v", plan)
	}
}

func TestDecodeAddExpenseLegacyShape(t *testing.T) {
	// The legacy client precomputed months and group ids itself.
	payload := `{"expenses":[
		{"category":"Eletrônicos","amount":100,"month":"2025-9","installmentGroupId":"g1","installmentInfo":"1/2"},
		{"category":"Eletrônicos","amount":100,"month":"2025-10","installmentGroupId":"g1","installmentInfo":"2/2"}
	]}`
	cmd, err := DecodeCommand(Reply{Action: ActionAddExpense, Payload: json.RawMessage(payload)})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	replay, ok := cmd.(services.ReplayExpensesCommand)
	if !ok {
		t.Fatalf("entries with months must decode to the legacy variant, got %T", cmd)
	}
	if len(replay.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(replay.Entries))
	}
	if replay.Entries[1].Month != (core.MonthKey{Year: 2025, Month: 10}) {
		t.Fatalf("expected precomputed month kept, got %v", replay.Entries[1].Month)
	}
	if replay.Entries[0].GroupID != "g1" || replay.Entries[0].GroupLabel != "1/2" {
		t.Fatalf("expected caller's group linkage kept, got %+v", replay.Entries[0])
	}
}

func TestDecodeAddExpenseBareArray(t *testing.T) {
	payload := `[{"category":"Mercado","amount":50,"month":"2025-9"}]`
	cmd, err := DecodeCommand(Reply{Action: ActionAddExpense, Payload: json.RawMessage(payload)})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := cmd.(services.ReplayExpensesCommand); !ok {
		t.Fatalf("expected legacy variant for a bare array, got %T", cmd)
	}
}

func TestDecodeAddExpenseUnrecognized(t *testing.T) {
	for _, payload := range []string{`"nope"`, `{}`, `{"expenses":[]}`} {
		_, err := DecodeCommand(Reply{Action: ActionAddExpense, Payload: json.RawMessage(payload)})
		if !errors.Is(err, ErrUnrecognizedPayload) {
			t.Fatalf("payload %s expected ErrUnrecognizedPayload, got %v", payload, err)
		}
	}
}

func TestDecodeMonthNavigation(t *testing.T) {
	cmd, err := DecodeCommand(Reply{Action: ActionViewPrevMonth})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if step, ok := cmd.(services.StepMonthCommand); !ok || step.Delta != -1 {
		t.Fatalf("expected step -1, got %#v", cmd)
	}

	cmd, err = DecodeCommand(Reply{
		Action:  ActionViewPrevMonth,
		Payload: json.RawMessage(`{"month":"2025-6"}`),
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view, ok := cmd.(services.ViewMonthCommand); !ok || view.Month != (core.MonthKey{Year: 2025, Month: 6}) {
		t.Fatalf("expected jump to 2025-6, got %#v", cmd)
	}

	cmd, _ = DecodeCommand(Reply{Action: ActionNextMonth})
	if step, ok := cmd.(services.StepMonthCommand); !ok || step.Delta != 1 {
		t.Fatalf("expected step +1, got %#v", cmd)
	}
}

func TestDecodeDeleteExpense(t *testing.T) {
	cmd, err := DecodeCommand(Reply{
		Action:  ActionDeleteExpense,
		Payload: json.RawMessage(`{"category":"Mercado","amount":30}`),
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	del := cmd.(services.DeleteExpenseCommand)
	if del.Category != "Mercado" || del.Amount.Cents != 3000 {
		t.Fatalf("unexpected command: %+v", del)
	}

	_, err = DecodeCommand(Reply{Action: ActionDeleteExpense, Payload: json.RawMessage(`{"category":"Mercado"}`)})
	if !errors.Is(err, ErrUnrecognizedPayload) {
		t.Fatalf("missing amount must be unrecognized, got %v", err)
	}
}

func TestDecodeConfirmAndTerminals(t *testing.T) {
	cmd, err := DecodeCommand(Reply{
		Action:  ActionConfirm,
		Payload: json.RawMessage(`{"action":"CLEAR_ALL_DATA","payload":{}}`),
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	confirm := cmd.(services.ConfirmCommand)
	if confirm.Action != "CLEAR_ALL_DATA" {
		t.Fatalf("unexpected pending action: %+v", confirm)
	}

	if cmd, _ := DecodeCommand(Reply{Action: ActionCancel}); cmd != (services.CancelCommand{}) {
		t.Fatalf("expected cancel command")
	}
	if cmd, _ := DecodeCommand(Reply{Action: ActionClearAllData}); cmd != (services.ClearAllCommand{}) {
		t.Fatalf("expected clear-all command")
	}
	if cmd, _ := DecodeCommand(Reply{Action: "MAKE_COFFEE"}); cmd != (services.UnknownCommand{}) {
		t.Fatalf("unknown actions decode to UnknownCommand")
	}
}

func TestParseReply(t *testing.T) {
	reply, err := ParseReply("```json\n{\"action\":\"NEXT_MONTH\",\"response\":\"ok\"}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if reply.Action != ActionNextMonth || reply.Response != "ok" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	if _, err := ParseReply(`{"response":"no action"}`); err == nil {
		t.Fatalf("missing action must fail")
	}
	if _, err := ParseReply("not json"); err == nil {
		t.Fatalf("non-JSON must fail")
	}
}
