// Package assistant is the boundary to the conversational oracle: the chat
// model that turns user messages into structured ledger actions. The oracle
// is treated as an untrusted structured-data producer; everything it returns
// is validated and converted into typed commands before use.
package assistant

import (
	"context"
	"encoding/json"
	"errors"

	"bolso/internal/core"
	"bolso/internal/services"
)

// Message is one turn of the conversation transcript.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request carries everything the oracle needs to interpret the latest user
// message: the transcript, a snapshot of ledger state, and any action parked
// for confirmation.
type Request struct {
	Messages []Message
	State    StateSnapshot
	Pending  *services.PendingAction
}

// StateSnapshot is the ledger context serialized into the oracle prompt.
type StateSnapshot struct {
	ViewedMonth  core.MonthKey      `json:"viewedMonth"`
	CurrentMonth core.MonthKey      `json:"currentMonth"`
	Budget       map[string]float64 `json:"budget"`
	Expenses     []ExpenseView      `json:"expenses"`
}

// ExpenseView is the read model of one expense as shown to the oracle.
type ExpenseView struct {
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Month       string  `json:"month"`
	GroupLabel  string  `json:"installment,omitempty"`
}

// Reply is the oracle's structured verdict: an action name, an
// action-specific payload and the human-readable text to show the user.
type Reply struct {
	Action   string          `json:"action"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Response string          `json:"response"`
}

// Oracle is the external chat-completion service.
type Oracle interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

// ErrUnrecognizedPayload marks an oracle payload whose shape doesn't match
// its action.
var ErrUnrecognizedPayload = errors.New("unrecognized action payload")

// Snapshot builds the oracle's state view from the session and store data.
func Snapshot(sess *services.Session, budget core.Budget, expenses []core.Expense) StateSnapshot {
	snap := StateSnapshot{
		ViewedMonth:  sess.Viewed(),
		CurrentMonth: sess.Current(),
		Budget:       make(map[string]float64, len(budget)),
	}
	for name, amount := range budget {
		snap.Budget[name] = amount.Decimal()
	}
	for _, e := range expenses {
		snap.Expenses = append(snap.Expenses, ExpenseView{
			Category:    e.Category,
			Description: e.Description,
			Amount:      e.Amount.Decimal(),
			Month:       e.Month.String(),
			GroupLabel:  e.GroupLabel,
		})
	}
	return snap
}
