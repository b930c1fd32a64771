package amqp

import (
	"encoding/json"
	"time"

	"bolso/internal/core"
)

// Event kinds carried on the ledger events queue.
const (
	KindExpenseSaved   = "expense_saved"
	KindExpenseDeleted = "expense_deleted"
)

// LedgerEvent mirrors one expense write. The row data travels inline so the
// mirror worker never needs read access to the primary store.
type LedgerEvent struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Month       string    `json:"month"`
	GroupID     string    `json:"group_id,omitempty"`
	GroupLabel  string    `json:"group_label,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind string, e core.Expense) *LedgerEvent {
	return &LedgerEvent{
		Kind:        kind,
		ID:          e.ID,
		Category:    e.Category,
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		Month:       e.Month.String(),
		GroupID:     e.GroupID,
		GroupLabel:  e.GroupLabel,
		Timestamp:   time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
