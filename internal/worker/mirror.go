// Package worker turns ledger events into Google Sheets mirror rows.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bolso/internal/amqp"
	"bolso/internal/core"
)

// RowAppender is the slice of the sheets client the worker needs.
type RowAppender interface {
	AppendRow(ctx context.Context, row []interface{}) error
}

// MirrorWorker appends one spreadsheet row per ledger event. Deletions are
// mirrored as tombstone rows rather than removed, keeping the sheet an
// append-only audit trail.
type MirrorWorker struct {
	appender RowAppender
}

func NewMirrorWorker(appender RowAppender) *MirrorWorker {
	return &MirrorWorker{appender: appender}
}

// HandleEvent processes one ledger event. Errors bubble up so the consumer
// nacks and requeues the delivery.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	var status string
	switch event.Kind {
	case amqp.KindExpenseSaved:
		status = "saved"
	case amqp.KindExpenseDeleted:
		status = "deleted"
	default:
		// Unknown kinds are dropped, not requeued: a newer producer may
		// emit kinds this worker predates.
		slog.WarnContext(ctx, "Skipping unknown event kind", "kind", event.Kind, "id", event.ID)
		return nil
	}

	amount := core.Money{Cents: event.AmountCents}
	row := []interface{}{
		event.ID,
		event.Month,
		event.Category,
		event.Description,
		amount.String(),
		event.GroupLabel,
		status,
	}
	if err := w.appender.AppendRow(ctx, row); err != nil {
		return fmt.Errorf("mirror event %s: %w", event.ID, err)
	}

	slog.InfoContext(ctx, "Ledger event mirrored",
		"kind", event.Kind,
		"id", event.ID,
		"month", event.Month)
	return nil
}
