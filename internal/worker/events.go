package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"paytrack/internal/amqp"
	"paytrack/internal/core"
	"paytrack/internal/services"
)

// EventWorker consumes transaction change events and writes an audit
// trail to the log. Deletions arrive after the row is gone, so the
// worker tolerates lookups that miss.
type EventWorker struct {
	store services.TransactionStore

	processed atomic.Int64
	failed    atomic.Int64
}

func NewEventWorker(store services.TransactionStore) *EventWorker {
	return &EventWorker{store: store}
}

// HandleEvent processes a single transaction change event.
func (w *EventWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	switch msg.Action {
	case amqp.ActionCreated:
		t, err := w.store.GetTransaction(ctx, msg.ID)
		if err != nil {
			w.failed.Add(1)
			return fmt.Errorf("load transaction %d: %w", msg.ID, err)
		}
		slog.InfoContext(ctx, "Transaction created",
			"id", t.ID,
			"date", t.Date.String(),
			"type", t.Type,
			"amount", t.Amount,
			"is_template", t.IsTemplate,
			"template_id", t.RecurringTemplateID)

	case amqp.ActionDeleted:
		slog.InfoContext(ctx, "Transaction deleted",
			"id", msg.ID,
			"timestamp", msg.Timestamp)

	default:
		w.failed.Add(1)
		return fmt.Errorf("unknown event action %q", msg.Action)
	}

	w.processed.Add(1)
	return nil
}

// Run consumes events until the context is cancelled.
func (w *EventWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
		err := w.HandleEvent(ctx, msg)
		// A created event for a row that was deleted before we saw the
		// event is stale, not retryable.
		if err != nil && isNotFound(err) {
			slog.WarnContext(ctx, "Dropping event for missing transaction",
				"id", msg.ID,
				"action", msg.Action)
			return nil
		}
		return err
	})
}

// Stats returns how many events were processed and how many failed.
func (w *EventWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
