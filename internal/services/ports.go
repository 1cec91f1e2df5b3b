package services

import (
	"context"

	"paytrack/internal/core"
)

// TransactionStore is the outbound port to the persistence layer.
// These are the only store operations the engine relies on. Range
// queries must return rows ordered by (date, id) ascending; a zero
// start date means "from the beginning".
type TransactionStore interface {
	// CreateTransaction persists a transaction and returns it with the
	// store-assigned id (and CreatedAt, when it was unset).
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)

	// GetTransaction returns core.ErrNotFound when the id is unknown.
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)

	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)

	// DeleteTransaction reports whether a row was actually removed.
	DeleteTransaction(ctx context.Context, id int64) (bool, error)

	// TransactionsByDateRange returns transactions with start <= date <= end.
	// An empty typeFilter matches both types; templates are excluded
	// unless includeTemplates is set.
	TransactionsByDateRange(ctx context.Context, start, end core.Date, typeFilter core.TransactionType, includeTemplates bool) ([]core.Transaction, error)

	// Templates returns all recurrence templates ordered by anchor date.
	Templates(ctx context.Context) ([]core.Transaction, error)

	// InstancesOfTemplate returns the persisted instances generated
	// from a template, ordered by date.
	InstancesOfTemplate(ctx context.Context, templateID int64) ([]core.Transaction, error)
}
