package services

import (
	"context"
	"fmt"
	"log/slog"

	"paytrack/internal/amqp"
	"paytrack/internal/core"
)

// TransactionService orchestrates transaction CRUD and the balance
// ledger over the persistence port, optionally publishing change
// events over AMQP.
type TransactionService struct {
	store  TransactionStore
	events *amqp.Client
}

func NewTransactionService(store TransactionStore, events *amqp.Client) *TransactionService {
	return &TransactionService{
		store:  store,
		events: events,
	}
}

// BatchResult is the tagged outcome for one item of a batch create.
type BatchResult struct {
	Index       int
	Transaction core.Transaction // populated on success, with id
	Err         error            // nil on success
}

// BatchReport collects per-item results of a batch create.
type BatchReport struct {
	Results []BatchResult
}

// Created returns the successfully persisted transactions in input order.
func (r BatchReport) Created() []core.Transaction {
	var out []core.Transaction
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Transaction)
		}
	}
	return out
}

// FailedCount returns the number of items that were rejected.
func (r BatchReport) FailedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Create validates and persists a single transaction, then publishes a
// change event. Event publishing is best-effort: the local write wins.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.publishEvent(ctx, saved.ID, amqp.ActionCreated)
	return saved, nil
}

// CreateBatch persists transactions one by one with per-item
// isolation: a failing item is recorded in the report and the rest
// proceed. Used by CSV import and bulk entry.
func (s *TransactionService) CreateBatch(ctx context.Context, transactions []core.Transaction) BatchReport {
	report := BatchReport{Results: make([]BatchResult, 0, len(transactions))}

	for i, t := range transactions {
		saved, err := s.Create(ctx, t)
		if err != nil {
			slog.WarnContext(ctx, "Skipping invalid transaction in batch",
				"index", i,
				"date", t.Date.String(),
				"error", err)
			report.Results = append(report.Results, BatchResult{Index: i, Err: err})
			continue
		}
		report.Results = append(report.Results, BatchResult{Index: i, Transaction: saved})
	}

	slog.InfoContext(ctx, "Batch create complete",
		"total", len(transactions),
		"created", len(report.Created()),
		"failed", report.FailedCount())

	return report
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return updated, nil
}

// Delete removes a transaction and publishes a change event. Deleting
// a template does not cascade to its instances; cleanup is a caller
// decision.
func (s *TransactionService) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	if deleted {
		s.publishEvent(ctx, id, amqp.ActionDeleted)
	}
	return deleted, nil
}

// ListByDateRange returns transactions inside the inclusive range,
// ordered by (date, id).
func (s *TransactionService) ListByDateRange(ctx context.Context, start, end core.Date, typeFilter core.TransactionType, includeTemplates bool) ([]core.Transaction, error) {
	return s.store.TransactionsByDateRange(ctx, start, end, typeFilter, includeTemplates)
}

// ListForMonth returns the month's non-template transactions.
func (s *TransactionService) ListForMonth(ctx context.Context, year, month int, typeFilter core.TransactionType) ([]core.Transaction, error) {
	start := core.NewDate(year, month, 1)
	end := core.NewDate(year, month, lastDayOf(year, month))
	return s.store.TransactionsByDateRange(ctx, start, end, typeFilter, false)
}

// Templates returns all recurrence templates ordered by anchor date.
func (s *TransactionService) Templates(ctx context.Context) ([]core.Transaction, error) {
	return s.store.Templates(ctx)
}

// Instances returns the persisted instances of one template.
func (s *TransactionService) Instances(ctx context.Context, templateID int64) ([]core.Transaction, error) {
	return s.store.InstancesOfTemplate(ctx, templateID)
}

// BalanceUpTo computes the running balance over every non-template
// instance dated on or before target. Accumulation follows the store's
// (date, id) order for reproducible floating-point results.
func (s *TransactionService) BalanceUpTo(ctx context.Context, target core.Date) (float64, error) {
	rows, err := s.store.TransactionsByDateRange(ctx, core.Date{}, target, "", false)
	if err != nil {
		return 0, fmt.Errorf("balance query: %w", err)
	}

	balance := 0.0
	for _, t := range rows {
		balance += t.SignedAmount()
	}
	return balance, nil
}

// WeeklyBalances computes the week-bucketed balance report for a
// month. The first week runs from day 1 through the following Sunday
// (or month end); later weeks are Monday through Sunday, the last one
// truncated at month end. The first week's starting balance is the
// running balance as of the day before the month begins, so a month
// always carries over the prior month's true ending balance.
func (s *TransactionService) WeeklyBalances(ctx context.Context, year, month int) ([]core.WeeklyBalance, error) {
	monthStart := core.NewDate(year, month, 1)
	monthEnd := core.NewDate(year, month, lastDayOf(year, month))

	running, err := s.BalanceUpTo(ctx, monthStart.AddDays(-1))
	if err != nil {
		return nil, fmt.Errorf("carry-over balance: %w", err)
	}

	var weeks []core.WeeklyBalance
	weekStart := monthStart
	for !weekStart.After(monthEnd) {
		weekEnd := weekStart.AddDays(daysUntilSunday(weekStart))
		if weekEnd.After(monthEnd) {
			weekEnd = monthEnd
		}

		rows, err := s.store.TransactionsByDateRange(ctx, weekStart, weekEnd, "", false)
		if err != nil {
			return nil, fmt.Errorf("week %s..%s: %w", weekStart, weekEnd, err)
		}

		net := 0.0
		for _, t := range rows {
			net += t.SignedAmount()
		}

		weeks = append(weeks, core.WeeklyBalance{
			WeekStart:       weekStart,
			WeekEnd:         weekEnd,
			StartingBalance: running,
			EndingBalance:   running + net,
			NetChange:       net,
		})
		running += net
		weekStart = weekEnd.AddDays(1)
	}

	return weeks, nil
}

// daysUntilSunday returns 0 when d already is a Sunday.
func daysUntilSunday(d core.Date) int {
	return (7 - int(d.Weekday())) % 7
}

func (s *TransactionService) publishEvent(ctx context.Context, id int64, action string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, id, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", id,
			"action", action,
			"error", err)
		// Local write succeeded; the event stream is best-effort.
	}
}
