// Package worker holds the long-running background processes: the
// recurrence sweeper that keeps template instances materialized ahead
// of time, and the event worker that consumes transaction change
// events from the broker.
package worker

import (
	"context"
	"log/slog"
	"time"

	"paytrack/internal/core"
	"paytrack/internal/services"
)

// Sweeper periodically materializes recurring templates up to a
// rolling horizon.
type Sweeper struct {
	recurrence  *services.RecurrenceService
	interval    time.Duration
	horizonDays int
	// asOf overrides the reference date; zero means now. Used for
	// backfills.
	asOf core.Date
}

func NewSweeper(recurrence *services.RecurrenceService, interval time.Duration, horizonDays int, asOf core.Date) *Sweeper {
	return &Sweeper{
		recurrence:  recurrence,
		interval:    interval,
		horizonDays: horizonDays,
		asOf:        asOf,
	}
}

// horizon resolves the generation cutoff for one sweep.
func (s *Sweeper) horizon() core.Date {
	ref := s.asOf
	if ref.IsZero() {
		ref = core.DateOf(time.Now())
	}
	return ref.AddDays(s.horizonDays)
}

// SweepOnce runs a single materialization pass and returns the number
// of instances created.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	created, err := s.recurrence.GenerateAllInstancesUpTo(ctx, s.horizon(), false)
	return len(created), err
}

// Run sweeps immediately, then on every tick until the context is
// cancelled. Sweep failures are logged and the loop continues; a
// broken pass will be retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Recurrence sweeper started",
		"interval", s.interval,
		"horizon_days", s.horizonDays)

	if count, err := s.SweepOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial sweep failed", "error", err)
	} else {
		slog.InfoContext(ctx, "Initial sweep complete", "instances_created", count)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Recurrence sweeper stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			count, err := s.SweepOnce(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Sweep failed", "error", err)
				continue
			}
			if count > 0 {
				slog.InfoContext(ctx, "Sweep complete", "instances_created", count)
			}
		}
	}
}
