package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"paytrack/internal/core"
)

// Precondition errors for instance generation. These indicate caller
// bugs and are raised before any date math runs.
var (
	ErrNotTemplate    = errors.New("transaction is not a template")
	ErrMissingPattern = errors.New("template has no recurrence pattern")
)

// RecurrenceService materializes concrete transaction instances from
// recurrence templates. Generation itself is side-effect-free; only
// the bulk path persists.
type RecurrenceService struct {
	store TransactionStore
}

func NewRecurrenceService(store TransactionStore) *RecurrenceService {
	return &RecurrenceService{store: store}
}

// GenerateInstances expands a template over [rangeStart, rangeEnd] and
// returns the instances that do not yet exist, in ascending date
// order. A date carrying any persisted instance of this template is
// skipped regardless of that instance's content, unless regenerate is
// set, in which case every candidate date is emitted again (duplicates
// by design; reconciling stale instances is the caller's job).
//
// The returned instances are transient: nothing is persisted here.
func (s *RecurrenceService) GenerateInstances(ctx context.Context, template core.Transaction, rangeStart, rangeEnd core.Date, regenerate bool) ([]core.Transaction, error) {
	if !template.IsTemplate {
		return nil, ErrNotTemplate
	}
	if template.RecurrencePattern == "" {
		return nil, ErrMissingPattern
	}

	generator, err := GetDateGenerator(template.RecurrencePattern)
	if err != nil {
		return nil, err
	}

	candidates := generator.Dates(template.Date, rangeStart, rangeEnd)

	existing, err := s.store.InstancesOfTemplate(ctx, template.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch existing instances: %w", err)
	}
	existingDates := make(map[string]bool, len(existing))
	for _, inst := range existing {
		existingDates[inst.Date.String()] = true
	}

	var generated []core.Transaction
	for _, date := range candidates {
		// Generators already respect the anchor; re-asserted here so a
		// misbehaving registered generator cannot backdate instances.
		if date.Before(template.Date) {
			continue
		}
		if !regenerate && existingDates[date.String()] {
			continue
		}
		generated = append(generated, core.Transaction{
			Date:                date,
			Amount:              template.Amount,
			Type:                template.Type,
			Description:         template.Description,
			Category:            template.Category,
			Payee:               template.Payee,
			RecurringTemplateID: template.ID,
		})
	}

	slog.DebugContext(ctx, "Generated recurring instances",
		"template_id", template.ID,
		"pattern", template.RecurrencePattern,
		"candidates", len(candidates),
		"new", len(generated))

	return generated, nil
}

// GenerateAllInstancesUpTo materializes every stored template from its
// anchor date through endDate, persisting each template's instances
// before moving to the next. There is no cross-template transaction:
// a mid-batch failure leaves earlier templates materialized and later
// ones untouched.
func (s *RecurrenceService) GenerateAllInstancesUpTo(ctx context.Context, endDate core.Date, regenerate bool) ([]core.Transaction, error) {
	templates, err := s.store.Templates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	slog.InfoContext(ctx, "Materializing recurring templates",
		"templates", len(templates),
		"up_to", endDate.String())

	var created []core.Transaction
	for _, template := range templates {
		instances, err := s.GenerateInstances(ctx, template, template.Date, endDate, regenerate)
		if err != nil {
			return created, fmt.Errorf("generate instances for template %d: %w", template.ID, err)
		}

		for _, instance := range instances {
			saved, err := s.store.CreateTransaction(ctx, instance)
			if err != nil {
				return created, fmt.Errorf("persist instance of template %d on %s: %w",
					template.ID, instance.Date, err)
			}
			created = append(created, saved)
		}

		if len(instances) > 0 {
			slog.InfoContext(ctx, "Materialized template instances",
				"template_id", template.ID,
				"description", template.Description,
				"pattern", template.RecurrencePattern,
				"count", len(instances))
		}
	}

	slog.InfoContext(ctx, "Materialization complete",
		"templates", len(templates),
		"instances_created", len(created))

	return created, nil
}
