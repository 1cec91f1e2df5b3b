// Package http provides the JSON API server and handler implementations.
//
// This file implements the wire representations of domain entities and
// utilities for parsing request parameters.

package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paytrack/internal/core"
)

// transactionPayload is the wire shape of a transaction.
type transactionPayload struct {
	ID                  int64   `json:"id,omitempty"`
	Date                string  `json:"date"`
	Amount              float64 `json:"amount"`
	Type                string  `json:"type"`
	Description         string  `json:"description,omitempty"`
	Category            string  `json:"category,omitempty"`
	Payee               string  `json:"payee,omitempty"`
	RecurringTemplateID int64   `json:"recurring_template_id,omitempty"`
	IsTemplate          bool    `json:"is_template,omitempty"`
	RecurrencePattern   string  `json:"recurrence_pattern,omitempty"`
	CreatedAt           string  `json:"created_at,omitempty"`
}

func toPayload(t core.Transaction) transactionPayload {
	p := transactionPayload{
		ID:                  t.ID,
		Date:                t.Date.String(),
		Amount:              t.Amount,
		Type:                string(t.Type),
		Description:         t.Description,
		Category:            t.Category,
		Payee:               t.Payee,
		RecurringTemplateID: t.RecurringTemplateID,
		IsTemplate:          t.IsTemplate,
		RecurrencePattern:   string(t.RecurrencePattern),
	}
	if !t.CreatedAt.IsZero() {
		p.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	return p
}

func toPayloads(items []core.Transaction) []transactionPayload {
	out := make([]transactionPayload, 0, len(items))
	for _, t := range items {
		out = append(out, toPayload(t))
	}
	return out
}

// toDomain converts the payload into a domain transaction. The id in
// the payload is ignored; route parameters are authoritative.
func (p transactionPayload) toDomain() (core.Transaction, error) {
	date, err := core.ParseDate(strings.TrimSpace(p.Date))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", p.Date)
	}
	return core.Transaction{
		Date:                date,
		Amount:              p.Amount,
		Type:                core.TransactionType(strings.TrimSpace(p.Type)),
		Description:         sanitizeInput(p.Description),
		Category:            sanitizeInput(p.Category),
		Payee:               sanitizeInput(p.Payee),
		RecurringTemplateID: p.RecurringTemplateID,
		IsTemplate:          p.IsTemplate,
		RecurrencePattern:   core.RecurrencePattern(strings.TrimSpace(p.RecurrencePattern)),
	}, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters,
// using the current date as defaults.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	now := time.Now()
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("invalid month %q", v)
		}
		params.Month = m
	}
	if params.Month < 1 || params.Month > 12 {
		return params, fmt.Errorf("invalid month %d: must be 1-12", params.Month)
	}
	return params, nil
}

// parseDateParam reads an optional YYYY-MM-DD query parameter. The
// zero Date is returned when the parameter is absent.
func parseDateParam(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", key, v)
	}
	return d, nil
}

// parseFilter builds a transaction filter from list query parameters.
func parseFilter(query url.Values) (core.Filter, error) {
	f := core.Filter{
		Search: sanitizeInput(query.Get("search")),
		Type:   core.TransactionType(strings.TrimSpace(query.Get("type"))),
	}
	if f.Type != "" && !f.Type.Valid() {
		return f, fmt.Errorf("invalid type %q", f.Type)
	}

	if v := strings.TrimSpace(query.Get("min_amount")); v != "" {
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("invalid min_amount %q", v)
		}
		f.MinAmount = amount
	}
	if v := strings.TrimSpace(query.Get("max_amount")); v != "" {
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("invalid max_amount %q", v)
		}
		f.MaxAmount = amount
	}

	var err error
	if f.StartDate, err = parseDateParam(query, "start"); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDateParam(query, "end"); err != nil {
		return f, err
	}
	return f, nil
}
