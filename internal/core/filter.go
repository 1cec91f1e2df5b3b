package core

import "strings"

// Filter is an in-memory predicate over already-loaded transactions.
// All criteria are optional and combined with AND. Zero values mean
// "no constraint": amounts are strictly positive, so 0 is a safe
// sentinel for the bounds, and a zero Date disables a date bound.
type Filter struct {
	Search    string          // case-insensitive substring over description, category, payee
	Type      TransactionType // empty matches any type
	MinAmount float64         // inclusive, 0 = unbounded
	MaxAmount float64         // inclusive, 0 = unbounded
	StartDate Date            // inclusive, zero = unbounded
	EndDate   Date            // inclusive, zero = unbounded
}

// Matches reports whether a single transaction satisfies every set
// criterion.
func (f Filter) Matches(t Transaction) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Description), needle) &&
			!strings.Contains(strings.ToLower(t.Category), needle) &&
			!strings.Contains(strings.ToLower(t.Payee), needle) {
			return false
		}
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.MinAmount > 0 && t.Amount < f.MinAmount {
		return false
	}
	if f.MaxAmount > 0 && t.Amount > f.MaxAmount {
		return false
	}
	if !f.StartDate.IsZero() && t.Date.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && t.Date.After(f.EndDate) {
		return false
	}
	return true
}

// Apply returns the transactions matching the filter, preserving the
// input order.
func (f Filter) Apply(transactions []Transaction) []Transaction {
	var out []Transaction
	for _, t := range transactions {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}
