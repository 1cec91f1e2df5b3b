// Package memory provides an in-memory transaction store. It backs
// tests and the DATA_BACKEND=memory mode, and honors the same
// contracts as the SQLite repository: store-assigned ids and
// (date, id) ascending ordering on range queries.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"paytrack/internal/core"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]core.Transaction
}

func New() *Store {
	return &Store{
		nextID: 1,
		items:  make(map[int64]core.Transaction),
	}
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextID
	s.nextID++
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.items[t.ID] = t
	return t, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.items[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[t.ID]; !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	s.items[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *Store) TransactionsByDateRange(_ context.Context, start, end core.Date, typeFilter core.TransactionType, includeTemplates bool) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.items {
		if t.Date.After(end) {
			continue
		}
		if !start.IsZero() && t.Date.Before(start) {
			continue
		}
		if t.IsTemplate && !includeTemplates {
			continue
		}
		if typeFilter != "" && t.Type != typeFilter {
			continue
		}
		out = append(out, t)
	}
	sortByDateID(out)
	return out, nil
}

func (s *Store) Templates(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.items {
		if t.IsTemplate {
			out = append(out, t)
		}
	}
	sortByDateID(out)
	return out, nil
}

func (s *Store) InstancesOfTemplate(_ context.Context, templateID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Transaction
	for _, t := range s.items {
		if t.RecurringTemplateID == templateID && templateID != 0 {
			out = append(out, t)
		}
	}
	sortByDateID(out)
	return out, nil
}

func sortByDateID(items []core.Transaction) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].ID < items[j].ID
	})
}
