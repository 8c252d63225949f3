// Package memory is an in-process storage.Store used for tests and the
// memory data backend. Data is lost on restart.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendly/internal/core"
	"spendly/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	users    map[string]core.User
	byEmail  map[string]string
	expenses map[string]core.Expense
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:    map[string]core.User{},
		byEmail:  map[string]string{},
		expenses: map[string]core.Expense{},
		now:      time.Now,
	}
}

// WithClock replaces the creation timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return core.User{}, core.ErrEmailTaken
	}
	u.ID = uuid.NewString()
	u.CreatedAt = s.now().UTC()
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UpdateUser(_ context.Context, id string, name *string, budget *core.Money) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if budget != nil {
		u.Budget = *budget
	}
	s.users[id] = u
	return u, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC()
	e.Date = e.Date.UTC()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, q storage.ExpenseQuery) ([]core.Expense, error) {
	s.mu.RLock()
	out := s.match(q)
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.Expense) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if q.Limit <= 0 {
		return out, nil
	}
	offset := max(q.Offset, 0)
	if offset >= len(out) {
		return []core.Expense{}, nil
	}
	end := offset + min(q.Limit, len(out)-offset)
	return out[offset:end], nil
}

func (s *Store) CountExpenses(_ context.Context, q storage.ExpenseQuery) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(q)), nil
}

func (s *Store) CategoryTotals(_ context.Context, userID string) ([]core.CategoryTotal, error) {
	s.mu.RLock()
	sums := map[string]core.Money{}
	for _, e := range s.expenses {
		if e.UserID == userID {
			sums[e.Category] = sums[e.Category].Add(e.Amount)
		}
	}
	s.mu.RUnlock()

	out := make([]core.CategoryTotal, 0, len(sums))
	for c, t := range sums {
		out = append(out, core.CategoryTotal{Category: c, Total: t})
	}
	slices.SortFunc(out, func(a, b core.CategoryTotal) int {
		if a.Total.Cents != b.Total.Cents {
			if a.Total.Cents > b.Total.Cents {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Category, b.Category)
	})
	return out, nil
}

func (s *Store) MonthlyTotals(_ context.Context, userID string, since time.Time) ([]core.MonthTotal, error) {
	type ym struct{ y, m int }
	s.mu.RLock()
	sums := map[ym]core.Money{}
	for _, e := range s.expenses {
		if e.UserID != userID || e.Date.Before(since) {
			continue
		}
		d := e.Date.UTC()
		k := ym{d.Year(), int(d.Month())}
		sums[k] = sums[k].Add(e.Amount)
	}
	s.mu.RUnlock()

	out := make([]core.MonthTotal, 0, len(sums))
	for k, t := range sums {
		out = append(out, core.MonthTotal{Year: k.y, Month: k.m, Total: t})
	}
	slices.SortFunc(out, func(a, b core.MonthTotal) int {
		if a.Year != b.Year {
			return a.Year - b.Year
		}
		return a.Month - b.Month
	})
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, userID, id string, p core.ExpensePatch) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	if e.UserID != userID {
		return core.Expense{}, core.ErrForbidden
	}
	e = p.Apply(e)
	e.Date = e.Date.UTC()
	s.expenses[id] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	if e.UserID != userID {
		return core.Expense{}, core.ErrForbidden
	}
	delete(s.expenses, id)
	return e, nil
}

// match returns copies of the expenses selected by q. Callers hold the lock.
func (s *Store) match(q storage.ExpenseQuery) []core.Expense {
	out := []core.Expense{}
	for _, e := range s.expenses {
		if e.UserID != q.UserID {
			continue
		}
		if q.Window != nil && !q.Window.Contains(e.Date) {
			continue
		}
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		out = append(out, e)
	}
	return out
}
