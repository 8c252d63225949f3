package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spendly/internal/cache"
	"spendly/internal/core"
	"spendly/internal/storage"
)

// Pagination defaults applied when the client omits or mangles page/limit.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 1000
)

// ListQuery is a filtered page request. Non-positive Page and Limit fall back
// to the defaults.
type ListQuery struct {
	Filter core.Filter
	Page   int
	Limit  int
}

// ListResult is one page of a user's expenses with its aggregates.
// TotalExpense covers the returned page only and CategoryDistribution covers
// every expense of the user regardless of the filter.
type ListResult struct {
	Expenses             []core.Expense
	TotalPages           int
	CurrentPage          int
	TotalItems           int
	TotalExpense         core.Money
	CategoryDistribution []core.CategoryTotal
	Budget               core.Budget
}

// ReportService answers read-side queries over a user's expenses.
type ReportService struct {
	store storage.Store
	stats cache.Cache[core.Stats]
	now   func() time.Time

	// generations counts invalidations per user so a Stats computation that
	// overlapped a mutation does not leave its result cached.
	mu          sync.Mutex
	generations map[string]uint64
}

var _ StatsInvalidator = (*ReportService)(nil)

// NewReportService wires the service. stats may be nil to disable caching.
func NewReportService(store storage.Store, stats cache.Cache[core.Stats]) *ReportService {
	return &ReportService{
		store:       store,
		stats:       stats,
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

func (s *ReportService) List(ctx context.Context, userID string, q ListQuery) (ListResult, error) {
	page := core.Page{Number: q.Page, Size: q.Limit}
	if page.Number < 1 {
		page.Number = DefaultPage
	}
	if page.Size < 1 {
		page.Size = DefaultLimit
	}
	if page.Size > MaxLimit {
		page.Size = MaxLimit
	}

	eq := s.query(userID, q.Filter)
	eq.Offset, eq.Limit = page.Offset(), page.Size

	var (
		user     core.User
		expenses = []core.Expense{}
		total    int
		dist     []core.CategoryTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.store.UserByID(gctx, userID)
		return err
	})
	// A saturated offset lies past any stored row.
	if eq.Offset < math.MaxInt {
		g.Go(func() error {
			var err error
			expenses, err = s.store.ListExpenses(gctx, eq)
			return err
		})
	}
	g.Go(func() error {
		var err error
		total, err = s.store.CountExpenses(gctx, eq)
		return err
	})
	g.Go(func() error {
		var err error
		dist, err = s.store.CategoryTotals(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ListResult{}, core.ErrUserNotFound
		}
		return ListResult{}, fmt.Errorf("list expenses: %w", err)
	}

	pageTotal := core.Sum(expenses)
	return ListResult{
		Expenses:             expenses,
		TotalPages:           page.TotalPages(total),
		CurrentPage:          page.Number,
		TotalItems:           total,
		TotalExpense:         pageTotal,
		CategoryDistribution: dist,
		Budget:               core.BudgetStatus(user.Budget, pageTotal),
	}, nil
}

// Export returns every expense matching the filter, newest first.
func (s *ReportService) Export(ctx context.Context, userID string, f core.Filter) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, s.query(userID, f))
	if err != nil {
		return nil, fmt.Errorf("export expenses: %w", err)
	}
	return expenses, nil
}

// MonthlyTrend sums the user's expenses per month over the last TrendMonths
// calendar months, ascending. Months without expenses are absent.
func (s *ReportService) MonthlyTrend(ctx context.Context, userID string) ([]core.MonthTotal, error) {
	trend, err := s.store.MonthlyTotals(ctx, userID, core.TrendStart(s.now(), core.TrendMonths))
	if err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	return trend, nil
}

// Stats returns the monthly trend and category distribution, from cache
// when possible.
func (s *ReportService) Stats(ctx context.Context, userID string) (core.Stats, error) {
	if s.stats != nil {
		if st, ok := s.stats.Get(ctx, userID); ok {
			slog.DebugContext(ctx, "Stats served from cache", "user_id", userID)
			return st, nil
		}
	}

	gen := s.generation(userID)
	var st core.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st.MonthlyTrend, err = s.MonthlyTrend(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		st.CategoryDistribution, err = s.store.CategoryTotals(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Stats{}, fmt.Errorf("stats: %w", err)
	}

	if s.stats != nil {
		s.stats.Set(ctx, userID, st)
		if s.generation(userID) != gen {
			s.stats.Delete(ctx, userID)
		}
	}
	return st, nil
}

// InvalidateStats drops the user's cached stats. The generation is bumped
// before the delete so an in-flight Stats call sees it after its Set.
func (s *ReportService) InvalidateStats(ctx context.Context, userID string) {
	if s.stats == nil {
		return
	}
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
	s.stats.Delete(ctx, userID)
}

func (s *ReportService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

func (s *ReportService) query(userID string, f core.Filter) storage.ExpenseQuery {
	q := storage.ExpenseQuery{UserID: userID, Category: f.CategoryFilter()}
	if w, ok := core.ResolveWindow(s.now(), f); ok {
		q.Window = &w
	}
	return q
}
