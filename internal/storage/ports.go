// Package storage defines the persistence ports used by the services and the
// shared migration runner. Backends live in the sqlite, postgres and memory
// subpackages.
package storage

import (
	"context"
	"time"

	"spendly/internal/core"
)

// ExpenseQuery selects a caller's expenses. A nil Window means no date
// restriction; an empty Category means every category. Limit 0 returns all rows.
type ExpenseQuery struct {
	UserID   string
	Window   *core.Window
	Category string
	Offset   int
	Limit    int
}

// Ports for persistence adapters.
type (
	UserStore interface {
		// CreateUser persists u. A taken email yields core.ErrEmailTaken.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		UserByID(ctx context.Context, id string) (core.User, error)
		UserByEmail(ctx context.Context, email string) (core.User, error)
		// UpdateUser replaces the supplied fields. Nil fields are left unchanged.
		UpdateUser(ctx context.Context, id string, name *string, budget *core.Money) (core.User, error)
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		// ListExpenses returns matching rows ordered by date desc, then created_at desc.
		ListExpenses(ctx context.Context, q ExpenseQuery) ([]core.Expense, error)
		CountExpenses(ctx context.Context, q ExpenseQuery) (int, error)
		// CategoryTotals sums every expense of the user per category,
		// ordered by total desc then category asc.
		CategoryTotals(ctx context.Context, userID string) ([]core.CategoryTotal, error)
		// MonthlyTotals sums expenses dated at or after since per UTC calendar
		// month, ascending. Months without expenses are omitted.
		MonthlyTotals(ctx context.Context, userID string, since time.Time) ([]core.MonthTotal, error)
		// UpdateExpense and DeleteExpense act only on rows owned by userID.
		// A missing id yields core.ErrNotFound, another owner's row core.ErrForbidden.
		UpdateExpense(ctx context.Context, userID, id string, p core.ExpensePatch) (core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id string) (core.Expense, error)
	}

	// Store is a complete backend.
	Store interface {
		UserStore
		ExpenseStore
		Ping(ctx context.Context) error
		Close() error
	}
)
