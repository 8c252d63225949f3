package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"spendly/internal/core"
	"spendly/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "spendly.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u, err := s.CreateUser(ctx, core.User{Name: "Ann", Email: "ann@x.io", PasswordHash: "h", Budget: core.Cents(100000)})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.CreateUser(ctx, core.User{Name: "Ann2", Email: "ann@x.io", PasswordHash: "h"}); !errors.Is(err, core.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := s.UserByEmail(ctx, "ann@x.io")
	if err != nil || got.ID != u.ID || got.Budget.Cents != 100000 {
		t.Fatalf("lookup by email: %+v err=%v", got, err)
	}

	budget := core.Cents(5000)
	upd, err := s.UpdateUser(ctx, u.ID, nil, &budget)
	if err != nil || upd.Name != "Ann" || upd.Budget.Cents != 5000 {
		t.Fatalf("update user: %+v err=%v", upd, err)
	}

	if _, err := s.UserByID(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExpenseQueriesAndOwnership(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, _ := s.CreateUser(ctx, core.User{Name: "A", Email: "a@x.io", PasswordHash: "h"})
	b, _ := s.CreateUser(ctx, core.User{Name: "B", Email: "b@x.io", PasswordHash: "h"})

	dates := []time.Time{
		time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC),
	}
	var ids []string
	for i, d := range dates {
		cat := "Food"
		if i == 2 {
			cat = "Bills"
		}
		e, err := s.CreateExpense(ctx, core.Expense{UserID: a.ID, Item: "x", Amount: core.Cents(int64(1000 * (i + 1))), Category: cat, Date: d})
		if err != nil {
			t.Fatalf("create expense: %v", err)
		}
		ids = append(ids, e.ID)
	}

	list, err := s.ListExpenses(ctx, storage.ExpenseQuery{UserID: a.ID, Limit: 2})
	if err != nil || len(list) != 2 || list[0].ID != ids[2] {
		t.Fatalf("list: %+v err=%v", list, err)
	}

	w := core.Window{From: dates[0], To: dates[1]}
	n, err := s.CountExpenses(ctx, storage.ExpenseQuery{UserID: a.ID, Window: &w, Category: "Food"})
	if err != nil || n != 2 {
		t.Fatalf("count = %d err=%v", n, err)
	}

	cats, _ := s.CategoryTotals(ctx, a.ID)
	if len(cats) != 2 || cats[0].Category != "Bills" || cats[0].Total.Cents != 3000 {
		t.Fatalf("category totals: %+v", cats)
	}

	months, _ := s.MonthlyTotals(ctx, a.ID, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if len(months) != 2 || months[0].Total.Cents != 3000 || months[1].Month != 2 {
		t.Fatalf("monthly totals: %+v", months)
	}

	item := "renamed"
	upd, err := s.UpdateExpense(ctx, a.ID, ids[0], core.ExpensePatch{Item: &item})
	if err != nil || upd.Item != "renamed" || upd.Amount.Cents != 1000 || !upd.Date.Equal(dates[0]) {
		t.Fatalf("update: %+v err=%v", upd, err)
	}

	if _, err := s.UpdateExpense(ctx, b.ID, ids[0], core.ExpensePatch{Item: &item}); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("foreign update: %v", err)
	}
	if _, err := s.DeleteExpense(ctx, b.ID, ids[0]); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("foreign delete: %v", err)
	}
	if _, err := s.DeleteExpense(ctx, a.ID, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing delete: %v", err)
	}
	del, err := s.DeleteExpense(ctx, a.ID, ids[0])
	if err != nil || del.ID != ids[0] {
		t.Fatalf("owner delete: %+v err=%v", del, err)
	}
}
