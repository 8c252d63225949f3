package postgres

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"spendly/internal/core"
	"spendly/internal/storage"
)

func TestWhereClause(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	w := &core.Window{From: from, To: to}

	tests := []struct {
		name      string
		q         storage.ExpenseQuery
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "owner only",
			q:         storage.ExpenseQuery{UserID: "u1"},
			wantWhere: " WHERE user_id = $1",
			wantArgs:  []any{"u1"},
		},
		{
			name:      "window",
			q:         storage.ExpenseQuery{UserID: "u1", Window: w},
			wantWhere: " WHERE user_id = $1 AND spent_at >= $2 AND spent_at <= $3",
			wantArgs:  []any{"u1", from, to},
		},
		{
			name:      "category",
			q:         storage.ExpenseQuery{UserID: "u1", Category: "Food"},
			wantWhere: " WHERE user_id = $1 AND category = $2",
			wantArgs:  []any{"u1", "Food"},
		},
		{
			name:      "window and category",
			q:         storage.ExpenseQuery{UserID: "u1", Window: w, Category: "Food"},
			wantWhere: " WHERE user_id = $1 AND spent_at >= $2 AND spent_at <= $3 AND category = $4",
			wantArgs:  []any{"u1", from, to, "Food"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := whereClause(tt.q)
			if where != tt.wantWhere {
				t.Fatalf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestListQuery(t *testing.T) {
	w := &core.Window{From: time.Unix(0, 0).UTC(), To: time.Unix(100, 0).UTC()}

	tests := []struct {
		name       string
		q          storage.ExpenseQuery
		wantSuffix string
		wantTail   []any
	}{
		{"unpaged", storage.ExpenseQuery{UserID: "u1"}, "ORDER BY spent_at DESC, created_at DESC, id", []any{"u1"}},
		{"paged", storage.ExpenseQuery{UserID: "u1", Limit: 10, Offset: 20}, " LIMIT $2 OFFSET $3", []any{10, 20}},
		{"paged after filters", storage.ExpenseQuery{UserID: "u1", Window: w, Category: "Food", Limit: 5, Offset: 5}, " LIMIT $5 OFFSET $6", []any{5, 5}},
		{"negative offset", storage.ExpenseQuery{UserID: "u1", Limit: 5, Offset: -15}, " LIMIT $2 OFFSET $3", []any{5, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := listQuery(tt.q)
			if !strings.HasPrefix(query, "SELECT "+expenseColumns+" FROM expenses WHERE ") {
				t.Fatalf("query = %q", query)
			}
			if !strings.HasSuffix(query, tt.wantSuffix) {
				t.Fatalf("query = %q, want suffix %q", query, tt.wantSuffix)
			}
			if strings.Count(query, "$") != len(args) {
				t.Fatalf("query %q has %d placeholders for %d args", query, strings.Count(query, "$"), len(args))
			}
			tail := args[len(args)-len(tt.wantTail):]
			if !reflect.DeepEqual(tail, tt.wantTail) {
				t.Fatalf("trailing args = %v, want %v", tail, tt.wantTail)
			}
		})
	}
}

// openTestStore connects to DATABASE_URL. Rows created through the returned
// store are removed when the test ends.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, name string) core.User {
	t.Helper()
	ctx := context.Background()
	u, err := s.CreateUser(ctx, core.User{
		Name:         name,
		Email:        name + "-" + uuid.NewString() + "@x.io",
		PasswordHash: "h",
		Budget:       core.Cents(100000),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM expenses WHERE user_id = $1`, u.ID)
		_, _ = s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID)
	})
	return u
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	u := createTestUser(t, s, "ann")

	if _, err := s.CreateUser(ctx, core.User{Name: "Ann2", Email: u.Email, PasswordHash: "h"}); !errors.Is(err, core.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := s.UserByEmail(ctx, u.Email)
	if err != nil || got.ID != u.ID || got.Budget.Cents != 100000 {
		t.Fatalf("lookup by email: %+v err=%v", got, err)
	}

	budget := core.Cents(5000)
	upd, err := s.UpdateUser(ctx, u.ID, nil, &budget)
	if err != nil || upd.Name != "ann" || upd.Budget.Cents != 5000 {
		t.Fatalf("update user: %+v err=%v", upd, err)
	}

	for _, id := range []string{"nope", uuid.NewString()} {
		if _, err := s.UserByID(ctx, id); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("UserByID(%q): expected ErrNotFound, got %v", id, err)
		}
	}
	if _, err := s.UpdateUser(ctx, "nope", nil, &budget); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("UpdateUser(nope): expected ErrNotFound, got %v", err)
	}
}

func TestExpenseQueriesAndOwnership(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a := createTestUser(t, s, "a")
	b := createTestUser(t, s, "b")

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
	second, err := s.ListExpenses(ctx, storage.ExpenseQuery{UserID: a.ID, Limit: 2, Offset: 2})
	if err != nil || len(second) != 1 || second[0].ID != ids[0] {
		t.Fatalf("second page: %+v err=%v", second, err)
	}

	w := core.Window{From: dates[0], To: dates[1]}
	filtered, err := s.ListExpenses(ctx, storage.ExpenseQuery{UserID: a.ID, Window: &w, Category: "Food", Limit: 1, Offset: 1})
	if err != nil || len(filtered) != 1 || filtered[0].ID != ids[0] {
		t.Fatalf("filtered page: %+v err=%v", filtered, err)
	}
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
	for _, id := range []string{"missing", uuid.NewString()} {
		if _, err := s.DeleteExpense(ctx, a.ID, id); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("delete %q: %v", id, err)
		}
		if _, err := s.UpdateExpense(ctx, a.ID, id, core.ExpensePatch{Item: &item}); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("update %q: %v", id, err)
		}
	}
	del, err := s.DeleteExpense(ctx, a.ID, ids[0])
	if err != nil || del.ID != ids[0] {
		t.Fatalf("owner delete: %+v err=%v", del, err)
	}
}
