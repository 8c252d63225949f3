// Package sqlite implements storage.Store on a local SQLite file using the
// cgo-free modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"spendly/internal/core"
	"spendly/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database directory if needed, applies migrations and
// returns a ready store.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := storage.MigrateSQLite(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const userColumns = `id, name, email, password_hash, budget_cents, created_at`

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Budget.Cents, u.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, core.ErrEmailTaken
		}
		return core.User{}, storeErr("create user", err)
	}
	slog.InfoContext(ctx, "User saved to SQLite", "user_id", u.ID)
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row, "get user")
}

func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row, "get user by email")
}

func (s *Store) UpdateUser(ctx context.Context, id string, name *string, budget *core.Money) (core.User, error) {
	var budgetCents any
	if budget != nil {
		budgetCents = budget.Cents
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE users SET name = COALESCE(?, name), budget_cents = COALESCE(?, budget_cents)
		 WHERE id = ? RETURNING `+userColumns,
		nullable(name), budgetCents, id)
	return scanUser(row, "update user")
}

const expenseColumns = `id, user_id, item, amount_cents, category, spent_at, created_at`

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	e.Date = e.Date.UTC().Truncate(time.Millisecond)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Item, e.Amount.Cents, e.Category, e.Date.UnixMilli(), e.CreatedAt.UnixMilli())
	if err != nil {
		return core.Expense{}, storeErr("create expense", err)
	}
	slog.InfoContext(ctx, "Expense saved to SQLite",
		"expense_id", e.ID,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents)
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, q storage.ExpenseQuery) ([]core.Expense, error) {
	where, args := whereClause(q)
	query := `SELECT ` + expenseColumns + ` FROM expenses` + where +
		` ORDER BY spent_at DESC, created_at DESC, id`
	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list expenses", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, storeErr("scan expense", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list expenses", err)
	}
	return out, nil
}

func (s *Store) CountExpenses(ctx context.Context, q storage.ExpenseQuery) (int, error) {
	where, args := whereClause(q)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&n); err != nil {
		return 0, storeErr("count expenses", err)
	}
	return n, nil
}

func (s *Store) CategoryTotals(ctx context.Context, userID string) ([]core.CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) AS total FROM expenses
		 WHERE user_id = ? GROUP BY category ORDER BY total DESC, category ASC`, userID)
	if err != nil {
		return nil, storeErr("category totals", err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Cents); err != nil {
			return nil, storeErr("scan category total", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("category totals", err)
	}
	return out, nil
}

func (s *Store) MonthlyTotals(ctx context.Context, userID string, since time.Time) ([]core.MonthTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT CAST(strftime('%Y', spent_at / 1000, 'unixepoch') AS INTEGER) AS y,
		        CAST(strftime('%m', spent_at / 1000, 'unixepoch') AS INTEGER) AS m,
		        SUM(amount_cents)
		 FROM expenses
		 WHERE user_id = ? AND spent_at >= ?
		 GROUP BY y, m ORDER BY y, m`, userID, since.UnixMilli())
	if err != nil {
		return nil, storeErr("monthly totals", err)
	}
	defer rows.Close()

	out := []core.MonthTotal{}
	for rows.Next() {
		var mt core.MonthTotal
		if err := rows.Scan(&mt.Year, &mt.Month, &mt.Total.Cents); err != nil {
			return nil, storeErr("scan month total", err)
		}
		out = append(out, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("monthly totals", err)
	}
	return out, nil
}

func (s *Store) UpdateExpense(ctx context.Context, userID, id string, p core.ExpensePatch) (core.Expense, error) {
	var amount, spentAt any
	if p.Amount != nil {
		amount = p.Amount.Cents
	}
	if p.Date != nil {
		spentAt = p.Date.UnixMilli()
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE expenses SET
		     item = COALESCE(?, item),
		     amount_cents = COALESCE(?, amount_cents),
		     category = COALESCE(?, category),
		     spent_at = COALESCE(?, spent_at)
		 WHERE id = ? AND user_id = ?
		 RETURNING `+expenseColumns,
		nullable(p.Item), amount, nullable(p.Category), spentAt, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, s.missingOrForeign(ctx, id)
	}
	if err != nil {
		return core.Expense{}, storeErr("update expense", err)
	}
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ? RETURNING `+expenseColumns, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, s.missingOrForeign(ctx, id)
	}
	if err != nil {
		return core.Expense{}, storeErr("delete expense", err)
	}
	return e, nil
}

// missingOrForeign explains why an owner-scoped statement matched no row.
func (s *Store) missingOrForeign(ctx context.Context, id string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM expenses WHERE id = ?`, id).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	case err != nil:
		return storeErr("lookup expense owner", err)
	default:
		return core.ErrForbidden
	}
}

func whereClause(q storage.ExpenseQuery) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{q.UserID}
	if q.Window != nil {
		conds = append(conds, "spent_at >= ?", "spent_at <= ?")
		args = append(args, q.Window.From.UnixMilli(), q.Window.To.UnixMilli())
	}
	if q.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, q.Category)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// nullable maps a nil pointer to SQL NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, op string) (core.User, error) {
	var (
		u         core.User
		createdAt int64
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Budget.Cents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, storeErr(op, err)
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return u, nil
}

func scanExpense(row scanner) (core.Expense, error) {
	var (
		e                  core.Expense
		spentAt, createdAt int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Item, &e.Amount.Cents, &e.Category, &spentAt, &createdAt); err != nil {
		return core.Expense{}, err
	}
	e.Date = time.UnixMilli(spentAt).UTC()
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	return e, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}
