// Package postgres implements storage.Store on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"spendly/internal/core"
	"spendly/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects to databaseURL, applies migrations and returns a ready store.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = storage.MigratePostgres(db)
	db.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{pool: pool, now: time.Now}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const userColumns = `id::text, name, email, password_hash, budget_cents, created_at`

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, budget_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Budget.Cents, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.User{}, core.ErrEmailTaken
		}
		return core.User{}, storeErr("create user", err)
	}
	slog.InfoContext(ctx, "User saved to Postgres", "user_id", u.ID)
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (core.User, error) {
	if uuid.Validate(id) != nil {
		return core.User{}, core.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "get user")
}

func (s *Store) UserByEmail(ctx context.Context, email string) (core.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row, "get user by email")
}

func (s *Store) UpdateUser(ctx context.Context, id string, name *string, budget *core.Money) (core.User, error) {
	if uuid.Validate(id) != nil {
		return core.User{}, core.ErrNotFound
	}
	var budgetCents *int64
	if budget != nil {
		budgetCents = &budget.Cents
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET name = COALESCE($1, name), budget_cents = COALESCE($2, budget_cents)
		 WHERE id = $3 RETURNING `+userColumns,
		name, budgetCents, id)
	return scanUser(row, "update user")
}

const expenseColumns = `id::text, user_id::text, item, amount_cents, category, spent_at, created_at`

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	e.Date = e.Date.UTC().Truncate(time.Microsecond)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO expenses (id, user_id, item, amount_cents, category, spent_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.UserID, e.Item, e.Amount.Cents, e.Category, e.Date, e.CreatedAt)
	if err != nil {
		return core.Expense{}, storeErr("create expense", err)
	}
	slog.InfoContext(ctx, "Expense saved to Postgres",
		"expense_id", e.ID,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents)
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, q storage.ExpenseQuery) ([]core.Expense, error) {
	query, args := listQuery(q)
	rows, err := s.pool.Query(ctx, query, args...)
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
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&n); err != nil {
		return 0, storeErr("count expenses", err)
	}
	return n, nil
}

func (s *Store) CategoryTotals(ctx context.Context, userID string) ([]core.CategoryTotal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, SUM(amount_cents)::bigint AS total FROM expenses
		 WHERE user_id = $1 GROUP BY category ORDER BY total DESC, category ASC`, userID)
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
	rows, err := s.pool.Query(ctx,
		`SELECT EXTRACT(YEAR FROM spent_at AT TIME ZONE 'UTC')::int AS y,
		        EXTRACT(MONTH FROM spent_at AT TIME ZONE 'UTC')::int AS m,
		        SUM(amount_cents)::bigint
		 FROM expenses
		 WHERE user_id = $1 AND spent_at >= $2
		 GROUP BY y, m ORDER BY y, m`, userID, since)
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
	if uuid.Validate(id) != nil {
		return core.Expense{}, core.ErrNotFound
	}
	var amount *int64
	if p.Amount != nil {
		amount = &p.Amount.Cents
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE expenses SET
		     item = COALESCE($1, item),
		     amount_cents = COALESCE($2, amount_cents),
		     category = COALESCE($3, category),
		     spent_at = COALESCE($4, spent_at)
		 WHERE id = $5 AND user_id = $6
		 RETURNING `+expenseColumns,
		p.Item, amount, p.Category, p.Date, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, s.missingOrForeign(ctx, id)
	}
	if err != nil {
		return core.Expense{}, storeErr("update expense", err)
	}
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	if uuid.Validate(id) != nil {
		return core.Expense{}, core.ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`DELETE FROM expenses WHERE id = $1 AND user_id = $2 RETURNING `+expenseColumns, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, s.missingOrForeign(ctx, id)
	}
	if err != nil {
		return core.Expense{}, storeErr("delete expense", err)
	}
	return e, nil
}

func (s *Store) missingOrForeign(ctx context.Context, id string) error {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT user_id::text FROM expenses WHERE id = $1`, id).Scan(&owner)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return core.ErrNotFound
	case err != nil:
		return storeErr("lookup expense owner", err)
	default:
		return core.ErrForbidden
	}
}

// listQuery builds the ordered, optionally paged SELECT for q.
func listQuery(q storage.ExpenseQuery) (string, []any) {
	where, args := whereClause(q)
	query := `SELECT ` + expenseColumns + ` FROM expenses` + where +
		` ORDER BY spent_at DESC, created_at DESC, id`
	if q.Limit > 0 {
		query += ` LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
		args = append(args, q.Limit, max(q.Offset, 0))
	}
	return query, args
}

func whereClause(q storage.ExpenseQuery) (string, []any) {
	args := []any{q.UserID}
	conds := []string{"user_id = $1"}
	if q.Window != nil {
		args = append(args, q.Window.From, q.Window.To)
		conds = append(conds, "spent_at >= "+placeholder(len(args)-1), "spent_at <= "+placeholder(len(args)))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		conds = append(conds, "category = "+placeholder(len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanUser(row pgx.Row, op string) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Budget.Cents, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, storeErr(op, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var e core.Expense
	if err := row.Scan(&e.ID, &e.UserID, &e.Item, &e.Amount.Cents, &e.Category, &e.Date, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}
