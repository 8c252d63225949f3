package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"spendly/internal/amqp"
	"spendly/internal/core"
	"spendly/internal/storage"
)

// ExpenseInput is a new expense as supplied by a client. A nil Date means now.
type ExpenseInput struct {
	Item     string
	Amount   core.Money
	Category string
	Date     *time.Time
}

// ExpenseService performs owner-scoped expense mutations. Each successful
// mutation is announced on the event bus and clears the owner's cached stats.
type ExpenseService struct {
	store     storage.Store
	publisher EventPublisher
	stats     StatsInvalidator
	now       func() time.Time
}

// NewExpenseService wires the service. publisher and stats may be nil.
func NewExpenseService(store storage.Store, publisher EventPublisher, stats StatsInvalidator) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		stats:     stats,
		now:       time.Now,
	}
}

func (s *ExpenseService) Create(ctx context.Context, userID string, in ExpenseInput) (core.Expense, error) {
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, core.ErrUserNotFound
		}
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	e := core.Expense{
		UserID:   userID,
		Item:     cleanItem(in.Item),
		Amount:   in.Amount,
		Category: core.NormalizeCategory(in.Category),
		Date:     s.now(),
	}
	if in.Date != nil {
		e.Date = *in.Date
	}

	e, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"expense_id", e.ID,
		"user_id", userID,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)

	s.afterMutation(ctx, amqp.ExpenseCreated, e)
	return e, nil
}

// Update replaces the supplied fields of an expense the caller owns.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, p core.ExpensePatch) (core.Expense, error) {
	if p.Item != nil {
		item := cleanItem(*p.Item)
		p.Item = &item
	}
	if p.Category != nil {
		category := core.NormalizeCategory(*p.Category)
		p.Category = &category
	}

	e, err := s.store.UpdateExpense(ctx, userID, id, p)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return core.Expense{}, core.ErrExpenseNotFound
	case errors.Is(err, core.ErrForbidden):
		slog.WarnContext(ctx, "Expense update denied", "expense_id", id, "user_id", userID)
		return core.Expense{}, core.ErrNotOwner
	case err != nil:
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated", "expense_id", id, "user_id", userID)
	s.afterMutation(ctx, amqp.ExpenseUpdated, e)
	return e, nil
}

// Delete removes an expense the caller owns.
func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	e, err := s.store.DeleteExpense(ctx, userID, id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return core.ErrExpenseNotFound
	case errors.Is(err, core.ErrForbidden):
		slog.WarnContext(ctx, "Expense delete denied", "expense_id", id, "user_id", userID)
		return core.ErrNotOwnerDelete
	case err != nil:
		return fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id, "user_id", userID)
	s.afterMutation(ctx, amqp.ExpenseDeleted, e)
	return nil
}

func (s *ExpenseService) afterMutation(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.stats != nil {
		s.stats.InvalidateStats(ctx, e.UserID)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping expense event", "event", string(t))
		return
	}
	// The mutation is already committed; a lost event is logged, not returned.
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(t, e)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"event", string(t),
			"expense_id", e.ID,
			"error", err)
	}
}

// cleanItem drops control characters and surrounding whitespace.
func cleanItem(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}
