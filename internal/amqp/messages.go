package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spendly/internal/core"
)

// EventType names the mutation an ExpenseEvent reports.
type EventType string

const (
	ExpenseCreated EventType = "created"
	ExpenseUpdated EventType = "updated"
	ExpenseDeleted EventType = "deleted"
)

func (t EventType) valid() bool {
	return t == ExpenseCreated || t == ExpenseUpdated || t == ExpenseDeleted
}

// ExpenseSnapshot is the expense state after the mutation (before it, for deletes).
type ExpenseSnapshot struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Item        string    `json:"item"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExpenseEvent is published after every successful expense mutation.
type ExpenseEvent struct {
	Type      EventType       `json:"type"`
	ExpenseID string          `json:"expense_id"`
	UserID    string          `json:"user_id"`
	Expense   ExpenseSnapshot `json:"expense"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewExpenseEvent(t EventType, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      t,
		ExpenseID: e.ID,
		UserID:    e.UserID,
		Expense: ExpenseSnapshot{
			ID:          e.ID,
			UserID:      e.UserID,
			Item:        e.Item,
			AmountCents: e.Amount.Cents,
			Category:    e.Category,
			Date:        e.Date,
			CreatedAt:   e.CreatedAt,
		},
		Timestamp: time.Now(),
	}
}

// ToExpense rebuilds the domain expense carried by the event.
func (m *ExpenseEvent) ToExpense() core.Expense {
	return core.Expense{
		ID:        m.Expense.ID,
		UserID:    m.Expense.UserID,
		Item:      m.Expense.Item,
		Amount:    core.Cents(m.Expense.AmountCents),
		Category:  m.Expense.Category,
		Date:      m.Expense.Date,
		CreatedAt: m.Expense.CreatedAt,
	}
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and validates an event body.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ExpenseID == "" {
		return nil, errors.New("missing expense_id")
	}
	return &msg, nil
}
