// Package sheets mirrors expense change events into a spreadsheet audit log.
package sheets

import (
	"context"
	"time"

	"spendly/internal/amqp"
	"spendly/internal/core"
)

// AuditAppender appends one row per expense event and returns a reference
// to the written range.
type AuditAppender interface {
	AppendEvent(ctx context.Context, ev *amqp.ExpenseEvent) (rowRef string, err error)
}

// Header is the first row of an audit sheet.
var Header = []any{"Timestamp", "Event", "Expense ID", "User ID", "Date", "Item", "Category", "Amount"}

// EventRow renders ev in Header column order. Timestamps are UTC RFC 3339,
// the expense date is a calendar date and the amount has two decimals.
func EventRow(ev *amqp.ExpenseEvent) []any {
	return []any{
		ev.Timestamp.UTC().Format(time.RFC3339),
		string(ev.Type),
		ev.ExpenseID,
		ev.UserID,
		ev.Expense.Date.UTC().Format(time.DateOnly),
		ev.Expense.Item,
		ev.Expense.Category,
		core.Cents(ev.Expense.AmountCents).String(),
	}
}
