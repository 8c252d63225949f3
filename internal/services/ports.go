// Package services holds the use cases behind the HTTP API: accounts,
// expense mutations and reporting.
package services

import (
	"context"

	"spendly/internal/amqp"
)

// EventPublisher delivers expense change events. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// StatsInvalidator drops cached stats after a user's expenses change.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context, userID string)
}

// TokenIssuer mints bearer tokens. *auth.Issuer satisfies it.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

var _ EventPublisher = (*amqp.Client)(nil)
