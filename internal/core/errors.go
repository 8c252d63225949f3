package core

import "errors"

// Error kinds. Every error returned by services wraps exactly one of these so
// transports can map it with errors.Is.
var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrStoreUnavailable = errors.New("store unavailable")
)

var (
	ErrAuthRequired    = NewUserError(ErrUnauthenticated, "Authentication required")
	ErrEmptyName       = NewUserError(ErrValidation, "Name is required")
	ErrEmptyEmail      = NewUserError(ErrValidation, "Email is required")
	ErrEmptyPassword   = NewUserError(ErrValidation, "Password is required")
	ErrNegativeBudget  = NewUserError(ErrValidation, "Budget cannot be negative")
	ErrInvalidAmount   = NewUserError(ErrValidation, "Invalid amount")
	ErrAmountRange     = NewUserError(ErrValidation, "Amount out of range")
	ErrEmailTaken      = NewUserError(ErrValidation, "User already exists with this email")
	ErrBadCredentials  = NewUserError(ErrValidation, "Invalid credentials")
	ErrUserNotFound    = NewUserError(ErrNotFound, "User not found")
	ErrExpenseNotFound = NewUserError(ErrNotFound, "Expense not found")
	ErrNotOwner        = NewUserError(ErrForbidden, "Not authorized to modify this expense")
	ErrNotOwnerDelete  = NewUserError(ErrForbidden, "Not authorized to delete this expense")
)

// UserError pairs a client-facing message with an error kind.
type UserError struct {
	Kind error
	Msg  string
}

func (e *UserError) Error() string { return e.Msg }

func (e *UserError) Unwrap() error { return e.Kind }

// NewUserError builds an error of the given kind whose client message is msg.
func NewUserError(kind error, msg string) error {
	return &UserError{Kind: kind, Msg: msg}
}

// Message returns the text meant for API clients. Errors without a
// UserError in their chain yield the kind's own text.
func Message(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Msg
	}
	for _, kind := range []error{ErrUnauthenticated, ErrValidation, ErrNotFound, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "Internal server error"
}
