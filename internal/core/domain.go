package core

import (
	"strings"
	"time"
)

// DefaultCategory is assigned when an expense is recorded without one.
const DefaultCategory = "Miscellaneous"

// AllCategories is the category filter value that disables category filtering.
const AllCategories = "all"

// SuggestedCategories is the label set offered to clients. It is not enforced.
var SuggestedCategories = []string{
	"Miscellaneous",
	"Food",
	"Transport",
	"Entertainment",
	"Shopping",
	"Bills",
	"Health",
	"Education",
}

type (
	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
		Budget       Money // Monthly budget, never negative
		CreatedAt    time.Time
	}

	Expense struct {
		ID        string
		UserID    string
		Item      string
		Amount    Money // Signed; sign is not validated
		Category  string
		Date      time.Time
		CreatedAt time.Time
	}

	// ExpensePatch carries the fields supplied to an update. Nil fields are left unchanged.
	ExpensePatch struct {
		Item     *string
		Amount   *Money
		Category *string
		Date     *time.Time
	}
)

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Item == nil && p.Amount == nil && p.Category == nil && p.Date == nil
}

// Apply returns e with the supplied patch fields replaced.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Item != nil {
		e.Item = *p.Item
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

// NormalizeCategory trims the label and falls back to DefaultCategory.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultCategory
	}
	return c
}

// Validate checks the user invariants enforced at the service boundary.
func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(u.Email) == "" {
		return ErrEmptyEmail
	}
	if u.Budget.IsNegative() {
		return ErrNegativeBudget
	}
	return nil
}
