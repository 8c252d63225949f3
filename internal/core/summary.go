package core

import (
	"math"
	"time"
)

const (
	UnderBudget = "under-budget"
	OverBudget  = "over-budget"
)

// TrendMonths is the length of the monthly trend window, current month included.
const TrendMonths = 6

// CategoryTotal is the sum of amounts for one category label.
type CategoryTotal struct {
	Category string
	Total    Money
}

// MonthTotal is the sum of amounts for one calendar month.
type MonthTotal struct {
	Year  int
	Month int // 1-12
	Total Money
}

// Label returns the short English month name, e.g. "Mar".
func (m MonthTotal) Label() string {
	return time.Month(m.Month).String()[:3]
}

// Stats bundles the monthly trend and the category distribution of a user.
type Stats struct {
	MonthlyTrend         []MonthTotal
	CategoryDistribution []CategoryTotal
}

// Budget is the comparison of a budget against a spent total.
type Budget struct {
	Budget    Money
	Total     Money
	Remaining Money
	State     string
}

// BudgetStatus compares a budget with the total spent for the active filter.
func BudgetStatus(budget, total Money) Budget {
	remaining := budget.Sub(total)
	state := UnderBudget
	if remaining.IsNegative() {
		state = OverBudget
	}
	return Budget{Budget: budget, Total: total, Remaining: remaining, State: state}
}

// Page describes a slice of a larger ordered result.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows skipped before this page, saturating at
// math.MaxInt for pages that cannot exist.
func (p Page) Offset() int {
	if p.Size > 0 && p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// TotalPages returns ceil(total/size).
func (p Page) TotalPages(total int) int {
	if p.Size <= 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}
