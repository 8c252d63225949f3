package core

import (
	"strings"
	"time"
)

// Period is a named date window anchored to the current moment.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// IsValid reports whether p is one of the named periods.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	default:
		return false
	}
}

// Filter selects a caller's expenses. Period takes precedence over the
// explicit range; the range applies only when both bounds are present.
type Filter struct {
	Period    Period
	StartDate *time.Time
	EndDate   *time.Time
	Category  string
}

// Window is an inclusive date range.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// CategoryFilter returns the category to restrict to, or "" for none.
func (f Filter) CategoryFilter() string {
	c := strings.TrimSpace(f.Category)
	if c == "" || c == AllCategories {
		return ""
	}
	return c
}

// ResolveWindow turns the filter's date selection into a concrete window
// relative to now, using now's location for midnights. ok is false when no
// date restriction applies.
func ResolveWindow(now time.Time, f Filter) (w Window, ok bool) {
	if f.Period.IsValid() {
		return Window{From: PeriodStart(now, f.Period), To: now}, true
	}
	if f.StartDate != nil && f.EndDate != nil {
		return Window{From: *f.StartDate, To: *f.EndDate}, true
	}
	return Window{}, false
}

// PeriodStart returns the first instant of the period containing now:
// local midnight today, the most recent Sunday, the 1st of the month or
// January 1st.
func PeriodStart(now time.Time, p Period) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	switch p {
	case PeriodDay:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case PeriodWeek:
		return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
	case PeriodMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case PeriodYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return now
	}
}

// TrendStart returns the first instant of the calendar month that begins a
// window of n months ending with the month of now.
func TrendStart(now time.Time, months int) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m-time.Month(months-1), 1, 0, 0, 0, 0, now.Location())
}

// ParseDateBound parses a filter bound given as YYYY-MM-DD or RFC 3339.
// Date-only end bounds extend to the last instant of that day so the range
// covers the whole calendar date.
func ParseDateBound(s string, end bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

// ParseExpenseDate parses an expense date given as YYYY-MM-DD or RFC 3339.
func ParseExpenseDate(s string) (time.Time, bool) {
	return ParseDateBound(s, false)
}
