package dateutil

import (
	"fmt"
	"time"
)

// ISODate is the layout used for every calendar date the system stores.
const ISODate = "2006-01-02"

// FirstOfMonth returns midnight UTC on the first day of the month containing t
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IncrementMonth advances a (year, zero-based month) pair by one month,
// rolling December into January of the next year.
func IncrementMonth(year, monthIndex int) (int, int) {
	if monthIndex >= 11 {
		return year + 1, 0
	}
	return year, monthIndex + 1
}

// MonthIndex returns the zero-based month of t.
func MonthIndex(t time.Time) int {
	return int(t.Month()) - 1
}

// FromMonthIndex builds the first-of-month date for a (year, zero-based month) pair.
func FromMonthIndex(year, monthIndex int) time.Time {
	return time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths adds a specified number of whole months to the first of t's month.
// Anchoring to day one avoids time.AddDate normalizing Jan 31 + 1 month into March.
func AddMonths(date time.Time, months int) time.Time {
	return FirstOfMonth(date).AddDate(0, months, 0)
}

// MonthsBetween counts whole calendar months from the month of `from` to the
// month of `to`. Negative when to precedes from.
func MonthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// MonthRange lists first-of-month dates from start's month through end's month, inclusive.
func MonthRange(start, end time.Time) []time.Time {
	n := MonthsBetween(start, end)
	if n < 0 {
		return nil
	}
	months := make([]time.Time, 0, n+1)
	cur := FirstOfMonth(start)
	for i := 0; i <= n; i++ {
		months = append(months, cur)
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// SameMonth reports whether a and b fall in the same calendar month.
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// FormatISO renders the first-of-month date for t as YYYY-MM-DD.
func FormatISO(t time.Time) string {
	return FirstOfMonth(t).Format(ISODate)
}

// ParseISO parses a YYYY-MM-DD date (or a full RFC 3339 timestamp) and
// returns the first of its month.
func ParseISO(s string) (time.Time, error) {
	if t, err := time.Parse(ISODate, s); err == nil {
		return FirstOfMonth(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return FirstOfMonth(t), nil
}
