package shared

import (
	"fmt"
	"time"
)

// MonthRange returns the closed-open window [first-of-month, first-of-next-month) in UTC.
func MonthRange(year, month int) (time.Time, time.Time, error) {
	if year < 1 || year > 9999 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: year %d out of range", ErrInvalidArgument, year)
	}
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: month %d out of range", ErrInvalidArgument, month)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0), nil
}

// ParsePeriod reads a "YYYY-MM" label.
func ParsePeriod(label string) (int, int, error) {
	t, err := time.Parse("2006-01", label)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: period %q must be YYYY-MM", ErrInvalidArgument, label)
	}
	return t.Year(), int(t.Month()), nil
}

// CalendarDate truncates t to midnight UTC of its calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a "YYYY-MM-DD" calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidArgument, value)
	}
	return t, nil
}
