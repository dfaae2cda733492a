package domain

import (
	"fmt"
	"time"
)

// Date is a calendar date in "YYYY-MM-DD" form. The Leitner schedule works
// in whole days, not instants: a card is due on a date, regardless of the
// time of day it was promoted. ISO dates compare correctly as strings.
type Date string

const dateLayout = "2006-01-02"

// DateOf truncates a time to its calendar date in the local zone.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Today returns the current calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate validates a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// AddDays returns the date n days after d. Negative n moves backwards.
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return d
	}
	return DateOf(t.AddDate(0, 0, n))
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return string(d) > string(other)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return string(d) < string(other)
}

// OnOrBefore reports whether d is other or earlier.
func (d Date) OnOrBefore(other Date) bool {
	return string(d) <= string(other)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == ""
}

func (d Date) String() string {
	return string(d)
}
