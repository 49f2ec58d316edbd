package domain

import "time"

// DateLayout is the wire format for civil dates
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date in t's location, expressed as midnight UTC.
// All dates in the domain use this representation so they compare with ==, Before and After.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a domain date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DaysBetween returns the whole days from a to b (negative when b precedes a)
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
