package service

import (
	"strings"
	"time"
)

// Accepted date layouts, tried in order. Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a calendar date or date-time.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// ResolveDate validates an optional moment date against now.
// It returns ok=false when raw is empty. A date strictly after now is
// ErrFutureDate; equal to now is accepted.
func ResolveDate(raw string, now time.Time) (t time.Time, ok bool, err error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, false, nil
	}

	t, err = ParseDate(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	if t.After(now) {
		return time.Time{}, false, ErrFutureDate
	}
	return t, true, nil
}
