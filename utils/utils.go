package utils

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

// EventDateLayout is the wire format for event dates.
const EventDateLayout = "2006-01-02"

// ParseEventDate parses a wire-format event date and normalizes it to the
// beginning of its day. The slot ledger keys on the normalized value, so two
// requests for the same calendar date always collide regardless of the
// time-of-day component the client sent.
func ParseEventDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(EventDateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event date %q: expected %s", value, EventDateLayout)
	}
	return NormalizeEventDate(parsed), nil
}

// NormalizeEventDate truncates a timestamp to the beginning of its day.
func NormalizeEventDate(t time.Time) time.Time {
	return now.With(t.UTC()).BeginningOfDay()
}

// FormatEventDate renders a normalized event date in wire format.
func FormatEventDate(t time.Time) string {
	return t.Format(EventDateLayout)
}

// MinutesUntil reports the whole minutes remaining until ts, rounded up,
// never negative. Used for "locked for N more minutes" messages.
func MinutesUntil(ts time.Time) int {
	remaining := time.Until(ts)
	if remaining <= 0 {
		return 0
	}
	minutes := int(remaining / time.Minute)
	if remaining%time.Minute > 0 {
		minutes++
	}
	return minutes
}
