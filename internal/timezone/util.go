// Package timezone provides time parsing and display helpers for the client.
//
// Event payloads carry either an RFC 3339 dateTime or an all-day date; all
// display formatting happens in the user's location.
package timezone

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ClockLayout is the default hour:minute layout (12-hour, zero padded).
	ClockLayout = "03:04 PM"

	// DateHeaderLayout is the layout used for calendar date headers.
	DateHeaderLayout = "Monday, January 2"

	// dateOnlyLayout is the layout of all-day event dates.
	dateOnlyLayout = "2006-01-02"
)

// ParseTimezone parses an IANA timezone identifier (e.g., "Europe/Paris").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	if tz == "" || tz == "UTC" {
		return true
	}

	_, err := time.LoadLocation(tz)
	return err == nil
}

// FormatClock formats t as hour:minute in loc using layout.
// An empty layout falls back to ClockLayout.
func FormatClock(t time.Time, loc *time.Location, layout string) string {
	if loc == nil {
		loc = time.Local
	}
	if layout == "" {
		layout = ClockLayout
	}
	return t.In(loc).Format(layout)
}

// DateHeader formats the calendar date header for t in loc.
func DateHeader(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateHeaderLayout)
}

// ParseEventStart parses an event start given as an RFC 3339 dateTime or,
// for all-day events, a plain date. allDay reports which form was used.
func ParseEventStart(dateTime, date string, loc *time.Location) (t time.Time, allDay bool, err error) {
	if loc == nil {
		loc = time.Local
	}
	if s := strings.TrimSpace(dateTime); s != "" {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse event dateTime %q: %w", s, err)
		}
		return t, false, nil
	}
	if s := strings.TrimSpace(date); s != "" {
		t, err = time.ParseInLocation(dateOnlyLayout, s, loc)
		if err != nil {
			return time.Time{}, true, fmt.Errorf("parse event date %q: %w", s, err)
		}
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("event has no start time")
}

// StartOfDay returns the start of the day (00:00:00) in the given timezone.
func StartOfDay(t time.Time, tz *time.Location) time.Time {
	if tz == nil {
		tz = time.UTC
	}
	local := t.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
}
