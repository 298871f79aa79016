// Package calendar holds the calendar data model shared by the
// authorization and sync controllers.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/seatyyy/ExecuMate/internal/timezone"
)

// Range selects which slice of the calendar is fetched.
type Range string

const (
	RangeToday    Range = "today"
	RangeWeek     Range = "week"
	RangeUpcoming Range = "upcoming"
)

// ParseRange parses a range name. The empty string is today.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeToday, nil
	case RangeToday, RangeWeek, RangeUpcoming:
		return r, nil
	default:
		return "", fmt.Errorf("unknown calendar range %q", s)
	}
}

// Grouped reports whether the range renders one section per date.
func (r Range) Grouped() bool {
	return r != RangeToday
}

func (r Range) String() string {
	return string(r)
}

// Event is the read-only projection of one backend calendar event.
type Event struct {
	Summary   string `json:"summary"`
	Location  string `json:"location,omitempty"`
	StartTime string `json:"startTime"`
	TimeRange string `json:"timeRange"`
}

// DateGroup is the events of one date, in backend order.
type DateGroup struct {
	Date   string  `json:"date"`
	Events []Event `json:"events"`
}

// Payload is the body of GET /api/calendar/events.
type Payload struct {
	Date         string      `json:"date"`
	Events       []Event     `json:"events"`
	EventsByDate []DateGroup `json:"eventsByDate,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Snapshot is the calendar state held between fetches. It is replaced
// wholesale on every successful fetch.
type Snapshot struct {
	Range     Range
	Date      string
	Events    []Event
	Groups    []DateGroup
	FetchedAt time.Time
}

// Empty reports whether the snapshot has no events.
func (s *Snapshot) Empty() bool {
	if s == nil {
		return true
	}
	if len(s.Events) > 0 {
		return false
	}
	for _, g := range s.Groups {
		if len(g.Events) > 0 {
			return false
		}
	}
	return true
}

// NewSnapshot builds a snapshot from a payload. Grouped ranges use the
// payload's eventsByDate when present and group client side otherwise.
func NewSnapshot(r Range, p *Payload, loc *time.Location, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		Range:     r,
		Date:      p.Date,
		Events:    p.Events,
		FetchedAt: fetchedAt,
	}
	if !r.Grouped() {
		return s
	}
	if len(p.EventsByDate) > 0 {
		s.Groups = p.EventsByDate
		if len(s.Events) == 0 {
			for _, g := range p.EventsByDate {
				s.Events = append(s.Events, g.Events...)
			}
		}
		return s
	}
	s.Groups = GroupByDate(p.Events, loc)
	return s
}

// otherDate labels events whose start time cannot be parsed.
const otherDate = "Other"

// GroupByDate groups events by the local date of their start time.
// Groups appear in order of first occurrence; events keep their order.
func GroupByDate(events []Event, loc *time.Location) []DateGroup {
	var groups []DateGroup
	index := make(map[string]int)

	for _, ev := range events {
		key := otherDate
		if t, err := parseStart(ev.StartTime, loc); err == nil {
			key = timezone.DateHeader(t, loc)
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Date: key})
		}
		groups[i].Events = append(groups[i].Events, ev)
	}
	return groups
}

func parseStart(s string, loc *time.Location) (time.Time, error) {
	if t, _, err := timezone.ParseEventStart(s, "", loc); err == nil {
		return t, nil
	}
	t, _, err := timezone.ParseEventStart("", s, loc)
	return t, err
}

// EventTime is a provider event boundary: a dateTime, or a date for
// all-day events.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// EventPayload is the provider event attached to a reminder.
type EventPayload struct {
	ID       string    `json:"id,omitempty"`
	Summary  string    `json:"summary"`
	Location string    `json:"location,omitempty"`
	Start    EventTime `json:"start"`
}

// StartTime parses the event start.
func (e EventPayload) StartTime(loc *time.Location) (time.Time, bool, error) {
	return timezone.ParseEventStart(e.Start.DateTime, e.Start.Date, loc)
}
