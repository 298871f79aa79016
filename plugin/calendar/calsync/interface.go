// Package calsync keeps the calendar panel in step with the backend:
// fetch on demand or on a timer, for the selected range, while the
// session is authorized.
package calsync

import (
	"context"

	"github.com/seatyyy/ExecuMate/plugin/calendar"
)

// KindRefresh is the timer kind of the periodic refresh.
const KindRefresh = "calendar_refresh"

// FetchFailedMessage is shown when a fetch fails without a backend message.
const FetchFailedMessage = "Failed to load calendar events. Please try again later."

// Fetcher loads calendar events for a range.
type Fetcher interface {
	CalendarEvents(ctx context.Context, r calendar.Range) (*calendar.Payload, error)
}

// Gate reports whether calendar access is authorized.
type Gate interface {
	Authorized() bool
}

// Section is one date header followed by its events.
type Section struct {
	Header string
	Events []calendar.Event
}

// View is what the renderer draws for a successful fetch.
type View struct {
	Range    calendar.Range
	Date     string
	Sections []Section
}

// Renderer draws the calendar panel.
type Renderer interface {
	ShowCalendar(v View)
	ShowCalendarEmpty(date string)
	ShowCalendarError(message string)
}
