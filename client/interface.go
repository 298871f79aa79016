// Package client composes the chat client core into a Session: one user,
// one transcript, one realtime channel and the calendar flows, all driven
// from a single event loop.
package client

import (
	"context"

	"github.com/seatyyy/ExecuMate/plugin/calendar/auth"
	"github.com/seatyyy/ExecuMate/plugin/calendar/calsync"
	"github.com/seatyyy/ExecuMate/plugin/chat/reminder"
	"github.com/seatyyy/ExecuMate/plugin/chat/transcript"
	"github.com/seatyyy/ExecuMate/plugin/realtime"
)

// State is the session lifecycle state.
type State string

const (
	StateCreated  State = "created"
	StateActive   State = "active"
	StateDisposed State = "disposed"
)

// Assistant messages posted by the session itself.
const (
	SendFailedMessage   = "Sorry, I couldn't send your message. Please check your connection and try again."
	LogoutFailedMessage = "Sorry, I couldn't disconnect your Google Calendar. Please try again later."
)

// Renderer is every presentation capability the session drives.
type Renderer interface {
	transcript.Renderer
	auth.Renderer
	calsync.Renderer

	ShowReminder(p *reminder.Prompt)
	RemoveReminder(id string)

	// ClearCalendar empties the calendar panel after logout.
	ClearCalendar()

	// ShowLoginOverlay is called once at startup when login is required.
	ShowLoginOverlay()
}

// Backend is the HTTP side of the ExecuMate server.
type Backend interface {
	auth.Oracle
	calsync.Fetcher
	Logout(ctx context.Context) error
}

// Channel is the outbound half of the realtime connection.
type Channel interface {
	Emit(ctx context.Context, ev realtime.MessageEvent) error
}
