// Package reminder turns inbound calendar reminders into single-use
// accept/decline prompts.
package reminder

import (
	"time"

	"github.com/seatyyy/ExecuMate/plugin/calendar"
)

// Status is the lifecycle state of a prompt.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Prompt is one reminder affordance shown in the transcript.
type Prompt struct {
	ID        string
	Text      string
	Event     calendar.EventPayload
	CreatedAt time.Time

	status  Status
	handler *Handler
}

// Status returns the prompt state.
func (p *Prompt) Status() Status {
	return p.status
}

// Accept accepts the prompt. See Handler.Accept.
func (p *Prompt) Accept() error {
	return p.handler.Accept(p.ID)
}

// Decline declines the prompt. See Handler.Decline.
func (p *Prompt) Decline() error {
	return p.handler.Decline(p.ID)
}

// Renderer draws and detaches reminder affordances.
type Renderer interface {
	ShowReminder(p *Prompt)
	RemoveReminder(id string)
	ScrollToBottom()
}

// SendFunc routes text through the session send path. It reports whether
// the message was sent.
type SendFunc func(text string) bool
