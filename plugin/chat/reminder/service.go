package reminder

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/internal/timezone"
	"github.com/seatyyy/ExecuMate/plugin/calendar"
)

var (
	// ErrPromptClosed is returned when a prompt was already accepted or declined.
	ErrPromptClosed = clienterrors.Closed("reminder already handled")
	// ErrPromptNotFound is returned for ids the handler never presented.
	ErrPromptNotFound = clienterrors.InvalidArgument("unknown reminder")
)

// Options configures a Handler.
type Options struct {
	Location   *time.Location
	TimeLayout string
	Now        func() time.Time
	Logger     *slog.Logger
}

// Handler owns the reminder prompts of one session. It is not safe for
// concurrent use; callers run it on the session event loop.
type Handler struct {
	renderer Renderer
	send     SendFunc
	loc      *time.Location
	layout   string
	now      func() time.Time
	logger   *slog.Logger

	prompts map[string]*Prompt
}

// NewHandler creates a handler drawing through renderer and sending
// accepted reminders through send.
func NewHandler(renderer Renderer, send SendFunc, opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = timezone.ClockLayout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		renderer: renderer,
		send:     send,
		loc:      opts.Location,
		layout:   opts.TimeLayout,
		now:      opts.Now,
		logger:   opts.Logger,
		prompts:  make(map[string]*Prompt),
	}
}

// Present shows a new prompt for text and ev.
func (h *Handler) Present(text string, ev calendar.EventPayload) *Prompt {
	p := &Prompt{
		ID:        uuid.New().String(),
		Text:      text,
		Event:     ev,
		CreatedAt: h.now(),
		status:    StatusPending,
		handler:   h,
	}
	h.prompts[p.ID] = p

	h.renderer.ShowReminder(p)
	h.renderer.ScrollToBottom()

	h.logger.Info("reminder presented",
		slog.String("reminder_id", p.ID),
		slog.String("event", ev.Summary))
	return p
}

// Accept detaches the prompt and sends the food order request for its event.
func (h *Handler) Accept(id string) error {
	p, err := h.close(id, StatusAccepted)
	if err != nil {
		return err
	}

	text := OrderMessage(p.Event, h.loc, h.layout)
	if !h.send(text) {
		h.logger.Warn("reminder order message not sent", slog.String("reminder_id", id))
	}
	return nil
}

// Decline detaches the prompt.
func (h *Handler) Decline(id string) error {
	_, err := h.close(id, StatusDeclined)
	return err
}

// Get returns a presented prompt.
func (h *Handler) Get(id string) (*Prompt, bool) {
	p, ok := h.prompts[id]
	return p, ok
}

// Pending returns the number of prompts still awaiting an action.
func (h *Handler) Pending() int {
	n := 0
	for _, p := range h.prompts {
		if p.status == StatusPending {
			n++
		}
	}
	return n
}

func (h *Handler) close(id string, to Status) (*Prompt, error) {
	p, ok := h.prompts[id]
	if !ok {
		return nil, ErrPromptNotFound
	}
	if p.status != StatusPending {
		return nil, ErrPromptClosed
	}
	p.status = to
	h.renderer.RemoveReminder(id)

	h.logger.Debug("reminder closed",
		slog.String("reminder_id", id),
		slog.String("status", string(to)))
	return p, nil
}

// OrderMessage builds the chat message sent when a reminder is accepted.
// Events whose start cannot be parsed are referenced without a time.
func OrderMessage(ev calendar.EventPayload, loc *time.Location, layout string) string {
	start, _, err := ev.StartTime(loc)
	if err != nil {
		return fmt.Sprintf("I want to order food before my %s", ev.Summary)
	}
	return fmt.Sprintf("I want to order food before my %s at %s",
		ev.Summary, timezone.FormatClock(start, loc, layout))
}
