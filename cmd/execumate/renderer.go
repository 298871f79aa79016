package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/seatyyy/ExecuMate/client"
	"github.com/seatyyy/ExecuMate/plugin/calendar/auth"
	"github.com/seatyyy/ExecuMate/plugin/calendar/calsync"
	"github.com/seatyyy/ExecuMate/plugin/chat/reminder"
	"github.com/seatyyy/ExecuMate/plugin/chat/transcript"
)

var (
	userStyle      = color.New(color.FgCyan, color.Bold)
	assistantStyle = color.New(color.FgGreen, color.Bold)
	faintStyle     = color.New(color.Faint, color.Italic)
	headerStyle    = color.New(color.Bold, color.Underline)
	reminderStyle  = color.New(color.FgHiYellow, color.Bold)
	errorStyle     = color.New(color.FgRed)
)

// terminalRenderer draws the session on a terminal.
type terminalRenderer struct {
	w io.Writer

	mu        sync.Mutex
	typing    bool
	reminders []string // reminder ids by display number - 1
}

func newTerminalRenderer(w io.Writer) *terminalRenderer {
	return &terminalRenderer{w: w}
}

func (r *terminalRenderer) AppendMessage(msg transcript.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	style, who := assistantStyle, "ExecuMate"
	if msg.Sender == transcript.SenderUser {
		style, who = userStyle, "You"
	}
	_, _ = style.Fprintf(r.w, "%s: ", who)
	_, _ = fmt.Fprintln(r.w, msg.Content)
}

func (r *terminalRenderer) ShowTyping() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.typing {
		r.typing = true
		_, _ = faintStyle.Fprintln(r.w, "ExecuMate is typing...")
	}
}

func (r *terminalRenderer) ClearTyping() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = false
}

// ScrollToBottom is a no-op; terminal output always ends at the bottom.
func (r *terminalRenderer) ScrollToBottom() {}

func (r *terminalRenderer) SetConnectAffordance(a auth.Affordance) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch a {
	case auth.AffordanceConnecting:
		_, _ = faintStyle.Fprintln(r.w, "[calendar] connecting...")
	case auth.AffordanceConnected:
		_, _ = assistantStyle.Fprintln(r.w, "[calendar] connected")
	default:
		_, _ = faintStyle.Fprintln(r.w, "[calendar] not connected, type /connect to retry")
	}
}

func (r *terminalRenderer) ShowCalendar(v calsync.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range v.Sections {
		_, _ = headerStyle.Fprintln(r.w, s.Header)

		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.MaxColWidth = 40
		for _, ev := range s.Events {
			tbl.AddRow(ev.TimeRange, ev.Summary, ev.Location)
		}
		_, _ = fmt.Fprintln(r.w, tbl)
		_, _ = fmt.Fprintln(r.w)
	}
}

func (r *terminalRenderer) ShowCalendarEmpty(date string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = faintStyle.Fprintf(r.w, "No events for %s\n", date)
}

func (r *terminalRenderer) ShowCalendarError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = errorStyle.Fprintf(r.w, "[calendar] %s\n", message)
}

func (r *terminalRenderer) ClearCalendar() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = faintStyle.Fprintln(r.w, "[calendar] disconnected")
}

func (r *terminalRenderer) ShowLoginOverlay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = reminderStyle.Fprintln(r.w, "Please sign in to continue. Type /connect to link your Google Calendar.")
}

func (r *terminalRenderer) ShowReminder(p *reminder.Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reminders = append(r.reminders, p.ID)
	n := len(r.reminders)
	_, _ = reminderStyle.Fprintf(r.w, "Reminder #%d: ", n)
	_, _ = fmt.Fprintln(r.w, p.Text)
	_, _ = faintStyle.Fprintf(r.w, "  /accept %d or /decline %d\n", n, n)
}

func (r *terminalRenderer) RemoveReminder(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rid := range r.reminders {
		if rid == id {
			_, _ = faintStyle.Fprintf(r.w, "Reminder #%d closed\n", i+1)
			return
		}
	}
}

// reminderID resolves a display number or raw id typed by the user.
func (r *terminalRenderer) reminderID(ref string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(r.reminders) {
			return "", false
		}
		return r.reminders[n-1], true
	}
	for _, id := range r.reminders {
		if id == ref {
			return id, true
		}
	}
	return "", false
}

// printURL shows the authorization link when no browser could be started.
func (r *terminalRenderer) printURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = faintStyle.Fprintf(r.w, "Open this link to authorize: %s\n", url)
}

var _ client.Renderer = (*terminalRenderer)(nil)
