package client

import (
	"context"
	"sync"

	"github.com/seatyyy/ExecuMate/plugin/calendar/auth"
	"github.com/seatyyy/ExecuMate/plugin/calendar/calsync"
	"github.com/seatyyy/ExecuMate/plugin/chat/reminder"
	"github.com/seatyyy/ExecuMate/plugin/chat/transcript"
	"github.com/seatyyy/ExecuMate/plugin/realtime"
)

// RecordingRenderer records every renderer call of a session.
type RecordingRenderer struct {
	*transcript.RecordingRenderer
	Auth      *auth.RecordingRenderer
	Calendar  *calsync.RecordingRenderer
	Reminders *reminder.RecordingRenderer

	mu             sync.Mutex
	CalendarClears int
	LoginOverlays  int
}

// NewRecordingRenderer creates an empty recorder.
func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{
		RecordingRenderer: transcript.NewRecordingRenderer(),
		Auth:              &auth.RecordingRenderer{},
		Calendar:          &calsync.RecordingRenderer{},
		Reminders:         &reminder.RecordingRenderer{},
	}
}

func (r *RecordingRenderer) SetConnectAffordance(a auth.Affordance) {
	r.Auth.SetConnectAffordance(a)
}

func (r *RecordingRenderer) ShowCalendar(v calsync.View) {
	r.Calendar.ShowCalendar(v)
}

func (r *RecordingRenderer) ShowCalendarEmpty(date string) {
	r.Calendar.ShowCalendarEmpty(date)
}

func (r *RecordingRenderer) ShowCalendarError(message string) {
	r.Calendar.ShowCalendarError(message)
}

func (r *RecordingRenderer) ShowReminder(p *reminder.Prompt) {
	r.Reminders.ShowReminder(p)
}

func (r *RecordingRenderer) RemoveReminder(id string) {
	r.Reminders.RemoveReminder(id)
}

func (r *RecordingRenderer) ClearCalendar() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CalendarClears++
}

func (r *RecordingRenderer) ShowLoginOverlay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LoginOverlays++
}

// MockChannel records emitted messages.
type MockChannel struct {
	mu      sync.Mutex
	Emitted []realtime.MessageEvent
	Err     error
}

func (c *MockChannel) Emit(ctx context.Context, ev realtime.MessageEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Emitted = append(c.Emitted, ev)
	return nil
}

// Messages returns a copy of the emitted messages.
func (c *MockChannel) Messages() []realtime.MessageEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.MessageEvent, len(c.Emitted))
	copy(out, c.Emitted)
	return out
}

// SetErr makes later emits fail with err.
func (c *MockChannel) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

// MockBackend combines the auth and calendar mocks with a logout endpoint.
type MockBackend struct {
	*auth.MockBackend
	*calsync.MockFetcher

	mu        sync.Mutex
	LogoutErr error
	Logouts   int
}

func (b *MockBackend) Logout(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Logouts++
	if b.LogoutErr != nil {
		return b.LogoutErr
	}
	b.MockBackend.SetAuthorized(false)
	return nil
}

// LogoutCount returns the number of logout calls.
func (b *MockBackend) LogoutCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Logouts
}

var (
	_ Renderer = (*RecordingRenderer)(nil)
	_ Channel  = (*MockChannel)(nil)
	_ Backend  = (*MockBackend)(nil)
)
