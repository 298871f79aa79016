package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/internal/observability"
	"github.com/seatyyy/ExecuMate/internal/profile"
	"github.com/seatyyy/ExecuMate/internal/timeout"
	"github.com/seatyyy/ExecuMate/plugin/calendar"
	"github.com/seatyyy/ExecuMate/plugin/calendar/auth"
	"github.com/seatyyy/ExecuMate/plugin/calendar/calsync"
	"github.com/seatyyy/ExecuMate/plugin/chat/dedup"
	"github.com/seatyyy/ExecuMate/plugin/chat/ident"
	"github.com/seatyyy/ExecuMate/plugin/chat/reminder"
	"github.com/seatyyy/ExecuMate/plugin/chat/transcript"
	"github.com/seatyyy/ExecuMate/plugin/eventloop"
	"github.com/seatyyy/ExecuMate/plugin/realtime"
)

// ErrDisposed is returned by operations on a disposed session.
var ErrDisposed = clienterrors.Closed("session disposed")

// Config holds the per-session settings.
type Config struct {
	UserID           string
	Range            calendar.Range
	RefreshInterval  time.Duration
	AuthPollInterval time.Duration
	AuthDeadline     time.Duration
	SendRate         float64
	SendBurst        int
	Location         *time.Location
	TimeLayout       string
	RequireLogin     bool
}

// ConfigFromProfile derives a session config from a validated profile.
func ConfigFromProfile(p *profile.Profile) Config {
	r, err := calendar.ParseRange(p.Range)
	if err != nil {
		r = calendar.RangeToday
	}
	return Config{
		UserID:           p.UserID,
		Range:            r,
		RefreshInterval:  p.RefreshInterval,
		AuthPollInterval: p.AuthPollInterval,
		AuthDeadline:     p.AuthDeadline,
		SendRate:         p.SendRate,
		SendBurst:        p.SendBurst,
		Location:         p.Location(),
		TimeLayout:       p.TimeLayout,
		RequireLogin:     p.RequireLogin,
	}
}

// Deps are the session's collaborators. Clock and Logger are optional.
type Deps struct {
	Backend  Backend
	URLs     auth.URLSource
	Opener   auth.Opener
	Channel  Channel
	Renderer Renderer
	Clock    eventloop.Clock
	Logger   *slog.Logger
}

// Session is one client session. Its exported methods are safe to call
// from any goroutine; they hand work to the session loop.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	logger *slog.Logger

	loop    *eventloop.Loop
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter

	mu    sync.Mutex
	state State

	// Loop-owned state.
	ids        *ident.Generator
	ledger     *dedup.Ledger
	transcript *transcript.Controller
	reminders  *reminder.Handler
	poller     *auth.Poller
	calendar   *calsync.Controller
	outbox     []realtime.MessageEvent
	sending    bool
}

// New creates a session in the created state.
func New(cfg Config, deps Deps) (*Session, error) {
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, clienterrors.InvalidArgument("user id is required")
	}
	if deps.Backend == nil || deps.URLs == nil || deps.Opener == nil || deps.Channel == nil || deps.Renderer == nil {
		return nil, clienterrors.InvalidArgument("backend, url source, opener, channel and renderer are required")
	}
	if cfg.Range == "" {
		cfg.Range = calendar.RangeToday
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = timeout.CalendarRefreshInterval
	}
	if cfg.SendRate <= 0 {
		cfg.SendRate = 2
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	id := uuid.New().String()
	logger := observability.ForSession(deps.Logger, id, cfg.UserID)

	loopOpts := []eventloop.Option{eventloop.WithLogger(logger)}
	if deps.Clock != nil {
		loopOpts = append(loopOpts, eventloop.WithClock(deps.Clock))
	}
	loop := eventloop.New(loopOpts...)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:      id,
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		loop:    loop,
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		state:   StateCreated,
		ids:     ident.New(loop.Now),
		ledger:  dedup.New(dedup.DefaultCapacity),
	}

	s.transcript = transcript.NewController(deps.Renderer, observability.ForComponent(logger, "transcript"))
	s.reminders = reminder.NewHandler(deps.Renderer, s.send, reminder.Options{
		Location:   cfg.Location,
		TimeLayout: cfg.TimeLayout,
		Now:        loop.Now,
		Logger:     observability.ForComponent(logger, "reminder"),
	})
	s.poller = auth.NewPoller(loop, auth.Deps{
		URLs:        deps.URLs,
		Oracle:      deps.Backend,
		Opener:      deps.Opener,
		Renderer:    deps.Renderer,
		Notify:      func(text string) { s.transcript.AppendAssistant(text, "") },
		OnConfirmed: s.onAuthorized,
		Logger:      observability.ForComponent(logger, "auth"),
	}, auth.Config{
		Interval: cfg.AuthPollInterval,
		Deadline: cfg.AuthDeadline,
	})
	s.calendar = calsync.NewController(ctx, loop, deps.Backend, s.poller, deps.Renderer, calsync.Options{
		Range:    cfg.Range,
		Location: cfg.Location,
		Logger:   observability.ForComponent(logger, "calendar"),
	})
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run activates the session and processes its loop until ctx is done or
// Close is called. The session is disposed when Run returns.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.state = StateActive
	s.loop.Post(s.start)
	s.mu.Unlock()

	s.logger.Info("session started", "range", s.cfg.Range)

	err := s.loop.Run(ctx)
	s.dispose()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close disposes the session. Later calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	prev := s.state
	s.state = StateDisposed
	s.mu.Unlock()

	switch prev {
	case StateCreated:
		s.loop.Close()
		s.dispose()
	case StateActive:
		// Run disposes once the loop has stopped.
		s.loop.Close()
	}
}

// dispose cancels every timer and in-flight request. It runs after the
// loop stopped, so it may touch loop-owned state.
func (s *Session) dispose() {
	s.mu.Lock()
	s.state = StateDisposed
	s.mu.Unlock()

	s.loop.Close()
	s.poller.Close()
	s.calendar.Stop()
	s.cancel()
	s.logger.Info("session disposed")
}

// Send posts a user message. It returns false once the session is disposed.
func (s *Session) Send(text string) bool {
	return s.loop.Post(func() { s.send(text) })
}

// Deliver hands an inbound realtime event to the session.
func (s *Session) Deliver(in realtime.Inbound) bool {
	return s.loop.Post(func() { s.deliver(in) })
}

// ConnectCalendar starts the calendar authorization flow.
func (s *Session) ConnectCalendar() bool {
	return s.loop.Post(func() { s.poller.Begin(s.ctx) })
}

// SetRange selects the calendar range, fetching it when authorized.
func (s *Session) SetRange(r calendar.Range) bool {
	return s.loop.Post(func() { s.calendar.SetRange(r) })
}

// RefreshCalendar fetches the selected range now.
func (s *Session) RefreshCalendar() bool {
	return s.loop.Post(func() { s.calendar.FetchNow() })
}

// Logout stops the calendar refresh and resets authorization in one loop
// task, then asks the backend to drop the credentials.
func (s *Session) Logout() bool {
	return s.loop.Post(s.logout)
}

// AcceptReminder accepts a reminder prompt.
func (s *Session) AcceptReminder(id string) error {
	return s.onLoop(func() error { return s.reminders.Accept(id) })
}

// DeclineReminder declines a reminder prompt.
func (s *Session) DeclineReminder(id string) error {
	return s.onLoop(func() error { return s.reminders.Decline(id) })
}

// Transcript returns a copy of the chat log.
func (s *Session) Transcript() []transcript.ChatMessage {
	var out []transcript.ChatMessage
	s.inspect(func() { out = s.transcript.Messages() })
	return out
}

// AuthState returns the calendar authorization state.
func (s *Session) AuthState() auth.State {
	var st auth.State
	s.inspect(func() { st = s.poller.State() })
	return st
}

// CalendarSnapshot returns the last fetched calendar, or nil.
func (s *Session) CalendarSnapshot() *calendar.Snapshot {
	var snap *calendar.Snapshot
	s.inspect(func() { snap = s.calendar.Snapshot() })
	return snap
}

// WaitIdle blocks until the session loop has no pending work.
func (s *Session) WaitIdle(ctx context.Context) error {
	return s.loop.WaitIdle(ctx)
}

// onLoop runs fn on the loop and returns its error. Before Run it runs
// fn inline; the loop is not processing tasks yet.
func (s *Session) onLoop(fn func() error) error {
	var err error
	switch s.State() {
	case StateCreated:
		err = fn()
	case StateActive:
		if !s.loop.Call(func() { err = fn() }) {
			return ErrDisposed
		}
	default:
		return ErrDisposed
	}
	return err
}

func (s *Session) inspect(fn func()) {
	if s.State() == StateActive && s.loop.Call(fn) {
		return
	}
	fn()
}

// send is the single outbound path for typed input and accepted reminders.
func (s *Session) send(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	id := s.ids.Next()
	s.transcript.AppendUser(text, id)
	s.transcript.ShowTyping()

	s.outbox = append(s.outbox, realtime.MessageEvent{
		Message:   text,
		UserID:    s.cfg.UserID,
		MessageID: id,
	})
	s.flush()
	return true
}

// flush emits queued messages one at a time so they leave in send order.
func (s *Session) flush() {
	if s.sending || len(s.outbox) == 0 {
		return
	}
	ev := s.outbox[0]
	s.outbox = s.outbox[1:]
	s.sending = true

	eventloop.Go(s.loop, s.ctx, func(ctx context.Context) (struct{}, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return struct{}{}, clienterrors.Canceled("send rate limit", err)
		}
		return struct{}{}, s.deps.Channel.Emit(ctx, ev)
	}, func(_ struct{}, err error) {
		s.sending = false
		if err != nil {
			s.logger.Warn("failed to emit message",
				observability.LogFieldMessageID, ev.MessageID,
				"error", err,
				observability.LogFieldErrorCode, clienterrors.CodeOf(err))
			s.transcript.ClearTyping()
			s.transcript.AppendAssistant(SendFailedMessage, "")
		} else {
			s.logger.Debug("message emitted", observability.LogFieldMessageID, ev.MessageID)
		}
		s.flush()
	})
}

func (s *Session) deliver(in realtime.Inbound) {
	if in.UserID() != s.cfg.UserID {
		s.logger.Debug("ignoring event for another user",
			observability.LogFieldEventType, in.Event,
			"target_user", in.UserID())
		return
	}

	switch {
	case in.Response != nil:
		r := in.Response
		if !s.ledger.Admit(dedup.Event{MessageID: r.MessageID, Content: r.Response}) {
			s.logger.Debug("duplicate response dropped",
				observability.LogFieldMessageID, r.MessageID,
				"response", observability.Truncate(r.Response, 50))
			return
		}
		s.transcript.AppendAssistant(r.Response, r.MessageID)
		s.transcript.ClearTyping()

	case in.Reminder != nil:
		r := in.Reminder
		ev := dedup.Event{Content: "reminder:" + r.Message}
		if r.Event.ID != "" {
			ev.MessageID = "reminder:" + r.Event.ID
		}
		if !s.ledger.Admit(ev) {
			s.logger.Debug("duplicate reminder dropped", "event", r.Event.Summary)
			return
		}
		s.reminders.Present(r.Message, r.Event)
	}
}

func (s *Session) start() {
	if s.cfg.RequireLogin {
		s.deps.Renderer.ShowLoginOverlay()
	}
	s.poller.Probe(s.ctx)
}

func (s *Session) onAuthorized() {
	s.calendar.FetchNow()
	s.calendar.StartPeriodic(s.cfg.RefreshInterval)
}

func (s *Session) logout() {
	s.calendar.Clear()
	s.poller.Reset()
	s.deps.Renderer.ClearCalendar()

	eventloop.Go(s.loop, s.ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.deps.Backend.Logout(ctx)
	}, func(_ struct{}, err error) {
		if err != nil {
			s.logger.Warn("logout failed", "error", err,
				observability.LogFieldErrorCode, clienterrors.CodeOf(err))
			s.transcript.AppendAssistant(clienterrors.UserMessage(err, LogoutFailedMessage), "")
			return
		}
		s.logger.Info("calendar disconnected")
	})
}
