package auth

import (
	"context"
	"log/slog"
	"time"

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/internal/timeout"
	"github.com/seatyyy/ExecuMate/plugin/eventloop"
)

// Config holds the poller timing.
type Config struct {
	Interval time.Duration // status check period
	Deadline time.Duration // measured from Begin
}

// DefaultConfig returns the default poller timing.
func DefaultConfig() Config {
	return Config{
		Interval: timeout.AuthPollInterval,
		Deadline: timeout.AuthDeadline,
	}
}

// Deps are the poller's collaborators. OnConfirmed may be nil.
type Deps struct {
	URLs        URLSource
	Oracle      Oracle
	Opener      Opener
	Renderer    Renderer
	Notify      func(text string)
	OnConfirmed func()
	Logger      *slog.Logger
}

// Poller is the authorization state machine
// Idle -> AwaitingExternalAction -> Confirmed | TimedOut.
//
// All methods must be called on the loop goroutine. Each activation gets
// a generation number; async results from an older generation are dropped.
type Poller struct {
	loop   *eventloop.Loop
	deps   Deps
	config Config
	logger *slog.Logger

	state      State
	startedAt  time.Time
	generation uint64
	checking   bool
	activeCtx  context.Context
	cancel     context.CancelFunc
	poll       *eventloop.Timer
	deadline   *eventloop.Timer
}

// NewPoller creates an idle poller.
func NewPoller(loop *eventloop.Loop, deps Deps, config Config) *Poller {
	if config.Interval <= 0 {
		config.Interval = timeout.AuthPollInterval
	}
	if config.Deadline <= 0 {
		config.Deadline = timeout.AuthDeadline
	}
	if deps.Notify == nil {
		deps.Notify = func(string) {}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		loop:   loop,
		deps:   deps,
		config: config,
		logger: logger,
		state:  StateIdle,
	}
}

// State returns the current state.
func (p *Poller) State() State {
	return p.state
}

// StartedAt returns when the current or last activation began.
func (p *Poller) StartedAt() time.Time {
	return p.startedAt
}

// Authorized reports whether the poller is in the Confirmed state.
func (p *Poller) Authorized() bool {
	return p.state == StateConfirmed
}

// Begin starts an authorization activation. It returns false, doing
// nothing, while an activation is awaiting or after confirmation.
func (p *Poller) Begin(ctx context.Context) bool {
	if p.state == StateAwaiting || p.state == StateConfirmed {
		p.logger.Debug("authorization begin rejected", "state", p.state)
		return false
	}

	gen := p.activate(ctx)
	p.state = StateAwaiting
	p.startedAt = p.loop.Now()
	p.deps.Renderer.SetConnectAffordance(AffordanceConnecting)

	p.deadline = p.loop.After(KindDeadline, p.config.Deadline, func() { p.expire(gen) })
	p.poll = p.loop.Every(KindPoll, p.config.Interval, func() { p.tick(gen) })

	actx := p.activationContext()
	eventloop.Go(p.loop, actx, p.deps.URLs.AuthorizationURL, func(url string, err error) {
		if !p.current(gen) || p.state != StateAwaiting {
			return
		}
		if err != nil {
			p.fail(err)
			return
		}
		if err := p.deps.Opener.Open(url); err != nil {
			p.logger.Warn("failed to open authorization url", "error", err, "url", url)
		}
		p.deps.Notify(OpenedMessage)
	})

	p.logger.Info("authorization started",
		"interval", p.config.Interval,
		"deadline", p.config.Deadline)
	return true
}

// Probe runs a single status check from Idle. A positive answer moves
// straight to Confirmed without posting a chat message; it covers clients
// restarted after the user already authorized.
func (p *Poller) Probe(ctx context.Context) {
	if p.state != StateIdle {
		return
	}

	gen := p.activate(ctx)
	eventloop.Go(p.loop, p.activationContext(), p.deps.Oracle.IsAuthorized, func(ok bool, err error) {
		if !p.current(gen) || p.state != StateIdle {
			return
		}
		if err != nil {
			p.logger.Warn("authorization probe failed", "error", err)
			return
		}
		if ok {
			p.state = StateConfirmed
			p.deps.Renderer.SetConnectAffordance(AffordanceConnected)
			p.logger.Info("calendar already authorized")
			p.confirmed()
		}
	})
}

// Reset cancels any activation and returns to Idle.
func (p *Poller) Reset() {
	p.activate(nil)
	p.state = StateIdle
	p.deps.Renderer.SetConnectAffordance(AffordanceReady)
}

// Close cancels timers and in-flight checks without rendering.
func (p *Poller) Close() {
	p.activate(nil)
}

// activate invalidates the previous activation and returns the new
// generation. A nil parent leaves the poller without a live context.
func (p *Poller) activate(parent context.Context) uint64 {
	p.stopTimers()
	p.release()
	p.checking = false
	p.generation++
	if parent != nil {
		ctx, cancel := context.WithCancel(parent)
		p.cancel = cancel
		p.activeCtx = ctx
	} else {
		p.activeCtx = nil
	}
	return p.generation
}

func (p *Poller) activationContext() context.Context {
	if p.activeCtx == nil {
		return context.Background()
	}
	return p.activeCtx
}

func (p *Poller) current(gen uint64) bool {
	return gen == p.generation
}

func (p *Poller) tick(gen uint64) {
	if !p.current(gen) || p.state != StateAwaiting {
		return
	}
	if p.checking {
		p.logger.Debug("authorization check still in flight, skipping tick")
		return
	}
	p.checking = true

	eventloop.Go(p.loop, p.activationContext(), p.deps.Oracle.IsAuthorized, func(ok bool, err error) {
		if !p.current(gen) {
			return
		}
		p.checking = false
		if p.state != StateAwaiting {
			return
		}
		if err != nil {
			p.logger.Warn("authorization status check failed", "error", err,
				"error_code", clienterrors.CodeOf(err))
			return
		}
		if ok {
			p.confirm()
		}
	})
}

func (p *Poller) confirm() {
	p.stopTimers()
	p.release()
	p.state = StateConfirmed
	p.deps.Renderer.SetConnectAffordance(AffordanceConnected)
	p.deps.Notify(ConnectedMessage)

	p.logger.Info("calendar authorization confirmed",
		"duration_ms", p.loop.Now().Sub(p.startedAt).Milliseconds())
	p.confirmed()
}

func (p *Poller) confirmed() {
	if p.deps.OnConfirmed != nil {
		p.deps.OnConfirmed()
	}
}

func (p *Poller) expire(gen uint64) {
	if !p.current(gen) || p.state != StateAwaiting {
		return
	}
	p.stopTimers()
	p.release()
	p.state = StateTimedOut
	p.deps.Renderer.SetConnectAffordance(AffordanceReady)

	p.logger.Info("calendar authorization timed out", "deadline", p.config.Deadline)
}

func (p *Poller) fail(err error) {
	p.stopTimers()
	p.release()
	p.state = StateIdle
	p.deps.Renderer.SetConnectAffordance(AffordanceReady)
	p.deps.Notify(clienterrors.UserMessage(err, ConnectFailedMessage))

	p.logger.Error("failed to get authorization url", "error", err,
		"error_code", clienterrors.CodeOf(err))
}

func (p *Poller) stopTimers() {
	p.poll.Stop()
	p.deadline.Stop()
	p.poll, p.deadline = nil, nil
}

// release cancels the activation context.
func (p *Poller) release() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
