package calsync

import (
	"context"
	"log/slog"
	"time"

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/internal/timeout"
	"github.com/seatyyy/ExecuMate/plugin/calendar"
	"github.com/seatyyy/ExecuMate/plugin/eventloop"
)

// Options configures a Controller.
type Options struct {
	Range    calendar.Range
	Location *time.Location
	Logger   *slog.Logger
}

// Controller owns the calendar snapshot. All methods must be called on
// the loop goroutine.
type Controller struct {
	loop     *eventloop.Loop
	fetcher  Fetcher
	gate     Gate
	renderer Renderer
	loc      *time.Location
	logger   *slog.Logger

	ctx      context.Context
	rng      calendar.Range
	snapshot *calendar.Snapshot
	seq      uint64
	cancel   context.CancelFunc
	timer    *eventloop.Timer
}

// NewController creates a stopped controller. Fetches run under ctx.
func NewController(ctx context.Context, loop *eventloop.Loop, fetcher Fetcher, gate Gate, renderer Renderer, opts Options) *Controller {
	if opts.Range == "" {
		opts.Range = calendar.RangeToday
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		loop:     loop,
		fetcher:  fetcher,
		gate:     gate,
		renderer: renderer,
		loc:      opts.Location,
		logger:   opts.Logger,
		ctx:      ctx,
		rng:      opts.Range,
	}
}

// Range returns the selected range.
func (c *Controller) Range() calendar.Range {
	return c.rng
}

// Snapshot returns the last successfully fetched snapshot, or nil.
func (c *Controller) Snapshot() *calendar.Snapshot {
	return c.snapshot
}

// Running reports whether the periodic refresh is armed.
func (c *Controller) Running() bool {
	return c.timer.Active()
}

// SetRange selects r and fetches it when authorized.
func (c *Controller) SetRange(r calendar.Range) {
	c.rng = r
	c.logger.Debug("calendar range selected", "range", r)
	c.FetchNow()
}

// FetchNow issues a fetch for the selected range. It returns false and
// does nothing when calendar access is not authorized. Only the newest
// fetch may apply its result.
func (c *Controller) FetchNow() bool {
	if !c.gate.Authorized() {
		return false
	}

	c.abort()
	c.seq++
	seq := c.seq
	rng := c.rng
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	started := c.loop.Now()

	eventloop.Go(c.loop, ctx, func(ctx context.Context) (*calendar.Payload, error) {
		return c.fetcher.CalendarEvents(ctx, rng)
	}, func(p *calendar.Payload, err error) {
		if seq != c.seq || !c.gate.Authorized() {
			c.logger.Debug("dropping stale calendar result", "range", rng)
			return
		}
		cancel()
		c.cancel = nil

		if err != nil {
			c.logger.Warn("calendar fetch failed", "range", rng, "error", err,
				"error_code", clienterrors.CodeOf(err))
			c.renderer.ShowCalendarError(clienterrors.UserMessage(err, FetchFailedMessage))
			return
		}
		c.apply(calendar.NewSnapshot(rng, p, c.loc, c.loop.Now()))
		c.logger.Debug("calendar fetched", "range", rng,
			"duration_ms", c.loop.Now().Sub(started).Milliseconds())
	})
	return true
}

// StartPeriodic arms the refresh timer, replacing any previous one.
func (c *Controller) StartPeriodic(interval time.Duration) {
	if interval <= 0 {
		interval = timeout.CalendarRefreshInterval
	}
	c.timer.Stop()
	c.timer = c.loop.Every(KindRefresh, interval, func() { c.FetchNow() })
	c.logger.Info("calendar refresh started", "interval", interval)
}

// Stop cancels the refresh timer and drops any in-flight result.
func (c *Controller) Stop() {
	if c.timer.Stop() {
		c.logger.Info("calendar refresh stopped")
	}
	c.timer = nil
	c.abort()
	c.seq++
}

// Clear stops the controller and forgets the snapshot.
func (c *Controller) Clear() {
	c.Stop()
	c.snapshot = nil
}

func (c *Controller) abort() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) apply(s *calendar.Snapshot) {
	c.snapshot = s
	if s.Empty() {
		c.renderer.ShowCalendarEmpty(s.Date)
		return
	}
	c.renderer.ShowCalendar(BuildView(s))
}

// BuildView lays a snapshot out as sections. Today is a single section
// headed by the snapshot date; other ranges get one section per group.
func BuildView(s *calendar.Snapshot) View {
	v := View{Range: s.Range, Date: s.Date}
	if !s.Range.Grouped() {
		v.Sections = []Section{{Header: s.Date, Events: s.Events}}
		return v
	}
	for _, g := range s.Groups {
		v.Sections = append(v.Sections, Section{Header: g.Date, Events: g.Events})
	}
	return v
}
