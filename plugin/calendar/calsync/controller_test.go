package calsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/plugin/calendar"
	"github.com/seatyyy/ExecuMate/plugin/eventloop"
)

// switchGate is a Gate the test can flip.
type switchGate struct{ on atomic.Bool }

func (g *switchGate) Authorized() bool { return g.on.Load() }

type fixture struct {
	t        *testing.T
	clock    *eventloop.MockClock
	loop     *eventloop.Loop
	fetcher  *MockFetcher
	gate     *switchGate
	renderer *RecordingRenderer
	ctrl     *Controller
}

func newFixture(t *testing.T, authorized bool) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		clock:    eventloop.NewMockClock(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)),
		fetcher:  &MockFetcher{Payloads: map[calendar.Range]*calendar.Payload{}},
		gate:     &switchGate{},
		renderer: &RecordingRenderer{},
	}
	f.gate.on.Store(authorized)
	f.loop = eventloop.New(eventloop.WithClock(f.clock))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = f.loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		f.loop.Close()
	})

	f.ctrl = NewController(ctx, f.loop, f.fetcher, f.gate, f.renderer, Options{Location: time.UTC})
	return f
}

func (f *fixture) do(fn func()) {
	f.t.Helper()
	require.True(f.t, f.loop.Call(fn))
	f.settle()
}

func (f *fixture) settle() {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(f.t, f.loop.WaitIdle(ctx))
}

func (f *fixture) snapshot() *calendar.Snapshot {
	var s *calendar.Snapshot
	f.loop.Call(func() { s = f.ctrl.Snapshot() })
	return s
}

var today = &calendar.Payload{
	Date: "Monday, October 19",
	Events: []calendar.Event{
		{Summary: "Standup", StartTime: "2026-10-19T09:00:00Z", TimeRange: "09:00 AM - 09:15 AM"},
		{Summary: "Lunch", Location: "Cafe", StartTime: "2026-10-19T12:00:00Z", TimeRange: "12:00 PM - 01:00 PM"},
	},
}

var week = &calendar.Payload{
	Date: "October 19 - October 25",
	EventsByDate: []calendar.DateGroup{
		{Date: "Monday, October 19", Events: []calendar.Event{{Summary: "Standup"}}},
		{Date: "Wednesday, October 21", Events: []calendar.Event{{Summary: "Review"}, {Summary: "Dinner"}}},
	},
}

func TestController_FetchNowRequiresAuthorization(t *testing.T) {
	f := newFixture(t, false)

	var ok bool
	f.do(func() { ok = f.ctrl.FetchNow() })

	assert.False(t, ok)
	assert.Equal(t, 0, f.fetcher.Calls())
	assert.Equal(t, 0, f.renderer.Total())
	assert.Nil(t, f.snapshot())
}

func TestController_FetchToday(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.Payloads[calendar.RangeToday] = today

	f.do(func() { f.ctrl.FetchNow() })

	require.Len(t, f.renderer.Views, 1)
	v := f.renderer.Views[0]
	assert.Equal(t, calendar.RangeToday, v.Range)
	require.Len(t, v.Sections, 1)
	assert.Equal(t, "Monday, October 19", v.Sections[0].Header)
	assert.Len(t, v.Sections[0].Events, 2)

	s := f.snapshot()
	require.NotNil(t, s)
	assert.Equal(t, calendar.RangeToday, s.Range)
	assert.Equal(t, f.clock.Now(), s.FetchedAt)
}

func TestController_SwitchToWeekRendersGroups(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.Payloads[calendar.RangeToday] = today
	f.fetcher.Payloads[calendar.RangeWeek] = week

	f.do(func() { f.ctrl.FetchNow() })
	f.do(func() { f.ctrl.SetRange(calendar.RangeWeek) })

	require.Len(t, f.renderer.Views, 2)
	v := f.renderer.Views[1]
	assert.Equal(t, calendar.RangeWeek, v.Range)
	require.Len(t, v.Sections, 2)
	assert.Equal(t, "Monday, October 19", v.Sections[0].Header)
	assert.Equal(t, []calendar.Event{{Summary: "Standup"}}, v.Sections[0].Events)
	assert.Equal(t, "Wednesday, October 21", v.Sections[1].Header)
	assert.Equal(t, []calendar.Event{{Summary: "Review"}, {Summary: "Dinner"}}, v.Sections[1].Events)
	assert.Equal(t, []calendar.Range{calendar.RangeToday, calendar.RangeWeek}, f.fetcher.Ranges)
}

func TestController_SetRangeUnauthorizedOnlySelects(t *testing.T) {
	f := newFixture(t, false)
	f.do(func() { f.ctrl.SetRange(calendar.RangeUpcoming) })

	var r calendar.Range
	f.loop.Call(func() { r = f.ctrl.Range() })
	assert.Equal(t, calendar.RangeUpcoming, r)
	assert.Equal(t, 0, f.fetcher.Calls())
}

func TestController_Empty(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.Payloads[calendar.RangeToday] = &calendar.Payload{Date: "Monday, October 19"}

	f.do(func() { f.ctrl.FetchNow() })

	assert.Empty(t, f.renderer.Views)
	assert.Equal(t, []string{"Monday, October 19"}, f.renderer.Empty)
}

func TestController_FailureKeepsSnapshot(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.Payloads[calendar.RangeToday] = today
	f.do(func() { f.ctrl.FetchNow() })
	before := f.snapshot()
	require.NotNil(t, before)

	t.Run("Protocol", func(t *testing.T) {
		f.fetcher.Err = clienterrors.Protocol("User not authenticated")
		f.do(func() { f.ctrl.FetchNow() })
		assert.Same(t, before, f.snapshot())
		assert.Equal(t, []string{"User not authenticated"}, f.renderer.Errors)
	})

	t.Run("Transport", func(t *testing.T) {
		f.fetcher.Err = clienterrors.Transport("request failed", errors.New("connection reset"))
		f.do(func() { f.ctrl.FetchNow() })
		assert.Same(t, before, f.snapshot())
		assert.Equal(t, FetchFailedMessage, f.renderer.Errors[len(f.renderer.Errors)-1])
	})

	assert.Equal(t, 0, f.loop.ActiveTimers(KindRefresh), "failures schedule no retry")
}

func TestController_StaleResultDropped(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.Payloads[calendar.RangeToday] = today
	f.fetcher.Payloads[calendar.RangeWeek] = week
	f.fetcher.Block = make(chan struct{})

	// The first fetch is cancelled by the second; only the week result applies.
	require.True(t, f.loop.Call(func() { f.ctrl.FetchNow() }))
	require.True(t, f.loop.Call(func() { f.ctrl.SetRange(calendar.RangeWeek) }))
	close(f.fetcher.Block)
	f.settle()

	require.Len(t, f.renderer.Views, 1)
	assert.Equal(t, calendar.RangeWeek, f.renderer.Views[0].Range)
	assert.Empty(t, f.renderer.Errors)
}

func TestController_ResultAfterDeauthorizationDropped(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.Payloads[calendar.RangeToday] = today
	f.fetcher.Block = make(chan struct{})

	require.True(t, f.loop.Call(func() { f.ctrl.FetchNow() }))
	f.gate.on.Store(false)
	close(f.fetcher.Block)
	f.settle()

	assert.Equal(t, 0, f.renderer.Total())
	assert.Nil(t, f.snapshot())
}

func TestController_Periodic(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.Payloads[calendar.RangeToday] = today

	f.do(func() {
		f.ctrl.StartPeriodic(5 * time.Minute)
		f.ctrl.StartPeriodic(5 * time.Minute)
	})
	assert.Equal(t, 1, f.loop.ActiveTimers(KindRefresh), "restart replaces the timer")

	f.clock.Advance(5 * time.Minute)
	f.settle()
	f.clock.Advance(5 * time.Minute)
	f.settle()
	assert.Equal(t, 2, f.fetcher.Calls())

	var running bool
	f.do(func() {
		f.ctrl.Stop()
		running = f.ctrl.Running()
	})
	assert.False(t, running)
	assert.Equal(t, 0, f.loop.ActiveTimers(KindRefresh))

	f.clock.Advance(5 * time.Minute)
	f.settle()
	assert.Equal(t, 2, f.fetcher.Calls(), "no fetch after stop")
}

func TestController_StopDropsInFlight(t *testing.T) {
	f := newFixture(t, true)
	f.fetcher.Payloads[calendar.RangeToday] = today
	f.fetcher.Block = make(chan struct{})

	require.True(t, f.loop.Call(func() { f.ctrl.FetchNow() }))
	require.True(t, f.loop.Call(func() { f.ctrl.Stop() }))
	close(f.fetcher.Block)
	f.settle()

	assert.Equal(t, 0, f.renderer.Total())
}

func TestBuildView_ClientSideGrouping(t *testing.T) {
	p := &calendar.Payload{
		Date: "Upcoming",
		Events: []calendar.Event{
			{Summary: "A", StartTime: "2026-10-20T09:00:00Z"},
			{Summary: "B", StartTime: "2026-10-22T09:00:00Z"},
		},
	}
	v := BuildView(calendar.NewSnapshot(calendar.RangeUpcoming, p, time.UTC, time.Time{}))
	require.Len(t, v.Sections, 2)
	assert.Equal(t, "Tuesday, October 20", v.Sections[0].Header)
	assert.Equal(t, "Thursday, October 22", v.Sections[1].Header)
}
