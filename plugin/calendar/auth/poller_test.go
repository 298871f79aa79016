package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/plugin/eventloop"
)

type harness struct {
	t         *testing.T
	clock     *eventloop.MockClock
	loop      *eventloop.Loop
	backend   *MockBackend
	opener    *RecordingOpener
	renderer  *RecordingRenderer
	poller    *Poller
	messages  []string
	confirmed int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		clock:    eventloop.NewMockClock(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)),
		backend:  &MockBackend{URL: "https://accounts.example.com/consent"},
		opener:   &RecordingOpener{},
		renderer: &RecordingRenderer{},
	}
	h.loop = eventloop.New(eventloop.WithClock(h.clock))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		h.loop.Close()
	})

	h.poller = NewPoller(h.loop, Deps{
		URLs:        h.backend,
		Oracle:      h.backend,
		Opener:      h.opener,
		Renderer:    h.renderer,
		Notify:      func(text string) { h.messages = append(h.messages, text) },
		OnConfirmed: func() { h.confirmed++ },
	}, DefaultConfig())
	return h
}

// do runs fn on the loop and waits for all resulting work to settle.
func (h *harness) do(fn func()) {
	h.t.Helper()
	require.True(h.t, h.loop.Call(fn))
	h.settle()
}

func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(h.t, h.loop.WaitIdle(ctx))
}

func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d)
	h.settle()
}

func (h *harness) state() State {
	var s State
	h.loop.Call(func() { s = h.poller.State() })
	return s
}

func (h *harness) snapshot() (messages []string, confirmed int) {
	h.loop.Call(func() {
		messages = append(messages, h.messages...)
		confirmed = h.confirmed
	})
	return messages, confirmed
}

func TestPoller_BeginOpensAndPolls(t *testing.T) {
	h := newHarness(t)

	var ok bool
	h.do(func() { ok = h.poller.Begin(context.Background()) })
	require.True(t, ok)

	assert.Equal(t, StateAwaiting, h.state())
	assert.Equal(t, []string{"https://accounts.example.com/consent"}, h.opener.Opened)
	assert.Equal(t, []Affordance{AffordanceConnecting}, h.renderer.Affordances)
	msgs, _ := h.snapshot()
	assert.Equal(t, []string{OpenedMessage}, msgs)
	assert.Equal(t, 1, h.loop.ActiveTimers(KindPoll))
	assert.Equal(t, 1, h.loop.ActiveTimers(KindDeadline))

	h.advance(5 * time.Second)
	h.advance(5 * time.Second)
	assert.Equal(t, 2, h.backend.CheckCount())
	assert.Equal(t, StateAwaiting, h.state())

	h.backend.SetAuthorized(true)
	h.advance(5 * time.Second)

	assert.Equal(t, StateConfirmed, h.state())
	assert.Equal(t, AffordanceConnected, h.renderer.Last())
	msgs, confirmed := h.snapshot()
	assert.Equal(t, []string{OpenedMessage, ConnectedMessage}, msgs)
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 0, h.loop.ActiveTimers(KindPoll))
	assert.Equal(t, 0, h.loop.ActiveTimers(KindDeadline))

	t.Run("NoRepeatedConfirmation", func(t *testing.T) {
		h.advance(time.Minute)
		msgs, confirmed := h.snapshot()
		assert.Len(t, msgs, 2)
		assert.Equal(t, 1, confirmed)
		assert.Equal(t, 3, h.backend.CheckCount())
	})

	t.Run("BeginAfterConfirmedRejected", func(t *testing.T) {
		h.do(func() { ok = h.poller.Begin(context.Background()) })
		assert.False(t, ok)
	})
}

func TestPoller_BeginTwiceKeepsOneTimer(t *testing.T) {
	h := newHarness(t)

	var first, second bool
	h.do(func() {
		first = h.poller.Begin(context.Background())
		second = h.poller.Begin(context.Background())
	})

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, h.loop.ActiveTimers(KindPoll))
	assert.Equal(t, 1, h.loop.ActiveTimers(KindDeadline))
	assert.Equal(t, 1, h.backend.URLCalls)
}

func TestPoller_TimesOut(t *testing.T) {
	h := newHarness(t)
	h.do(func() { h.poller.Begin(context.Background()) })

	for i := 0; i < 23; i++ {
		h.advance(5 * time.Second)
	}
	assert.Equal(t, StateAwaiting, h.state())

	h.advance(5 * time.Second)
	assert.Equal(t, StateTimedOut, h.state())
	assert.Equal(t, AffordanceReady, h.renderer.Last())
	assert.Equal(t, 0, h.loop.ActiveTimers(KindPoll))
	assert.Equal(t, 0, h.loop.ActiveTimers(KindDeadline))

	msgs, _ := h.snapshot()
	assert.Equal(t, []string{OpenedMessage}, msgs, "timeout posts no message")

	checks := h.backend.CheckCount()
	h.advance(time.Minute)
	assert.Equal(t, checks, h.backend.CheckCount(), "no checks after timeout")

	t.Run("RetryAllowed", func(t *testing.T) {
		var ok bool
		h.do(func() { ok = h.poller.Begin(context.Background()) })
		assert.True(t, ok)
		assert.Equal(t, StateAwaiting, h.state())
		assert.Equal(t, 1, h.loop.ActiveTimers(KindPoll))
	})
}

func TestPoller_StatusErrorsKeepPolling(t *testing.T) {
	h := newHarness(t)
	h.backend.StatusErr = clienterrors.Transport("status check failed", errors.New("connection refused"))
	h.do(func() { h.poller.Begin(context.Background()) })

	h.advance(5 * time.Second)
	h.advance(5 * time.Second)
	assert.Equal(t, StateAwaiting, h.state())
	assert.Equal(t, 1, h.loop.ActiveTimers(KindPoll))
	assert.Equal(t, 2, h.backend.CheckCount())
}

func TestPoller_URLFailure(t *testing.T) {
	t.Run("TransportErrorUsesGenericMessage", func(t *testing.T) {
		h := newHarness(t)
		h.backend.URLErr = clienterrors.Transport("request failed", errors.New("dial tcp"))
		h.do(func() { h.poller.Begin(context.Background()) })

		assert.Equal(t, StateIdle, h.state())
		assert.Equal(t, []Affordance{AffordanceConnecting, AffordanceReady}, h.renderer.Affordances)
		assert.Empty(t, h.opener.Opened)
		msgs, _ := h.snapshot()
		assert.Equal(t, []string{ConnectFailedMessage}, msgs)
		assert.Equal(t, 0, h.loop.ActiveTimers(KindPoll))
		assert.Equal(t, 0, h.loop.ActiveTimers(KindDeadline))
	})

	t.Run("ProtocolErrorVerbatim", func(t *testing.T) {
		h := newHarness(t)
		h.backend.URLErr = clienterrors.Protocol("OAuth client is not configured")
		h.do(func() { h.poller.Begin(context.Background()) })

		msgs, _ := h.snapshot()
		assert.Equal(t, []string{"OAuth client is not configured"}, msgs)
	})
}

func TestPoller_OverlappingChecksSkipped(t *testing.T) {
	h := newHarness(t)
	h.backend.Block = make(chan struct{})
	h.do(func() { h.poller.Begin(context.Background()) })

	// The first check blocks; later ticks must not start new ones.
	h.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return h.backend.CheckCount() == 1 }, time.Second, time.Millisecond)
	h.clock.Advance(5 * time.Second)
	h.clock.Advance(5 * time.Second)
	require.True(t, h.loop.Call(func() {}))
	assert.Equal(t, 1, h.backend.CheckCount())

	h.backend.SetAuthorized(true)
	close(h.backend.Block)
	h.settle()
	assert.Equal(t, StateConfirmed, h.state())
}

func TestPoller_ResetDropsInFlightResult(t *testing.T) {
	h := newHarness(t)
	h.backend.Block = make(chan struct{})
	h.backend.Authorized = true
	h.do(func() { h.poller.Begin(context.Background()) })

	h.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return h.backend.CheckCount() == 1 }, time.Second, time.Millisecond)

	h.do(func() { h.poller.Reset() })
	close(h.backend.Block)
	h.settle()

	assert.Equal(t, StateIdle, h.state())
	_, confirmed := h.snapshot()
	assert.Equal(t, 0, confirmed)
	assert.Equal(t, AffordanceReady, h.renderer.Last())
	assert.Equal(t, 0, h.loop.ActiveTimers(KindPoll))
	assert.Equal(t, 0, h.loop.ActiveTimers(KindDeadline))
}

func TestPoller_Probe(t *testing.T) {
	t.Run("AlreadyAuthorized", func(t *testing.T) {
		h := newHarness(t)
		h.backend.Authorized = true
		h.do(func() { h.poller.Probe(context.Background()) })

		assert.Equal(t, StateConfirmed, h.state())
		msgs, confirmed := h.snapshot()
		assert.Empty(t, msgs)
		assert.Equal(t, 1, confirmed)
		assert.Equal(t, AffordanceConnected, h.renderer.Last())
	})

	t.Run("NotAuthorized", func(t *testing.T) {
		h := newHarness(t)
		h.do(func() { h.poller.Probe(context.Background()) })
		assert.Equal(t, StateIdle, h.state())
		assert.Empty(t, h.renderer.Affordances)
	})

	t.Run("IgnoredWhileAwaiting", func(t *testing.T) {
		h := newHarness(t)
		h.do(func() {
			h.poller.Begin(context.Background())
			h.poller.Probe(context.Background())
		})
		assert.Equal(t, 0, h.backend.CheckCount())
	})
}
