// Package eventloop provides a single-goroutine cooperative task loop.
//
// Every piece of client state is mutated only from tasks running on the
// loop, so components need no locks of their own. Blocking work (HTTP
// calls, socket writes) runs off-loop through Go and reports back with a
// task. Timers are cancellable tokens: a stopped timer never runs its
// callback, even when the underlying clock already fired.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyRunning is returned by Run when the loop is already running.
var ErrAlreadyRunning = errors.New("eventloop: already running")

// Loop serializes tasks on one goroutine.
type Loop struct {
	clock  Clock
	logger *slog.Logger

	mu     sync.Mutex
	tasks  []func()
	active map[string]int
	closed bool

	wake    chan struct{}
	done    chan struct{}
	pending atomic.Int64
	running atomic.Bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used for timers.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLogger sets the logger used for recovered task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loop. Tasks are queued until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:  RealClock(),
		logger: slog.Default(),
		active: make(map[string]int),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes tasks until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
			l.drain()
		}
	}
}

// Close stops the loop. Queued tasks are dropped and later posts are rejected.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	dropped := len(l.tasks)
	l.tasks = nil
	l.mu.Unlock()

	l.pending.Add(-int64(dropped))
	close(l.done)
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post enqueues fn. It never blocks and returns false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.pending.Add(1)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish.
// It must not be called from a loop task.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// WaitIdle blocks until no task is queued or executing and no work started
// with Go is in flight. Timers waiting on the clock do not count.
func (l *Loop) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		if l.pending.Load() <= 0 || l.Closed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ActiveTimers returns the number of live timers of the given kind.
func (l *Loop) ActiveTimers(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[kind]
}

// After runs fn on the loop once d has elapsed.
func (l *Loop) After(kind string, d time.Duration, fn func()) *Timer {
	return l.schedule(kind, d, 0, fn)
}

// Every runs fn on the loop every interval until the timer is stopped.
func (l *Loop) Every(kind string, interval time.Duration, fn func()) *Timer {
	return l.schedule(kind, interval, interval, fn)
}

// Go runs work off the loop and delivers its result to done on the loop.
// A panic in work is converted into an error.
func Go[T any](l *Loop, ctx context.Context, work func(context.Context) (T, error), done func(T, error)) {
	if l.Closed() {
		return
	}

	l.pending.Add(1)
	go func() {
		defer l.pending.Add(-1)

		var (
			result T
			err    error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("eventloop: work panicked: %v", r)
				}
			}()
			result, err = work(ctx)
		}()

		if done != nil {
			l.Post(func() { done(result, err) })
		}
	}()
}

// drain runs queued tasks until the queue is empty.
func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			if l.Closed() {
				l.pending.Add(-1)
				continue
			}
			l.exec(fn)
		}
	}
}

// exec runs one task, recovering panics so they never escape the loop.
func (l *Loop) exec(fn func()) {
	defer l.pending.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}

func (l *Loop) schedule(kind string, delay, interval time.Duration, fn func()) *Timer {
	t := &Timer{
		loop:     l,
		kind:     kind,
		interval: interval,
		fn:       fn,
	}

	l.mu.Lock()
	l.active[kind]++
	l.mu.Unlock()

	t.arm(delay)
	return t
}

func (l *Loop) release(kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[kind] > 0 {
		l.active[kind]--
	}
}

// Timer is a cancellable one-shot or repeating loop timer.
type Timer struct {
	loop     *Loop
	kind     string
	interval time.Duration // zero for one-shot
	fn       func()

	mu      sync.Mutex
	stopper Stopper
	done    bool
}

// Kind returns the timer's kind label.
func (t *Timer) Kind() string {
	return t.kind
}

// Stop cancels the timer. Only the first call returns true.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}

	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	stopper := t.stopper
	t.mu.Unlock()

	if stopper != nil {
		stopper.Stop()
	}
	t.loop.release(t.kind)
	return true
}

// Active reports whether the timer can still fire.
func (t *Timer) Active() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.done
}

func (t *Timer) arm(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.stopper = t.loop.clock.AfterFunc(d, t.fire)
}

// fire runs on the clock's goroutine.
func (t *Timer) fire() {
	if !t.loop.Post(t.run) {
		t.Stop()
	}
}

// run executes on the loop goroutine.
func (t *Timer) run() {
	if !t.Active() {
		return
	}
	if t.interval == 0 {
		t.Stop()
	} else {
		defer t.arm(t.interval)
	}
	t.fn()
}
