package calsync

import (
	"context"
	"sync"

	"github.com/seatyyy/ExecuMate/plugin/calendar"
)

// MockFetcher returns canned payloads and records requested ranges.
type MockFetcher struct {
	mu       sync.Mutex
	Payloads map[calendar.Range]*calendar.Payload
	Err      error
	Ranges   []calendar.Range
	// Block, when set, holds fetches until it is closed.
	Block chan struct{}
}

func (f *MockFetcher) CalendarEvents(ctx context.Context, r calendar.Range) (*calendar.Payload, error) {
	f.mu.Lock()
	f.Ranges = append(f.Ranges, r)
	block := f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if p, ok := f.Payloads[r]; ok {
		return p, nil
	}
	return &calendar.Payload{}, nil
}

// Calls returns the number of fetches issued.
func (f *MockFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Ranges)
}

// StaticGate is a Gate with a fixed answer.
type StaticGate bool

func (g StaticGate) Authorized() bool { return bool(g) }

// RecordingRenderer records calendar renderer calls.
type RecordingRenderer struct {
	mu     sync.Mutex
	Views  []View
	Empty  []string
	Errors []string
}

func (r *RecordingRenderer) ShowCalendar(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Views = append(r.Views, v)
}

func (r *RecordingRenderer) ShowCalendarEmpty(date string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Empty = append(r.Empty, date)
}

func (r *RecordingRenderer) ShowCalendarError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, message)
}

// Total returns the number of renderer calls.
func (r *RecordingRenderer) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Views) + len(r.Empty) + len(r.Errors)
}

var (
	_ Fetcher  = (*MockFetcher)(nil)
	_ Gate     = StaticGate(false)
	_ Renderer = (*RecordingRenderer)(nil)
)
