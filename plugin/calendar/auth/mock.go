package auth

import (
	"context"
	"sync"
)

// MockBackend is a scriptable URLSource and Oracle for tests.
type MockBackend struct {
	mu         sync.Mutex
	URL        string
	URLErr     error
	Authorized bool
	StatusErr  error
	URLCalls   int
	Checks     int
	// Block, when set, holds status checks until it is closed.
	Block chan struct{}
}

func (m *MockBackend) AuthorizationURL(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.URLCalls++
	return m.URL, m.URLErr
}

func (m *MockBackend) IsAuthorized(ctx context.Context) (bool, error) {
	m.mu.Lock()
	m.Checks++
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Authorized, m.StatusErr
}

// SetAuthorized changes the oracle answer.
func (m *MockBackend) SetAuthorized(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Authorized = ok
}

// CheckCount returns the number of status checks issued.
func (m *MockBackend) CheckCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Checks
}

// RecordingOpener records opened urls.
type RecordingOpener struct {
	mu     sync.Mutex
	Opened []string
	Err    error
}

func (o *RecordingOpener) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Opened = append(o.Opened, url)
	return o.Err
}

// RecordingRenderer records affordance changes.
type RecordingRenderer struct {
	mu          sync.Mutex
	Affordances []Affordance
}

func (r *RecordingRenderer) SetConnectAffordance(a Affordance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Affordances = append(r.Affordances, a)
}

// Last returns the most recent affordance, or "" if none was set.
func (r *RecordingRenderer) Last() Affordance {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Affordances) == 0 {
		return ""
	}
	return r.Affordances[len(r.Affordances)-1]
}

var (
	_ URLSource = (*MockBackend)(nil)
	_ Oracle    = (*MockBackend)(nil)
	_ Opener    = (*RecordingOpener)(nil)
	_ Renderer  = (*RecordingRenderer)(nil)
)
