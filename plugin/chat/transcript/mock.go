package transcript

import "sync"

// Call is one recorded renderer invocation.
type Call struct {
	Op      string
	Message ChatMessage
}

// RecordingRenderer records every call for assertions in tests.
type RecordingRenderer struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecordingRenderer creates an empty recorder.
func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{}
}

func (r *RecordingRenderer) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// AppendMessage records the message.
func (r *RecordingRenderer) AppendMessage(msg ChatMessage) {
	r.record(Call{Op: "append", Message: msg})
}

// ShowTyping records the call.
func (r *RecordingRenderer) ShowTyping() {
	r.record(Call{Op: "typing"})
}

// ClearTyping records the call.
func (r *RecordingRenderer) ClearTyping() {
	r.record(Call{Op: "clear_typing"})
}

// ScrollToBottom records the call.
func (r *RecordingRenderer) ScrollToBottom() {
	r.record(Call{Op: "scroll"})
}

// Calls returns a copy of the recorded calls.
func (r *RecordingRenderer) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Ops returns the recorded operation names in order.
func (r *RecordingRenderer) Ops() []string {
	calls := r.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

// Messages returns the rendered chat turns in order.
func (r *RecordingRenderer) Messages() []ChatMessage {
	var out []ChatMessage
	for _, c := range r.Calls() {
		if c.Op == "append" {
			out = append(out, c.Message)
		}
	}
	return out
}

// Reset drops all recorded calls.
func (r *RecordingRenderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Ensure RecordingRenderer implements Renderer
var _ Renderer = (*RecordingRenderer)(nil)
