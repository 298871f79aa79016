package reminder

import "sync"

// RecordingRenderer records reminder renderer calls for tests.
type RecordingRenderer struct {
	mu      sync.Mutex
	Shown   []*Prompt
	Removed []string
	Scrolls int
}

func (r *RecordingRenderer) ShowReminder(p *Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Shown = append(r.Shown, p)
}

func (r *RecordingRenderer) RemoveReminder(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Removed = append(r.Removed, id)
}

func (r *RecordingRenderer) ScrollToBottom() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Scrolls++
}

// Ensure RecordingRenderer implements Renderer
var _ Renderer = (*RecordingRenderer)(nil)
