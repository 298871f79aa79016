package transcript

import (
	"log/slog"
	"strings"
)

// Controller is the append-only chat log. It is not safe for concurrent
// use; callers run it on the session event loop.
type Controller struct {
	renderer Renderer
	logger   *slog.Logger

	messages []ChatMessage
	typing   bool
}

// NewController creates a transcript bound to renderer.
func NewController(renderer Renderer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{renderer: renderer, logger: logger}
}

// AppendUser trims text and appends it as a user turn.
// Empty input after trimming is ignored and reported as false.
func (c *Controller) AppendUser(text, messageID string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	c.Append(ChatMessage{Sender: SenderUser, Content: text, MessageID: messageID})
	return true
}

// AppendAssistant appends an assistant turn.
func (c *Controller) AppendAssistant(text, messageID string) {
	c.Append(ChatMessage{Sender: SenderAssistant, Content: text, MessageID: messageID})
}

// Append records msg and renders it.
func (c *Controller) Append(msg ChatMessage) {
	c.messages = append(c.messages, msg)
	c.logger.Debug("transcript append",
		slog.String("sender", string(msg.Sender)),
		slog.String("message_id", msg.MessageID),
		slog.Int("len", len(c.messages)))
	c.renderer.AppendMessage(msg)
	c.renderer.ScrollToBottom()
}

// ShowTyping renders the typing indicator.
func (c *Controller) ShowTyping() {
	c.typing = true
	c.renderer.ShowTyping()
	c.renderer.ScrollToBottom()
}

// ClearTyping removes the typing indicator.
func (c *Controller) ClearTyping() {
	c.typing = false
	c.renderer.ClearTyping()
	c.renderer.ScrollToBottom()
}

// TypingVisible reports whether the typing indicator is shown.
func (c *Controller) TypingVisible() bool {
	return c.typing
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []ChatMessage {
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of chat turns.
func (c *Controller) Len() int {
	return len(c.messages)
}
