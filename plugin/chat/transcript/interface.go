// Package transcript keeps the ordered chat log and drives its renderer.
package transcript

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is one rendered chat turn. It is never mutated after rendering.
type ChatMessage struct {
	Sender    Sender
	Content   string
	MessageID string
}

// Renderer is the presentation capability the transcript draws through.
type Renderer interface {
	// AppendMessage draws one chat turn at the end of the transcript.
	AppendMessage(msg ChatMessage)

	// ShowTyping draws the assistant typing indicator.
	ShowTyping()

	// ClearTyping removes the typing indicator if one is shown.
	ClearTyping()

	// ScrollToBottom keeps the newest content visible.
	ScrollToBottom()
}
