// Package auth drives the external calendar authorization handshake:
// open the provider's consent page, then poll the backend until it
// reports the user as authorized or the deadline passes.
package auth

import "context"

// State is the authorization state of a session.
type State string

const (
	StateIdle      State = "idle"
	StateAwaiting  State = "awaiting_external_action"
	StateConfirmed State = "confirmed"
	StateTimedOut  State = "timed_out"
)

// Affordance is the appearance of the "connect calendar" control.
type Affordance string

const (
	AffordanceReady      Affordance = "ready"
	AffordanceConnecting Affordance = "connecting"
	AffordanceConnected  Affordance = "connected"
)

// Timer kinds armed on the event loop.
const (
	KindPoll     = "auth_poll"
	KindDeadline = "auth_deadline"
)

// Assistant messages posted to the transcript.
const (
	OpenedMessage        = "I've opened Google Calendar authorization in a new tab. Please complete the authorization process to allow me to access your calendar."
	ConnectedMessage     = "Successfully connected to your Google Calendar! I'll now monitor your schedule and suggest food orders at appropriate times."
	ConnectFailedMessage = "Sorry, I encountered an error connecting to Google Calendar. Please try again later."
)

// URLSource returns the provider consent page url.
type URLSource interface {
	AuthorizationURL(ctx context.Context) (string, error)
}

// Oracle reports whether the backend holds credentials for the user.
type Oracle interface {
	IsAuthorized(ctx context.Context) (bool, error)
}

// Opener opens a url outside the client, usually in a browser.
type Opener interface {
	Open(url string) error
}

// Renderer draws the connect control.
type Renderer interface {
	SetConnectAffordance(a Affordance)
}
