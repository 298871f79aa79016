// Package realtime carries chat events over a websocket as JSON
// envelopes {"event": name, "data": {...}}.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/seatyyy/ExecuMate/plugin/calendar"
)

// Event names.
const (
	EventMessage  = "message"
	EventResponse = "response"
	EventReminder = "reminder"
)

// Envelope is the frame layout on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MessageEvent is a user chat message sent to the backend.
type MessageEvent struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

// ResponseEvent is an assistant reply.
type ResponseEvent struct {
	UserID    string `json:"user_id"`
	Response  string `json:"response"`
	MessageID string `json:"message_id,omitempty"`
}

// ReminderEvent is a backend reminder about an upcoming calendar event.
type ReminderEvent struct {
	UserID  string                `json:"user_id"`
	Message string                `json:"message"`
	Event   calendar.EventPayload `json:"event"`
}

// Inbound is a decoded server event. Exactly one of Response and
// Reminder is set.
type Inbound struct {
	Event    string
	Response *ResponseEvent
	Reminder *ReminderEvent
}

// UserID returns the addressee of the event.
func (in Inbound) UserID() string {
	switch {
	case in.Response != nil:
		return in.Response.UserID
	case in.Reminder != nil:
		return in.Reminder.UserID
	default:
		return ""
	}
}

// ErrUnknownEvent is returned by Decode for event names it does not handle.
type ErrUnknownEvent struct {
	Event string
}

func (e *ErrUnknownEvent) Error() string {
	return fmt.Sprintf("realtime: unknown event %q", e.Event)
}

// Decode parses one inbound frame.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Inbound{}, fmt.Errorf("realtime: decode envelope: %w", err)
	}

	in := Inbound{Event: env.Event}
	switch env.Event {
	case EventResponse:
		var ev ResponseEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return Inbound{}, fmt.Errorf("realtime: decode %s: %w", env.Event, err)
		}
		in.Response = &ev
	case EventReminder:
		var ev ReminderEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return Inbound{}, fmt.Errorf("realtime: decode %s: %w", env.Event, err)
		}
		in.Reminder = &ev
	default:
		return Inbound{}, &ErrUnknownEvent{Event: env.Event}
	}
	return in, nil
}

// Encode builds one frame for event carrying data.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
