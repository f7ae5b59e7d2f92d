// Package ws defines the events pushed to the local page and the actions it
// sends back.
package ws

import (
	"encoding/json"
)

// Emitter delivers an event to every page subscribed to room.
type Emitter interface {
	Emit(room string, t EventType, payload any)
}

type ServerEvent struct {
	Type    EventType       `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEvent(room string, t EventType, payload any) (ServerEvent, error) {
	evt := ServerEvent{Type: t, Room: room}
	if payload == nil {
		return evt, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return ServerEvent{}, err
	}
	evt.Payload = raw

	return evt, nil
}

// ClientMsg is an action reported by the page.
type ClientMsg struct {
	Type      string   `json:"type"`
	Rooms     []string `json:"rooms,omitempty"`
	Room      string   `json:"room,omitempty"`
	MessageID int64    `json:"message_id,omitempty"`
	Target    string   `json:"target,omitempty"`
	Text      string   `json:"text,omitempty"`
	Key       string   `json:"key,omitempty"`
	Shift     bool     `json:"shift,omitempty"`
	URL       string   `json:"url,omitempty"`
	Username  string   `json:"username,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(string, EventType, any) {}
