// Package wstest provides an in-memory ws.Emitter for tests.
package wstest

import (
	"encoding/json"
	"sync"

	"github.com/kgellert/trimer-client/internal/ws"
)

type Event struct {
	Room    string
	Type    ws.EventType
	Payload any
}

type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(room string, t ws.EventType, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Room: room, Type: t, Payload: payload})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t in emission order.
func (r *Recorder) OfType(t ws.EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Types() []ws.EventType {
	var out []ws.EventType
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Decode converts a recorded payload into dst through its JSON form.
func Decode(payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
