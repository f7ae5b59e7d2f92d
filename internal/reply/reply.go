// Package reply tracks the single outstanding reply draft of a chat window.
package reply

import "sync"

// Draft references the message being replied to, with the snippet shown in
// the banner above the input.
type Draft struct {
	TargetID int64
	Sender   string
	Snippet  string
	Kind     string
}

// Banner is what the draft banner displays.
type Banner struct {
	Visible bool   `json:"visible"`
	Sender  string `json:"sender"`
	Content string `json:"content"`
	Media   string `json:"media"`
}

func (d Draft) Banner() Banner {
	b := Banner{
		Visible: true,
		Sender:  "رد على " + d.Sender,
		Content: d.Snippet,
	}
	if d.Kind != "" {
		b.Media = "[" + d.Kind + "]"
	}
	return b
}

type Tracker struct {
	mu       sync.Mutex
	draft    *Draft
	onChange func(Banner)
}

// NewTracker returns an empty tracker. onChange, if set, is called after
// every Begin and Dismiss, outside the lock.
func NewTracker(onChange func(Banner)) *Tracker {
	return &Tracker{onChange: onChange}
}

// Begin replaces any previous draft.
func (t *Tracker) Begin(id int64, sender, snippet, kind string) {
	d := Draft{TargetID: id, Sender: sender, Snippet: snippet, Kind: kind}

	t.mu.Lock()
	t.draft = &d
	t.mu.Unlock()

	t.notify(d.Banner())
}

func (t *Tracker) Dismiss() {
	t.mu.Lock()
	t.draft = nil
	t.mu.Unlock()

	t.notify(Banner{})
}

func (t *Tracker) Current() (Draft, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.draft == nil {
		return Draft{}, false
	}
	return *t.draft, true
}

// TargetID is nil when there is no draft.
func (t *Tracker) TargetID() *int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.draft == nil {
		return nil
	}
	id := t.draft.TargetID
	return &id
}

func (t *Tracker) notify(b Banner) {
	if t.onChange != nil {
		t.onChange(b)
	}
}
