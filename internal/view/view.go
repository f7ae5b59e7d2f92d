// Package view keeps the ordered set of rendered fragments of one
// conversation and mirrors every change to the page through an emitter.
package view

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kgellert/trimer-client/internal/render"
	"github.com/kgellert/trimer-client/internal/ws"
)

type Conversation struct {
	mu      sync.Mutex
	room    string
	emitter ws.Emitter
	order   []int64
	byID    map[int64]*render.Fragment
	scrolls int
}

func New(room string, emitter ws.Emitter) *Conversation {
	if emitter == nil {
		emitter = ws.Discard{}
	}
	return &Conversation{
		room:    room,
		emitter: emitter,
		byID:    make(map[int64]*render.Fragment),
	}
}

func (c *Conversation) Room() string { return c.room }

// Reset replaces the whole view with frags, dropping duplicate ids.
func (c *Conversation) Reset(frags []render.Fragment) error {
	const op = "view.Reset"

	var b strings.Builder

	c.mu.Lock()
	c.order = c.order[:0]
	c.byID = make(map[int64]*render.Fragment, len(frags))
	for i := range frags {
		f := clone(frags[i])
		if _, ok := c.byID[f.ID]; ok {
			continue
		}
		html, err := f.HTML()
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("%s: message %d: %w", op, f.ID, err)
		}
		b.WriteString(html)
		c.order = append(c.order, f.ID)
		c.byID[f.ID] = &f
	}
	c.mu.Unlock()

	c.emitter.Emit(c.room, ws.ViewReset, ws.ViewResetPayload{HTML: b.String()})
	return nil
}

func (c *Conversation) Clear() {
	_ = c.Reset(nil)
}

// Append adds f at the end unless a fragment with the same id is present.
// It reports whether f was added.
func (c *Conversation) Append(f render.Fragment) (bool, error) {
	const op = "view.Append"

	html, err := f.HTML()
	if err != nil {
		return false, fmt.Errorf("%s: message %d: %w", op, f.ID, err)
	}

	c.mu.Lock()
	if _, ok := c.byID[f.ID]; ok {
		c.mu.Unlock()
		return false, nil
	}
	stored := clone(f)
	c.order = append(c.order, f.ID)
	c.byID[f.ID] = &stored
	c.mu.Unlock()

	p := ws.MessageAppendPayload{ID: f.ID, HTML: html, Fresh: f.Fresh}
	if f.Voice != nil {
		p.VoiceURL = f.Voice.URL
	}
	c.emitter.Emit(c.room, ws.MessageAppend, p)

	return true, nil
}

func (c *Conversation) Has(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.byID[id]
	return ok
}

func (c *Conversation) Fragment(id int64) (render.Fragment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.byID[id]
	if !ok {
		return render.Fragment{}, false
	}
	return clone(*f), true
}

// UpgradeReceipt switches the check icon of message id to the read variant
// in place.
func (c *Conversation) UpgradeReceipt(id int64) bool {
	c.mu.Lock()
	f, ok := c.byID[id]
	changed := ok && f.UpgradeReceipt()
	c.mu.Unlock()

	if changed {
		c.emitter.Emit(c.room, ws.MessageReceipt, ws.MessageReceiptPayload{
			ID:    id,
			Read:  true,
			Color: render.ReadIconColor,
		})
	}
	return changed
}

// SetVoice stores the mm:ss label and waveform peaks of a voice message once
// they are known. An empty clock or nil peaks keep the current value.
func (c *Conversation) SetVoice(id int64, clock string, peaks []byte) bool {
	c.mu.Lock()
	f, ok := c.byID[id]
	if !ok || f.Voice == nil {
		c.mu.Unlock()
		return false
	}
	if clock != "" {
		f.Voice.Duration = clock
	}
	if peaks != nil {
		f.Voice.Peaks = append([]byte(nil), peaks...)
	}
	payload := ws.VoiceReadyPayload{ID: id, Duration: f.Voice.Duration, Peaks: f.Voice.Peaks}
	c.mu.Unlock()

	c.emitter.Emit(c.room, ws.VoiceReady, payload)
	return true
}

func (c *Conversation) ScrollToBottom() {
	c.mu.Lock()
	c.scrolls++
	c.mu.Unlock()

	c.emitter.Emit(c.room, ws.ViewScroll, nil)
}

// Scrolls counts ScrollToBottom calls since creation.
func (c *Conversation) Scrolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scrolls
}

func (c *Conversation) IDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]int64, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Fragments returns a copy of the view in display order.
func (c *Conversation) Fragments() []render.Fragment {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]render.Fragment, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, clone(*c.byID[id]))
	}
	return out
}

// HTML renders the current view as one markup string.
func (c *Conversation) HTML() (string, error) {
	const op = "view.HTML"

	var b strings.Builder
	for _, f := range c.Fragments() {
		html, err := f.HTML()
		if err != nil {
			return "", fmt.Errorf("%s: message %d: %w", op, f.ID, err)
		}
		b.WriteString(html)
	}
	return b.String(), nil
}

func clone(f render.Fragment) render.Fragment {
	if f.Voice != nil {
		v := *f.Voice
		v.Peaks = append([]byte(nil), f.Voice.Peaks...)
		f.Voice = &v
	}
	return f
}
