// Package render turns chat messages into view fragments and their markup.
// It holds no state besides the identity of the current user.
package render

import (
	"fmt"

	"github.com/kgellert/trimer-client/internal/messages"
	"github.com/kgellert/trimer-client/internal/reply"
)

// SelfLabel replaces the current user's name in reply labels.
const SelfLabel = "أنت"

const (
	ReadIconColor = "#4fc3f7"

	sentWaveColor         = "rgba(255,255,255,0.5)"
	sentProgressColor     = "#ffffff"
	receivedWaveColor     = "#A8A8A8"
	receivedProgressColor = "#3797f0"
)

type Receipt int

const (
	ReceiptNone Receipt = iota
	ReceiptSent
	ReceiptRead
)

// Target is the element inside a fragment that received a click.
type Target string

const (
	TargetBody           Target = "body"
	TargetImage          Target = "image"
	TargetVideo          Target = "video"
	TargetReplyIndicator Target = "reply-indicator"
	TargetPlayButton     Target = "play-button"
	TargetLink           Target = "link"
)

type ReplyIndicator struct {
	Sender  string
	Content string
	Media   string
}

// Voice describes the playback controls of a voice message and the waveform
// bound to its URL.
type Voice struct {
	URL          string
	WaveformID   string
	PlayButtonID string
	DurationID   string
	Duration     string
	// Peaks are bar heights in 0..255, empty until the audio is sampled.
	Peaks         []byte
	WaveColor     string
	ProgressColor string
}

type Fragment struct {
	ID       int64
	System   bool
	Sent     bool
	Fresh    bool
	Reply    *ReplyIndicator
	Voice    *Voice
	ImageURL string
	VideoURL string
	Content  string
	Time     string
	Receipt  Receipt

	draft *reply.Draft
}

type Engine struct {
	currentUser string
}

func New(currentUser string) *Engine {
	return &Engine{currentUser: currentUser}
}

func (e *Engine) CurrentUser() string {
	return e.currentUser
}

// Render builds the fragment for msg. fresh marks an echo or a message first
// observed by polling.
func (e *Engine) Render(msg messages.Message, fresh bool) Fragment {
	f := Fragment{ID: msg.ID, Fresh: fresh}

	if msg.IsSystemMessage {
		f.System = true
		f.Content = msg.Content
		return f
	}

	f.Sent = msg.Sender == e.currentUser
	f.Time = messages.FormatTime(msg.Timestamp)

	if f.Sent {
		f.Receipt = ReceiptSent
		if msg.IsRead {
			f.Receipt = ReceiptRead
		}
	}

	if msg.ReplyTo != nil {
		f.Reply = &ReplyIndicator{
			Sender:  e.senderLabel(msg.ReplyTo.Sender),
			Content: msg.ReplyTo.Content,
			Media:   msg.ReplyTo.Kind().Badge(),
		}
	}

	switch {
	case msg.VoiceNoteURL != "":
		f.Voice = e.voice(msg)
	case msg.ImageURL != "":
		f.ImageURL = msg.ImageURL
		f.Content = msg.Content
	case msg.VideoURL != "":
		f.VideoURL = msg.VideoURL
		f.Content = msg.Content
	default:
		f.Content = msg.Content
	}

	f.draft = &reply.Draft{
		TargetID: msg.ID,
		Sender:   e.senderLabel(msg.Sender),
		Snippet:  msg.Content,
		Kind:     msg.Kind().Label(),
	}

	return f
}

func (e *Engine) voice(msg messages.Message) *Voice {
	id := fmt.Sprintf("waveform-%d", msg.ID)
	v := &Voice{
		URL:           msg.VoiceNoteURL,
		WaveformID:    id,
		PlayButtonID:  "play-" + id,
		DurationID:    "duration-" + id,
		Duration:      "00:00",
		WaveColor:     receivedWaveColor,
		ProgressColor: receivedProgressColor,
	}
	if msg.Sender == e.currentUser {
		v.WaveColor = sentWaveColor
		v.ProgressColor = sentProgressColor
	}
	return v
}

func (e *Engine) senderLabel(sender string) string {
	if sender == e.currentUser {
		return SelfLabel
	}
	return sender
}

// Click returns the reply draft a click on target opens. Clicks on media,
// the reply indicator, the play button or links do not open one, and system
// messages never do.
func (f Fragment) Click(target Target) (reply.Draft, bool) {
	if f.System || f.draft == nil {
		return reply.Draft{}, false
	}
	switch target {
	case TargetImage, TargetVideo, TargetReplyIndicator, TargetPlayButton, TargetLink:
		return reply.Draft{}, false
	}
	return *f.draft, true
}

// UpgradeReceipt flips a sent-but-unread check to the read variant. It
// reports whether anything changed.
func (f *Fragment) UpgradeReceipt() bool {
	if f.Receipt != ReceiptSent {
		return false
	}
	f.Receipt = ReceiptRead
	return true
}

func (f Fragment) Classes() []string {
	if f.System {
		return []string{"system-message"}
	}
	if f.Sent {
		return []string{"message", "sent"}
	}
	return []string{"message", "received"}
}
