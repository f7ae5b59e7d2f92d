package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/kgellert/trimer-client/internal/uploads"
)

type Repo interface {
	GetMessages(ctx context.Context, username string) ([]Message, error)
	SendMessage(ctx context.Context, req SendRequest) (*Message, error)
}

// Message is the server's record. Null fields decode to zero values.
type Message struct {
	ID              int64     `json:"id"`
	Sender          string    `json:"sender"`
	Receiver        string    `json:"receiver"`
	Content         string    `json:"content"`
	ImageURL        string    `json:"image_url"`
	VideoURL        string    `json:"video_url"`
	VoiceNoteURL    string    `json:"voice_note_url"`
	Timestamp       string    `json:"timestamp"`
	IsRead          bool      `json:"is_read"`
	SeenAt          string    `json:"seen_at"`
	IsSystemMessage bool      `json:"is_system_message"`
	ReplyTo         *ReplyRef `json:"reply_to"`
}

// ReplyRef is the denormalized summary of the message being replied to.
type ReplyRef struct {
	ID           int64  `json:"id"`
	Sender       string `json:"sender"`
	Content      string `json:"content"`
	ImageURL     string `json:"image_url"`
	VideoURL     string `json:"video_url"`
	VoiceNoteURL string `json:"voice_note_url"`
}

func (m Message) Kind() AttachmentKind {
	return attachmentKind(m.ImageURL, m.VideoURL, m.VoiceNoteURL)
}

func (r ReplyRef) Kind() AttachmentKind {
	return attachmentKind(r.ImageURL, r.VideoURL, r.VoiceNoteURL)
}

type AttachmentKind int

const (
	KindNone AttachmentKind = iota
	KindImage
	KindVideo
	KindVoice
)

// attachmentKind uses the label precedence image > video > voice.
func attachmentKind(image, video, voice string) AttachmentKind {
	switch {
	case image != "":
		return KindImage
	case video != "":
		return KindVideo
	case voice != "":
		return KindVoice
	}
	return KindNone
}

// Label is the short form shown in the reply draft banner.
func (k AttachmentKind) Label() string {
	switch k {
	case KindImage:
		return "صورة"
	case KindVideo:
		return "فيديو"
	case KindVoice:
		return "رسالة صوتية"
	}
	return ""
}

// Badge is the form shown inside a rendered reply indicator.
func (k AttachmentKind) Badge() string {
	switch k {
	case KindImage:
		return "📷 صورة"
	case KindVideo:
		return "🎥 فيديو"
	case KindVoice:
		return "🎙️ رسالة صوتية"
	}
	return ""
}

type SendRequest struct {
	Receiver string
	Content  string
	ReplyTo  *int64
	File     *uploads.File
	Voice    *uploads.File
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// FormatTime renders a server timestamp as H:MM. Unparsable input renders
// as an empty string.
func FormatTime(ts string) string {
	if ts == "" {
		return ""
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, ts)
		if err == nil {
			return fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
		}
	}
	return ""
}
