// Package session holds the mutable state of one open conversation: the
// input field, the selected attachment, the reply draft and the high-water
// mark of seen message ids.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/kgellert/trimer-client/internal/capture"
	"github.com/kgellert/trimer-client/internal/reply"
	"github.com/kgellert/trimer-client/internal/uploads"
	"github.com/kgellert/trimer-client/internal/view"
	"github.com/kgellert/trimer-client/internal/ws"
)

var ErrAttachmentSelected = errors.New("attachment already selected")

type Session struct {
	CurrentUser string
	OtherUser   string

	Conversation *view.Conversation
	Reply        *reply.Tracker

	room    string
	emitter ws.Emitter

	mu            sync.Mutex
	input         string
	selected      *uploads.File
	lastMessageID int64
	recording     func() bool
	// recordingStarting is set while a recording start is between its
	// attachment check and the recorder taking the microphone.
	recordingStarting bool
}

func New(currentUser, otherUser, room string, emitter ws.Emitter) *Session {
	if emitter == nil {
		emitter = ws.Discard{}
	}

	s := &Session{
		CurrentUser:  currentUser,
		OtherUser:    otherUser,
		Conversation: view.New(room, emitter),
		room:         room,
		emitter:      emitter,
	}
	s.Reply = reply.NewTracker(func(b reply.Banner) {
		emitter.Emit(room, ws.ReplyBanner, ws.ReplyBannerPayload{Banner: b})
	})

	return s
}

func (s *Session) Room() string { return s.room }

// TrackRecording tells the session how to find out whether a voice
// recording is running.
func (s *Session) TrackRecording(recording func() bool) {
	s.mu.Lock()
	s.recording = recording
	s.mu.Unlock()
}

// SetInput stores the input field value and switches between the send
// control and the record/attach controls.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()

	s.emitControls(text)
}

// Input returns the trimmed input field value.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.input)
}

func (s *Session) ClearInput() {
	s.mu.Lock()
	s.input = ""
	s.mu.Unlock()

	s.emitter.Emit(s.room, ws.InputReset, ws.InputResetPayload{Value: "", Rows: 1})
	s.emitControls("")
}

func (s *Session) emitControls(text string) {
	hasText := strings.TrimSpace(text) != ""
	s.emitter.Emit(s.room, ws.Controls, ws.ControlsPayload{
		ShowSend:   hasText,
		ShowRecord: !hasText,
		ShowAttach: !hasText,
	})
}

// Select replaces the selected attachment. It fails while a recording is
// running or starting.
func (s *Session) Select(f *uploads.File) error {
	s.mu.Lock()
	if s.recordingStarting || (s.recording != nil && s.recording()) {
		s.mu.Unlock()
		return capture.ErrRecordingInProgress
	}
	s.selected = f
	s.mu.Unlock()

	s.emitter.Emit(s.room, ws.AttachmentPreview, ws.AttachmentPreviewPayload{
		Visible:     true,
		ID:          f.ID,
		Filename:    f.Filename,
		ContentType: f.ContentType,
	})
	return nil
}

func (s *Session) SelectedFile() *uploads.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()

	s.emitter.Emit(s.room, ws.AttachmentPreview, ws.AttachmentPreviewPayload{Visible: false})
}

// BeginRecording is the capture precheck: no recording while a file is
// selected. Until release is called, Select refuses new attachments.
func (s *Session) BeginRecording() (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != nil {
		return nil, ErrAttachmentSelected
	}
	if s.recordingStarting {
		return nil, capture.ErrRecordingInProgress
	}
	s.recordingStarting = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.recordingStarting = false
			s.mu.Unlock()
		})
	}, nil
}

func (s *Session) LastMessageID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessageID
}

// SetLastMessageID overwrites the high-water mark.
func (s *Session) SetLastMessageID(id int64) {
	s.mu.Lock()
	s.lastMessageID = id
	s.mu.Unlock()
}

// Advance raises the high-water mark to id if id is greater.
func (s *Session) Advance(id int64) {
	s.mu.Lock()
	if id > s.lastMessageID {
		s.lastMessageID = id
	}
	s.mu.Unlock()
}
