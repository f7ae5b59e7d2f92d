package uploads

import (
	"strings"
)

const (
	VoiceNoteFilename    = "voicemessage.webm"
	VoiceNoteContentType = "audio/webm"
)

// Field names of the send-message multipart form.
const (
	FieldImage     = "image"
	FieldVideo     = "video"
	FieldVoiceNote = "voice_note"
)

// File is an attachment held in memory until it is sent.
type File struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
}

// NewFile validates a user-selected file. Only image and video types can be
// attached by selection; audio goes through voice capture.
func NewFile(filename, contentType string, data []byte) (*File, error) {
	if contentType == "" {
		return nil, ErrContentTypeIsRequired
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if _, ok := ExtForMime(contentType); !ok {
		return nil, ErrInvalidContentType
	}

	f := &File{Filename: filename, ContentType: contentType, Data: data}
	if f.Field() == "" {
		return nil, ErrInvalidContentType
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	f.ID = id

	if f.Filename == "" {
		ext, _ := ExtForMime(contentType)
		f.Filename = id + ext
	}

	return f, nil
}

// NewVoiceNote wraps recorded audio the way the chat server expects it.
func NewVoiceNote(data []byte) *File {
	id, err := GenerateID()
	if err != nil {
		id = ""
	}
	return &File{
		ID:          id,
		Filename:    VoiceNoteFilename,
		ContentType: VoiceNoteContentType,
		Data:        data,
	}
}

// Field picks the form field for a selected file by its declared media type.
// Anything that is neither image nor video is not attached.
func (f *File) Field() string {
	if f == nil {
		return ""
	}
	ct := baseMime(f.ContentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return FieldImage
	case strings.HasPrefix(ct, "video/"):
		return FieldVideo
	}
	return ""
}
