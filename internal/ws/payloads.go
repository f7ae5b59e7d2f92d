package ws

import "github.com/kgellert/trimer-client/internal/reply"

type ViewResetPayload struct {
	HTML string `json:"html"`
}

type MessageAppendPayload struct {
	ID    int64  `json:"id"`
	HTML  string `json:"html"`
	Fresh bool   `json:"fresh"`
	// VoiceURL is set when the page should bind a waveform to the message.
	VoiceURL string `json:"voice_url,omitempty"`
}

type MessageReceiptPayload struct {
	ID    int64  `json:"id"`
	Read  bool   `json:"read"`
	Color string `json:"color,omitempty"`
}

type ReplyBannerPayload struct {
	reply.Banner
}

type SendStatePayload struct {
	Sending  bool `json:"sending"`
	Disabled bool `json:"disabled"`
}

type VisibilityPayload struct {
	Visible bool `json:"visible"`
}

type InputResetPayload struct {
	Value string `json:"value"`
	Rows  int    `json:"rows"`
}

type ControlsPayload struct {
	ShowSend   bool `json:"show_send"`
	ShowRecord bool `json:"show_record"`
	ShowAttach bool `json:"show_attach"`
}

type AttachmentPreviewPayload struct {
	Visible     bool   `json:"visible"`
	ID          string `json:"id,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type RecordStatePayload struct {
	Recording bool `json:"recording"`
}

type RecordTimerPayload struct {
	Clock string `json:"clock"`
}

type VoiceReadyPayload struct {
	ID       int64  `json:"id"`
	Duration string `json:"duration"`
	// Peaks is base64 in JSON.
	Peaks []byte `json:"peaks,omitempty"`
}

type VoiceStatePayload struct {
	ID      int64 `json:"id"`
	Playing bool  `json:"playing"`
}

type ImageModalPayload struct {
	Visible bool   `json:"visible"`
	URL     string `json:"url,omitempty"`
}

type ChatListUpdatePayload struct {
	HTML string `json:"html"`
}

type OrientationLockPayload struct {
	Mode string `json:"mode"`
}

type AlertPayload struct {
	Message string `json:"message"`
}
