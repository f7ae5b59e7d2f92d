package ws

type EventType string

// Server → page events.
const (
	Hello             EventType = "hello"
	ViewReset         EventType = "view.reset"
	MessageAppend     EventType = "message.append"
	MessageReceipt    EventType = "message.receipt"
	ViewScroll        EventType = "view.scroll"
	ReplyBanner       EventType = "reply.banner"
	SendState         EventType = "send.state"
	SendSuccess       EventType = "send.success"
	InputReset        EventType = "input.reset"
	Controls          EventType = "controls"
	AttachmentPreview EventType = "attachment.preview"
	RecordState       EventType = "record.state"
	RecordTimer       EventType = "record.timer"
	VoiceReady        EventType = "voice.ready"
	VoiceState        EventType = "voice.state"
	ImageModal        EventType = "image.modal"
	ChatListUpdate    EventType = "chatlist.update"
	OrientationLock   EventType = "orientation.lock"
	Alert             EventType = "alert"
)

// Page → server actions.
const (
	ActionSubscribe         = "subscribe"
	ActionInput             = "input"
	ActionKey               = "key"
	ActionClick             = "click"
	ActionImageClose        = "image.close"
	ActionReplyDismiss      = "reply.dismiss"
	ActionRecordToggle      = "record.toggle"
	ActionVoiceToggle       = "voice.toggle"
	ActionVoiceFinish       = "voice.finish"
	ActionAttachmentRemove  = "attachment.remove"
	ActionChatListClick     = "chatlist.click"
	ActionResize            = "resize"
	ActionOrientationFailed = "orientation.failed"
)

// ChatListRoom is the room every page showing the sidebar subscribes to.
const ChatListRoom = "chat-list"
