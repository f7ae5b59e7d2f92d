package capture

import "errors"

var (
	ErrRecordingInProgress = errors.New("recording in progress")
	ErrPermissionDenied    = errors.New("microphone permission denied")
	ErrEmptyRecording      = errors.New("recording is empty")
)

// MicDeniedMessage is shown when the microphone cannot be opened.
const MicDeniedMessage = "لا يمكن الوصول للميكروفون. يرجى التأكد من إعطاء الإذن."
