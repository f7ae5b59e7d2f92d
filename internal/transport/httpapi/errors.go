package httpapi

import (
	"errors"
	"net/http"

	"github.com/kgellert/trimer-client/internal/cache"
	"github.com/kgellert/trimer-client/internal/capture"
	"github.com/kgellert/trimer-client/internal/chats"
	"github.com/kgellert/trimer-client/internal/messages"
	messagesservice "github.com/kgellert/trimer-client/internal/messages/service"
	"github.com/kgellert/trimer-client/internal/session"
	"github.com/kgellert/trimer-client/internal/uploads"
)

func MapError(err error) (status int, code, msg string) {
	var appErr *messages.AppError

	switch {
	case errors.As(err, &appErr):
		return http.StatusBadGateway, "server_error", appErr.Message

	case errors.Is(err, messages.ErrConversationIsEmpty):
		return http.StatusBadRequest, "conversation_required", err.Error()

	case errors.Is(err, messages.ErrInvalidMessageID):
		return http.StatusBadRequest, "invalid_message_id", err.Error()

	case errors.Is(err, messages.ErrInvalidForm):
		return http.StatusBadRequest, "invalid_form", err.Error()

	case errors.Is(err, messages.ErrMessageIsNotExist):
		return http.StatusNotFound, "message_not_found", err.Error()

	case errors.Is(err, messages.ErrNotReplyable):
		return http.StatusConflict, "not_replyable", err.Error()

	case errors.Is(err, messagesservice.ErrUnknownRoom):
		return http.StatusNotFound, "room_not_found", err.Error()

	case errors.Is(err, chats.ErrChatNotFound):
		return http.StatusNotFound, "chat_not_found", err.Error()

	case errors.Is(err, chats.ErrChatListNotFound):
		return http.StatusNotFound, "chat_list_not_found", err.Error()

	case errors.Is(err, session.ErrAttachmentSelected):
		return http.StatusConflict, "attachment_selected", err.Error()

	case errors.Is(err, capture.ErrRecordingInProgress):
		return http.StatusConflict, "recording_in_progress", err.Error()

	case errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusForbidden, "microphone_denied", capture.MicDeniedMessage

	case errors.Is(err, capture.ErrEmptyRecording):
		return http.StatusBadRequest, "empty_recording", err.Error()

	case errors.Is(err, uploads.ErrEmptyFile):
		return http.StatusBadRequest, "empty_file", err.Error()

	case errors.Is(err, uploads.ErrContentTypeIsRequired):
		return http.StatusBadRequest, "content_type_required", err.Error()

	case errors.Is(err, uploads.ErrInvalidContentType):
		return http.StatusBadRequest, "invalid_content_type", err.Error()

	case errors.Is(err, cache.ErrInvalidURL):
		return http.StatusBadRequest, "invalid_url", err.Error()

	case errors.Is(err, messages.ErrTransport), errors.Is(err, messages.ErrMalformedResponse):
		return http.StatusBadGateway, "upstream_unavailable", messages.UserMessage(err)
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
