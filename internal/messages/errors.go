package messages

import (
	"errors"
)

var (
	ErrTransport           = errors.New("transport failure")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrMessageIsNotExist   = errors.New("message is not exist")
	ErrNotReplyable        = errors.New("message can not be replied to")
	ErrInvalidMessageID    = errors.New("invalid message id")
	ErrInvalidForm         = errors.New("invalid form")
	ErrConversationIsEmpty = errors.New("conversation username is required")
)

// UnknownErrorMessage is shown when the server rejects a send without saying why.
const UnknownErrorMessage = "حدث خطأ غير معروف"

// AppError is an application-level failure reported by the chat server as
// {"error": "..."}.
type AppError struct {
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// UserMessage returns the text shown to the user for a failed action.
func UserMessage(err error) string {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.Message
	case errors.Is(err, ErrMalformedResponse):
		return ErrMalformedResponse.Error()
	case errors.Is(err, ErrTransport):
		return ErrTransport.Error()
	case err == nil:
		return ""
	}
	return err.Error()
}
