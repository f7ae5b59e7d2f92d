package chats

import (
	"errors"
)

var (
	ErrChatListNotFound = errors.New("chat list element not found")
	ErrChatNotFound     = errors.New("chat not found")
)
