package uploads

import (
	"errors"
)

var (
	ErrEmptyFile             = errors.New("file is empty")
	ErrContentTypeIsRequired = errors.New("contentType is required")
	ErrInvalidContentType    = errors.New("invalid contentType")
)
