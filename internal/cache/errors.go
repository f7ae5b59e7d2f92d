package cache

import "errors"

var (
	ErrPrecacheFailed = errors.New("precache request failed")
	ErrInvalidURL     = errors.New("invalid asset url")
)
