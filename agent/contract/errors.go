package contract

import "errors"

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrToolUnavailable   = errors.New("tool is not configured")
	ErrMemoryUnavailable = errors.New("memory store unavailable")
	ErrValidation        = errors.New("validation failed")
)
