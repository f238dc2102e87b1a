package automation

import "errors"

// Sentinel errors for the automation layer.
var (
	ErrNotFound         = errors.New("automation not found")
	ErrInvalidRecipient = errors.New("invalid recipient email")
	ErrInvalidEvent     = errors.New("trigger event name is required")
)
