package segment

import "errors"

// Sentinel errors for the segment layer.
var (
	ErrNotFound = errors.New("segment not found")
)
