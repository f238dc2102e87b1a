package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrAlreadySent       = errors.New("campaign already sent or sending")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoRecipients      = errors.New("audience resolved to zero recipients")
	ErrPreflightFailed   = errors.New("campaign failed preflight checks")
	ErrNotDraft          = errors.New("only draft campaigns can be deleted")
)
