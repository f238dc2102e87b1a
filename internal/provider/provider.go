// Package provider abstracts outbound email delivery. The engine never
// talks to an ESP directly; it is handed an EmailProvider at construction
// time. When no credentials are configured a logging double is injected
// instead, so call sites never check for a nil client.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Message is a single outbound email.
type Message struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	HTML      string
	Text      string

	// CampaignID/AutomationID tag the message for downstream event
	// correlation. At most one is set.
	CampaignID   string
	AutomationID string
}

// EmailProvider delivers a single message and returns the provider-assigned
// message ID. Implementations must honor ctx cancellation/deadlines; a
// timeout is reported as a retryable *Error.
type EmailProvider interface {
	Send(ctx context.Context, msg Message) (string, error)
	Name() string
}

// Error is a delivery failure from an ESP. Retryable errors feed the queue
// processor's retry accounting; non-retryable ones (bad address, rejected
// content) fail the item immediately.
type Error struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient provider failure.
// Unknown errors (including context timeouts) are treated as retryable:
// the cost of one extra attempt is lower than silently dropping a send.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}
