package domain

import (
	"net/url"
	"strings"
	"time"
)

// EngagementLevel classifies how responsive a subscriber is. Levels are
// derived from send/open/click/bounce history and recomputed whenever a
// relevant event arrives; they drive targeting and suppression decisions.
type EngagementLevel string

const (
	EngagementNew        EngagementLevel = "new"
	EngagementActive     EngagementLevel = "active"
	EngagementEngaged    EngagementLevel = "engaged"
	EngagementAtRisk     EngagementLevel = "at_risk"
	EngagementInactive   EngagementLevel = "inactive"
	EngagementSuppressed EngagementLevel = "suppression_eligible"
)

// Subscriber represents a single marketing contact, independent of any
// storefront customer account.
type Subscriber struct {
	ID         string   `json:"id" db:"id"`
	Email      string   `json:"email" db:"email"`
	Name       string   `json:"name" db:"name"`
	Source     string   `json:"source" db:"source"`
	Tags       []string `json:"tags" db:"tags"`
	Subscribed bool     `json:"subscribed" db:"subscribed"`

	EngagementScore float64         `json:"engagement_score" db:"engagement_score"`
	EngagementLevel EngagementLevel `json:"engagement_level" db:"engagement_level"`
	BounceCount     int             `json:"bounce_count" db:"bounce_count"`
	EmailsReceived  int             `json:"emails_received" db:"emails_received"`
	LastOpenAt      *time.Time      `json:"last_open_at" db:"last_open_at"`
	LastClickAt     *time.Time      `json:"last_click_at" db:"last_click_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasAnyTag reports whether the subscriber carries at least one of the
// given tags. An empty filter matches nothing.
func (s *Subscriber) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range s.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ValidateEmail performs basic syntactic email validation.
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 {
		return false
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}

	local, dom := parts[0], parts[1]
	if len(local) == 0 || len(local) > 64 {
		return false
	}
	if len(dom) == 0 || len(dom) > 253 {
		return false
	}
	if !strings.Contains(dom, ".") {
		return false
	}

	_, err := url.Parse("mailto:" + email)
	return err == nil
}

// NormalizeEmail lowercases and trims an address so that dedup keys and
// unique indexes compare consistently.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
