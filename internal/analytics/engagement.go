// Package analytics derives campaign statistics and subscriber engagement
// classifications from recorded events.
package analytics

import (
	"time"

	"github.com/ignite/marketing-engine/internal/domain"
)

// Recency windows for engagement classification.
const (
	recentWindow = 30 * 24 * time.Hour
	staleWindow  = 90 * 24 * time.Hour
)

// suppressionBounceThreshold is the bounce count at which a subscriber
// becomes suppression-eligible regardless of engagement history.
const suppressionBounceThreshold = 3

// Engagement holds the derived classification for one subscriber.
type Engagement struct {
	Level domain.EngagementLevel
	Score float64
}

// Classify derives the engagement level from send/open/click/bounce history.
// It is a pure function of its inputs so the same history always classifies
// the same way; callers recompute it whenever a relevant event arrives.
func Classify(emailsReceived, bounceCount int, lastOpenAt, lastClickAt *time.Time, now time.Time) Engagement {
	if bounceCount >= suppressionBounceThreshold {
		return Engagement{Level: domain.EngagementSuppressed, Score: 0}
	}

	lastEngaged := lastOpenAt
	if lastClickAt != nil && (lastEngaged == nil || lastClickAt.After(*lastEngaged)) {
		lastEngaged = lastClickAt
	}

	if lastEngaged == nil {
		// Never opened or clicked: fresh contacts are new, contacts that
		// kept receiving without reacting decay toward inactive.
		switch {
		case emailsReceived < 3:
			return Engagement{Level: domain.EngagementNew, Score: 0.5}
		case emailsReceived < 10:
			return Engagement{Level: domain.EngagementAtRisk, Score: 0.3}
		default:
			return Engagement{Level: domain.EngagementInactive, Score: 0.1}
		}
	}

	since := now.Sub(*lastEngaged)
	switch {
	case lastClickAt != nil && now.Sub(*lastClickAt) <= recentWindow:
		return Engagement{Level: domain.EngagementEngaged, Score: 0.9}
	case since <= recentWindow:
		return Engagement{Level: domain.EngagementActive, Score: 0.7}
	case since <= staleWindow:
		return Engagement{Level: domain.EngagementAtRisk, Score: 0.4}
	default:
		return Engagement{Level: domain.EngagementInactive, Score: 0.2}
	}
}
