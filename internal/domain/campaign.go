package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a one-off campaign.
// Status only advances draft → scheduled → sending → sent|failed.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
)

// Campaign represents a one-off or segment-targeted bulk email, distinct
// from automations. Status and counters are mutated only by the sender.
type Campaign struct {
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Subject      string         `json:"subject" db:"subject"`
	FromName     string         `json:"from_name" db:"from_name"`
	FromEmail    string         `json:"from_email" db:"from_email"`
	HTMLContent  string         `json:"html_content" db:"html_content"`
	PlainContent string         `json:"plain_content" db:"plain_content"`
	Audience     Audience       `json:"audience" db:"audience"`
	Status       CampaignStatus `json:"status" db:"status"`
	ScheduledAt  *time.Time     `json:"scheduled_at" db:"scheduled_at"`

	// RecipientSnapshot freezes the resolved audience at send time so later
	// subscriber-list changes never change who a sent campaign went to.
	RecipientSnapshot []string `json:"recipient_snapshot,omitempty" db:"recipient_snapshot"`
	RecipientCount    int      `json:"recipient_count" db:"recipient_count"`
	DeliveredCount    int      `json:"delivered_count" db:"delivered_count"`
	TestSentTo        []string `json:"test_sent_to,omitempty" db:"test_sent_to"`

	SentAt    *time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent || c.Status == CampaignFailed
}

// Sendable reports whether a send may legally start from the current status.
func (c *Campaign) Sendable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// Audience describes who a campaign targets: everyone, an inline filter,
// or a saved segment referenced by ID. Zero value means "all subscribers".
type Audience struct {
	All       bool     `json:"all,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	SegmentID string   `json:"segment_id,omitempty"`
}
