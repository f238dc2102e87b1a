package domain

import "time"

// EventType enumerates delivery and engagement events recorded per campaign.
type EventType string

const (
	EventDelivered    EventType = "delivered"
	EventOpened       EventType = "opened"
	EventClicked      EventType = "clicked"
	EventBounced      EventType = "bounced"
	EventComplained   EventType = "complained"
	EventUnsubscribed EventType = "unsubscribed"
)

// CampaignEvent is one recorded delivery/engagement event. Rows are
// append-only and never updated. At most one `opened` event exists per
// (message, recipient) pair; `clicked` events are unbounded per pair.
type CampaignEvent struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Email      string    `json:"email" db:"email"`
	EventType  EventType `json:"event_type" db:"event_type"`
	MessageID  string    `json:"message_id" db:"message_id"`
	LinkURL    string    `json:"link_url,omitempty" db:"link_url"`
	LinkIndex  int       `json:"link_index" db:"link_index"`
	UserAgent  string    `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress  string    `json:"ip_address,omitempty" db:"ip_address"`
	IsBot      bool      `json:"is_bot" db:"is_bot"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CampaignStats is the aggregated view the analytics layer derives from
// recorded events. Rates are 0 (not NaN) when DeliveredCount is 0.
type CampaignStats struct {
	CampaignID   string  `json:"campaign_id"`
	Delivered    int     `json:"delivered"`
	Opened       int     `json:"opened"`
	Clicked      int     `json:"clicked"`
	Bounced      int     `json:"bounced"`
	Complained   int     `json:"complained"`
	Unsubscribed int     `json:"unsubscribed"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
}

// ClickBreakdown groups recorded clicks by destination URL.
type ClickBreakdown struct {
	URL              string `json:"url"`
	Clicks           int    `json:"clicks"`
	UniqueRecipients int    `json:"unique_recipients"`
}

// TimelineBucket is one hour of opens/clicks since the campaign's sent_at.
type TimelineBucket struct {
	Hour   time.Time `json:"hour"`
	Opens  int       `json:"opens"`
	Clicks int       `json:"clicks"`
}
