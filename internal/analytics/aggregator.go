package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/marketing-engine/internal/domain"
)

// Aggregator derives per-campaign statistics from the append-only event
// table. Bot-flagged events are excluded from every aggregate.
type Aggregator struct {
	db *sql.DB
}

// NewAggregator creates an aggregator.
func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db: db}
}

// CampaignStats returns event counts and rates for one campaign. Rates are
// 0, not NaN, when nothing was delivered.
func (a *Aggregator) CampaignStats(ctx context.Context, campaignID string) (*domain.CampaignStats, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*)
		FROM campaign_events
		WHERE campaign_id = $1 AND is_bot = FALSE
		GROUP BY event_type`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.CampaignStats{CampaignID: campaignID}
	for rows.Next() {
		var eventType string
		var n int
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch domain.EventType(eventType) {
		case domain.EventDelivered:
			stats.Delivered = n
		case domain.EventOpened:
			stats.Opened = n
		case domain.EventClicked:
			stats.Clicked = n
		case domain.EventBounced:
			stats.Bounced = n
		case domain.EventComplained:
			stats.Complained = n
		case domain.EventUnsubscribed:
			stats.Unsubscribed = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Delivered > 0 {
		stats.OpenRate = float64(stats.Opened) / float64(stats.Delivered)
		stats.ClickRate = float64(stats.Clicked) / float64(stats.Delivered)
	}
	return stats, nil
}

// ClickBreakdown groups clicks by destination URL with raw and
// unique-recipient counts, most-clicked first.
func (a *Aggregator) ClickBreakdown(ctx context.Context, campaignID string) ([]domain.ClickBreakdown, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT link_url, COUNT(*), COUNT(DISTINCT email)
		FROM campaign_events
		WHERE campaign_id = $1 AND event_type = 'clicked' AND is_bot = FALSE
		GROUP BY link_url
		ORDER BY COUNT(*) DESC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("click breakdown: %w", err)
	}
	defer rows.Close()

	var out []domain.ClickBreakdown
	for rows.Next() {
		var b domain.ClickBreakdown
		if err := rows.Scan(&b.URL, &b.Clicks, &b.UniqueRecipients); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Timeline returns hourly open/click buckets for one campaign in
// chronological order. Hours with no activity produce no bucket.
func (a *Aggregator) Timeline(ctx context.Context, campaignID string) ([]domain.TimelineBucket, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT date_trunc('hour', created_at) AS hour,
			COUNT(*) FILTER (WHERE event_type = 'opened'),
			COUNT(*) FILTER (WHERE event_type = 'clicked')
		FROM campaign_events
		WHERE campaign_id = $1 AND event_type IN ('opened', 'clicked') AND is_bot = FALSE
		GROUP BY hour
		ORDER BY hour ASC`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	var out []domain.TimelineBucket
	for rows.Next() {
		var b domain.TimelineBucket
		if err := rows.Scan(&b.Hour, &b.Opens, &b.Clicks); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
