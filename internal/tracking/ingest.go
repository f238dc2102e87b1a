// Package tracking records delivery and engagement events and serves the
// open-pixel and click-redirect endpoints.
package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/marketing-engine/internal/analytics"
	"github.com/ignite/marketing-engine/internal/domain"
	"github.com/ignite/marketing-engine/internal/pkg/logger"
)

// Ingestor writes engagement events and keeps subscriber engagement state
// current. Opens are deduplicated per (message, recipient); clicks are not.
type Ingestor struct {
	db   *sql.DB
	bots *BotDetector
	log  *logger.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(db *sql.DB) *Ingestor {
	return &Ingestor{
		db:   db,
		bots: NewBotDetector(),
		log:  logger.Component("tracking"),
	}
}

// RecordOpen records one open. The existence check before insert is the
// dedup contract: the first call for a (message, recipient) pair stores an
// event, every later call is a silent no-op. Returns whether an event was
// recorded.
func (in *Ingestor) RecordOpen(ctx context.Context, messageID, email, userAgent, ip string) (bool, error) {
	email = domain.NormalizeEmail(email)

	var exists bool
	err := in.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM campaign_events
			WHERE message_id = $1 AND email = $2 AND event_type = 'opened'
		)`, messageID, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("open dedup check: %w", err)
	}
	if exists {
		in.log.Debug("duplicate open ignored", "message_id", messageID, "email", email)
		return false, nil
	}

	isBot := in.bots.IsBot(userAgent)
	if err := in.insertEvent(ctx, &domain.CampaignEvent{
		CampaignID: in.campaignFor(ctx, messageID),
		Email:      email,
		EventType:  domain.EventOpened,
		MessageID:  messageID,
		UserAgent:  userAgent,
		IPAddress:  ip,
		IsBot:      isBot,
	}); err != nil {
		return false, err
	}

	if !isBot {
		if _, err := in.db.ExecContext(ctx, `
			UPDATE subscribers SET last_open_at = NOW(), updated_at = NOW() WHERE email = $1
		`, email); err != nil {
			return true, fmt.Errorf("update last open: %w", err)
		}
		if err := in.recomputeEngagement(ctx, email); err != nil {
			return true, err
		}
	}
	return true, nil
}

// RecordClick records one click. Clicks are intentionally unbounded per
// pair: every call stores an event.
func (in *Ingestor) RecordClick(ctx context.Context, messageID string, linkIndex int, email, linkURL, userAgent, ip string) error {
	email = domain.NormalizeEmail(email)

	isBot := in.bots.IsBot(userAgent)
	if err := in.insertEvent(ctx, &domain.CampaignEvent{
		CampaignID: in.campaignFor(ctx, messageID),
		Email:      email,
		EventType:  domain.EventClicked,
		MessageID:  messageID,
		LinkURL:    linkURL,
		LinkIndex:  linkIndex,
		UserAgent:  userAgent,
		IPAddress:  ip,
		IsBot:      isBot,
	}); err != nil {
		return err
	}

	if !isBot {
		if _, err := in.db.ExecContext(ctx, `
			UPDATE subscribers SET last_click_at = NOW(), updated_at = NOW() WHERE email = $1
		`, email); err != nil {
			return fmt.Errorf("update last click: %w", err)
		}
		return in.recomputeEngagement(ctx, email)
	}
	return nil
}

// RecordBounce records a bounce and raises the subscriber's bounce count.
// Repeated bounces move the engagement level toward suppression-eligible.
func (in *Ingestor) RecordBounce(ctx context.Context, messageID, email string) error {
	email = domain.NormalizeEmail(email)

	if err := in.insertEvent(ctx, &domain.CampaignEvent{
		CampaignID: in.campaignFor(ctx, messageID),
		Email:      email,
		EventType:  domain.EventBounced,
		MessageID:  messageID,
	}); err != nil {
		return err
	}

	if _, err := in.db.ExecContext(ctx, `
		UPDATE subscribers SET bounce_count = bounce_count + 1, updated_at = NOW() WHERE email = $1
	`, email); err != nil {
		return fmt.Errorf("bump bounce count: %w", err)
	}
	return in.recomputeEngagement(ctx, email)
}

// RecordComplaint records a spam complaint and unsubscribes the recipient.
func (in *Ingestor) RecordComplaint(ctx context.Context, messageID, email string) error {
	email = domain.NormalizeEmail(email)

	if err := in.insertEvent(ctx, &domain.CampaignEvent{
		CampaignID: in.campaignFor(ctx, messageID),
		Email:      email,
		EventType:  domain.EventComplained,
		MessageID:  messageID,
	}); err != nil {
		return err
	}

	if _, err := in.db.ExecContext(ctx, `
		UPDATE subscribers SET subscribed = FALSE, updated_at = NOW() WHERE email = $1
	`, email); err != nil {
		return fmt.Errorf("unsubscribe complainer: %w", err)
	}
	return nil
}

// RecordUnsubscribe records an unsubscribe event and clears the flag.
func (in *Ingestor) RecordUnsubscribe(ctx context.Context, messageID, email string) error {
	email = domain.NormalizeEmail(email)

	if err := in.insertEvent(ctx, &domain.CampaignEvent{
		CampaignID: in.campaignFor(ctx, messageID),
		Email:      email,
		EventType:  domain.EventUnsubscribed,
		MessageID:  messageID,
	}); err != nil {
		return err
	}

	if _, err := in.db.ExecContext(ctx, `
		UPDATE subscribers SET subscribed = FALSE, updated_at = NOW() WHERE email = $1
	`, email); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func (in *Ingestor) insertEvent(ctx context.Context, e *domain.CampaignEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := in.db.ExecContext(ctx, `
		INSERT INTO campaign_events
			(id, campaign_id, email, event_type, message_id, link_url, link_index, user_agent, ip_address, is_bot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.CampaignID, e.Email, e.EventType, e.MessageID,
		e.LinkURL, e.LinkIndex, e.UserAgent, e.IPAddress, e.IsBot)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", e.EventType, err)
	}
	return nil
}

// campaignFor resolves the campaign a message belonged to via its delivered
// event. Automation messages have no campaign and resolve to empty.
func (in *Ingestor) campaignFor(ctx context.Context, messageID string) string {
	var campaignID string
	err := in.db.QueryRowContext(ctx, `
		SELECT campaign_id FROM campaign_events
		WHERE message_id = $1 AND event_type = 'delivered'
		LIMIT 1`, messageID,
	).Scan(&campaignID)
	if err != nil {
		return ""
	}
	return campaignID
}

func (in *Ingestor) recomputeEngagement(ctx context.Context, email string) error {
	var emailsReceived, bounceCount int
	var lastOpen, lastClick *time.Time
	err := in.db.QueryRowContext(ctx, `
		SELECT emails_received, bounce_count, last_open_at, last_click_at
		FROM subscribers WHERE email = $1`, email,
	).Scan(&emailsReceived, &bounceCount, &lastOpen, &lastClick)
	if err == sql.ErrNoRows {
		// Event for an address we never stored; nothing to recompute.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load engagement inputs: %w", err)
	}

	e := analytics.Classify(emailsReceived, bounceCount, lastOpen, lastClick, time.Now().UTC())
	if _, err := in.db.ExecContext(ctx, `
		UPDATE subscribers SET engagement_level = $2, engagement_score = $3, updated_at = NOW()
		WHERE email = $1
	`, email, e.Level, e.Score); err != nil {
		return fmt.Errorf("store engagement: %w", err)
	}
	return nil
}

// BotDetector flags automated mail scanners so their opens and clicks do not
// inflate engagement.
type BotDetector struct {
	patterns []string
}

// NewBotDetector creates a detector with the common crawler signatures.
func NewBotDetector() *BotDetector {
	return &BotDetector{
		patterns: []string{
			"bot", "crawler", "spider", "slurp", "googlebot", "bingbot",
			"yahoo", "baidu", "yandex", "preview", "proxy", "scanner",
		},
	}
}

// IsBot checks if the user agent looks automated.
func (bd *BotDetector) IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, p := range bd.patterns {
		if strings.Contains(ua, p) {
			return true
		}
	}
	return false
}
