package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/marketing-engine/internal/domain"
	"github.com/ignite/marketing-engine/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, name, subject, from_name, from_email,
	COALESCE(html_content,''), COALESCE(plain_content,''), audience, status,
	scheduled_at, recipient_snapshot, recipient_count, delivered_count,
	test_sent_to, sent_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var audienceJSON, snapshotJSON []byte
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.FromName, &c.FromEmail,
		&c.HTMLContent, &c.PlainContent, &audienceJSON, &c.Status,
		&c.ScheduledAt, &snapshotJSON, &c.RecipientCount, &c.DeliveredCount,
		pq.Array(&c.TestSentTo), &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(audienceJSON, &c.Audience)
	if len(snapshotJSON) > 0 {
		json.Unmarshal(snapshotJSON, &c.RecipientSnapshot)
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM campaigns`
	var countArgs []interface{}
	if f.Status != "" {
		countQ += ` WHERE status = $1`
		countArgs = append(countArgs, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns`
	var args []interface{}
	idx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" WHERE status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	audienceJSON, _ := json.Marshal(c.Audience)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, subject, from_name, from_email, html_content, plain_content,
			 audience, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, c.ID, c.Name, c.Subject, c.FromName, c.FromEmail,
		c.HTMLContent, c.PlainContent, audienceJSON, c.Status)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Update(ctx context.Context, id string, u campaign.UpdateFields) error {
	sets := []string{"updated_at = NOW()"}
	var args []interface{}
	idx := 1

	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.FromName != nil {
		add("from_name", *u.FromName)
	}
	if u.FromEmail != nil {
		add("from_email", *u.FromEmail)
	}
	if u.HTMLContent != nil {
		add("html_content", *u.HTMLContent)
	}
	if u.PlainContent != nil {
		add("plain_content", *u.PlainContent)
	}
	if u.Audience != nil {
		audienceJSON, _ := json.Marshal(u.Audience)
		add("audience", audienceJSON)
	}
	if u.ScheduledAt != nil {
		add("scheduled_at", *u.ScheduledAt)
	}

	q := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d AND status = 'draft'",
		joinSets(sets), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists)
		if exists {
			return campaign.ErrNotDraft
		}
		return campaign.ErrNotFound
	}
	return nil
}

// BeginSending is the atomic double-send guard: the status condition means
// exactly one concurrent caller sees rows-affected = 1.
func (r *CampaignRepo) BeginSending(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'scheduled')
	`, id)
	if err != nil {
		return fmt.Errorf("begin sending: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrAlreadySent
	}
	return nil
}

func (r *CampaignRepo) SaveSnapshot(ctx context.Context, id string, recipients []string) error {
	snapshotJSON, _ := json.Marshal(recipients)
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET recipient_snapshot = $2, recipient_count = $3, updated_at = NOW()
		WHERE id = $1
	`, id, snapshotJSON, len(recipients))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// RecordDelivery appends the delivered event, bumps the campaign counter,
// and bumps the subscriber's received counter, all in one transaction.
func (r *CampaignRepo) RecordDelivery(ctx context.Context, campaignID, email, messageID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delivery: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO campaign_events (id, campaign_id, email, event_type, message_id)
		VALUES ($1, $2, $3, 'delivered', $4)
	`, uuid.New().String(), campaignID, email, messageID); err != nil {
		return fmt.Errorf("insert delivered event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET delivered_count = delivered_count + 1 WHERE id = $1
	`, campaignID); err != nil {
		return fmt.Errorf("bump delivered count: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscribers SET emails_received = emails_received + 1, updated_at = NOW()
		WHERE email = $1
	`, email); err != nil {
		return fmt.Errorf("bump emails received: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Finalize(ctx context.Context, id string, status domain.CampaignStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $2, sent_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'sending'
	`, id, status)
	if err != nil {
		return fmt.Errorf("finalize campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) AppendTestRecipient(ctx context.Context, id, email string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET test_sent_to = array_append(COALESCE(test_sent_to, '{}'), $2), updated_at = NOW()
		WHERE id = $1
	`, id, email)
	if err != nil {
		return fmt.Errorf("append test recipient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Schedule(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'scheduled', scheduled_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
	`, id, at)
	if err != nil {
		return fmt.Errorf("schedule campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrInvalidTransition
	}
	return nil
}

func (r *CampaignRepo) ListDueScheduled(ctx context.Context, before time.Time) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
