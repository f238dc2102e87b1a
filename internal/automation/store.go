package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/marketing-engine/internal/domain"
)

// Store handles CRUD for the automations and automation_queue tables.
type Store struct {
	db *sql.DB
}

// NewStore creates an automation store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const automationColumns = `id, name, trigger_event, steps, status, one_time_per_recipient, created_at, updated_at`

func scanAutomation(row interface{ Scan(...interface{}) error }) (*domain.Automation, error) {
	var a domain.Automation
	var stepsJSON []byte
	err := row.Scan(&a.ID, &a.Name, &a.TriggerEvent, &stepsJSON, &a.Status,
		&a.OneTimePerRecipient, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(stepsJSON, &a.Steps)
	return &a, nil
}

// GetAutomation loads one automation by ID. Returns ErrNotFound if absent.
func (s *Store) GetAutomation(ctx context.Context, id string) (*domain.Automation, error) {
	a, err := scanAutomation(s.db.QueryRowContext(ctx,
		`SELECT `+automationColumns+` FROM automations WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get automation: %w", err)
	}
	return a, nil
}

// ListActiveByTrigger returns the active automations matching a trigger event.
func (s *Store) ListActiveByTrigger(ctx context.Context, event string) ([]domain.Automation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+automationColumns+` FROM automations WHERE trigger_event = $1 AND status = 'active'`,
		event)
	if err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()

	var out []domain.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan automation: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CreateAutomation inserts a new automation definition.
func (s *Store) CreateAutomation(ctx context.Context, a *domain.Automation) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = domain.AutomationActive
	}
	stepsJSON, _ := json.Marshal(a.Steps)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO automations (id, name, trigger_event, steps, status, one_time_per_recipient)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Name, a.TriggerEvent, stepsJSON, a.Status, a.OneTimePerRecipient)
	if err != nil {
		return fmt.Errorf("insert automation: %w", err)
	}
	return nil
}

// Pause sets the automation to paused and cancels every queue item of that
// automation still in scheduled. The two updates run in one transaction so
// there is no window where a paused automation still has live items.
func (s *Store) Pause(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin pause: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE automations SET status = 'paused', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("pause automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE automation_queue SET status = 'cancelled'
		WHERE automation_id = $1 AND status = 'scheduled'`, id)
	if err != nil {
		return 0, fmt.Errorf("cancel queue items: %w", err)
	}
	cancelled, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit pause: %w", err)
	}
	return cancelled, nil
}

// Activate resumes a paused automation. Cancelled items stay cancelled.
func (s *Store) Activate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE automations SET status = 'active', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate automation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasItemForRecipient reports whether the recipient already has a sent or
// scheduled queue item for this automation. Used for the one-time guard.
func (s *Store) HasItemForRecipient(ctx context.Context, automationID, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM automation_queue
			WHERE automation_id = $1 AND email = $2 AND status IN ('sent', 'scheduled')
		)`, automationID, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check queue items: %w", err)
	}
	return exists, nil
}

// EnqueueSteps inserts all queue items for one automation/recipient pair in
// a single transaction. A partial insert would leave the recipient with a
// truncated sequence, so all rows commit or none do.
func (s *Store) EnqueueSteps(ctx context.Context, items []domain.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO automation_queue
		(id, automation_id, step_index, email, subject, body, scheduled_for, status, retry_count, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("prepare enqueue: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.Status = domain.QueueScheduled
		if _, err := stmt.ExecContext(ctx,
			item.ID, item.AutomationID, item.StepIndex, item.Email,
			item.Subject, item.Body, item.ScheduledFor, item.Status,
			item.RetryCount, item.MaxRetries); err != nil {
			return fmt.Errorf("insert queue item %d: %w", item.StepIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}
	return nil
}

// DueItems returns scheduled items with scheduled_for at or before the given
// time, oldest first. Ordering is a fairness target across automations.
func (s *Store) DueItems(ctx context.Context, before time.Time, limit int) ([]domain.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, automation_id, step_index, email, subject, body, scheduled_for,
			status, retry_count, max_retries, last_attempt_at, COALESCE(last_error, ''),
			COALESCE(message_id, ''), sent_at, created_at
		FROM automation_queue
		WHERE status = 'scheduled' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query due items: %w", err)
	}
	defer rows.Close()

	var items []domain.QueueItem
	for rows.Next() {
		var item domain.QueueItem
		if err := rows.Scan(
			&item.ID, &item.AutomationID, &item.StepIndex, &item.Email,
			&item.Subject, &item.Body, &item.ScheduledFor, &item.Status,
			&item.RetryCount, &item.MaxRetries, &item.LastAttempt, &item.LastError,
			&item.MessageID, &item.SentAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Claim takes exclusive ownership of a still-scheduled item by flipping it
// to sending, counting the attempt in the same statement. Overlapping
// processor runs race on the same row and exactly one sees rows-affected = 1;
// the item stays invisible to DueItems until the owner marks an outcome.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE automation_queue
		SET status = 'sending', retry_count = retry_count + 1, last_attempt_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`, id)
	if err != nil {
		return false, fmt.Errorf("claim queue item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// MarkSent finalizes a delivered item. Only the claim owner holds the item
// in sending, so zero rows affected means the claim was lost.
func (s *Store) MarkSent(ctx context.Context, id, messageID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE automation_queue
		SET status = 'sent', message_id = $2, sent_at = NOW()
		WHERE id = $1 AND status = 'sending'`, id, messageID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("mark sent: item %s is no longer claimed", id)
	}
	return nil
}

// MarkFailed records a delivery failure on a claimed item. Terminal failures
// flip the item to failed; otherwise it returns to scheduled and the next
// pass retries it.
func (s *Store) MarkFailed(ctx context.Context, id, errMsg string, terminal bool) error {
	status := domain.QueueScheduled
	if terminal {
		status = domain.QueueFailed
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE automation_queue
		SET status = $2, last_error = $3
		WHERE id = $1 AND status = 'sending'`, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("mark failed: item %s is no longer claimed", id)
	}
	return nil
}

// RequeueStale returns items abandoned mid-send to scheduled, so a crashed
// worker cannot strand them in sending forever. The claim already counted
// the attempt, so requeued items keep their retry budget intact.
func (s *Store) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE automation_queue
		SET status = 'scheduled'
		WHERE status = 'sending' AND last_attempt_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("requeue stale items: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats returns queue counts by status. Exhausted-retry items are reported
// under failed, never dropped.
func (s *Store) Stats(ctx context.Context) (*domain.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM automation_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats domain.QueueStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch domain.QueueItemStatus(status) {
		case domain.QueueScheduled:
			stats.Scheduled = n
		case domain.QueueSending:
			stats.Sending = n
		case domain.QueueSent:
			stats.Sent = n
		case domain.QueueFailed:
			stats.Failed = n
		case domain.QueueCancelled:
			stats.Cancelled = n
		}
	}
	return &stats, rows.Err()
}

// UpsertSubscriber creates the contact on first trigger and refreshes the
// name on later triggers without clobbering a known name with an empty one.
func (s *Store) UpsertSubscriber(ctx context.Context, email, name, source string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (id, email, name, source, subscribed, engagement_level)
		VALUES ($1, $2, $3, $4, TRUE, 'new')
		ON CONFLICT (email) DO UPDATE
		SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE subscribers.name END,
			updated_at = NOW()`,
		uuid.New().String(), email, name, source)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// SubscriberName returns the display name for an email, or empty when the
// contact is unknown.
func (s *Store) SubscriberName(ctx context.Context, email string) string {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(name, '') FROM subscribers WHERE email = $1`, email).Scan(&name)
	if err != nil {
		return ""
	}
	return name
}
