package domain

import "time"

// AutomationStatus enumerates the states of a drip automation.
type AutomationStatus string

const (
	AutomationActive AutomationStatus = "active"
	AutomationPaused AutomationStatus = "paused"
)

// Step is one timed email in an automation sequence. The delay is relative
// to the trigger event, not to the previous step.
type Step struct {
	DelayDays  int    `json:"delay_days"`
	DelayHours int    `json:"delay_hours"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// Delay returns the step's offset from the trigger time.
func (s Step) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// Automation is a trigger-activated, ordered sequence of timed email steps.
// Created and edited externally; the scheduler consumes it read-only.
type Automation struct {
	ID                  string           `json:"id" db:"id"`
	Name                string           `json:"name" db:"name"`
	TriggerEvent        string           `json:"trigger_event" db:"trigger_event"`
	Steps               []Step           `json:"steps" db:"steps"`
	Status              AutomationStatus `json:"status" db:"status"`
	OneTimePerRecipient bool             `json:"one_time_per_recipient" db:"one_time_per_recipient"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
}

// QueueItemStatus enumerates the lifecycle of one scheduled automation step
// for one recipient. Transitions are one-way into a terminal state.
type QueueItemStatus string

const (
	QueueScheduled QueueItemStatus = "scheduled"
	QueueSending   QueueItemStatus = "sending"
	QueueSent      QueueItemStatus = "sent"
	QueueFailed    QueueItemStatus = "failed"
	QueueCancelled QueueItemStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s QueueItemStatus) IsTerminal() bool {
	return s == QueueSent || s == QueueFailed || s == QueueCancelled
}

// QueueItem is one scheduled instance of one automation step targeted at
// one recipient. Created by the scheduler; mutated only by the queue
// processor or by a pause operation.
type QueueItem struct {
	ID           string          `json:"id" db:"id"`
	AutomationID string          `json:"automation_id" db:"automation_id"`
	StepIndex    int             `json:"step_index" db:"step_index"`
	Email        string          `json:"email" db:"email"`
	Subject      string          `json:"subject" db:"subject"`
	Body         string          `json:"body" db:"body"`
	ScheduledFor time.Time       `json:"scheduled_for" db:"scheduled_for"`
	Status       QueueItemStatus `json:"status" db:"status"`
	RetryCount   int             `json:"retry_count" db:"retry_count"`
	MaxRetries   int             `json:"max_retries" db:"max_retries"`
	LastAttempt  *time.Time      `json:"last_attempt_at" db:"last_attempt_at"`
	LastError    string          `json:"last_error" db:"last_error"`
	MessageID    string          `json:"message_id" db:"message_id"`
	SentAt       *time.Time      `json:"sent_at" db:"sent_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// QueueStats summarizes the send queue for reporting. Items that exhausted
// their retries show up under Failed; they are never silently dropped.
type QueueStats struct {
	Scheduled int `json:"scheduled"`
	Sending   int `json:"sending"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
