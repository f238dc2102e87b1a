// Package automation expands trigger events into time-delayed email queue
// items and drives their delivery with retry bookkeeping.
package automation

import (
	"context"
	"time"

	"github.com/ignite/marketing-engine/internal/domain"
	"github.com/ignite/marketing-engine/internal/pkg/logger"
)

// Scheduler expands trigger events into queue items. It consumes automation
// definitions read-only; editing them is an external concern.
type Scheduler struct {
	store      *Store
	maxRetries int
	log        *logger.Logger
}

// NewScheduler creates a scheduler. maxRetries is stamped onto every queue
// item it creates.
func NewScheduler(store *Store, maxRetries int) *Scheduler {
	return &Scheduler{
		store:      store,
		maxRetries: maxRetries,
		log:        logger.Component("scheduler"),
	}
}

// Trigger handles a named business event (newsletter_signup, checkout, ...)
// for one recipient. It upserts the subscriber, then schedules every step of
// every matching active automation. Returns the number of queue items
// created; a one-time automation the recipient already went through
// contributes zero and is not an error.
func (s *Scheduler) Trigger(ctx context.Context, event, email, name string) (int, error) {
	if event == "" {
		return 0, ErrInvalidEvent
	}
	email = domain.NormalizeEmail(email)
	if !domain.ValidateEmail(email) {
		return 0, ErrInvalidRecipient
	}

	if err := s.store.UpsertSubscriber(ctx, email, name, event); err != nil {
		return 0, err
	}

	automations, err := s.store.ListActiveByTrigger(ctx, event)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	created := 0
	for _, a := range automations {
		if a.OneTimePerRecipient {
			exists, err := s.store.HasItemForRecipient(ctx, a.ID, email)
			if err != nil {
				return created, err
			}
			if exists {
				s.log.Debug("one-time automation skipped", "automation_id", a.ID, "email", email)
				continue
			}
		}

		items := make([]domain.QueueItem, 0, len(a.Steps))
		for i, step := range a.Steps {
			items = append(items, domain.QueueItem{
				AutomationID: a.ID,
				StepIndex:    i,
				Email:        email,
				Subject:      step.Subject,
				Body:         step.Body,
				ScheduledFor: now.Add(step.Delay()),
				MaxRetries:   s.maxRetries,
			})
		}
		if err := s.store.EnqueueSteps(ctx, items); err != nil {
			return created, err
		}
		created += len(items)

		s.log.Info("automation scheduled",
			"automation_id", a.ID, "event", event, "email", email, "steps", len(items))
	}

	return created, nil
}
