package automation

import (
	"context"
	"time"

	"github.com/ignite/marketing-engine/internal/domain"
	"github.com/ignite/marketing-engine/internal/pkg/logger"
	"github.com/ignite/marketing-engine/internal/provider"
	"github.com/ignite/marketing-engine/internal/template"
)

// PassResult summarizes one processor pass over the due queue.
type PassResult struct {
	Due       int `json:"due"`
	Sent      int `json:"sent"`
	Retried   int `json:"retried"`
	Exhausted int `json:"exhausted"`
	Skipped   int `json:"skipped"`
}

// staleClaimAge is how long an item may sit in sending before it is treated
// as abandoned by a crashed worker. Longer than any sane provider timeout.
const staleClaimAge = 15 * time.Minute

// Processor attempts delivery of due queue items. One instance per pass is
// fine; overlapping passes coordinate through conditional claims, not locks.
type Processor struct {
	store       *Store
	provider    provider.EmailProvider
	tmpl        *template.Engine
	fromName    string
	fromEmail   string
	sendTimeout time.Duration
	batchLimit  int
	log         *logger.Logger
}

// NewProcessor creates a queue processor.
func NewProcessor(store *Store, p provider.EmailProvider, tmpl *template.Engine,
	fromName, fromEmail string, sendTimeout time.Duration, batchLimit int) *Processor {
	return &Processor{
		store:       store,
		provider:    p,
		tmpl:        tmpl,
		fromName:    fromName,
		fromEmail:   fromEmail,
		sendTimeout: sendTimeout,
		batchLimit:  batchLimit,
		log:         logger.Component("queue"),
	}
}

// Run executes one pass: claim every due item, attempt delivery, record the
// outcome. Provider failures become retry bookkeeping and never propagate to
// the caller; only store-level errors do.
func (p *Processor) Run(ctx context.Context) (*PassResult, error) {
	now := time.Now().UTC()

	requeued, err := p.store.RequeueStale(ctx, now.Add(-staleClaimAge))
	if err != nil {
		return nil, err
	}
	if requeued > 0 {
		p.log.Warn("requeued items abandoned mid-send", "count", requeued)
	}

	items, err := p.store.DueItems(ctx, now, p.batchLimit)
	if err != nil {
		return nil, err
	}

	result := &PassResult{Due: len(items)}
	for i := range items {
		item := &items[i]

		claimed, err := p.store.Claim(ctx, item.ID)
		if err != nil {
			return result, err
		}
		if !claimed {
			// Another overlapping run owns this item.
			result.Skipped++
			continue
		}
		item.RetryCount++

		p.attempt(ctx, item, result)
	}

	p.log.Info("queue pass complete",
		"due", result.Due, "sent", result.Sent,
		"retried", result.Retried, "exhausted", result.Exhausted, "skipped", result.Skipped)
	return result, nil
}

func (p *Processor) attempt(ctx context.Context, item *domain.QueueItem, result *PassResult) {
	messageID, err := p.deliver(ctx, item)
	if err == nil {
		if err := p.store.MarkSent(ctx, item.ID, messageID); err != nil {
			p.log.Error("mark sent failed", "item_id", item.ID, "error", err.Error())
			return
		}
		result.Sent++
		return
	}

	terminal := item.RetryCount >= item.MaxRetries
	if markErr := p.store.MarkFailed(ctx, item.ID, err.Error(), terminal); markErr != nil {
		p.log.Error("mark failed failed", "item_id", item.ID, "error", markErr.Error())
		return
	}
	if terminal {
		result.Exhausted++
		p.log.Warn("queue item exhausted retries",
			"item_id", item.ID, "automation_id", item.AutomationID,
			"retries", item.RetryCount, "error", err.Error())
	} else {
		result.Retried++
		p.log.Info("queue item delivery failed, will retry",
			"item_id", item.ID, "retry_count", item.RetryCount, "error", err.Error())
	}
}

func (p *Processor) deliver(ctx context.Context, item *domain.QueueItem) (string, error) {
	bindings := template.RecipientBindings(item.Email, p.store.SubscriberName(ctx, item.Email))

	subject, err := p.tmpl.Render(item.Subject, bindings)
	if err != nil {
		return "", err
	}
	body, err := p.tmpl.Render(item.Body, bindings)
	if err != nil {
		return "", err
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	return p.provider.Send(sendCtx, provider.Message{
		FromName:     p.fromName,
		FromEmail:    p.fromEmail,
		To:           item.Email,
		Subject:      subject,
		HTML:         body,
		AutomationID: item.AutomationID,
	})
}
