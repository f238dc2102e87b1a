// Package maintenance implements the periodic batch entry point that drives
// the queue processor and publishes due scheduled campaigns.
package maintenance

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/marketing-engine/internal/automation"
	"github.com/ignite/marketing-engine/internal/pkg/distlock"
	"github.com/ignite/marketing-engine/internal/pkg/logger"
)

// lockTTL bounds how long a crashed run can block the next invocation.
const lockTTL = 10 * time.Minute

// CampaignPublisher publishes scheduled campaigns whose time has come.
type CampaignPublisher interface {
	PublishDue(ctx context.Context) (int, error)
}

// Report summarizes one maintenance run.
type Report struct {
	Ran                bool                   `json:"ran"`
	Queue              *automation.PassResult `json:"queue,omitempty"`
	CampaignsPublished int                    `json:"campaigns_published"`
}

// Runner is the scheduled-maintenance entry point. It processes all
// currently due work and exits; the external trigger cadence is the only
// scheduler.
type Runner struct {
	redis     *redis.Client
	processor *automation.Processor
	publisher CampaignPublisher
	log       *logger.Logger
}

// NewRunner creates a maintenance runner.
func NewRunner(redisClient *redis.Client, processor *automation.Processor, publisher CampaignPublisher) *Runner {
	return &Runner{
		redis:     redisClient,
		processor: processor,
		publisher: publisher,
		log:       logger.Component("maintenance"),
	}
}

// RunScheduledMaintenance runs one maintenance pass under the distributed
// lock. If another invocation holds the lock this is a silent no-op, so
// overlapping external triggers collapse to one run.
func (r *Runner) RunScheduledMaintenance(ctx context.Context) (*Report, error) {
	lock := distlock.NewRedisLock(r.redis, "scheduled-maintenance", lockTTL)

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		r.log.Info("maintenance already running elsewhere, skipping")
		return &Report{Ran: false}, nil
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			r.log.Warn("lock release failed", "error", err.Error())
		}
	}()

	report := &Report{Ran: true}

	queueResult, err := r.processor.Run(ctx)
	if err != nil {
		return report, err
	}
	report.Queue = queueResult

	published, err := r.publisher.PublishDue(ctx)
	if err != nil {
		return report, err
	}
	report.CampaignsPublished = published

	r.log.Info("maintenance run complete",
		"queue_sent", queueResult.Sent, "campaigns_published", published)
	return report, nil
}
