package campaign

import (
	"context"
	"time"

	"github.com/ignite/marketing-engine/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update modifies a campaign. Only non-nil fields in the update are applied.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a campaign. Only draft campaigns can be deleted.
	Delete(ctx context.Context, id string) error

	// BeginSending transitions draft|scheduled → sending as one conditional
	// update. Returns ErrAlreadySent when the campaign is in any other state,
	// so two concurrent Send calls cannot both proceed.
	BeginSending(ctx context.Context, id string) error

	// SaveSnapshot freezes the resolved recipient list on the campaign row.
	SaveSnapshot(ctx context.Context, id string, recipients []string) error

	// RecordDelivery appends one delivered event and increments the
	// campaign's delivered counter.
	RecordDelivery(ctx context.Context, campaignID, email, messageID string) error

	// Finalize sets the terminal status and sent_at after a send run.
	Finalize(ctx context.Context, id string, status domain.CampaignStatus) error

	// AppendTestRecipient records a test send without touching counters.
	AppendTestRecipient(ctx context.Context, id, email string) error

	// Schedule sets a draft campaign to scheduled at the given time.
	Schedule(ctx context.Context, id string, at time.Time) error

	// ListDueScheduled returns scheduled campaigns whose scheduled_at has
	// passed, for the maintenance runner to publish.
	ListDueScheduled(ctx context.Context, before time.Time) ([]domain.Campaign, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name         *string
	Subject      *string
	FromName     *string
	FromEmail    *string
	HTMLContent  *string
	PlainContent *string
	Audience     *domain.Audience
	ScheduledAt  *time.Time
}
