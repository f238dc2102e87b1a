// Package segment resolves campaign audiences to concrete recipient lists.
// Resolution is always computed fresh from the subscriber table; saved
// segments store only the filter definition, never a member list.
package segment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/marketing-engine/internal/domain"
	"github.com/ignite/marketing-engine/internal/pkg/logger"
)

// Resolver evaluates audience filters against the subscriber table.
type Resolver struct {
	db    *sql.DB
	store *Store
	log   *logger.Logger
}

// NewResolver creates a resolver backed by the given database.
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{
		db:    db,
		store: NewStore(db),
		log:   logger.Component("segment"),
	}
}

// Resolve returns the subscribed contacts matching the audience, ordered by
// email. A zero-value audience resolves to all subscribed contacts.
func (r *Resolver) Resolve(ctx context.Context, aud domain.Audience) ([]domain.Subscriber, error) {
	filter, err := r.filterFor(ctx, aud)
	if err != nil {
		return nil, err
	}

	qb := NewQueryBuilder()
	query, args := qb.BuildRecipientQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(
			&s.ID, &s.Email, &s.Name, &s.Source, pq.Array(&s.Tags), &s.Subscribed,
			&s.EngagementScore, &s.EngagementLevel, &s.BounceCount, &s.EmailsReceived,
		); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}

	r.log.Debug("resolved audience", "count", len(subs), "segment_id", aud.SegmentID)
	return subs, nil
}

// Count returns how many subscribed contacts the audience currently matches
// without materializing the list. Used for previews and preflight reports.
func (r *Resolver) Count(ctx context.Context, aud domain.Audience) (int, error) {
	filter, err := r.filterFor(ctx, aud)
	if err != nil {
		return 0, err
	}

	qb := NewQueryBuilder()
	query, args := qb.BuildCountQuery(filter)

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}

func (r *Resolver) filterFor(ctx context.Context, aud domain.Audience) (Filter, error) {
	if aud.SegmentID != "" {
		seg, err := r.store.Get(ctx, aud.SegmentID)
		if err != nil {
			return Filter{}, err
		}
		return Filter{Sources: seg.Sources, Tags: seg.Tags}, nil
	}
	if aud.All {
		return Filter{}, nil
	}
	return Filter{Sources: aud.Sources, Tags: aud.Tags}, nil
}
