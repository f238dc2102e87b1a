package segment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/marketing-engine/internal/domain"
)

// Store persists saved segment definitions.
type Store struct {
	db *sql.DB
}

// NewStore creates a segment store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new segment definition and returns it with identifiers
// and timestamps populated.
func (s *Store) Create(ctx context.Context, seg *domain.Segment) error {
	if seg.ID == "" {
		seg.ID = uuid.New().String()
	}
	if seg.MatchMode == "" {
		seg.MatchMode = "all"
	}
	now := time.Now().UTC()
	seg.CreatedAt = now
	seg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO segments (id, name, sources, tags, match_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		seg.ID, seg.Name, pq.Array(seg.Sources), pq.Array(seg.Tags),
		seg.MatchMode, seg.CreatedAt, seg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// Get loads a segment by ID. Returns ErrNotFound if no row exists.
func (s *Store) Get(ctx context.Context, id string) (*domain.Segment, error) {
	var seg domain.Segment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, sources, tags, match_mode, created_at, updated_at
		FROM segments WHERE id = $1`, id,
	).Scan(
		&seg.ID, &seg.Name, pq.Array(&seg.Sources), pq.Array(&seg.Tags),
		&seg.MatchMode, &seg.CreatedAt, &seg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return &seg, nil
}

// List returns all saved segments, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sources, tags, match_mode, created_at, updated_at
		FROM segments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segs []domain.Segment
	for rows.Next() {
		var seg domain.Segment
		if err := rows.Scan(
			&seg.ID, &seg.Name, pq.Array(&seg.Sources), pq.Array(&seg.Tags),
			&seg.MatchMode, &seg.CreatedAt, &seg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// Delete removes a segment definition. Campaigns that referenced it keep
// their recipient snapshots; only future resolution is affected.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
