package domain

import "time"

// Segment is a saved, reusable audience filter definition. The resolver
// evaluates sources as an OR-membership test, tags as an overlap test, and
// ANDs the two groups together when both are present.
type Segment struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Sources   []string  `json:"sources" db:"sources"`
	Tags      []string  `json:"tags" db:"tags"`
	MatchMode string    `json:"match_mode" db:"match_mode"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
