package segment

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/ignite/marketing-engine/internal/domain"
)

func subscriberRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "name", "source", "tags", "subscribed",
		"engagement_score", "engagement_level", "bounce_count", "emails_received",
	})
}

func TestResolveAllSubscribers(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM subscribers`).
		WillReturnRows(subscriberRows().
			AddRow("s1", "a@example.com", "Ann", "popup", pq.Array([]string{"vip"}), true, 0.8, "engaged", 0, 12).
			AddRow("s2", "b@example.com", "Bob", "api", pq.Array([]string{}), true, 0.1, "new", 0, 0))

	r := NewResolver(db)
	subs, err := r.Resolve(context.Background(), domain.Audience{All: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscribers, want 2", len(subs))
	}
	if subs[0].Email != "a@example.com" || subs[0].EngagementLevel != domain.EngagementEngaged {
		t.Errorf("unexpected first subscriber: %+v", subs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResolveSavedSegment(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM segments WHERE id`).
		WithArgs("seg-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "sources", "tags", "match_mode", "created_at", "updated_at",
		}).AddRow("seg-1", "VIPs", pq.Array([]string{}), pq.Array([]string{"vip"}), "all", now(), now()))

	mock.ExpectQuery(`SELECT .+ FROM subscribers`).
		WillReturnRows(subscriberRows().
			AddRow("s1", "a@example.com", "Ann", "popup", pq.Array([]string{"vip"}), true, 0.8, "engaged", 0, 12))

	r := NewResolver(db)
	subs, err := r.Resolve(context.Background(), domain.Audience{SegmentID: "seg-1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("got %d subscribers, want 1", len(subs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestResolveMissingSegment(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM segments WHERE id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "sources", "tags", "match_mode", "created_at", "updated_at",
		}))

	r := NewResolver(db)
	if _, err := r.Resolve(context.Background(), domain.Audience{SegmentID: "missing"}); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCount(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM subscribers`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	r := NewResolver(db)
	n, err := r.Count(context.Background(), domain.Audience{Tags: []string{"vip"}})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
}
