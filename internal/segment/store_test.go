package segment

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/ignite/marketing-engine/internal/domain"
)

func now() time.Time { return time.Now().UTC() }

func TestStoreCreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`INSERT INTO segments`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewStore(db)
	seg := &domain.Segment{Name: "VIPs", Tags: []string{"vip"}}
	if err := s.Create(context.Background(), seg); err != nil {
		t.Fatalf("create: %v", err)
	}
	if seg.ID == "" {
		t.Error("expected generated ID")
	}
	if seg.MatchMode != "all" {
		t.Errorf("match_mode = %q, want default all", seg.MatchMode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM segments WHERE id`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "sources", "tags", "match_mode", "created_at", "updated_at",
		}))

	s := NewStore(db)
	if _, err := s.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestStoreList(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM segments ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "sources", "tags", "match_mode", "created_at", "updated_at",
		}).
			AddRow("seg-2", "Checkout", pq.Array([]string{"checkout"}), pq.Array([]string{}), "all", now(), now()).
			AddRow("seg-1", "VIPs", pq.Array([]string{}), pq.Array([]string{"vip"}), "all", now(), now()))

	s := NewStore(db)
	segs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(segs) != 2 || segs[0].ID != "seg-2" {
		t.Errorf("unexpected segments: %+v", segs)
	}
}

func TestStoreDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM segments WHERE id`).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewStore(db)
	if err := s.Delete(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
