package maintenance

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/marketing-engine/internal/automation"
	"github.com/ignite/marketing-engine/internal/provider"
	"github.com/ignite/marketing-engine/internal/template"
)

type stubPublisher struct {
	published int
	calls     int
}

func (s *stubPublisher) PublishDue(_ context.Context) (int, error) {
	s.calls++
	return s.published, nil
}

func emptyQueueProcessor(t *testing.T) *automation.Processor {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'scheduled'\s+WHERE status = 'sending'`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .+ FROM automation_queue`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "automation_id", "step_index", "email", "subject", "body", "scheduled_for",
			"status", "retry_count", "max_retries", "last_attempt_at", "last_error",
			"message_id", "sent_at", "created_at",
		}))
	return automation.NewProcessor(automation.NewStore(db), provider.NewLogProvider(),
		template.NewEngine(), "IGNITE", "hello@mail.ignite.com", time.Second, 100)
}

func TestRunScheduledMaintenance(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	pub := &stubPublisher{published: 2}
	r := NewRunner(client, emptyQueueProcessor(t), pub)

	report, err := r.RunScheduledMaintenance(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Ran || report.CampaignsPublished != 2 {
		t.Errorf("report = %+v", report)
	}
	if mr.Exists("lock:scheduled-maintenance") {
		t.Error("lock not released after run")
	}
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Set("lock:scheduled-maintenance", "someone-else")

	pub := &stubPublisher{}
	r := NewRunner(client, nil, pub)

	report, err := r.RunScheduledMaintenance(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Ran {
		t.Error("run proceeded despite held lock")
	}
	if pub.calls != 0 {
		t.Error("publisher invoked despite held lock")
	}
	if got, _ := mr.Get("lock:scheduled-maintenance"); got != "someone-else" {
		t.Error("foreign lock value was disturbed")
	}
}
