package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/marketing-engine/internal/provider"
	"github.com/ignite/marketing-engine/internal/template"
)

type fakeProvider struct {
	err  error
	sent []provider.Message
}

func (f *fakeProvider) Send(_ context.Context, msg provider.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}

func (f *fakeProvider) Name() string { return "fake" }

func dueItemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "automation_id", "step_index", "email", "subject", "body", "scheduled_for",
		"status", "retry_count", "max_retries", "last_attempt_at", "last_error",
		"message_id", "sent_at", "created_at",
	})
}

func expectStaleRequeue(mock sqlmock.Sqlmock, requeued int64) {
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'scheduled'\s+WHERE status = 'sending'`).
		WillReturnResult(sqlmock.NewResult(0, requeued))
}

func TestRunSendsDueItem(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	expectStaleRequeue(mock, 0)
	mock.ExpectQuery(`SELECT .+ FROM automation_queue`).
		WillReturnRows(dueItemRows().
			AddRow("q1", "auto-1", 0, "a@x.com", "Hi {{ first_name }}", "Body", time.Now().Add(-time.Minute),
				"scheduled", 0, 3, nil, "", "", nil, time.Now()))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sending', retry_count`).
		WithArgs("q1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(name, ''\) FROM subscribers`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ann Lee"))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sent'`).
		WithArgs("q1", "msg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	fake := &fakeProvider{}
	p := NewProcessor(NewStore(db), fake, template.NewEngine(), "IGNITE", "hello@mail.ignite.com", time.Second, 100)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Sent != 1 || result.Due != 1 {
		t.Errorf("result = %+v, want 1 due 1 sent", result)
	}
	if len(fake.sent) != 1 || fake.sent[0].Subject != "Hi Ann" {
		t.Errorf("rendered subject = %+v", fake.sent)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunFailureKeepsItemScheduled(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	expectStaleRequeue(mock, 0)
	mock.ExpectQuery(`SELECT .+ FROM automation_queue`).
		WillReturnRows(dueItemRows().
			AddRow("q1", "auto-1", 0, "a@x.com", "Hi", "Body", time.Now().Add(-time.Minute),
				"scheduled", 0, 3, nil, "", "", nil, time.Now()))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sending', retry_count`).
		WithArgs("q1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(name, ''\) FROM subscribers`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow(""))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = \$2`).
		WithArgs("q1", "scheduled", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	fake := &fakeProvider{err: &provider.Error{Provider: "fake", Retryable: true, Err: errors.New("throttled")}}
	p := NewProcessor(NewStore(db), fake, template.NewEngine(), "IGNITE", "hello@mail.ignite.com", time.Second, 100)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("provider failure must not escape the pass: %v", err)
	}
	if result.Retried != 1 || result.Exhausted != 0 {
		t.Errorf("result = %+v, want 1 retried", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunExhaustedRetriesBecomeTerminal(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// retry_count 2 of max 3: this attempt is the third and last.
	expectStaleRequeue(mock, 0)
	mock.ExpectQuery(`SELECT .+ FROM automation_queue`).
		WillReturnRows(dueItemRows().
			AddRow("q1", "auto-1", 0, "a@x.com", "Hi", "Body", time.Now().Add(-time.Minute),
				"scheduled", 2, 3, nil, "boom", "", nil, time.Now()))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sending', retry_count`).
		WithArgs("q1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(name, ''\) FROM subscribers`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow(""))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = \$2`).
		WithArgs("q1", "failed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	fake := &fakeProvider{err: errors.New("boom")}
	p := NewProcessor(NewStore(db), fake, template.NewEngine(), "IGNITE", "hello@mail.ignite.com", time.Second, 100)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Exhausted != 1 {
		t.Errorf("result = %+v, want 1 exhausted", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestOverlappingPassesDeliverOnce(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// Pass A scans and wins the claim: the row leaves scheduled.
	expectStaleRequeue(mock, 0)
	mock.ExpectQuery(`SELECT .+ FROM automation_queue`).
		WillReturnRows(dueItemRows().
			AddRow("q1", "auto-1", 0, "a@x.com", "Hi", "Body", time.Now().Add(-time.Minute),
				"scheduled", 0, 3, nil, "", "", nil, time.Now()))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sending', retry_count`).
		WithArgs("q1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(name, ''\) FROM subscribers`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow(""))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sent'`).
		WithArgs("q1", "msg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Pass B scanned the same item before A finished; its claim hits a row
	// that is no longer scheduled and affects nothing.
	expectStaleRequeue(mock, 0)
	mock.ExpectQuery(`SELECT .+ FROM automation_queue`).
		WillReturnRows(dueItemRows().
			AddRow("q1", "auto-1", 0, "a@x.com", "Hi", "Body", time.Now().Add(-time.Minute),
				"scheduled", 0, 3, nil, "", "", nil, time.Now()))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sending', retry_count`).
		WithArgs("q1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	fake := &fakeProvider{}
	store := NewStore(db)
	passA := NewProcessor(store, fake, template.NewEngine(), "IGNITE", "hello@mail.ignite.com", time.Second, 100)
	passB := NewProcessor(store, fake, template.NewEngine(), "IGNITE", "hello@mail.ignite.com", time.Second, 100)

	resultA, err := passA.Run(context.Background())
	if err != nil {
		t.Fatalf("pass A: %v", err)
	}
	resultB, err := passB.Run(context.Background())
	if err != nil {
		t.Fatalf("pass B: %v", err)
	}

	if resultA.Sent != 1 || resultB.Sent != 0 || resultB.Skipped != 1 {
		t.Errorf("pass A = %+v, pass B = %+v; exactly one pass may deliver", resultA, resultB)
	}
	if len(fake.sent) != 1 {
		t.Errorf("item delivered %d times by overlapping passes, want 1", len(fake.sent))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunSkipsItemClaimedElsewhere(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	expectStaleRequeue(mock, 0)
	mock.ExpectQuery(`SELECT .+ FROM automation_queue`).
		WillReturnRows(dueItemRows().
			AddRow("q1", "auto-1", 0, "a@x.com", "Hi", "Body", time.Now().Add(-time.Minute),
				"scheduled", 0, 3, nil, "", "", nil, time.Now()))
	mock.ExpectExec(`UPDATE automation_queue\s+SET status = 'sending', retry_count`).
		WithArgs("q1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	fake := &fakeProvider{}
	p := NewProcessor(NewStore(db), fake, template.NewEngine(), "IGNITE", "hello@mail.ignite.com", time.Second, 100)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Skipped != 1 || len(fake.sent) != 0 {
		t.Errorf("result = %+v, sent = %d; claimed-elsewhere item must not send", result, len(fake.sent))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
