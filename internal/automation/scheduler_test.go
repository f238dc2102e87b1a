package automation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/marketing-engine/internal/domain"
)

func stepsJSON(t *testing.T, steps []domain.Step) []byte {
	t.Helper()
	b, err := json.Marshal(steps)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func automationRows(t *testing.T, id string, oneTime bool, steps []domain.Step) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "name", "trigger_event", "steps", "status", "one_time_per_recipient", "created_at", "updated_at",
	}).AddRow(id, "Welcome Series", "newsletter_signup", stepsJSON(t, steps), "active", oneTime, time.Now(), time.Now())
}

func TestTriggerSchedulesAllSteps(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	steps := []domain.Step{
		{DelayDays: 0, Subject: "Welcome", Body: "Hi"},
		{DelayDays: 2, Subject: "Day two", Body: "Still here"},
		{DelayDays: 5, Subject: "Day five", Body: "Last one"},
	}

	mock.ExpectExec(`INSERT INTO subscribers`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM automations WHERE trigger_event`).
		WithArgs("newsletter_signup").
		WillReturnRows(automationRows(t, "auto-1", false, steps))

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO automation_queue`)
	for range steps {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	s := NewScheduler(NewStore(db), 3)
	created, err := s.Trigger(context.Background(), "newsletter_signup", "A@X.com", "Ann")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if created != 3 {
		t.Errorf("created %d items, want 3", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTriggerOneTimeSkipsRepeatRecipient(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	steps := []domain.Step{{Subject: "Welcome", Body: "Hi"}}

	mock.ExpectExec(`INSERT INTO subscribers`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM automations WHERE trigger_event`).
		WithArgs("newsletter_signup").
		WillReturnRows(automationRows(t, "auto-1", true, steps))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("auto-1", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	s := NewScheduler(NewStore(db), 3)
	created, err := s.Trigger(context.Background(), "newsletter_signup", "a@x.com", "")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if created != 0 {
		t.Errorf("created %d items, want 0", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestTriggerRejectsBadInput(t *testing.T) {
	s := NewScheduler(NewStore(nil), 3)

	if _, err := s.Trigger(context.Background(), "", "a@x.com", ""); err != ErrInvalidEvent {
		t.Errorf("empty event: got %v, want ErrInvalidEvent", err)
	}
	if _, err := s.Trigger(context.Background(), "signup", "not-an-email", ""); err != ErrInvalidRecipient {
		t.Errorf("bad email: got %v, want ErrInvalidRecipient", err)
	}
}

func TestStepDelay(t *testing.T) {
	step := domain.Step{DelayDays: 2, DelayHours: 3}
	want := 51 * time.Hour
	if got := step.Delay(); got != want {
		t.Errorf("Delay() = %v, want %v", got, want)
	}
}
