package analytics

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestCampaignStats(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT event_type, COUNT\(\*\)`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "count"}).
			AddRow("delivered", 200).
			AddRow("opened", 50).
			AddRow("clicked", 10).
			AddRow("bounced", 4))

	a := NewAggregator(db)
	stats, err := a.CampaignStats(context.Background(), "c1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Delivered != 200 || stats.Opened != 50 || stats.Clicked != 10 || stats.Bounced != 4 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.OpenRate != 0.25 || stats.ClickRate != 0.05 {
		t.Errorf("rates = %v / %v", stats.OpenRate, stats.ClickRate)
	}
}

func TestCampaignStatsZeroDelivered(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT event_type, COUNT\(\*\)`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "count"}).
			AddRow("opened", 3))

	a := NewAggregator(db)
	stats, err := a.CampaignStats(context.Background(), "c1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.OpenRate != 0 || stats.ClickRate != 0 {
		t.Errorf("rates must be 0 when delivered is 0, got %v / %v", stats.OpenRate, stats.ClickRate)
	}
}

func TestClickBreakdown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT link_url, COUNT\(\*\), COUNT\(DISTINCT email\)`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"link_url", "clicks", "unique"}).
			AddRow("https://ignite.com/sale", 9, 4).
			AddRow("https://ignite.com/blog", 2, 2))

	a := NewAggregator(db)
	breakdown, err := a.ClickBreakdown(context.Background(), "c1")
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if len(breakdown) != 2 || breakdown[0].Clicks != 9 || breakdown[0].UniqueRecipients != 4 {
		t.Errorf("breakdown = %+v", breakdown)
	}
}

func TestTimeline(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h0 := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT date_trunc\('hour', created_at\)`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"hour", "opens", "clicks"}).
			AddRow(h0, 12, 3).
			AddRow(h0.Add(time.Hour), 5, 1))

	a := NewAggregator(db)
	timeline, err := a.Timeline(context.Background(), "c1")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(timeline) != 2 || timeline[0].Opens != 12 || timeline[1].Clicks != 1 {
		t.Errorf("timeline = %+v", timeline)
	}
}
