package analytics

import (
	"testing"
	"time"

	"github.com/ignite/marketing-engine/internal/domain"
)

func ts(daysAgo int) *time.Time {
	t := time.Now().UTC().Add(-time.Duration(daysAgo) * 24 * time.Hour)
	return &t
}

func TestClassify(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		received  int
		bounces   int
		lastOpen  *time.Time
		lastClick *time.Time
		want      domain.EngagementLevel
	}{
		{"fresh contact", 0, 0, nil, nil, domain.EngagementNew},
		{"two sends no reaction", 2, 0, nil, nil, domain.EngagementNew},
		{"five sends no reaction", 5, 0, nil, nil, domain.EngagementAtRisk},
		{"many sends no reaction", 15, 0, nil, nil, domain.EngagementInactive},
		{"recent click", 10, 0, ts(5), ts(2), domain.EngagementEngaged},
		{"recent open only", 10, 0, ts(5), nil, domain.EngagementActive},
		{"stale click counts as open recency", 10, 0, ts(10), ts(60), domain.EngagementActive},
		{"engagement gone stale", 10, 0, ts(45), nil, domain.EngagementAtRisk},
		{"engagement long gone", 10, 0, ts(120), ts(120), domain.EngagementInactive},
		{"three bounces override everything", 10, 3, ts(1), ts(1), domain.EngagementSuppressed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.received, tt.bounces, tt.lastOpen, tt.lastClick, now)
			if got.Level != tt.want {
				t.Errorf("Classify() = %s, want %s", got.Level, tt.want)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	now := time.Now().UTC()
	a := Classify(5, 1, ts(3), ts(3), now)
	b := Classify(5, 1, ts(3), ts(3), now)
	if a != b {
		t.Errorf("same inputs classified differently: %+v vs %+v", a, b)
	}
}
