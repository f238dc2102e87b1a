package segment

import (
	"strings"
	"testing"
)

func TestBuildRecipientQuery(t *testing.T) {
	tests := []struct {
		name         string
		filter       Filter
		wantContains []string
		wantArgs     int
	}{
		{
			name:         "empty filter matches all subscribed",
			filter:       Filter{},
			wantContains: []string{"subscribed = TRUE", "ORDER BY email ASC"},
			wantArgs:     0,
		},
		{
			name:         "sources only",
			filter:       Filter{Sources: []string{"popup", "checkout"}},
			wantContains: []string{"source = ANY($1)"},
			wantArgs:     1,
		},
		{
			name:         "tags only",
			filter:       Filter{Tags: []string{"vip"}},
			wantContains: []string{"tags && $1"},
			wantArgs:     1,
		},
		{
			name:         "sources and tags are ANDed",
			filter:       Filter{Sources: []string{"popup"}, Tags: []string{"vip", "beta"}},
			wantContains: []string{"source = ANY($1)", "tags && $2", "AND"},
			wantArgs:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qb := NewQueryBuilder()
			query, args := qb.BuildRecipientQuery(tt.filter)

			for _, want := range tt.wantContains {
				if !strings.Contains(query, want) {
					t.Errorf("query missing %q:\n%s", want, query)
				}
			}
			if len(args) != tt.wantArgs {
				t.Errorf("got %d args, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestBuildRecipientQueryAlwaysRequiresSubscribed(t *testing.T) {
	qb := NewQueryBuilder()
	query, _ := qb.BuildRecipientQuery(Filter{Sources: []string{"api"}, Tags: []string{"vip"}})
	if !strings.Contains(query, "subscribed = TRUE") {
		t.Fatalf("subscription guard missing from query:\n%s", query)
	}
}

func TestBuildCountQuery(t *testing.T) {
	qb := NewQueryBuilder()
	query, args := qb.BuildCountQuery(Filter{Tags: []string{"vip"}})
	if !strings.HasPrefix(query, "SELECT COUNT(*)") {
		t.Errorf("unexpected count query: %s", query)
	}
	if !strings.Contains(query, "tags && $1") || len(args) != 1 {
		t.Errorf("tag predicate not built: %s (%d args)", query, len(args))
	}
}

func TestBuilderIsReusable(t *testing.T) {
	qb := NewQueryBuilder()
	qb.BuildRecipientQuery(Filter{Sources: []string{"a"}, Tags: []string{"b"}})
	_, args := qb.BuildRecipientQuery(Filter{Tags: []string{"c"}})
	if len(args) != 1 {
		t.Errorf("builder state leaked between builds: %d args", len(args))
	}
}
