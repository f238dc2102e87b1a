package segment

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Filter is the typed audience predicate. Sources are an OR-membership
// test, tags require at least one tag in common; when both are present the
// two groups are AND-ed. An empty filter matches all subscribed contacts.
type Filter struct {
	Sources []string
	Tags    []string
}

// IsEmpty reports whether the filter constrains nothing beyond subscription.
func (f Filter) IsEmpty() bool {
	return len(f.Sources) == 0 && len(f.Tags) == 0
}

// QueryBuilder assembles the recipient SELECT as an explicit AND of
// predicate groups with numbered placeholders. It replaces the ad hoc
// per-call-site condition slices that preceded it.
type QueryBuilder struct {
	args []interface{}
	argN int
}

// NewQueryBuilder creates a fresh builder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{argN: 1}
}

func (qb *QueryBuilder) nextArg(value interface{}) string {
	qb.args = append(qb.args, value)
	placeholder := fmt.Sprintf("$%d", qb.argN)
	qb.argN++
	return placeholder
}

const subscriberColumns = `id, email, name, source, tags, subscribed,
	engagement_score, engagement_level, bounce_count, emails_received`

// BuildRecipientQuery returns the SELECT for all subscribed contacts
// matching the filter, ordered by email for deterministic batching.
func (qb *QueryBuilder) BuildRecipientQuery(f Filter) (string, []interface{}) {
	qb.args = nil
	qb.argN = 1

	groups := []string{"subscribed = TRUE"}

	if len(f.Sources) > 0 {
		groups = append(groups, fmt.Sprintf("source = ANY(%s)", qb.nextArg(pq.Array(f.Sources))))
	}
	if len(f.Tags) > 0 {
		groups = append(groups, fmt.Sprintf("tags && %s", qb.nextArg(pq.Array(f.Tags))))
	}

	query := "SELECT " + subscriberColumns + "\nFROM subscribers\nWHERE " +
		strings.Join(groups, "\n  AND ") +
		"\nORDER BY email ASC"

	return query, qb.args
}

// BuildCountQuery returns the matching COUNT(*) query for previews.
func (qb *QueryBuilder) BuildCountQuery(f Filter) (string, []interface{}) {
	qb.args = nil
	qb.argN = 1

	groups := []string{"subscribed = TRUE"}

	if len(f.Sources) > 0 {
		groups = append(groups, fmt.Sprintf("source = ANY(%s)", qb.nextArg(pq.Array(f.Sources))))
	}
	if len(f.Tags) > 0 {
		groups = append(groups, fmt.Sprintf("tags && %s", qb.nextArg(pq.Array(f.Tags))))
	}

	query := "SELECT COUNT(*) FROM subscribers WHERE " + strings.Join(groups, " AND ")
	return query, qb.args
}
