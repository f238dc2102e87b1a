package campaign

import (
	"strings"

	"github.com/ignite/marketing-engine/internal/domain"
)

// minHTMLLength is the shortest HTML body accepted for a real send; anything
// under it is almost certainly a placeholder left in by mistake.
const minHTMLLength = 20

// PreflightReport separates hard blockers from soft warnings. Send is
// permitted only when Blockers is empty; Warnings never block.
type PreflightReport struct {
	CanSend  bool     `json:"can_send"`
	Blockers []string `json:"blockers"`
	Warnings []string `json:"warnings"`
}

// Preflight checks a campaign for send-readiness.
func (s *Service) Preflight(c *domain.Campaign) *PreflightReport {
	report := &PreflightReport{}

	if strings.TrimSpace(c.Subject) == "" {
		report.Blockers = append(report.Blockers, "subject is missing")
	}
	html := strings.TrimSpace(c.HTMLContent)
	if html == "" {
		report.Blockers = append(report.Blockers, "HTML content is missing")
	} else if len(html) < minHTMLLength {
		report.Blockers = append(report.Blockers, "HTML content is too short to be a real email")
	}

	if len(c.TestSentTo) == 0 {
		report.Warnings = append(report.Warnings, "no test email has been sent")
	}
	if html != "" && !strings.Contains(strings.ToLower(html), "unsubscribe") {
		report.Warnings = append(report.Warnings, "no unsubscribe link detected")
	}

	report.CanSend = len(report.Blockers) == 0
	return report
}
