// Package qualify maps probe results to outcome categories. Everything here
// is pure: identical inputs always give identical outcomes.
package qualify

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

// Score thresholds for the base priority and the qualification cut.
const (
	HighMax          = 4.0
	MediumMax        = 6.0
	LowMax           = 7.5
	QualifyMax       = 7.0
	PoorMobileScore  = 3.0
	ReasonClosed     = "listing reports business closed"
	ReasonAcceptable = "website quality acceptable"
)

// Classify decides the outcome for one business. The boolean is false when
// the record has no actionable signal (no working site and no listing) and
// must produce no outcome. A nil report means no site was probed.
func Classify(report *audit.QualityReport, presence audit.PresenceResult, rec audit.BusinessRecord) (audit.Outcome, bool) {
	accessible := report != nil && report.Accessible
	switch {
	case !accessible && !presence.Found:
		return audit.Outcome{}, false
	case presence.Found && !presence.Active:
		reason := ReasonClosed
		if presence.Note != "" {
			reason = fmt.Sprintf("%s (%s)", ReasonClosed, presence.Note)
		}
		return audit.Closed(rec, reason, presence), true
	case !accessible:
		return audit.Qualified(rec, audit.PriorityHigh, audit.ReasonNoWebsite, report, presence), true
	}

	priority, drivers := Prioritize(*report)
	if priority.Rank() <= audit.PriorityMedium.Rank() || report.Composite <= QualifyMax {
		return audit.Qualified(rec, priority, strings.Join(drivers, "; "), report, presence), true
	}
	reason := fmt.Sprintf("%s (score %.1f)", ReasonAcceptable, report.Composite)
	return audit.LowPriority(rec, report.Composite, reason, report, presence), true
}

// Prioritize derives the outreach priority of an accessible site from its
// composite score, then applies the escalation rules. drivers explains the
// result; it is informational only.
func Prioritize(report audit.QualityReport) (audit.Priority, []string) {
	priority := basePriority(report.Composite)
	drivers := []string{fmt.Sprintf("composite score %.1f", report.Composite)}

	if !report.HasSSL() {
		priority = audit.PriorityHigh
		drivers = append(drivers, "no SSL certificate")
	}
	if !report.Responsive() {
		if priority.Rank() > audit.PriorityMedium.Rank() {
			priority = audit.PriorityMedium
		}
		drivers = append(drivers, "not mobile responsive")
	}
	if report.Score(audit.DimensionResponsiveness) <= PoorMobileScore {
		priority = audit.PriorityHigh
		drivers = append(drivers, "poor mobile experience")
	}
	return priority, drivers
}

func basePriority(score float64) audit.Priority {
	switch {
	case score <= HighMax:
		return audit.PriorityHigh
	case score <= MediumMax:
		return audit.PriorityMedium
	case score <= LowMax:
		return audit.PriorityLow
	default:
		return audit.PriorityVeryLow
	}
}
