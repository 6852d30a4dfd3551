package audit

import (
	"fmt"
	"time"
)

// Category is the closed set of outcome kinds.
type Category string

// Outcome categories.
const (
	CategoryQualified   Category = "qualified"
	CategoryClosed      Category = "closed"
	CategoryLowPriority Category = "low_priority"
	CategoryFailed      Category = "failed"
)

// Categories lists every category in report order.
var Categories = []Category{CategoryQualified, CategoryClosed, CategoryLowPriority, CategoryFailed}

// Priority ranks qualified leads for outreach.
type Priority string

// Priorities from most to least urgent.
const (
	PriorityHigh    Priority = "HIGH"
	PriorityMedium  Priority = "MEDIUM"
	PriorityLow     Priority = "LOW"
	PriorityVeryLow Priority = "VERY_LOW"
)

// Rank orders priorities; lower is more urgent. Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	case PriorityVeryLow:
		return 3
	default:
		return 4
	}
}

// ParsePriority maps a persisted priority string back to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityHigh, PriorityMedium, PriorityLow, PriorityVeryLow:
		return p, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// ReasonNoWebsite is attached to leads found active without a working site.
const ReasonNoWebsite = "active business without functional website"

// ReasonBatchFailure marks businesses lost to a browser-level fault.
const ReasonBatchFailure = "batch_failure"

// Outcome is the single categorized verdict for one surviving record.
// Priority is set only for qualified outcomes; Quality is nil when no site
// was probed.
type Outcome struct {
	Record    BusinessRecord
	Category  Category
	Priority  Priority
	Score     float64
	Reason    string
	Issues    []string
	Website   string
	Quality   *QualityReport
	Presence  PresenceResult
	AuditedAt time.Time
}

// Qualified builds an outreach lead.
func Qualified(rec BusinessRecord, priority Priority, reason string, report *QualityReport, presence PresenceResult) Outcome {
	o := Outcome{
		Record:   rec,
		Category: CategoryQualified,
		Priority: priority,
		Reason:   reason,
		Quality:  report,
		Presence: presence,
	}
	if report != nil {
		o.Score = report.Composite
		o.Issues = append([]string(nil), report.Issues...)
	}
	return o
}

// Closed builds the outcome for a business the listing reports as closed.
func Closed(rec BusinessRecord, reason string, presence PresenceResult) Outcome {
	return Outcome{Record: rec, Category: CategoryClosed, Reason: reason, Presence: presence}
}

// LowPriority builds the outcome for a business whose site is good enough.
func LowPriority(rec BusinessRecord, score float64, reason string, report *QualityReport, presence PresenceResult) Outcome {
	o := Outcome{
		Record:   rec,
		Category: CategoryLowPriority,
		Score:    score,
		Reason:   reason,
		Quality:  report,
		Presence: presence,
	}
	if report != nil {
		o.Issues = append([]string(nil), report.Issues...)
	}
	return o
}

// Failed builds the outcome for a business whose processing broke.
func Failed(rec BusinessRecord, reason string) Outcome {
	return Outcome{Record: rec, Category: CategoryFailed, Reason: reason}
}

// WebsiteAccessible reports whether a site was probed and reachable.
func (o Outcome) WebsiteAccessible() bool {
	return o.Quality != nil && o.Quality.Accessible
}

// ActiveOnline reports whether a lead has both a reachable site and an active
// listing.
func (o Outcome) ActiveOnline() bool {
	return o.WebsiteAccessible() && o.Presence.Active
}
