package scheduler

import (
	"math"
	"time"

	"github.com/JakeFAU/web-presence-auditor/internal/aggregate"
	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

// Reasons a record is dropped without an outcome.
const (
	DropNoName   = "no_name"
	DropListing  = "listing_profile"
	DropNoSignal = "no_signal"
)

// Summary reports a finished run. Counts and Dropped cover resumed work too;
// Processed and Elapsed cover this invocation only.
type Summary struct {
	RunID     string
	State     State
	Total     int
	Counts    map[audit.Category]int
	Dropped   map[string]int
	Batches   int
	Processed int
	Elapsed   time.Duration
	Buckets   aggregate.Buckets
}

// Outcomes is the number of categorized records.
func (s Summary) Outcomes() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Rejected is the number of records dropped without an outcome.
func (s Summary) Rejected() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Pending is the number of records that neither produced an outcome nor were
// dropped, which is only non-zero for aborted runs.
func (s Summary) Pending() int {
	return s.Total - s.Outcomes() - s.Rejected()
}

// PerMinute is the throughput of this invocation.
func (s Summary) PerMinute() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Processed) / s.Elapsed.Minutes()
}

// Estimate predicts the wall time needed for n businesses at the given rate.
func Estimate(n int, perMinute float64) time.Duration {
	if n <= 0 || perMinute <= 0 {
		return 0
	}
	minutes := float64(n) / perMinute
	return time.Duration(math.Ceil(minutes * float64(time.Minute)))
}
