// Package aggregate accumulates outcomes into per-category buckets and
// orders them for output.
package aggregate

import (
	"slices"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

// Buckets holds outcomes by category in arrival order. It is not safe for
// concurrent use; the scheduler appends from a single drain loop.
type Buckets struct {
	Qualified   []audit.Outcome `json:"qualified"`
	Closed      []audit.Outcome `json:"closed"`
	LowPriority []audit.Outcome `json:"low_priority"`
	Failed      []audit.Outcome `json:"failed"`
}

func (b *Buckets) slot(c audit.Category) *[]audit.Outcome {
	switch c {
	case audit.CategoryQualified:
		return &b.Qualified
	case audit.CategoryClosed:
		return &b.Closed
	case audit.CategoryLowPriority:
		return &b.LowPriority
	case audit.CategoryFailed:
		return &b.Failed
	default:
		return nil
	}
}

// Add appends o to the bucket of its category. Outcomes with an unknown
// category are dropped and reported false.
func (b *Buckets) Add(o audit.Outcome) bool {
	s := b.slot(o.Category)
	if s == nil {
		return false
	}
	*s = append(*s, o)
	return true
}

// Bucket returns the outcomes of one category.
func (b *Buckets) Bucket(c audit.Category) []audit.Outcome {
	if s := b.slot(c); s != nil {
		return *s
	}
	return nil
}

// Counts returns the size of every bucket.
func (b *Buckets) Counts() map[audit.Category]int {
	counts := make(map[audit.Category]int, len(audit.Categories))
	for _, c := range audit.Categories {
		counts[c] = len(b.Bucket(c))
	}
	return counts
}

// Total is the number of outcomes across all buckets.
func (b *Buckets) Total() int {
	n := 0
	for _, c := range audit.Categories {
		n += len(b.Bucket(c))
	}
	return n
}

// Rows returns the input rows that already have an outcome.
func (b *Buckets) Rows() map[int]audit.Category {
	rows := make(map[int]audit.Category, b.Total())
	for _, c := range audit.Categories {
		for _, o := range b.Bucket(c) {
			rows[o.Record.Row] = c
		}
	}
	return rows
}

// Snapshot copies the bucket slices so later appends do not leak into it.
func (b *Buckets) Snapshot() Buckets {
	return Buckets{
		Qualified:   slices.Clone(b.Qualified),
		Closed:      slices.Clone(b.Closed),
		LowPriority: slices.Clone(b.LowPriority),
		Failed:      slices.Clone(b.Failed),
	}
}

// WithoutFailed returns a copy with the failed bucket emptied, used when
// failed rows should be retried.
func (b *Buckets) WithoutFailed() Buckets {
	out := b.Snapshot()
	out.Failed = nil
	return out
}

// SortQualified orders leads by priority rank, then ascending composite
// score. The input is not modified and ties keep arrival order.
func SortQualified(outcomes []audit.Outcome) []audit.Outcome {
	sorted := slices.Clone(outcomes)
	slices.SortStableFunc(sorted, func(a, b audit.Outcome) int {
		if d := a.Priority.Rank() - b.Priority.Rank(); d != 0 {
			return d
		}
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		default:
			return 0
		}
	})
	return sorted
}

// SplitActive partitions leads into those with a reachable site and an
// active listing, and everything else.
func SplitActive(outcomes []audit.Outcome) (active, inactive []audit.Outcome) {
	for _, o := range outcomes {
		if o.ActiveOnline() {
			active = append(active, o)
		} else {
			inactive = append(inactive, o)
		}
	}
	return active, inactive
}
