package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

func lead(row int, p audit.Priority, score float64) audit.Outcome {
	o := audit.Qualified(audit.BusinessRecord{Row: row}, p, "test", nil, audit.PresenceResult{})
	o.Score = score
	return o
}

func TestBucketsAddAndCounts(t *testing.T) {
	t.Parallel()

	var b Buckets
	require.True(t, b.Add(lead(1, audit.PriorityHigh, 3)))
	require.True(t, b.Add(audit.Closed(audit.BusinessRecord{Row: 2}, "closed", audit.PresenceResult{})))
	require.True(t, b.Add(audit.LowPriority(audit.BusinessRecord{Row: 3}, 8.5, "fine", nil, audit.PresenceResult{})))
	require.True(t, b.Add(audit.Failed(audit.BusinessRecord{Row: 4}, "boom")))
	require.False(t, b.Add(audit.Outcome{Category: "bogus"}))

	require.Equal(t, map[audit.Category]int{
		audit.CategoryQualified:   1,
		audit.CategoryClosed:      1,
		audit.CategoryLowPriority: 1,
		audit.CategoryFailed:      1,
	}, b.Counts())
	require.Equal(t, 4, b.Total())
	require.Equal(t, audit.CategoryFailed, b.Rows()[4])

	snap := b.Snapshot()
	b.Add(audit.Failed(audit.BusinessRecord{Row: 5}, "boom"))
	require.Len(t, snap.Failed, 1)
	require.Empty(t, b.WithoutFailed().Failed)
}

func TestSortQualified(t *testing.T) {
	t.Parallel()

	in := []audit.Outcome{
		lead(1, audit.PriorityLow, 6.8),
		lead(2, audit.PriorityHigh, 5.0),
		lead(3, audit.PriorityMedium, 5.5),
		lead(4, audit.PriorityHigh, 2.0),
		lead(5, audit.PriorityHigh, 5.0),
	}
	got := SortQualified(in)
	rows := make([]int, 0, len(got))
	for _, o := range got {
		rows = append(rows, o.Record.Row)
	}
	require.Equal(t, []int{4, 2, 5, 3, 1}, rows)
	require.Equal(t, 1, in[0].Record.Row, "input must not be reordered")
}

func TestSplitActive(t *testing.T) {
	t.Parallel()

	report := &audit.QualityReport{Accessible: true}
	both := audit.Qualified(audit.BusinessRecord{Row: 1}, audit.PriorityMedium, "x", report, audit.PresenceResult{Found: true, Active: true})
	siteOnly := audit.Qualified(audit.BusinessRecord{Row: 2}, audit.PriorityMedium, "x", report, audit.NotFound("none"))
	listingOnly := audit.Qualified(audit.BusinessRecord{Row: 3}, audit.PriorityHigh, audit.ReasonNoWebsite, nil, audit.PresenceResult{Found: true, Active: true})

	active, inactive := SplitActive([]audit.Outcome{both, siteOnly, listingOnly})
	require.Len(t, active, 1)
	require.Equal(t, 1, active[0].Record.Row)
	require.Len(t, inactive, 2)
}
