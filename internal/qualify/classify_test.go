package qualify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

func record() audit.BusinessRecord {
	return audit.BusinessRecord{Row: 7, Name: "Acme Plumbing", Website: "acme.example", City: "Springfield"}
}

func site(composite, mobile float64, ssl, responsive bool) *audit.QualityReport {
	sec := 0.0
	if ssl {
		sec = 10
	}
	return &audit.QualityReport{
		URL:        "https://acme.example",
		Status:     200,
		Accessible: true,
		Composite:  composite,
		Findings: []audit.ProbeFinding{
			{Dimension: audit.DimensionSecurity, Score: sec, Passed: ssl},
			{Dimension: audit.DimensionResponsiveness, Score: mobile, Passed: responsive},
		},
		Issues:     []string{"default fonts"},
		Technology: "WordPress",
	}
}

var (
	notFound = audit.NotFound("no listing")
	active   = audit.PresenceResult{Found: true, Active: true, Confidence: audit.ConfidenceHigh}
	closed   = audit.PresenceResult{Found: true, Confidence: audit.ConfidenceLow, Note: "permanently closed"}
)

func TestClassifyRejectsWithoutSignal(t *testing.T) {
	t.Parallel()

	dead := audit.InaccessibleReport("https://acme.example", 404, "HTTP 404")
	_, ok := Classify(&dead, notFound, record())
	require.False(t, ok)
	_, ok = Classify(nil, notFound, record())
	require.False(t, ok)
}

func TestClassifyClosedWinsOverQuality(t *testing.T) {
	t.Parallel()

	for _, report := range []*audit.QualityReport{nil, site(2, 2, false, false), site(9.5, 10, true, true)} {
		out, ok := Classify(report, closed, record())
		require.True(t, ok)
		require.Equal(t, audit.CategoryClosed, out.Category)
		require.Equal(t, "listing reports business closed (permanently closed)", out.Reason)
		require.Empty(t, out.Priority)
	}
}

func TestClassifyActiveWithoutWebsite(t *testing.T) {
	t.Parallel()

	out, ok := Classify(nil, active, record())
	require.True(t, ok)
	require.Equal(t, audit.CategoryQualified, out.Category)
	require.Equal(t, audit.PriorityHigh, out.Priority)
	require.Equal(t, audit.ReasonNoWebsite, out.Reason)

	dead := audit.InaccessibleReport("https://acme.example", 0, "timeout")
	out, ok = Classify(&dead, active, record())
	require.True(t, ok)
	require.Equal(t, audit.PriorityHigh, out.Priority)
	require.Equal(t, audit.ReasonNoWebsite, out.Reason)
}

func TestClassifyPriorities(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		report   *audit.QualityReport
		presence audit.PresenceResult
		category audit.Category
		priority audit.Priority
	}{
		{"low score", site(3.9, 8, true, true), notFound, audit.CategoryQualified, audit.PriorityHigh},
		{"medium score", site(5.5, 8, true, true), active, audit.CategoryQualified, audit.PriorityMedium},
		{"low band under cut", site(6.8, 8, true, true), active, audit.CategoryQualified, audit.PriorityLow},
		{"low band over cut", site(7.3, 8, true, true), active, audit.CategoryLowPriority, ""},
		{"good site", site(8.5, 9, true, true), active, audit.CategoryLowPriority, ""},
		{"no ssl forces high", site(9.0, 9, false, true), active, audit.CategoryQualified, audit.PriorityHigh},
		{"not responsive forces medium", site(8.0, 6, true, false), active, audit.CategoryQualified, audit.PriorityMedium},
		{"poor mobile forces high", site(8.0, 3, true, false), notFound, audit.CategoryQualified, audit.PriorityHigh},
		{"not responsive keeps high", site(3.0, 5, true, false), active, audit.CategoryQualified, audit.PriorityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, ok := Classify(tc.report, tc.presence, record())
			require.True(t, ok)
			require.Equal(t, tc.category, out.Category)
			require.Equal(t, tc.priority, out.Priority)
			require.InDelta(t, tc.report.Composite, out.Score, 1e-9)
			require.Equal(t, []string{"default fonts"}, out.Issues)
		})
	}
}

func TestClassifyMissingSSLAlwaysHigh(t *testing.T) {
	t.Parallel()

	for composite := 0.0; composite <= 10; composite += 0.5 {
		for mobile := 0.0; mobile <= 10; mobile += 2.5 {
			out, ok := Classify(site(composite, mobile, false, mobile >= 7), notFound, record())
			require.True(t, ok)
			require.Equal(t, audit.CategoryQualified, out.Category)
			require.Equal(t, audit.PriorityHigh, out.Priority)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	t.Parallel()

	report := site(6.2, 7, true, true)
	first, _ := Classify(report, active, record())
	for range 10 {
		again, _ := Classify(report, active, record())
		require.Equal(t, first, again)
	}
}

func TestPrioritizeDrivers(t *testing.T) {
	t.Parallel()

	priority, drivers := Prioritize(*site(8.0, 2, false, false))
	require.Equal(t, audit.PriorityHigh, priority)
	require.Equal(t, []string{"composite score 8.0", "no SSL certificate", "not mobile responsive", "poor mobile experience"}, drivers)
}
