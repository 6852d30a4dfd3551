package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

var mapping = audit.ColumnMapping{BusinessName: "Business", Website: "Site", City: "Town"}

func record(row int, name, site string) audit.BusinessRecord {
	return audit.NewRecord(row, []audit.Column{
		{Name: "Business", Value: name},
		{Name: "Site", Value: site},
		{Name: "Town", Value: "Austin"},
	}, mapping)
}

func sampleOutcomes() []audit.Outcome {
	report := &audit.QualityReport{
		URL:        "http://acme.test/",
		Status:     200,
		Accessible: true,
		Composite:  3.4,
		Findings: []audit.ProbeFinding{
			{Dimension: audit.DimensionSecurity, Score: 0},
			{Dimension: audit.DimensionResponsiveness, Score: 2.5},
			{Dimension: audit.DimensionModernity, Score: 4},
			{Dimension: audit.DimensionPerformance, Score: 6},
			{Dimension: audit.DimensionContent, Score: 5, Passed: true},
			{Dimension: audit.DimensionSEO, Score: 3},
			{Dimension: audit.DimensionTechnology, Detail: "WordPress"},
		},
		Issues:     []string{"no SSL certificate (site served over http)", "missing viewport meta tag"},
		Technology: "WordPress",
	}
	presence := audit.PresenceResult{Found: true, Active: true, Confidence: audit.ConfidenceHigh, SourceURL: "https://maps.test/place/acme"}
	lead := audit.Qualified(record(1, "Acme, Inc.", "acme.test"), audit.PriorityHigh, "no SSL certificate", report, presence)
	lead.Website = "http://acme.test/"
	lead.AuditedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	failed := audit.Failed(record(2, "Broken Bakery", ""), audit.ReasonBatchFailure)
	return []audit.Outcome{lead, failed}
}

func TestEncodeWritesInputColumnsFirst(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleOutcomes()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "Business,Site,Town,audit_row,audit_category,audit_priority"))
	require.True(t, strings.HasPrefix(lines[1], `"Acme, Inc.",acme.test,Austin,1,qualified,HIGH,3.4,`))
	require.Contains(t, lines[1], "no SSL certificate (site served over http) | missing viewport meta tag")
	require.Contains(t, lines[1], "2026-03-01T12:00:00Z")
	require.True(t, strings.HasPrefix(lines[2], "Broken Bakery,,Austin,2,failed,,0.0,batch_failure,"))
}

func TestEncodeEmptyWritesHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	require.Equal(t, strings.Join(auditColumns, ",")+"\n", buf.String())
}

func TestDecodeRestoresOutcomes(t *testing.T) {
	t.Parallel()

	in := sampleOutcomes()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))

	out, err := Decode(&buf, mapping)
	require.NoError(t, err)
	require.Len(t, out, 2)

	lead := out[0]
	require.Equal(t, 1, lead.Record.Row)
	require.Equal(t, "Acme, Inc.", lead.Record.Name)
	require.Equal(t, "acme.test", lead.Record.Website)
	require.Equal(t, "Austin", lead.Record.City)
	require.Equal(t, audit.CategoryQualified, lead.Category)
	require.Equal(t, audit.PriorityHigh, lead.Priority)
	require.InDelta(t, 3.4, lead.Score, 1e-9)
	require.Equal(t, in[0].Issues, lead.Issues)
	require.True(t, lead.Presence.Active)
	require.Equal(t, audit.ConfidenceHigh, lead.Presence.Confidence)
	require.True(t, lead.AuditedAt.Equal(in[0].AuditedAt))
	require.NotNil(t, lead.Quality)
	require.True(t, lead.WebsiteAccessible())
	require.False(t, lead.Quality.HasSSL())
	require.InDelta(t, 2.5, lead.Quality.Score(audit.DimensionResponsiveness), 1e-9)
	require.Equal(t, "WordPress", lead.Quality.Technology)

	failed := out[1]
	require.Equal(t, audit.CategoryFailed, failed.Category)
	require.Equal(t, audit.ReasonBatchFailure, failed.Reason)
	require.Nil(t, failed.Quality)
	require.Empty(t, failed.Issues)
}

func TestDecodeAcceptsTruthyVariants(t *testing.T) {
	t.Parallel()

	data := "Business,audit_row,audit_category,audit_found,audit_active,audit_accessible\n" +
		"Acme,4,qualified,Yes,1,no\n"
	out, err := Decode(strings.NewReader(data), audit.ColumnMapping{BusinessName: "Business"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].Presence.Found)
	require.True(t, out[0].Presence.Active)
	require.NotNil(t, out[0].Quality)
	require.False(t, out[0].Quality.Accessible)
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing row column": "Business\nAcme\n",
		"bad row":            "Business,audit_row\nAcme,x\n",
		"bad priority":       "Business,audit_row,audit_priority\nAcme,1,URGENT\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(strings.NewReader(data), mapping)
			require.Error(t, err)
		})
	}

	out, err := Decode(strings.NewReader(""), mapping)
	require.NoError(t, err)
	require.Empty(t, out)
}
