// Package report writes outcome buckets as delimited text and reads them back
// for resumed runs. Input columns come first, untouched, followed by the
// audit_ columns.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

// Prefix marks the columns the auditor adds.
const Prefix = "audit_"

const issueSeparator = " | "

// Audit columns in output order.
const (
	ColRow            = Prefix + "row"
	ColCategory       = Prefix + "category"
	ColPriority       = Prefix + "priority"
	ColScore          = Prefix + "score"
	ColReason         = Prefix + "reason"
	ColIssues         = Prefix + "issues"
	ColWebsite        = Prefix + "website"
	ColAccessible     = Prefix + "accessible"
	ColStatus         = Prefix + "status"
	ColHasSSL         = Prefix + "has_ssl"
	ColResponsive     = Prefix + "responsive"
	ColModern         = Prefix + "modern"
	ColTechnology     = Prefix + "technology"
	ColError          = Prefix + "error"
	ColFound          = Prefix + "found"
	ColActive         = Prefix + "active"
	ColConfidence     = Prefix + "confidence"
	ColSourceURL      = Prefix + "source_url"
	ColPresenceNote   = Prefix + "presence_note"
	ColAuditedAt      = Prefix + "audited_at"
	scoreColumnSuffix = "_score"
)

var auditColumns = func() []string {
	cols := []string{
		ColRow, ColCategory, ColPriority, ColScore, ColReason, ColIssues, ColWebsite,
		ColAccessible, ColStatus, ColHasSSL, ColResponsive, ColModern, ColTechnology, ColError,
	}
	for _, d := range scoredDimensions {
		cols = append(cols, dimensionColumn(d))
	}
	return append(cols, ColFound, ColActive, ColConfidence, ColSourceURL, ColPresenceNote, ColAuditedAt)
}()

var scoredDimensions = []audit.Dimension{
	audit.DimensionSecurity,
	audit.DimensionResponsiveness,
	audit.DimensionModernity,
	audit.DimensionPerformance,
	audit.DimensionContent,
	audit.DimensionSEO,
}

func dimensionColumn(d audit.Dimension) string {
	return Prefix + string(d) + scoreColumnSuffix
}

// Header returns the output header for a set of outcomes: the union of their
// input columns in first-seen order, then the audit columns.
func Header(outcomes []audit.Outcome) []string {
	seen := make(map[string]struct{})
	var header []string
	for _, o := range outcomes {
		for _, c := range o.Record.Columns {
			if _, ok := seen[c.Name]; ok || strings.HasPrefix(c.Name, Prefix) {
				continue
			}
			seen[c.Name] = struct{}{}
			header = append(header, c.Name)
		}
	}
	return append(header, auditColumns...)
}

// Encode writes outcomes as CSV. An empty slice still writes the header.
func Encode(w io.Writer, outcomes []audit.Outcome) error {
	header := Header(outcomes)
	inputCols := header[:len(header)-len(auditColumns)]
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, o := range outcomes {
		row := make([]string, 0, len(header))
		for _, name := range inputCols {
			v, _ := o.Record.Get(name)
			row = append(row, v)
		}
		row = append(row, auditValues(o)...)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", o.Record.Row, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func auditValues(o audit.Outcome) []string {
	v := map[string]string{
		ColRow:          strconv.Itoa(o.Record.Row),
		ColCategory:     string(o.Category),
		ColPriority:     string(o.Priority),
		ColScore:        formatScore(o.Score),
		ColReason:       o.Reason,
		ColIssues:       strings.Join(o.Issues, issueSeparator),
		ColWebsite:      o.Website,
		ColFound:        strconv.FormatBool(o.Presence.Found),
		ColActive:       strconv.FormatBool(o.Presence.Active),
		ColConfidence:   string(o.Presence.Confidence),
		ColSourceURL:    o.Presence.SourceURL,
		ColPresenceNote: o.Presence.Note,
	}
	if !o.AuditedAt.IsZero() {
		v[ColAuditedAt] = o.AuditedAt.UTC().Format(time.RFC3339)
	}
	if q := o.Quality; q != nil {
		v[ColAccessible] = strconv.FormatBool(q.Accessible)
		v[ColStatus] = strconv.Itoa(q.Status)
		v[ColHasSSL] = strconv.FormatBool(q.HasSSL())
		v[ColResponsive] = strconv.FormatBool(q.Responsive())
		v[ColModern] = strconv.FormatBool(q.Modern())
		v[ColTechnology] = q.Technology
		v[ColError] = q.Cause
		if q.Accessible {
			for _, d := range scoredDimensions {
				v[dimensionColumn(d)] = formatScore(q.Score(d))
			}
		}
	}
	out := make([]string, len(auditColumns))
	for i, c := range auditColumns {
		out[i] = v[c]
	}
	return out
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// Decode reads outcomes written by Encode. mapping resolves the logical
// fields of the restored records.
func Decode(r io.Reader, mapping audit.ColumnMapping) ([]audit.Outcome, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	if _, ok := index[ColRow]; !ok {
		return nil, fmt.Errorf("missing %s column", ColRow)
	}

	var outcomes []audit.Outcome
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return outcomes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		o, err := decodeRow(header, index, rec, mapping)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		outcomes = append(outcomes, o)
	}
}

func decodeRow(header []string, index map[string]int, rec []string, mapping audit.ColumnMapping) (audit.Outcome, error) {
	get := func(col string) string {
		if i, ok := index[col]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}
	row, err := strconv.Atoi(get(ColRow))
	if err != nil {
		return audit.Outcome{}, fmt.Errorf("parse row: %w", err)
	}
	var columns []audit.Column
	for i, name := range header {
		if strings.HasPrefix(name, Prefix) {
			continue
		}
		value := ""
		if i < len(rec) {
			value = rec[i]
		}
		columns = append(columns, audit.Column{Name: name, Value: value})
	}
	priority, err := audit.ParsePriority(get(ColPriority))
	if err != nil {
		return audit.Outcome{}, err
	}
	o := audit.Outcome{
		Record:   audit.NewRecord(row, columns, mapping),
		Category: audit.Category(get(ColCategory)),
		Priority: priority,
		Score:    parseFloat(get(ColScore)),
		Reason:   get(ColReason),
		Website:  get(ColWebsite),
		Presence: audit.PresenceResult{
			Found:      audit.ParseBool(get(ColFound)),
			Active:     audit.ParseBool(get(ColActive)),
			Confidence: audit.Confidence(get(ColConfidence)),
			SourceURL:  get(ColSourceURL),
			Note:       get(ColPresenceNote),
		},
	}
	if issues := get(ColIssues); issues != "" {
		o.Issues = strings.Split(issues, issueSeparator)
	}
	if ts := get(ColAuditedAt); ts != "" {
		if at, err := time.Parse(time.RFC3339, ts); err == nil {
			o.AuditedAt = at
		}
	}
	if get(ColAccessible) != "" {
		o.Quality = decodeQuality(get, o)
	}
	return o, nil
}

func decodeQuality(get func(string) string, o audit.Outcome) *audit.QualityReport {
	status, _ := strconv.Atoi(get(ColStatus))
	q := &audit.QualityReport{
		URL:        o.Website,
		Status:     status,
		Accessible: audit.ParseBool(get(ColAccessible)),
		Issues:     o.Issues,
		Technology: get(ColTechnology),
		Cause:      get(ColError),
	}
	if !q.Accessible {
		return q
	}
	passed := map[audit.Dimension]bool{
		audit.DimensionSecurity:       audit.ParseBool(get(ColHasSSL)),
		audit.DimensionResponsiveness: audit.ParseBool(get(ColResponsive)),
		audit.DimensionModernity:      audit.ParseBool(get(ColModern)),
	}
	for _, d := range scoredDimensions {
		q.Findings = append(q.Findings, audit.ProbeFinding{
			Dimension: d,
			Score:     parseFloat(get(dimensionColumn(d))),
			Passed:    passed[d],
		})
	}
	q.Findings = append(q.Findings, audit.ProbeFinding{Dimension: audit.DimensionTechnology, Detail: q.Technology})
	q.Composite = o.Score
	return q
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
