package audit

// Dimension identifies one probe of the quality battery.
type Dimension string

// Probe dimensions in report order.
const (
	DimensionSecurity       Dimension = "security"
	DimensionResponsiveness Dimension = "responsiveness"
	DimensionModernity      Dimension = "modernity"
	DimensionPerformance    Dimension = "performance"
	DimensionContent        Dimension = "content"
	DimensionSEO            Dimension = "seo"
	DimensionTechnology     Dimension = "technology"
)

// Dimensions lists every probe dimension in report order.
var Dimensions = []Dimension{
	DimensionSecurity,
	DimensionResponsiveness,
	DimensionModernity,
	DimensionPerformance,
	DimensionContent,
	DimensionSEO,
	DimensionTechnology,
}

// UnknownTechnology is the fingerprint of a report that never reached the page.
const UnknownTechnology = "Unknown"

// ProbeFinding is the result of one dimension probe.
type ProbeFinding struct {
	Dimension Dimension `json:"dimension"`
	// Score is the 0-10 sub-score; technology findings always carry 0.
	Score float64 `json:"score"`
	// Passed is the dimension's boolean signal (has SSL, responsive, modern...).
	Passed bool     `json:"passed"`
	Issues []string `json:"issues,omitempty"`
	// Detail carries free-form output such as the technology fingerprint.
	Detail string `json:"detail,omitempty"`
}

// QualityReport aggregates every finding for one site visit.
type QualityReport struct {
	URL        string         `json:"url"`
	FinalURL   string         `json:"final_url,omitempty"`
	Status     int            `json:"status"`
	Accessible bool           `json:"accessible"`
	Composite  float64        `json:"composite"`
	Findings   []ProbeFinding `json:"findings,omitempty"`
	Issues     []string       `json:"issues,omitempty"`
	Technology string         `json:"technology"`
	// Cause is set when the site was inaccessible.
	Cause string `json:"cause,omitempty"`
}

// InaccessibleReport builds the all-zero report used for every failure path.
func InaccessibleReport(url string, status int, cause string) QualityReport {
	return QualityReport{
		URL:        url,
		Status:     status,
		Accessible: false,
		Technology: UnknownTechnology,
		Cause:      cause,
	}
}

// Finding returns the finding for a dimension.
func (r QualityReport) Finding(d Dimension) (ProbeFinding, bool) {
	for _, f := range r.Findings {
		if f.Dimension == d {
			return f, true
		}
	}
	return ProbeFinding{}, false
}

// Score returns a dimension sub-score, zero when absent.
func (r QualityReport) Score(d Dimension) float64 {
	f, _ := r.Finding(d)
	return f.Score
}

// HasSSL reports the security signal.
func (r QualityReport) HasSSL() bool {
	f, ok := r.Finding(DimensionSecurity)
	return ok && f.Passed
}

// Responsive reports the responsiveness signal.
func (r QualityReport) Responsive() bool {
	f, ok := r.Finding(DimensionResponsiveness)
	return ok && f.Passed
}

// Modern reports the modernity signal.
func (r QualityReport) Modern() bool {
	f, ok := r.Finding(DimensionModernity)
	return ok && f.Passed
}
