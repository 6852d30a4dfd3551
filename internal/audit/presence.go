package audit

// Confidence grades how sure the presence verifier is about a listing.
type Confidence string

// Confidence levels.
const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// PresenceResult is the verdict of one place-search lookup.
type PresenceResult struct {
	Found      bool       `json:"found"`
	Active     bool       `json:"active"`
	Confidence Confidence `json:"confidence"`
	SourceURL  string     `json:"source_url,omitempty"`
	// Note records why a lookup came back empty; it never marks an error.
	Note string `json:"note,omitempty"`
}

// NotFound is the soft-failure presence verdict.
func NotFound(note string) PresenceResult {
	return PresenceResult{Confidence: ConfidenceNone, Note: note}
}
