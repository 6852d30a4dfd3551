package presence

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

var closurePhrases = []string{
	"permanently closed",
	"temporarily closed",
	"closed permanently",
	"closed temporarily",
	"no longer in business",
	"out of business",
	"business has closed",
}

var activityCues = []struct {
	name string
	re   *regexp.Regexp
}{
	{"hours", regexp.MustCompile(`\b(open now|opens|closes|open 24 hours|hours)\b`)},
	{"phone", regexp.MustCompile(`(\+\d[\d\s().-]{7,}\d|\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}|\bphone\b)`)},
	{"website", regexp.MustCompile(`\bwebsite\b`)},
	{"directions", regexp.MustCompile(`\bdirections\b`)},
}

// Assessment is the verdict drawn from listing text.
type Assessment struct {
	Active        bool
	Confidence    audit.Confidence
	ClosurePhrase string
	Cues          []string
}

// Assess reads listing text. Only a closure phrase marks the business
// inactive; activity cues raise confidence. results is the number of listing
// entries shown; a found listing counts as at least one.
func Assess(text string, results int) Assessment {
	lower := strings.ToLower(text)
	if results < 1 {
		results = 1
	}
	a := Assessment{Confidence: audit.ConfidenceLow}
	for _, phrase := range closurePhrases {
		if strings.Contains(lower, phrase) {
			a.ClosurePhrase = phrase
			return a
		}
	}
	a.Active = true
	for _, cue := range activityCues {
		if cue.re.MatchString(lower) {
			a.Cues = append(a.Cues, cue.name)
		}
	}
	if len(a.Cues) == 0 {
		return a
	}
	switch {
	case results == 1:
		a.Confidence = audit.ConfidenceHigh
	case results <= 5:
		a.Confidence = audit.ConfidenceMedium
	}
	return a
}
