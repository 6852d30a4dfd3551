package quality

import (
	"fmt"
	"math"
	"time"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/browser"
)

// Weights of each scored dimension in the composite. Technology is not
// scored.
var Weights = map[audit.Dimension]float64{
	audit.DimensionResponsiveness: 0.25,
	audit.DimensionModernity:      0.20,
	audit.DimensionSecurity:       0.15,
	audit.DimensionPerformance:    0.15,
	audit.DimensionContent:        0.15,
	audit.DimensionSEO:            0.10,
}

const (
	overflowTolerance  = 50
	lastModifiedLayout = "01/02/2006 15:04:05"
	responsiveCutoff   = 7
	modernCutoff       = 6
)

// Composite reduces sub-scores to the weighted 0-10 score, rounded to one
// decimal.
func Composite(findings []audit.ProbeFinding) float64 {
	var total float64
	for _, f := range findings {
		total += clamp(f.Score) * Weights[f.Dimension]
	}
	return clamp(round1(total))
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 10:
		return 10
	default:
		return v
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func securityFinding(hasSSL bool, mixed int) audit.ProbeFinding {
	f := audit.ProbeFinding{Dimension: audit.DimensionSecurity, Passed: hasSSL}
	if !hasSSL {
		f.Issues = append(f.Issues, "no SSL certificate (site served over http)")
		return f
	}
	f.Score = 10
	if mixed > 0 {
		f.Score -= 3
		f.Issues = append(f.Issues, fmt.Sprintf("mixed content (%d insecure resources)", mixed))
	}
	return f
}

// viewportScore scores one rendering size. The media-query penalty does not
// apply at desktop width.
func viewportScore(vp browser.Viewport, s viewportSignals) (float64, []string) {
	score := 10.0
	var issues []string
	if s.ScrollWidth > s.InnerWidth+overflowTolerance {
		score -= 5
		issues = append(issues, fmt.Sprintf("horizontal overflow on %s", vp))
	}
	if !s.HasViewportMeta {
		score -= 2
		issues = append(issues, "missing viewport meta tag")
	}
	if !s.HasMediaQueries && vp.Name != browser.ViewportDesktop {
		score -= 3
		issues = append(issues, "no responsive media queries")
	}
	return score, issues
}

func responsivenessFinding(scores []float64, issues []string) audit.ProbeFinding {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := 0.0
	if len(scores) > 0 {
		avg = round1(sum / float64(len(scores)))
	}
	return audit.ProbeFinding{
		Dimension: audit.DimensionResponsiveness,
		Score:     clamp(avg),
		Passed:    avg >= responsiveCutoff,
		Issues:    dedupe(issues),
	}
}

func modernityFinding(s modernitySignals, now time.Time) audit.ProbeFinding {
	var (
		score  float64
		issues []string
	)
	features := min(len(dedupe(s.Features)), 4)
	score += float64(features)
	if features < 2 {
		issues = append(issues, "few modern CSS features")
	}
	patterns := min(len(dedupe(s.Patterns)), 3)
	score += float64(patterns)
	if patterns == 0 {
		issues = append(issues, "no modern UI patterns")
	}
	if s.CustomFonts {
		score += 2
	} else {
		issues = append(issues, "default fonts")
	}
	if modified, err := time.ParseInLocation(lastModifiedLayout, s.LastModified, now.Location()); err == nil {
		switch age := now.Sub(modified); {
		case age <= 365*24*time.Hour:
			score++
		case age > 2*365*24*time.Hour:
			score -= 2
			issues = append(issues, fmt.Sprintf("not updated since %s", modified.Format("2006-01-02")))
		}
	}
	score = clamp(score)
	return audit.ProbeFinding{
		Dimension: audit.DimensionModernity,
		Score:     score,
		Passed:    score >= modernCutoff,
		Issues:    issues,
	}
}

func performanceFinding(elapsed time.Duration, images, scripts int) audit.ProbeFinding {
	score := 10.0
	var issues []string
	switch {
	case elapsed > 5*time.Second:
		score -= 4
		issues = append(issues, fmt.Sprintf("slow load time (%.1fs)", elapsed.Seconds()))
	case elapsed > 3*time.Second:
		score -= 2
		issues = append(issues, fmt.Sprintf("slow load time (%.1fs)", elapsed.Seconds()))
	}
	if images > 50 {
		score -= 2
		issues = append(issues, fmt.Sprintf("too many images (%d)", images))
	}
	if scripts > 20 {
		score -= 1
		issues = append(issues, fmt.Sprintf("too many scripts (%d)", scripts))
	}
	return audit.ProbeFinding{
		Dimension: audit.DimensionPerformance,
		Score:     score,
		Passed:    score >= 7,
		Issues:    issues,
		Detail:    elapsed.Round(time.Millisecond).String(),
	}
}

func unmeasuredPerformance(err error) audit.ProbeFinding {
	return audit.ProbeFinding{
		Dimension: audit.DimensionPerformance,
		Score:     5,
		Issues:    []string{fmt.Sprintf("performance could not be measured: %s", failureCause(err))},
	}
}

func technologyFinding(joined string) audit.ProbeFinding {
	return audit.ProbeFinding{
		Dimension: audit.DimensionTechnology,
		Passed:    joined != customTechnology,
		Detail:    joined,
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
