package quality

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/browser"
	"github.com/JakeFAU/web-presence-auditor/internal/clock/system"
	"github.com/JakeFAU/web-presence-auditor/internal/preflight"
)

// Reachability is a cheap check run before the browser visit.
type Reachability interface {
	Check(ctx context.Context, addr string) (preflight.Result, error)
}

// Scorer runs the probe battery against one site per call. It is safe for
// concurrent use as long as each call gets its own tab.
type Scorer struct {
	cfg       Config
	preflight Reachability
	clock     audit.Clock
	logger    *zap.Logger
}

// Option customizes a Scorer.
type Option func(*Scorer)

// WithPreflight enables the reachability check.
func WithPreflight(r Reachability) Option {
	return func(s *Scorer) { s.preflight = r }
}

// WithClock overrides the clock used for load timing and page age.
func WithClock(c audit.Clock) Option {
	return func(s *Scorer) { s.clock = c }
}

// NewScorer builds a Scorer.
func NewScorer(cfg Config, logger *zap.Logger, opts ...Option) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scorer{cfg: cfg, clock: system.New(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score visits addr in tab and returns its report. It never fails: any
// navigation error, bad status or panic yields an inaccessible report tagged
// with the cause.
func (s *Scorer) Score(ctx context.Context, tab browser.Tab, addr string) (report audit.QualityReport) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("scorer panic", zap.String("url", addr), zap.Any("panic", r))
			report = audit.InaccessibleReport(addr, 0, fmt.Sprintf("panic: %v", r))
		}
	}()

	if s.preflight != nil {
		res, err := s.preflight.Check(ctx, addr)
		if err != nil {
			s.logger.Debug("preflight failed", zap.String("url", addr), zap.Error(err))
			return audit.InaccessibleReport(addr, 0, noResponse)
		}
		if res.Status >= 400 {
			return audit.InaccessibleReport(addr, res.Status, fmt.Sprintf("HTTP %d", res.Status))
		}
	}

	if err := tab.SetViewport(ctx, s.cfg.Desktop); err != nil {
		return audit.InaccessibleReport(addr, 0, failureCause(err))
	}
	resp, err := tab.Navigate(ctx, addr, s.cfg.Wait, s.cfg.NavTimeout)
	if err != nil {
		s.logger.Debug("navigation failed", zap.String("url", addr), zap.Error(err))
		return audit.InaccessibleReport(addr, 0, failureCause(err))
	}
	switch {
	case resp.Status == 0:
		return audit.InaccessibleReport(addr, 0, noResponse)
	case resp.Status >= 400:
		return audit.InaccessibleReport(addr, resp.Status, fmt.Sprintf("HTTP %d", resp.Status))
	}
	finalURL := resp.URL
	if finalURL == "" {
		finalURL = addr
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		return audit.InaccessibleReport(addr, resp.Status, failureCause(err))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return audit.InaccessibleReport(addr, resp.Status, fmt.Sprintf("parse document: %v", err))
	}

	technology := s.technology(ctx, tab, doc)
	findings := []audit.ProbeFinding{
		s.security(ctx, tab, finalURL),
		s.responsiveness(ctx, tab),
		s.modernity(ctx, tab),
		s.performance(ctx, tab, finalURL, doc),
		contentFinding(doc),
		seoFinding(doc),
		technologyFinding(technology),
	}
	if err := ctx.Err(); err != nil {
		return audit.InaccessibleReport(addr, resp.Status, failureCause(err))
	}

	report = audit.QualityReport{
		URL:        addr,
		FinalURL:   finalURL,
		Status:     resp.Status,
		Accessible: true,
		Composite:  Composite(findings),
		Findings:   findings,
		Technology: technology,
	}
	for _, f := range findings {
		report.Issues = append(report.Issues, f.Issues...)
	}
	s.logger.Debug("site scored",
		zap.String("url", addr),
		zap.Float64("composite", report.Composite),
		zap.Int("issues", len(report.Issues)),
	)
	return report
}

const noResponse = "no response"

// failureCause turns a probe error into the short cause stored on reports.
func failureCause(err error) string {
	switch {
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return err.Error()
	}
}

func (s *Scorer) security(ctx context.Context, tab browser.Tab, finalURL string) audit.ProbeFinding {
	u, err := url.Parse(finalURL)
	hasSSL := err == nil && strings.EqualFold(u.Scheme, "https")
	var mixed mixedContentSignals
	if hasSSL {
		if err := tab.Evaluate(ctx, ScriptMixedContent, &mixed); err != nil {
			s.logger.Debug("mixed content probe failed", zap.String("url", finalURL), zap.Error(err))
		}
	}
	return securityFinding(hasSSL, mixed.Count)
}

func (s *Scorer) responsiveness(ctx context.Context, tab browser.Tab) audit.ProbeFinding {
	var (
		scores []float64
		issues []string
	)
	for _, vp := range s.cfg.viewports() {
		var signals viewportSignals
		if err := tab.SetViewport(ctx, vp); err != nil {
			s.logger.Debug("set viewport failed", zap.Stringer("viewport", vp), zap.Error(err))
		} else if err := system.Sleep(ctx, s.cfg.ViewportSettle); err == nil {
			if err := tab.Evaluate(ctx, ScriptResponsive, &signals); err != nil {
				s.logger.Debug("responsive probe failed", zap.Stringer("viewport", vp), zap.Error(err))
			}
		}
		score, vpIssues := viewportScore(vp, signals)
		scores = append(scores, score)
		issues = append(issues, vpIssues...)
	}
	if err := tab.SetViewport(ctx, s.cfg.Desktop); err != nil {
		s.logger.Debug("restore viewport failed", zap.Error(err))
	}
	return responsivenessFinding(scores, issues)
}

func (s *Scorer) modernity(ctx context.Context, tab browser.Tab) audit.ProbeFinding {
	var signals modernitySignals
	if err := tab.Evaluate(ctx, ScriptModernity, &signals); err != nil {
		s.logger.Debug("modernity probe failed", zap.Error(err))
	}
	return modernityFinding(signals, s.clock.Now())
}

func (s *Scorer) technology(ctx context.Context, tab browser.Tab, doc *goquery.Document) string {
	var globals []string
	if err := tab.Evaluate(ctx, ScriptTechnology, &globals); err != nil {
		s.logger.Debug("technology probe failed", zap.Error(err))
	}
	return mergeTechnologies(domTechnologies(doc), globals)
}

// performance reloads the page under a network-idle wait; it runs last
// because it replaces the document.
func (s *Scorer) performance(ctx context.Context, tab browser.Tab, finalURL string, doc *goquery.Document) audit.ProbeFinding {
	start := s.clock.Now()
	if _, err := tab.Navigate(ctx, finalURL, browser.WaitNetworkIdle, s.cfg.PerfTimeout); err != nil {
		s.logger.Debug("performance reload failed", zap.String("url", finalURL), zap.Error(err))
		return unmeasuredPerformance(err)
	}
	elapsed := s.clock.Now().Sub(start)
	return performanceFinding(elapsed, doc.Find("img").Length(), doc.Find("script").Length())
}
