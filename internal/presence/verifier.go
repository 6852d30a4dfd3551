// Package presence checks a place-search surface for a business listing and
// infers whether the business is still operating.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/browser"
	"github.com/JakeFAU/web-presence-auditor/internal/clock/system"
)

// Config holds the search surface and its selectors.
type Config struct {
	SearchURL     string
	InputSelector string
	// ResultSelector must become visible for a business to count as found.
	ResultSelector string
	// ItemSelector matches one result entry, used to count results.
	ItemSelector     string
	ConsentSelectors []string
	NavTimeout       time.Duration
	SettleDelay      time.Duration
	SearchTimeout    time.Duration
}

// DefaultConfig targets Google Maps.
func DefaultConfig() Config {
	return Config{
		SearchURL:      "https://www.google.com/maps",
		InputSelector:  `input#searchboxinput`,
		ResultSelector: `[data-value="Directions"], div[role="feed"]`,
		ItemSelector:   `a[href*="/maps/place/"]`,
		ConsentSelectors: []string{
			`button[aria-label="Accept all"]`,
			`button[aria-label="I agree"]`,
			`button[aria-label="Alles akzeptieren"]`,
			`button.VfPpkd-LgbsSe-OWXEXe-k8QpJ`,
		},
		NavTimeout:    10 * time.Second,
		SettleDelay:   3 * time.Second,
		SearchTimeout: 5 * time.Second,
	}
}

// Validate checks that the search surface is usable.
func (c Config) Validate() error {
	switch {
	case c.SearchURL == "":
		return errors.New("search url is required")
	case c.InputSelector == "":
		return errors.New("input selector is required")
	case c.ResultSelector == "":
		return errors.New("result selector is required")
	case c.SearchTimeout <= 0:
		return errors.New("search timeout must be > 0")
	}
	return nil
}

// Limiter paces searches across every slot.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLimiter builds a limiter allowing qps searches per second. A
// non-positive qps disables pacing.
func NewLimiter(qps float64) *rate.Limiter {
	if qps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(qps), 1)
}

// Verifier runs place searches. Safe for concurrent use with distinct tabs.
type Verifier struct {
	cfg     Config
	limiter Limiter
	logger  *zap.Logger
}

// NewVerifier builds a Verifier; a nil limiter means no pacing.
func NewVerifier(cfg Config, limiter Limiter, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{cfg: cfg, limiter: limiter, logger: logger}
}

type snapshot struct {
	Text    string `json:"text"`
	Results int    `json:"results"`
}

// Query builds the search text for a business.
func Query(name, city string) string {
	name, city = strings.TrimSpace(name), strings.TrimSpace(city)
	if city == "" {
		return name
	}
	return name + " " + city
}

// Verify looks the business up in tab. Every failure collapses into a
// not-found result; Verify never fails.
func (v *Verifier) Verify(ctx context.Context, tab browser.Tab, name, city string) (result audit.PresenceResult) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Warn("presence panic", zap.String("business", name), zap.Any("panic", r))
			result = audit.NotFound(fmt.Sprintf("panic: %v", r))
		}
	}()

	query := Query(name, city)
	if query == "" {
		return audit.NotFound("empty query")
	}
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return audit.NotFound(fmt.Sprintf("rate limit: %v", err))
		}
	}

	resp, err := tab.Navigate(ctx, v.cfg.SearchURL, browser.WaitContentParsed, v.cfg.NavTimeout)
	if err != nil {
		v.logger.Debug("search page unavailable", zap.String("business", name), zap.Error(err))
		return audit.NotFound(fmt.Sprintf("search page: %v", err))
	}
	if resp.Status >= 400 {
		return audit.NotFound(fmt.Sprintf("search page: HTTP %d", resp.Status))
	}

	v.dismissConsent(ctx, tab)

	if err := tab.Submit(ctx, v.cfg.InputSelector, query, v.cfg.SearchTimeout); err != nil {
		v.logger.Debug("search box unavailable", zap.String("business", name), zap.Error(err))
		return audit.NotFound(fmt.Sprintf("search box: %v", err))
	}
	if err := system.Sleep(ctx, v.cfg.SettleDelay); err != nil {
		return audit.NotFound(err.Error())
	}
	if err := tab.WaitVisible(ctx, v.cfg.ResultSelector, v.cfg.SearchTimeout); err != nil {
		return audit.NotFound("no listing")
	}

	result = audit.PresenceResult{Found: true, Active: true, Confidence: audit.ConfidenceLow}
	if loc, err := tab.Location(ctx); err == nil {
		result.SourceURL = loc
	}
	snap, err := v.snapshot(ctx, tab)
	if err != nil {
		v.logger.Debug("listing snapshot failed", zap.String("business", name), zap.Error(err))
		result.Note = "listing unreadable"
		return result
	}
	a := Assess(snap.Text, snap.Results)
	result.Active = a.Active
	result.Confidence = a.Confidence
	result.Note = a.ClosurePhrase
	return result
}

func (v *Verifier) dismissConsent(ctx context.Context, tab browser.Tab) {
	for _, sel := range v.cfg.ConsentSelectors {
		clicked, err := tab.Click(ctx, sel)
		if err != nil {
			v.logger.Debug("consent click failed", zap.String("selector", sel), zap.Error(err))
			return
		}
		if clicked {
			return
		}
	}
}

func (v *Verifier) snapshot(ctx context.Context, tab browser.Tab) (snapshot, error) {
	item, err := json.Marshal(v.cfg.ItemSelector)
	if err != nil {
		return snapshot{}, fmt.Errorf("quote selector: %w", err)
	}
	script := browser.Script{
		Name: ScriptListing,
		Source: fmt.Sprintf(`(() => {
	const sel = %s;
	let results = 0;
	try {
		if (sel) { results = new Set(Array.from(document.querySelectorAll(sel)).map(a => a.href || a.textContent)).size; }
	} catch (e) {}
	return {text: (document.body && document.body.innerText) || "", results};
})()`, item),
	}
	var snap snapshot
	if err := tab.Evaluate(ctx, script, &snap); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// ScriptListing is the name of the listing snapshot script.
const ScriptListing = "listing-snapshot"
