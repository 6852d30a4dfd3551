// Package quality scores a business website across security,
// responsiveness, modernity, performance, content, SEO and technology, and
// reduces the findings to a weighted composite.
package quality

import (
	"fmt"
	"time"

	"github.com/JakeFAU/web-presence-auditor/internal/browser"
)

// Config holds the scorer tunables.
type Config struct {
	NavTimeout time.Duration
	// Wait is the readiness condition for the first navigation.
	Wait browser.WaitCondition
	// PerfTimeout bounds the network-idle reload used for timing.
	PerfTimeout time.Duration
	// ViewportSettle is the pause after each viewport change.
	ViewportSettle time.Duration
	Phone          browser.Viewport
	Tablet         browser.Viewport
	Desktop        browser.Viewport
}

// DefaultConfig returns the stock viewport presets and timeouts.
func DefaultConfig() Config {
	return Config{
		NavTimeout:     10 * time.Second,
		Wait:           browser.WaitContentParsed,
		PerfTimeout:    30 * time.Second,
		ViewportSettle: time.Second,
		Phone:          browser.Viewport{Name: browser.ViewportPhone, Width: 390, Height: 844, Mobile: true},
		Tablet:         browser.Viewport{Name: browser.ViewportTablet, Width: 768, Height: 1024, Mobile: true},
		Desktop:        browser.Viewport{Name: browser.ViewportDesktop, Width: 1366, Height: 768},
	}
}

// Validate checks the config for unusable values.
func (c Config) Validate() error {
	if c.NavTimeout <= 0 {
		return fmt.Errorf("nav timeout must be > 0")
	}
	if c.PerfTimeout <= 0 {
		return fmt.Errorf("perf timeout must be > 0")
	}
	for _, vp := range c.viewports() {
		if vp.Width <= 0 || vp.Height <= 0 {
			return fmt.Errorf("viewport %q must have positive size", vp.Name)
		}
	}
	return nil
}

func (c Config) viewports() []browser.Viewport {
	return []browser.Viewport{c.Phone, c.Tablet, c.Desktop}
}
