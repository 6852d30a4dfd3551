// Package browsertest provides a scripted, instrumented browser for tests.
// Pages are looked up by exact URL and scripts are answered by name, so the
// probing code can run without Chrome.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/web-presence-auditor/internal/browser"
)

// Page scripts one document.
type Page struct {
	Status   int
	FinalURL string
	// Err fails the navigation; wrap browser.ErrNavigation or ErrTimeout.
	Err error
	// Delay is how long the navigation takes; exceeding the timeout yields
	// browser.ErrTimeout.
	Delay time.Duration
	// Panic makes Navigate panic with this value.
	Panic string
	HTML  string
	// Evals answers scripts by name; ViewportEvals overrides per viewport.
	Evals         map[string]any
	ViewportEvals map[string]map[string]any
	EvalErrs      map[string]error
	// Visible lists selectors WaitVisible will find; Clickable lists
	// selectors Click will find.
	Visible   []string
	Clickable []string
}

// Site is the scripted web. Searches map submitted query text to the page the
// search shows; DefaultSearch is used for unknown queries.
type Site struct {
	Pages         map[string]Page
	Searches      map[string]Page
	DefaultSearch *Page
}

// Stats summarizes activity across every tab.
type Stats struct {
	TabsOpened     int
	TabsClosed     int
	MaxOpenTabs    int
	MaxInFlightNav int
	Navigations    []string
	Submissions    []string
	Clicks         []string
}

type recorder struct {
	mu       sync.Mutex
	stats    Stats
	open     int
	inFlight int
}

func (r *recorder) tabOpened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.TabsOpened++
	r.open++
	if r.open > r.stats.MaxOpenTabs {
		r.stats.MaxOpenTabs = r.open
	}
}

func (r *recorder) tabClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.TabsClosed++
	r.open--
}

func (r *recorder) navStart(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Navigations = append(r.stats.Navigations, url)
	r.inFlight++
	if r.inFlight > r.stats.MaxInFlightNav {
		r.stats.MaxInFlightNav = r.inFlight
	}
}

func (r *recorder) navDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
}

func (r *recorder) record(list *[]string, v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*list = append(*list, v)
}

func (r *recorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.stats
	out.Navigations = append([]string(nil), r.stats.Navigations...)
	out.Submissions = append([]string(nil), r.stats.Submissions...)
	out.Clicks = append([]string(nil), r.stats.Clicks...)
	return out
}

// Browser is a fake browser.Browser.
type Browser struct {
	site     Site
	rec      *recorder
	mu       sync.Mutex
	closed   bool
	maxTabs  int
	tabCount int
}

// NewBrowser builds a standalone fake browser.
func NewBrowser(site Site) *Browser {
	return &Browser{site: site, rec: &recorder{}}
}

// Stats returns a snapshot of recorded activity.
func (b *Browser) Stats() Stats {
	return b.rec.snapshot()
}

// NewTab opens a fake tab, failing with browser.ErrClosed once closed or
// once the crash budget is spent.
func (b *Browser) NewTab(context.Context) (browser.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, browser.ErrClosed
	}
	if b.maxTabs > 0 && b.tabCount >= b.maxTabs {
		b.closed = true
		return nil, fmt.Errorf("%w: target crashed", browser.ErrClosed)
	}
	b.tabCount++
	b.rec.tabOpened()
	return &Tab{browser: b, viewport: browser.Viewport{Name: browser.ViewportDesktop, Width: 1366, Height: 768}}, nil
}

// Close marks the browser closed.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Browser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Tab is a fake browser.Tab.
type Tab struct {
	browser   *Browser
	closeOnce sync.Once
	closed    bool
	url       string
	page      Page
	viewport  browser.Viewport
}

// Navigate loads a scripted page.
func (t *Tab) Navigate(ctx context.Context, url string, _ browser.WaitCondition, timeout time.Duration) (browser.Response, error) {
	if err := t.usable(); err != nil {
		return browser.Response{}, err
	}
	t.browser.rec.navStart(url)
	defer t.browser.rec.navDone()

	page, ok := t.browser.site.Pages[url]
	if !ok {
		return browser.Response{}, fmt.Errorf("%w: net::ERR_NAME_NOT_RESOLVED %s", browser.ErrNavigation, url)
	}
	if page.Panic != "" {
		panic(page.Panic)
	}
	if err := wait(ctx, page.Delay, timeout); err != nil {
		return browser.Response{}, err
	}
	if page.Err != nil {
		return browser.Response{}, page.Err
	}
	t.url = url
	t.page = page
	final := page.FinalURL
	if final == "" {
		final = url
	}
	return browser.Response{Status: page.Status, URL: final}, nil
}

func wait(ctx context.Context, delay, timeout time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timedOut := timeout > 0 && delay > timeout
	if timedOut {
		delay = timeout
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if timedOut {
			return fmt.Errorf("%w: navigation exceeded %s", browser.ErrTimeout, timeout)
		}
		return nil
	}
}

// Evaluate answers a script by name, decoding the scripted value into out.
func (t *Tab) Evaluate(_ context.Context, script browser.Script, out any) error {
	if err := t.usable(); err != nil {
		return err
	}
	if err, ok := t.page.EvalErrs[script.Name]; ok {
		return err
	}
	value, ok := t.page.ViewportEvals[t.viewport.Name][script.Name]
	if !ok {
		value, ok = t.page.Evals[script.Name]
	}
	if !ok {
		return fmt.Errorf("no scripted result for %q", script.Name)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal scripted result: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode scripted result: %w", err)
	}
	return nil
}

// HTML returns the scripted markup.
func (t *Tab) HTML(context.Context) (string, error) {
	if err := t.usable(); err != nil {
		return "", err
	}
	return t.page.HTML, nil
}

// SetViewport records the viewport used to answer later scripts.
func (t *Tab) SetViewport(_ context.Context, vp browser.Viewport) error {
	if err := t.usable(); err != nil {
		return err
	}
	t.viewport = vp
	return nil
}

// Viewport returns the current viewport.
func (t *Tab) Viewport() browser.Viewport {
	return t.viewport
}

// WaitVisible succeeds when the current page lists the selector.
func (t *Tab) WaitVisible(_ context.Context, selector string, timeout time.Duration) error {
	if err := t.usable(); err != nil {
		return err
	}
	for _, s := range t.page.Visible {
		if s == selector {
			return nil
		}
	}
	return fmt.Errorf("%w: %q not visible within %s", browser.ErrTimeout, selector, timeout)
}

// Click reports whether the selector is clickable on the current page.
func (t *Tab) Click(_ context.Context, selector string) (bool, error) {
	if err := t.usable(); err != nil {
		return false, err
	}
	for _, s := range t.page.Clickable {
		if s == selector {
			t.browser.rec.record(&t.browser.rec.stats.Clicks, selector)
			return true, nil
		}
	}
	return false, nil
}

// Submit switches the tab to the search page scripted for text.
func (t *Tab) Submit(_ context.Context, selector, text string, timeout time.Duration) error {
	if err := t.usable(); err != nil {
		return err
	}
	if err := t.WaitVisible(context.Background(), selector, timeout); err != nil {
		return err
	}
	t.browser.rec.record(&t.browser.rec.stats.Submissions, text)
	page, ok := t.browser.site.Searches[text]
	if !ok {
		if t.browser.site.DefaultSearch == nil {
			page = Page{}
		} else {
			page = *t.browser.site.DefaultSearch
		}
	}
	t.page = page
	t.url = "search:" + text
	if page.FinalURL != "" {
		t.url = page.FinalURL
	}
	return nil
}

// Location returns the current URL.
func (t *Tab) Location(context.Context) (string, error) {
	if err := t.usable(); err != nil {
		return "", err
	}
	if t.page.FinalURL != "" {
		return t.page.FinalURL, nil
	}
	return t.url, nil
}

// Close releases the tab.
func (t *Tab) Close() error {
	t.closeOnce.Do(func() {
		t.closed = true
		t.browser.rec.tabClosed()
	})
	return nil
}

func (t *Tab) usable() error {
	if t.closed || t.browser.isClosed() {
		return browser.ErrClosed
	}
	return nil
}
