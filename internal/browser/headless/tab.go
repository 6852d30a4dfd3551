package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/browser"
)

const outerHTMLScript = `document.documentElement ? document.documentElement.outerHTML : ""`

// Tab is one Chrome target.
type Tab struct {
	cfg       Config
	ctx       context.Context
	cancel    context.CancelFunc
	lifecycle *lifecycle
	responses *responseMeta
	logger    *zap.Logger
	closeOnce sync.Once
}

func (t *Tab) onEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventLifecycleEvent:
		t.lifecycle.record(string(e.LoaderID), e.Name)
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		t.responses.capture(string(e.LoaderID), int(e.Response.Status), e.Response.URL)
	}
}

// callContext derives a per-call deadline from the tab and ties it to the
// caller's context.
func (t *Tab) callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = t.cfg.EvalTimeout
	}
	callCtx, cancel := context.WithTimeout(t.ctx, timeout)
	stop := forwardCancel(parent, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

// classify maps a chromedp failure onto the browser error taxonomy.
func (t *Tab) classify(parent, callCtx context.Context, err error) error {
	switch {
	case parent != nil && parent.Err() != nil:
		return fmt.Errorf("%w", parent.Err())
	case t.ctx.Err() != nil:
		return fmt.Errorf("%w: %v", browser.ErrClosed, err)
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", browser.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", browser.ErrNavigation, err)
	}
}

// Navigate loads url and waits for the requested lifecycle event of the new
// document.
func (t *Tab) Navigate(ctx context.Context, url string, wait browser.WaitCondition, timeout time.Duration) (browser.Response, error) {
	callCtx, cancel := t.callContext(ctx, timeout)
	defer cancel()

	var res page.NavigateReturns
	err := chromedp.Run(callCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res)
	}))
	if err != nil {
		return browser.Response{}, t.classify(ctx, callCtx, err)
	}
	if res.ErrorText != "" {
		return browser.Response{}, fmt.Errorf("%w: %s", browser.ErrNavigation, res.ErrorText)
	}

	loaderID := string(res.LoaderID)
	if err := t.lifecycle.wait(callCtx, loaderID, lifecycleName(wait)); err != nil {
		return browser.Response{}, t.classify(ctx, callCtx, err)
	}

	status, finalURL := t.responses.get(loaderID)
	if finalURL == "" {
		if loc, locErr := t.Location(ctx); locErr == nil {
			finalURL = loc
		}
	}
	t.logger.Debug("navigated",
		zap.String("url", url),
		zap.String("final_url", finalURL),
		zap.Int("status", status),
		zap.String("wait", string(wait)),
	)
	return browser.Response{Status: status, URL: finalURL}, nil
}

func lifecycleName(wait browser.WaitCondition) string {
	switch wait {
	case browser.WaitLoad:
		return "load"
	case browser.WaitNetworkIdle:
		return "networkIdle"
	default:
		return "DOMContentLoaded"
	}
}

// Evaluate runs a read-only expression and decodes its JSON value into out.
func (t *Tab) Evaluate(ctx context.Context, script browser.Script, out any) error {
	callCtx, cancel := t.callContext(ctx, t.cfg.EvalTimeout)
	defer cancel()
	if err := chromedp.Run(callCtx, chromedp.Evaluate(script.Source, out)); err != nil {
		return fmt.Errorf("evaluate %s: %w", script.Name, t.classify(ctx, callCtx, err))
	}
	return nil
}

// HTML returns the serialized rendered document.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.Evaluate(ctx, browser.Script{Name: "outer-html", Source: outerHTMLScript}, &html); err != nil {
		return "", err
	}
	return html, nil
}

// SetViewport overrides the device metrics of the tab.
func (t *Tab) SetViewport(ctx context.Context, vp browser.Viewport) error {
	callCtx, cancel := t.callContext(ctx, t.cfg.EvalTimeout)
	defer cancel()
	err := chromedp.Run(callCtx,
		emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1, vp.Mobile),
	)
	if err != nil {
		return fmt.Errorf("set viewport %s: %w", vp, t.classify(ctx, callCtx, err))
	}
	return nil
}

// WaitVisible blocks until selector is visible or timeout passes.
func (t *Tab) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	callCtx, cancel := t.callContext(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(callCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, t.classify(ctx, callCtx, err))
	}
	return nil
}

// Click clicks the first match of selector through the DOM, returning false
// when nothing matches.
func (t *Tab) Click(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, fmt.Errorf("quote selector: %w", err)
	}
	src := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return false; }
		el.click();
		return true;
	})()`, quoted)
	var clicked bool
	if err := t.Evaluate(ctx, browser.Script{Name: "click", Source: src}, &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

// Submit replaces the value of the input matching selector and presses Enter.
func (t *Tab) Submit(ctx context.Context, selector, text string, timeout time.Duration) error {
	callCtx, cancel := t.callContext(ctx, timeout)
	defer cancel()
	err := chromedp.Run(callCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("submit %q: %w", selector, t.classify(ctx, callCtx, err))
	}
	return nil
}

// Location returns the current document URL.
func (t *Tab) Location(ctx context.Context) (string, error) {
	callCtx, cancel := t.callContext(ctx, t.cfg.EvalTimeout)
	defer cancel()
	var loc string
	if err := chromedp.Run(callCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("location: %w", t.classify(ctx, callCtx, err))
	}
	return loc, nil
}

// Close closes the target.
func (t *Tab) Close() error {
	t.closeOnce.Do(t.cancel)
	return nil
}
