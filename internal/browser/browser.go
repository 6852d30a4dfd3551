// Package browser defines the page-probing capability the auditor drives: a
// browser process that opens isolated tabs, and tabs that navigate, evaluate
// read-only scripts and change viewport. Implementations live in subpackages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout reports that a readiness condition was not met in time.
	ErrTimeout = errors.New("browser: timeout")
	// ErrNavigation reports a transport, DNS or protocol failure while loading.
	ErrNavigation = errors.New("browser: navigation failed")
	// ErrClosed reports that the browser process is gone.
	ErrClosed = errors.New("browser: closed")
)

// WaitCondition selects when a navigation counts as ready.
type WaitCondition string

// Readiness conditions from fastest to strictest.
const (
	WaitContentParsed WaitCondition = "domcontentloaded"
	WaitLoad          WaitCondition = "load"
	WaitNetworkIdle   WaitCondition = "networkidle"
)

// ParseWaitCondition maps a configured name to a WaitCondition.
func ParseWaitCondition(s string) (WaitCondition, error) {
	switch w := WaitCondition(s); w {
	case WaitContentParsed, WaitLoad, WaitNetworkIdle:
		return w, nil
	case "":
		return WaitContentParsed, nil
	default:
		return "", fmt.Errorf("unknown wait condition %q", s)
	}
}

// Viewport names.
const (
	ViewportPhone   = "phone"
	ViewportTablet  = "tablet"
	ViewportDesktop = "desktop"
)

// Viewport is a rendering size.
type Viewport struct {
	Name   string `mapstructure:"name"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Mobile bool   `mapstructure:"mobile"`
}

func (v Viewport) String() string {
	return fmt.Sprintf("%s (%dx%d)", v.Name, v.Width, v.Height)
}

// Script is a named read-only expression evaluated against the live document.
// Implementations run Source; fakes may answer by Name.
type Script struct {
	Name   string
	Source string
}

// Response describes the main document of a navigation. Status is zero when
// no document response was observed.
type Response struct {
	Status int
	URL    string
}

// Tab is one isolated page. A Tab is not safe for concurrent use.
type Tab interface {
	Navigate(ctx context.Context, url string, wait WaitCondition, timeout time.Duration) (Response, error)
	Evaluate(ctx context.Context, script Script, out any) error
	HTML(ctx context.Context) (string, error)
	SetViewport(ctx context.Context, vp Viewport) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching selector and reports whether
	// one existed.
	Click(ctx context.Context, selector string) (bool, error)
	// Submit types text into the element matching selector and presses Enter.
	Submit(ctx context.Context, selector, text string, timeout time.Duration) error
	Location(ctx context.Context) (string, error)
	Close() error
}

// Browser is one browser process shared by the tabs it opens.
type Browser interface {
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// WithTab opens a tab, runs fn and closes the tab on every exit path,
// including panics raised by fn.
func WithTab(ctx context.Context, b Browser, fn func(Tab) error) (err error) {
	tab, err := b.NewTab(ctx)
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	defer func() {
		if closeErr := tab.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close tab: %w", closeErr)
		}
	}()
	return fn(tab)
}
