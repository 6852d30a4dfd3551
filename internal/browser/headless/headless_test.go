package headless

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/web-presence-auditor/internal/browser"
)

func TestNewLauncherValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewLauncher(Config{}, nil); err == nil {
		t.Fatal("expected error for empty viewport")
	}
	l, err := NewLauncher(Config{Viewport: browser.Viewport{Name: browser.ViewportDesktop, Width: 1366, Height: 768}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.cfg.EvalTimeout != defaultEvalTimeout {
		t.Fatalf("expected default eval timeout, got %v", l.cfg.EvalTimeout)
	}
	if l.cfg.StartupTimeout != defaultStartupTimeout {
		t.Fatalf("expected default startup timeout, got %v", l.cfg.StartupTimeout)
	}
	if len(l.allocatorOptions()) <= len(chromedp.DefaultExecAllocatorOptions) {
		t.Fatal("expected allocator options")
	}
}

func TestLaunchHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	l, err := NewLauncher(Config{Viewport: browser.Viewport{Width: 800, Height: 600}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Launch(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLifecycleWait(t *testing.T) {
	t.Parallel()

	lc := newLifecycle()
	if err := lc.wait(context.Background(), "", "load"); err != nil {
		t.Fatalf("empty loader should not block: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- lc.wait(ctx, "L1", "load")
	}()
	lc.record("L2", "load")
	lc.record("L1", "DOMContentLoaded")
	lc.record("L1", "load")
	if err := <-done; err != nil {
		t.Fatalf("wait returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := lc.wait(ctx, "L1", "networkIdle"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestResponseMetaKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture("L1", 301, "http://example.com")
	meta.capture("L1", 200, "https://example.com/")
	status, url := meta.get("L1")
	if status != 301 || url != "http://example.com" {
		t.Fatalf("unexpected snapshot: %d %s", status, url)
	}
	if status, url := meta.get("missing"); status != 0 || url != "" {
		t.Fatalf("expected zero values, got %d %s", status, url)
	}
}

func TestOnEventRoutesDocumentResponses(t *testing.T) {
	t.Parallel()

	tab := &Tab{lifecycle: newLifecycle(), responses: newResponseMeta()}
	tab.onEvent(&network.EventResponseReceived{
		LoaderID: cdp.LoaderID("L1"),
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://example.com/logo.png"},
	})
	tab.onEvent(&network.EventResponseReceived{
		LoaderID: cdp.LoaderID("L1"),
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200, URL: "https://example.com/"},
	})
	tab.onEvent(&page.EventLifecycleEvent{LoaderID: cdp.LoaderID("L1"), Name: "load"})

	if status, _ := tab.responses.get("L1"); status != 200 {
		t.Fatalf("expected document status 200, got %d", status)
	}
	if err := tab.lifecycle.wait(context.Background(), "L1", "load"); err != nil {
		t.Fatalf("expected load recorded: %v", err)
	}
}

func TestLifecycleName(t *testing.T) {
	t.Parallel()

	cases := map[browser.WaitCondition]string{
		browser.WaitContentParsed: "DOMContentLoaded",
		browser.WaitLoad:          "load",
		browser.WaitNetworkIdle:   "networkIdle",
	}
	for wait, want := range cases {
		if got := lifecycleName(wait); got != want {
			t.Fatalf("lifecycleName(%q) = %q, want %q", wait, got, want)
		}
	}
}

// hangingStart blocks like a Chrome process that never attaches, until abort
// is called.
func hangingStart() (func() error, context.CancelFunc) {
	aborted := make(chan struct{})
	start := func() error {
		<-aborted
		return errors.New("chrome killed")
	}
	return start, func() { close(aborted) }
}

func TestAwaitStartupTimesOut(t *testing.T) {
	t.Parallel()

	start, abort := hangingStart()
	done := make(chan error, 1)
	go func() { done <- awaitStartup(context.Background(), 20*time.Millisecond, start, abort) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("startup did not time out")
	}
}

func TestAwaitStartupHonoursCancel(t *testing.T) {
	t.Parallel()

	start, abort := hangingStart()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- awaitStartup(ctx, time.Minute, start, abort) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("startup ignored cancellation")
	}
}

func TestAwaitStartupSuccess(t *testing.T) {
	t.Parallel()

	aborted := false
	err := awaitStartup(context.Background(), time.Minute, func() error { return nil }, func() { aborted = true })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aborted {
		t.Fatal("abort must not run after a successful start")
	}

	boom := errors.New("no chrome binary")
	if err := awaitStartup(context.Background(), time.Minute, func() error { return boom }, func() {}); !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()
	stop := forwardCancel(parent, cancelChild)
	defer stop()

	cancelParent()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not cancelled")
	}

	if stop := forwardCancel(nil, func() {}); stop == nil {
		t.Fatal("expected no-op stop func")
	}

	fired := false
	stopLive := forwardCancel(context.Background(), func() { fired = true })
	stopLive()
	if fired {
		t.Fatal("cancel fired after stop")
	}
}
