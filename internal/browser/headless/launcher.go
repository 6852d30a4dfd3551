// Package headless implements the browser capability with chromedp and
// headless Chrome. Each Launch starts one Chrome process; each tab is a
// separate target inside it.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/browser"
)

// Config controls the Chrome process and tab defaults.
type Config struct {
	ExecPath  string
	Headless  bool
	UserAgent string
	Viewport  browser.Viewport
	// EvalTimeout bounds every non-navigation call on a tab.
	EvalTimeout time.Duration
	// StartupTimeout bounds how long Launch waits for Chrome to attach.
	StartupTimeout time.Duration
}

const (
	defaultEvalTimeout    = 10 * time.Second
	defaultStartupTimeout = 30 * time.Second
)

// Launcher starts headless Chrome processes.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher validates the config and builds a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.Viewport.Width <= 0 || cfg.Viewport.Height <= 0 {
		return nil, fmt.Errorf("default viewport must have positive size")
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = defaultEvalTimeout
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger}, nil
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(l.cfg.Viewport.Width, l.cfg.Viewport.Height),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts Chrome and waits for the first target to attach. Startup is
// abandoned when ctx is done or StartupTimeout passes; after that the process
// lives until Close, independent of ctx.
func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logger.Sugar().Debugf),
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)

	start := func() error { return chromedp.Run(browserCtx) }
	if err := awaitStartup(ctx, l.cfg.StartupTimeout, start, browserCancel); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}
	l.logger.Debug("chrome started")
	return &Browser{
		cfg:         l.cfg,
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      l.logger,
	}, nil
}

// awaitStartup runs start, calling abort if ctx finishes or timeout passes
// first. The first chromedp.Run owns the browser's lifetime, so it cannot be
// given a deadline of its own.
func awaitStartup(ctx context.Context, timeout time.Duration, start func() error, abort context.CancelFunc) error {
	startCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stop := forwardCancel(startCtx, abort)
	err := start()
	stop()
	if ctxErr := startCtx.Err(); ctxErr != nil {
		return fmt.Errorf("start chrome: %w", ctxErr)
	}
	if err != nil {
		return fmt.Errorf("start chrome: %w", err)
	}
	return nil
}

// forwardCancel cancels the derived call context when parent finishes. The
// returned stop func waits for the watcher to exit, so cancel never fires
// after stop returns unless parent was already done.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}
