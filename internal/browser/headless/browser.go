package headless

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/browser"
)

// Browser is one running Chrome process.
type Browser struct {
	cfg         Config
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	closeOnce   sync.Once
}

// NewTab opens a new target with lifecycle events and network tracking on.
func (b *Browser) NewTab(ctx context.Context) (browser.Tab, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", browser.ErrClosed, err)
	}
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	t := &Tab{
		cfg:       b.cfg,
		ctx:       tabCtx,
		cancel:    tabCancel,
		lifecycle: newLifecycle(),
		responses: newResponseMeta(),
		logger:    b.logger,
	}
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("%w: open target: %v", browser.ErrClosed, err)
	}
	chromedp.ListenTarget(tabCtx, t.onEvent)

	setupCtx, setupCancel := context.WithTimeout(tabCtx, b.cfg.EvalTimeout)
	defer setupCancel()
	stopForward := forwardCancel(ctx, setupCancel)
	defer stopForward()

	vp := b.cfg.Viewport
	err := chromedp.Run(setupCtx,
		network.Enable(),
		page.Enable(),
		page.SetLifecycleEventsEnabled(true),
		emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1, vp.Mobile),
	)
	if err != nil {
		tabCancel()
		if b.ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", browser.ErrClosed, err)
		}
		return nil, fmt.Errorf("configure tab: %w", err)
	}
	return t, nil
}

// Close shuts Chrome down and releases the allocator.
func (b *Browser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if cancelErr := chromedp.Cancel(b.ctx); cancelErr != nil {
			err = fmt.Errorf("close chrome: %w", cancelErr)
		}
		b.cancel()
		b.allocCancel()
	})
	return err
}
