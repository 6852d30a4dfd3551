package browser_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-presence-auditor/internal/browser"
	"github.com/JakeFAU/web-presence-auditor/internal/browser/browsertest"
)

func TestWithTabClosesOnEveryPath(t *testing.T) {
	t.Parallel()

	b := browsertest.NewBrowser(browsertest.Site{})

	require.NoError(t, browser.WithTab(context.Background(), b, func(browser.Tab) error { return nil }))

	boom := errors.New("boom")
	err := browser.WithTab(context.Background(), b, func(browser.Tab) error { return boom })
	require.ErrorIs(t, err, boom)

	require.Panics(t, func() {
		_ = browser.WithTab(context.Background(), b, func(browser.Tab) error { panic("kaboom") })
	})

	stats := b.Stats()
	require.Equal(t, 3, stats.TabsOpened)
	require.Equal(t, 3, stats.TabsClosed)
}

func TestWithTabPropagatesOpenError(t *testing.T) {
	t.Parallel()

	b := browsertest.NewBrowser(browsertest.Site{})
	require.NoError(t, b.Close())
	called := false
	err := browser.WithTab(context.Background(), b, func(browser.Tab) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, browser.ErrClosed)
	require.False(t, called)
}

func TestParseWaitCondition(t *testing.T) {
	t.Parallel()

	w, err := browser.ParseWaitCondition("")
	require.NoError(t, err)
	require.Equal(t, browser.WaitContentParsed, w)
	w, err = browser.ParseWaitCondition("networkidle")
	require.NoError(t, err)
	require.Equal(t, browser.WaitNetworkIdle, w)
	_, err = browser.ParseWaitCondition("whenever")
	require.Error(t, err)
}
