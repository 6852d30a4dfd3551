package browsertest

import (
	"context"
	"sync"

	"github.com/JakeFAU/web-presence-auditor/internal/browser"
)

// Launcher starts fake browsers that share one site and one recorder.
type Launcher struct {
	site Site
	rec  *recorder

	mu       sync.Mutex
	launches int
	// FailLaunch fails the n-th launch (1-based) with the given error.
	FailLaunch map[int]error
	// CrashAfterTabs makes the browser of the n-th launch lose its process
	// after opening the given number of tabs.
	CrashAfterTabs map[int]int
	browsers       []*Browser
}

// NewLauncher builds a Launcher over the site.
func NewLauncher(site Site) *Launcher {
	return &Launcher{site: site, rec: &recorder{}}
}

// Launch starts a fake browser.
func (l *Launcher) Launch(context.Context) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if err, ok := l.FailLaunch[l.launches]; ok {
		return nil, err
	}
	b := &Browser{site: l.site, rec: l.rec, maxTabs: l.CrashAfterTabs[l.launches]}
	l.browsers = append(l.browsers, b)
	return b, nil
}

// Launches returns how many launches were attempted.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// AllClosed reports whether every launched browser was closed.
func (l *Launcher) AllClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.browsers {
		if !b.isClosed() {
			return false
		}
	}
	return true
}

// Stats returns activity across every launched browser.
func (l *Launcher) Stats() Stats {
	return l.rec.snapshot()
}
