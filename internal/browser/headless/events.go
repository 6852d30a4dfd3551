package headless

import (
	"context"
	"sync"
)

// lifecycle remembers which page lifecycle events each loader has fired.
type lifecycle struct {
	mu      sync.Mutex
	seen    map[string]map[string]struct{}
	changed chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		seen:    make(map[string]map[string]struct{}),
		changed: make(chan struct{}),
	}
}

func (l *lifecycle) record(loaderID, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := l.seen[loaderID]
	if names == nil {
		names = make(map[string]struct{})
		l.seen[loaderID] = names
	}
	names[name] = struct{}{}
	close(l.changed)
	l.changed = make(chan struct{})
}

// wait blocks until loaderID fired name. Same-document navigations have no
// loader and return immediately.
func (l *lifecycle) wait(ctx context.Context, loaderID, name string) error {
	if loaderID == "" {
		return nil
	}
	for {
		l.mu.Lock()
		_, ok := l.seen[loaderID][name]
		changed := l.changed
		l.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type documentResponse struct {
	status int
	url    string
}

// responseMeta keeps the main document response per loader.
type responseMeta struct {
	mu   sync.RWMutex
	docs map[string]documentResponse
}

func newResponseMeta() *responseMeta {
	return &responseMeta{docs: make(map[string]documentResponse)}
}

func (m *responseMeta) capture(loaderID string, status int, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[loaderID]; ok {
		return
	}
	m.docs[loaderID] = documentResponse{status: status, url: url}
}

func (m *responseMeta) get(loaderID string) (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc := m.docs[loaderID]
	return doc.status, doc.url
}
