// Package metrics exposes Prometheus collectors for the ops server and the
// place-search rate limiter.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP records ops-server request metrics.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTP registers the request collectors against reg.
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_http_requests_total",
			Help: "Total number of ops-server HTTP requests, labeled by method and code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_http_request_duration_seconds",
			Help:    "Histogram of ops-server request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 3},
		}, []string{"method", "route"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register http collector: %w", err)
		}
	}
	return m, nil
}

// ObserveRequest records one finished request.
func (m *HTTP) ObserveRequest(method, route string, code int, d time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Waiter is the limiter contract shared with the presence verifier.
type Waiter interface {
	Wait(ctx context.Context) error
}

// TimedLimiter observes how long callers block on a limiter.
type TimedLimiter struct {
	next  Waiter
	waits prometheus.Histogram
	now   func() time.Time
}

// NewTimedLimiter wraps next and registers the wait histogram against reg.
func NewTimedLimiter(next Waiter, reg prometheus.Registerer) (*TimedLimiter, error) {
	if next == nil {
		return nil, fmt.Errorf("limiter is required")
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	waits := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "auditor_presence_limiter_wait_seconds",
		Help:    "Histogram of time spent waiting for a place-search slot.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
	if err := reg.Register(waits); err != nil {
		return nil, fmt.Errorf("register limiter collector: %w", err)
	}
	return &TimedLimiter{next: next, waits: waits, now: time.Now}, nil
}

// Wait blocks on the wrapped limiter. Cancelled waits are not observed.
func (l *TimedLimiter) Wait(ctx context.Context) error {
	start := l.now()
	if err := l.next.Wait(ctx); err != nil {
		return err
	}
	l.waits.Observe(l.now().Sub(start).Seconds())
	return nil
}
