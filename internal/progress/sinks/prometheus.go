package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/web-presence-auditor/internal/progress"
)

// PrometheusSink exports audit progress metrics. It owns the collectors for
// runs, batches, checkpoints and per-business outcomes.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	checkpoints   prometheus.Counter

	outcomes         *prometheus.CounterVec
	businessDuration *prometheus.HistogramVec
	siteStatus       *prometheus.CounterVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditor_runs_started_total",
			Help: "Total audit runs started, including resumed runs.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_runs_finished_total",
			Help: "Total audit runs finished partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auditor_runs_running",
			Help: "Current number of running audits.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_run_runtime_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		}, []string{"result"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_batches_total",
			Help: "Batches finished partitioned by result.",
		}, []string{"result"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auditor_batch_duration_seconds",
			Help:    "Wall time per batch including browser start-up.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditor_checkpoints_total",
			Help: "Checkpoints flushed.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_outcomes_total",
			Help: "Business outcomes partitioned by category and priority.",
		}, []string{"category", "priority"}),
		businessDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_business_duration_seconds",
			Help:    "Time spent auditing one business partitioned by category.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"category"}),
		siteStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_site_responses_total",
			Help: "Probed websites partitioned by HTTP status class.",
		}, []string{"status_class"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.batches,
		s.batchDuration,
		s.checkpoints,
		s.outcomes,
		s.businessDuration,
		s.siteStatus,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. It is safe for concurrent
// use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunDone:
		s.finishRun(evt, "completed")
	case progress.StageRunAborted:
		s.finishRun(evt, "aborted")
	case progress.StageBatchDone:
		s.batches.WithLabelValues("done").Inc()
		s.observeBatch(evt)
	case progress.StageBatchFailed:
		s.batches.WithLabelValues("failed").Inc()
		s.observeBatch(evt)
	case progress.StageCheckpoint:
		s.checkpoints.Inc()
	case progress.StageBusinessDone:
		s.handleBusiness(evt)
	}
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeBatch(evt progress.Event) {
	if evt.Dur > 0 {
		s.batchDuration.Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleBusiness(evt progress.Event) {
	priority := string(evt.Priority)
	if priority == "" {
		priority = "none"
	}
	category := string(evt.Category)
	s.outcomes.WithLabelValues(category, priority).Inc()
	if evt.Dur > 0 {
		s.businessDuration.WithLabelValues(category).Observe(evt.Dur.Seconds())
	}
	if evt.StatusClass != "" {
		s.siteStatus.WithLabelValues(string(evt.StatusClass)).Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
