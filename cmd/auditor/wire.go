package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/api"
	"github.com/JakeFAU/web-presence-auditor/internal/browser/headless"
	"github.com/JakeFAU/web-presence-auditor/internal/checkpoint"
	"github.com/JakeFAU/web-presence-auditor/internal/config"
	"github.com/JakeFAU/web-presence-auditor/internal/metrics"
	"github.com/JakeFAU/web-presence-auditor/internal/preflight"
	"github.com/JakeFAU/web-presence-auditor/internal/presence"
	"github.com/JakeFAU/web-presence-auditor/internal/progress"
	"github.com/JakeFAU/web-presence-auditor/internal/progress/sinks"
	"github.com/JakeFAU/web-presence-auditor/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/web-presence-auditor/internal/publisher/pubsub"
	"github.com/JakeFAU/web-presence-auditor/internal/quality"
	"github.com/JakeFAU/web-presence-auditor/internal/storage/gcs"
	"github.com/JakeFAU/web-presence-auditor/internal/storage/local"
	"github.com/JakeFAU/web-presence-auditor/internal/storage/postgres"
)

const (
	closeTimeout   = 10 * time.Second
	dryRunCapacity = 20
)

// wiring holds every long-lived collaborator of a run.
type wiring struct {
	local    *local.BlobStore
	sink     checkpoint.Sink
	hub      *progress.Hub
	launcher *headless.Launcher
	verifier *presence.Verifier
	scorer   *quality.Scorer
	server   *api.Server
	dryRun   *memory.Publisher

	closers []func(context.Context) error
	cancel  context.CancelFunc
	served  chan struct{}
}

// wire builds the storage, progress, browser and ops collaborators from cfg.
// Optional backends are enabled by their config keys.
func wire(ctx context.Context, cfg config.Config, logger *zap.Logger) (w *wiring, err error) {
	w = &wiring{}
	defer func() {
		if err != nil {
			w.close(logger)
			w = nil
		}
	}()

	w.local, err = local.New(local.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return w, fmt.Errorf("local output: %w", err)
	}
	localSink, err := checkpoint.NewBlobSink(w.local, "", logger)
	if err != nil {
		return w, err
	}
	cpSinks := checkpoint.Multi{localSink}

	if cfg.Output.GCSBucket != "" {
		client, gcsErr := gcsstorage.NewClient(ctx)
		if gcsErr != nil {
			return w, fmt.Errorf("gcs client: %w", gcsErr)
		}
		w.closers = append(w.closers, func(context.Context) error { return client.Close() })
		store, gcsErr := gcs.New(client, gcs.Config{Bucket: cfg.Output.GCSBucket})
		if gcsErr != nil {
			return w, fmt.Errorf("gcs store: %w", gcsErr)
		}
		gcsSink, gcsErr := checkpoint.NewBlobSink(store, cfg.Output.GCSPrefix, logger)
		if gcsErr != nil {
			return w, gcsErr
		}
		cpSinks = append(cpSinks, gcsSink)
		logger.Info("gcs checkpoints enabled", zap.String("uri", store.URI(cfg.Output.GCSPrefix)))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return w, fmt.Errorf("prometheus sink: %w", err)
	}
	progressSinks := []progress.Sink{sinks.NewLogSink(logger), promSink}

	var runs *postgres.RunStore
	if cfg.DB.DSN != "" {
		var pool *pgxpool.Pool
		pool, err = postgres.NewPool(ctx, cfg.PoolConfig())
		if err != nil {
			return w, err
		}
		w.closers = append(w.closers, func(context.Context) error { pool.Close(); return nil })
		runs, err = postgres.NewRunStore(pool, cfg.DB.RunsTable)
		if err != nil {
			return w, err
		}
		if err = runs.EnsureSchema(ctx); err != nil {
			return w, err
		}
		outcomes, dbErr := postgres.NewOutcomeStore(pool, cfg.DB.Table, logger)
		if dbErr != nil {
			return w, dbErr
		}
		if err = outcomes.EnsureSchema(ctx); err != nil {
			return w, err
		}
		cpSinks = append(cpSinks, outcomes)
		progressSinks = append(progressSinks, sinks.NewStoreSink(runs, logger))
		logger.Info("postgres persistence enabled", zap.String("table", cfg.DB.Table), zap.String("runs_table", cfg.DB.RunsTable))
	}

	switch {
	case cfg.PubSub.TopicName != "" && cfg.PubSub.DryRun:
		w.dryRun = memory.NewBounded(dryRunCapacity)
		progressSinks = append(progressSinks, sinks.NewLeadSink(w.dryRun, cfg.PubSub.TopicName, cfg.LeadPriority(), logger))
		logger.Info("lead publishing in dry-run mode", zap.String("topic", cfg.PubSub.TopicName))
	case cfg.PubSub.TopicName != "":
		client, psErr := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if psErr != nil {
			return w, fmt.Errorf("pubsub client: %w", psErr)
		}
		w.closers = append(w.closers, func(context.Context) error { return client.Close() })
		publisher := pubsubpublisher.New(client.Topic(cfg.PubSub.TopicName))
		w.closers = append(w.closers, func(context.Context) error { publisher.Stop(); return nil })
		progressSinks = append(progressSinks, sinks.NewLeadSink(publisher, cfg.PubSub.TopicName, cfg.LeadPriority(), logger))
		logger.Info("lead publishing enabled", zap.String("topic", cfg.PubSub.TopicName), zap.String("min_priority", cfg.PubSub.MinPriority))
	}

	w.sink = cpSinks
	w.hub = progress.NewHub(cfg.HubConfig(), progressSinks...)

	if cfg.Metrics.Addr != "" {
		httpMetrics, mErr := metrics.NewHTTP(reg)
		if mErr != nil {
			return w, mErr
		}
		opts := api.Options{Gatherer: reg, Metrics: httpMetrics, APIKey: cfg.Metrics.APIKey, Logger: logger}
		if runs != nil {
			opts.Runs = runs
		}
		w.server = api.NewServer(opts)
		srvCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		w.cancel = cancel
		w.served = make(chan struct{})
		go func() {
			defer close(w.served)
			if srvErr := w.server.ListenAndServe(srvCtx, cfg.Metrics.Addr); srvErr != nil {
				logger.Error("ops server failed", zap.Error(srvErr))
			}
		}()
	}

	qc, err := cfg.QualityConfig()
	if err != nil {
		return w, err
	}
	var scorerOpts []quality.Option
	if cfg.Browser.Preflight {
		scorerOpts = append(scorerOpts, quality.WithPreflight(preflight.New(cfg.PreflightConfig())))
	}
	w.scorer = quality.NewScorer(qc, logger, scorerOpts...)
	limiter, err := metrics.NewTimedLimiter(presence.NewLimiter(cfg.Presence.QPS), reg)
	if err != nil {
		return w, err
	}
	w.verifier = presence.NewVerifier(cfg.PresenceConfig(), limiter, logger)
	w.launcher, err = headless.NewLauncher(cfg.BrowserConfig(), logger)
	if err != nil {
		return w, fmt.Errorf("browser launcher: %w", err)
	}
	return w, nil
}

// close drains progress events, stops the ops server and releases clients in
// reverse order of creation.
func (w *wiring) close(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if w.hub != nil {
		if err := w.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("progress hub: %w", err))
		}
		if dropped := w.hub.Dropped(); dropped > 0 {
			logger.Warn("progress events dropped", zap.Int64("dropped", dropped))
		}
	}
	if w.dryRun != nil {
		for _, msg := range w.dryRun.Messages() {
			logger.Info("dry-run lead", zap.String("topic", msg.Topic), zap.ByteString("payload", msg.Data))
		}
		logger.Info("dry-run leads captured", zap.Int("total", w.dryRun.Total()))
	}
	if w.cancel != nil {
		w.cancel()
		<-w.served
	}
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
