// Package main wires together the auditor binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/checkpoint"
	"github.com/JakeFAU/web-presence-auditor/internal/clock/system"
	"github.com/JakeFAU/web-presence-auditor/internal/config"
	"github.com/JakeFAU/web-presence-auditor/internal/id/uuid"
	"github.com/JakeFAU/web-presence-auditor/internal/input"
	"github.com/JakeFAU/web-presence-auditor/internal/logging"
	"github.com/JakeFAU/web-presence-auditor/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] [input-file]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	inputPath := cfg.Input.DefaultPath
	if flag.NArg() > 0 {
		inputPath = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := 0
	if err := run(ctx, cfg, inputPath, logger); err != nil {
		logger.Error("audit failed", zap.Error(err))
		code = 1
	}
	stop()
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, inputPath string, logger *zap.Logger) error {
	table, err := input.Load(inputPath)
	if err != nil {
		return fmt.Errorf("load input %s: %w", inputPath, err)
	}
	mapping, err := input.DetectColumns(table.Headers)
	if err != nil {
		return fmt.Errorf("detect columns in %s: %w", inputPath, err)
	}
	records := input.Records(table, mapping)
	logger.Info("input loaded",
		zap.String("path", inputPath),
		zap.String("encoding", table.Encoding),
		zap.Int("records", len(records)),
		zap.Strings("headers", table.Headers),
		zap.String("name_column", mapping.BusinessName),
		zap.String("website_column", mapping.Website),
		zap.String("city_column", mapping.City),
	)

	w, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer w.close(logger)

	var resume *checkpoint.Checkpoint
	if cfg.Audit.Resume {
		cp, ok, loadErr := checkpoint.LoadLatest(ctx, w.local, "")
		if loadErr != nil {
			return fmt.Errorf("load checkpoint: %w", loadErr)
		}
		if ok {
			logger.Info("resuming run",
				zap.String("run_id", cp.RunID),
				zap.Int("batch", cp.Batch),
				zap.Int("outcomes", cp.Buckets.Total()),
				zap.Int("rejects", len(cp.Rejects)),
				zap.Bool("retry_failed", cfg.Audit.RetryFailed),
			)
			resume = &cp
		}
	}

	if est, ok := cfg.Estimate(len(records)); ok {
		logger.Info("estimated run time", zap.Duration("estimate", est), zap.Duration("budget", cfg.Audit.TimeBudget))
	} else {
		logger.Warn("estimated run time exceeds budget",
			zap.Duration("estimate", est),
			zap.Duration("budget", cfg.Audit.TimeBudget),
			zap.Int("records", len(records)),
		)
	}

	s := scheduler.New(cfg.SchedulerConfig(), scheduler.Deps{
		Launcher:    w.launcher,
		Presence:    w.verifier,
		Quality:     w.scorer,
		Sink:        w.sink,
		Emitter:     w.hub,
		Clock:       system.New(),
		IDs:         uuid.New(),
		Logger:      logger,
		Mapping:     mapping,
		Resume:      resume,
		RetryFailed: cfg.Audit.RetryFailed,
	})
	if w.server != nil {
		w.server.SetReady(true)
		defer w.server.SetReady(false)
	}

	sum, err := s.Run(ctx, records)
	logSummary(logger, sum)
	if err != nil {
		return fmt.Errorf("run %s: %w", sum.RunID, err)
	}
	return nil
}

func logSummary(logger *zap.Logger, sum scheduler.Summary) {
	fields := []zap.Field{
		zap.String("run_id", sum.RunID),
		zap.Stringer("state", sum.State),
		zap.Int("total", sum.Total),
		zap.Int("outcomes", sum.Outcomes()),
		zap.Int("rejected", sum.Rejected()),
		zap.Int("batches", sum.Batches),
		zap.Float64("per_minute", sum.PerMinute()),
		zap.Duration("elapsed", sum.Elapsed.Round(time.Second)),
	}
	for category, n := range sum.Counts {
		fields = append(fields, zap.Int(string(category), n))
	}
	for reason, n := range sum.Dropped {
		fields = append(fields, zap.Int("dropped_"+reason, n))
	}
	if sum.State == scheduler.StateAborted {
		logger.Warn("audit interrupted; rerun to resume", fields...)
		return
	}
	logger.Info("audit complete", fields...)
}
