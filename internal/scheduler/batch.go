package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/browser"
	"github.com/JakeFAU/web-presence-auditor/internal/clock/system"
	"github.com/JakeFAU/web-presence-auditor/internal/progress"
	"github.com/JakeFAU/web-presence-auditor/internal/qualify"
	"github.com/JakeFAU/web-presence-auditor/internal/queue/memory"
	"github.com/JakeFAU/web-presence-auditor/internal/urlnorm"
)

// result is what a slot reports for one item.
type result struct {
	item    item
	outcome audit.Outcome
	status  int
	dur     time.Duration
	// rejected items carry no outcome; interrupted ones were cut short by
	// cancellation and stay pending.
	rejected    bool
	interrupted bool
}

// runBatch processes one batch on its own browser. It returns once every
// slot has finished and the browser is closed.
func (s *Scheduler) runBatch(ctx context.Context, r *run, items []item) {
	r.batch++
	r.batches++
	n := r.batch
	started := s.deps.Clock.Now()
	settled := make(map[int]bool, len(items))
	failed := 0

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("batch panicked", zap.Int("batch", n), zap.Any("panic", p))
			failed += s.failRemaining(r, n, items, settled)
			s.emit(r, progress.Event{Stage: progress.StageBatchFailed, Batch: n, Count: failed, Dur: s.deps.Clock.Now().Sub(started), Note: fmt.Sprintf("panic: %v", p)})
		}
	}()

	s.logger.Info("batch started", zap.Int("batch", n), zap.Int("size", len(items)))
	s.emit(r, progress.Event{Stage: progress.StageBatchStart, Batch: n, Count: len(items)})

	b, err := s.deps.Launcher.Launch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("browser launch failed", zap.Int("batch", n), zap.Error(err))
		r.since++
		failed = s.failRemaining(r, n, items, settled)
		s.emit(r, progress.Event{Stage: progress.StageBatchFailed, Batch: n, Count: failed, Dur: s.deps.Clock.Now().Sub(started), Note: err.Error()})
		return
	}
	defer func() {
		if err := b.Close(); err != nil {
			s.logger.Warn("browser close failed", zap.Int("batch", n), zap.Error(err))
		}
	}()

	var faulted atomic.Bool
	for res := range s.fanOut(ctx, b, n, items, &faulted) {
		if res.interrupted {
			continue
		}
		settled[res.item.rec.Row] = true
		if res.outcome.Category == audit.CategoryFailed && res.outcome.Reason == audit.ReasonBatchFailure {
			failed++
		}
		s.record(r, n, res)
	}

	dur := s.deps.Clock.Now().Sub(started)
	r.since++
	if faulted.Load() {
		s.logger.Error("browser lost mid-batch", zap.Int("batch", n), zap.Int("failed", failed))
		s.emit(r, progress.Event{Stage: progress.StageBatchFailed, Batch: n, Count: failed, Dur: dur, Note: "browser closed"})
		return
	}
	s.logger.Info("batch done",
		zap.Int("batch", n),
		zap.Int("settled", len(settled)),
		zap.Duration("elapsed", dur),
	)
	s.emit(r, progress.Event{Stage: progress.StageBatchDone, Batch: n, Count: len(settled), Dur: dur})
}

// fanOut starts min(concurrency, len(items)) slots pulling from a shared
// queue. The returned channel closes when every slot has exited.
func (s *Scheduler) fanOut(ctx context.Context, b browser.Browser, batch int, items []item, faulted *atomic.Bool) <-chan result {
	q := memory.NewQueue[item](len(items))
	for _, it := range items {
		if err := q.Enqueue(ctx, it); err != nil {
			break
		}
	}
	q.Close()

	results := make(chan result, len(items))
	var wg sync.WaitGroup
	for range min(s.cfg.Concurrency, len(items)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				it, err := q.Dequeue(ctx)
				if err != nil {
					return
				}
				res := s.process(ctx, b, batch, it, faulted)
				results <- res
				if res.interrupted {
					return
				}
				if !faulted.Load() {
					s.pause(ctx)
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// process runs the single-business pipeline in its own tab. Errors and
// panics become Failed outcomes; losing the browser marks the batch faulted.
func (s *Scheduler) process(ctx context.Context, b browser.Browser, batch int, it item, faulted *atomic.Bool) (res result) {
	start := s.deps.Clock.Now()
	res.item = it
	defer func() {
		if p := recover(); p != nil {
			s.logger.Warn("business panicked",
				zap.Int("batch", batch),
				zap.Int("row", it.rec.Row),
				zap.String("business", it.rec.Name),
				zap.Any("panic", p),
			)
			res = result{item: it, outcome: audit.Failed(it.rec, fmt.Sprintf("panic: %v", p))}
		}
		res.dur = s.deps.Clock.Now().Sub(start)
		if !res.rejected && !res.interrupted {
			res.outcome.Website = it.addr
			res.outcome.AuditedAt = s.deps.Clock.Now()
		}
	}()

	if faulted.Load() {
		res.outcome = audit.Failed(it.rec, audit.ReasonBatchFailure)
		return res
	}

	var (
		outcome audit.Outcome
		ok      bool
	)
	err := browser.WithTab(ctx, b, func(tab browser.Tab) error {
		presence := s.deps.Presence.Verify(ctx, tab, it.rec.Name, it.rec.City)
		var report *audit.QualityReport
		if it.addr != "" && !(presence.Found && !presence.Active) {
			q := s.deps.Quality.Score(ctx, tab, it.addr)
			report = &q
			res.status = q.Status
		}
		// Probes swallow their own failures, so a dead browser only shows up
		// when the tab is asked something afterwards.
		if _, err := tab.Location(ctx); errors.Is(err, browser.ErrClosed) {
			return err
		}
		outcome, ok = qualify.Classify(report, presence, it.rec)
		return nil
	})
	switch {
	case ctx.Err() != nil:
		res.interrupted = true
	case errors.Is(err, browser.ErrClosed):
		faulted.Store(true)
		res.outcome = audit.Failed(it.rec, audit.ReasonBatchFailure)
	case err != nil:
		s.logger.Warn("business failed",
			zap.Int("batch", batch),
			zap.Int("row", it.rec.Row),
			zap.String("business", it.rec.Name),
			zap.Error(err),
		)
		res.outcome = audit.Failed(it.rec, err.Error())
	case !ok:
		res.rejected = true
	default:
		res.outcome = outcome
	}
	return res
}

// record appends a settled result to the run. It is only called from the
// batch drain loop.
func (s *Scheduler) record(r *run, batch int, res result) {
	r.processed++
	rec := res.item.rec
	if res.rejected {
		r.rejects = append(r.rejects, rec.Row)
		s.logger.Info("business rejected",
			zap.Int("batch", batch),
			zap.Int("row", rec.Row),
			zap.String("business", rec.Name),
			zap.String("reason", DropNoSignal),
		)
		return
	}
	r.buckets.Add(res.outcome)

	evt := progress.Event{
		Stage:    progress.StageBusinessDone,
		Batch:    batch,
		Row:      rec.Row,
		Business: rec.Name,
		Category: res.outcome.Category,
		Priority: res.outcome.Priority,
		Dur:      res.dur,
		Note:     res.outcome.Reason,
	}
	if res.item.addr != "" {
		evt.Site = urlnorm.RegistrableDomain(res.item.addr)
	}
	if res.status != 0 {
		evt.StatusClass = progress.ClassifyStatus(res.status)
	}
	s.emit(r, evt)
}

// failRemaining records every unsettled item as a batch failure and returns
// how many it recorded.
func (s *Scheduler) failRemaining(r *run, batch int, items []item, settled map[int]bool) int {
	now := s.deps.Clock.Now()
	n := 0
	for _, it := range items {
		if settled[it.rec.Row] {
			continue
		}
		settled[it.rec.Row] = true
		o := audit.Failed(it.rec, audit.ReasonBatchFailure)
		o.Website = it.addr
		o.AuditedAt = now
		s.record(r, batch, result{item: it, outcome: o})
		n++
	}
	return n
}

// pause sleeps a random duration within the configured bounds or until ctx
// ends.
func (s *Scheduler) pause(ctx context.Context) {
	d := s.cfg.DelayMin
	if spread := s.cfg.DelayMax - s.cfg.DelayMin; spread > 0 {
		d += rand.N(spread + 1)
	}
	_ = system.Sleep(ctx, d)
}
