// Package scheduler drives an audit run: it screens the input, splits the
// survivors into batches, probes each batch with a bounded pool of browser
// tabs and flushes the accumulated outcomes to a checkpoint sink.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/aggregate"
	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/browser"
	"github.com/JakeFAU/web-presence-auditor/internal/checkpoint"
	"github.com/JakeFAU/web-presence-auditor/internal/clock/system"
	"github.com/JakeFAU/web-presence-auditor/internal/id/uuid"
	"github.com/JakeFAU/web-presence-auditor/internal/progress"
	"github.com/JakeFAU/web-presence-auditor/internal/urlnorm"
)

// flushTimeout bounds the final checkpoint written after the run context has
// been cancelled.
const flushTimeout = 30 * time.Second

// Verifier looks a business up on the place-search surface.
type Verifier interface {
	Verify(ctx context.Context, tab browser.Tab, name, city string) audit.PresenceResult
}

// Scorer rates a website.
type Scorer interface {
	Score(ctx context.Context, tab browser.Tab, addr string) audit.QualityReport
}

// Deps are the collaborators of a Scheduler. Launcher, Presence, Quality and
// IDs are required; the rest default to no-op or system implementations.
type Deps struct {
	Launcher browser.Launcher
	Presence Verifier
	Quality  Scorer
	Sink     checkpoint.Sink
	Emitter  progress.Emitter
	Clock    audit.Clock
	IDs      audit.IDGenerator
	Logger   *zap.Logger
	// Mapping is recorded in checkpoints so they can be decoded again.
	Mapping audit.ColumnMapping
	// Resume continues an interrupted run: its outcomes and rejects are kept
	// and their rows are not audited again.
	Resume *checkpoint.Checkpoint
	// RetryFailed re-audits rows the resumed run recorded as failed.
	RetryFailed bool
}

// Scheduler runs one audit. It is single-use.
type Scheduler struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	mu    sync.Mutex
	state State

	flushRequested atomic.Bool
}

// New creates a Scheduler. Configuration problems surface from Run.
func New(cfg Config, deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sink == nil {
		deps.Sink = checkpoint.Discard{}
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Discard{}
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	return &Scheduler{cfg: cfg, deps: deps, logger: deps.Logger.Named("scheduler")}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// RequestCheckpoint asks for a flush after the batch in progress.
func (s *Scheduler) RequestCheckpoint() {
	s.flushRequested.Store(true)
}

func (s *Scheduler) validate() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("scheduler config: %w", err)
	}
	switch {
	case s.deps.Launcher == nil:
		return errors.New("browser launcher is required")
	case s.deps.Presence == nil:
		return errors.New("presence verifier is required")
	case s.deps.Quality == nil:
		return errors.New("quality scorer is required")
	case s.deps.IDs == nil && (s.deps.Resume == nil || s.deps.Resume.RunID == ""):
		return errors.New("id generator is required")
	}
	return nil
}

// item is one screened record waiting for a slot.
type item struct {
	rec  audit.BusinessRecord
	addr string
}

// run is the mutable state of one invocation. Only the goroutine calling Run
// touches it.
type run struct {
	id        string
	eventID   [16]byte
	mapping   audit.ColumnMapping
	total     int
	batch     int
	batches   int
	processed int
	since     int
	buckets   aggregate.Buckets
	screened  map[string]int
	rejects   []int
}

func (r *run) dropped() map[string]int {
	out := make(map[string]int, len(r.screened)+1)
	for k, v := range r.screened {
		out[k] = v
	}
	if len(r.rejects) > 0 {
		out[DropNoSignal] = len(r.rejects)
	}
	return out
}

// Run audits records and blocks until every batch is done or ctx is
// cancelled. An interrupted run still flushes what it accumulated and is
// reported through Summary.State rather than an error; Run fails only on
// invalid setup or when the final checkpoint cannot be saved.
func (s *Scheduler) Run(ctx context.Context, records []audit.BusinessRecord) (Summary, error) {
	if err := s.validate(); err != nil {
		return Summary{}, err
	}
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return Summary{}, errors.New("scheduler already used")
	}
	s.state = StateRunning
	s.mu.Unlock()

	r, err := s.newRun(len(records))
	if err != nil {
		s.setState(StateAborted)
		return Summary{}, err
	}
	started := s.deps.Clock.Now()
	items := s.screen(r, records)
	s.logger.Info("run started",
		zap.String("run_id", r.id),
		zap.Int("total", r.total),
		zap.Int("queued", len(items)),
		zap.Int("resumed", r.buckets.Total()+len(r.rejects)),
		zap.Any("dropped", r.screened),
	)
	s.emit(r, progress.Event{Stage: progress.StageRunStart, Count: len(items)})

	aborted := false
	for start := 0; start < len(items); start += s.cfg.BatchSize {
		if ctx.Err() != nil {
			aborted = true
			break
		}
		end := min(start+s.cfg.BatchSize, len(items))
		s.runBatch(ctx, r, items[start:end])
		if ctx.Err() != nil {
			aborted = true
			break
		}
		if r.since >= s.cfg.CheckpointEvery || s.flushRequested.Swap(false) {
			// Intermediate flush failures are logged; the final flush reports.
			_ = s.flush(ctx, r, false, false)
		}
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	flushErr := s.flush(flushCtx, r, true, aborted)

	final := StateCompleted
	stage := progress.StageRunDone
	if aborted {
		final = StateAborted
		stage = progress.StageRunAborted
	}
	s.setState(final)
	elapsed := s.deps.Clock.Now().Sub(started)
	s.emit(r, progress.Event{Stage: stage, Count: r.buckets.Total(), Dur: elapsed})

	sum := Summary{
		RunID:     r.id,
		State:     final,
		Total:     r.total,
		Counts:    r.buckets.Counts(),
		Dropped:   r.dropped(),
		Batches:   r.batches,
		Processed: r.processed,
		Elapsed:   elapsed,
		Buckets:   r.buckets.Snapshot(),
	}
	s.logger.Info("run finished",
		zap.String("run_id", r.id),
		zap.Stringer("state", final),
		zap.Int("outcomes", sum.Outcomes()),
		zap.Int("rejected", sum.Rejected()),
		zap.Int("pending", sum.Pending()),
		zap.Float64("per_minute", sum.PerMinute()),
		zap.Duration("elapsed", elapsed),
	)
	if flushErr != nil {
		return sum, flushErr
	}
	return sum, nil
}

func (s *Scheduler) newRun(total int) (*run, error) {
	r := &run{total: total, mapping: s.deps.Mapping, screened: make(map[string]int)}
	if cp := s.deps.Resume; cp != nil {
		r.id = cp.RunID
		r.batch = cp.Batch
		if r.mapping == (audit.ColumnMapping{}) {
			r.mapping = cp.Mapping
		}
		r.buckets = cp.Buckets.Snapshot()
		if s.deps.RetryFailed {
			r.buckets = r.buckets.WithoutFailed()
		}
		r.rejects = slices.Clone(cp.Rejects)
		if cp.Total != 0 && cp.Total != total {
			s.logger.Warn("resumed checkpoint covers a different input",
				zap.Int("checkpoint_total", cp.Total),
				zap.Int("total", total),
			)
		}
	}
	if r.id == "" {
		id, err := s.deps.IDs.NewID()
		if err != nil {
			return nil, fmt.Errorf("run id: %w", err)
		}
		r.id = id
	}
	r.eventID = uuid.Bytes(r.id)
	return r, nil
}

// screen drops unusable records and rows a resumed run already settled.
func (s *Scheduler) screen(r *run, records []audit.BusinessRecord) []item {
	settled := r.buckets.Rows()
	for _, row := range r.rejects {
		settled[row] = ""
	}
	items := make([]item, 0, len(records))
	for _, rec := range records {
		if _, ok := settled[rec.Row]; ok {
			continue
		}
		if rec.Name == "" {
			r.screened[DropNoName]++
			continue
		}
		addr, ok := urlnorm.Normalize(rec.Website)
		if ok && urlnorm.IsListingProfile(addr) {
			r.screened[DropListing]++
			continue
		}
		if !ok {
			addr = ""
		}
		items = append(items, item{rec: rec, addr: addr})
	}
	return items
}

// flush saves a checkpoint. Final flushes leave the state to the caller.
func (s *Scheduler) flush(ctx context.Context, r *run, final, aborted bool) error {
	s.setState(StateCheckpointing)
	if !final {
		defer s.setState(StateRunning)
	}
	cp := checkpoint.Checkpoint{
		RunID:   r.id,
		Batch:   r.batch,
		SavedAt: s.deps.Clock.Now(),
		Final:   final,
		Aborted: aborted,
		Mapping: r.mapping,
		Total:   r.total,
		Dropped: r.dropped(),
		Rejects: slices.Clone(r.rejects),
		Buckets: r.buckets.Snapshot(),
	}
	if err := s.deps.Sink.Save(ctx, cp); err != nil {
		s.logger.Error("checkpoint failed",
			zap.String("run_id", r.id),
			zap.Int("batch", r.batch),
			zap.Bool("final", final),
			zap.Error(err),
		)
		return fmt.Errorf("save checkpoint after batch %d: %w", r.batch, err)
	}
	r.since = 0
	s.emit(r, progress.Event{Stage: progress.StageCheckpoint, Batch: r.batch, Count: cp.Buckets.Total()})
	return nil
}

func (s *Scheduler) emit(r *run, evt progress.Event) {
	evt.RunID = r.eventID
	if evt.TS.IsZero() {
		evt.TS = s.deps.Clock.Now()
	}
	s.deps.Emitter.Emit(evt)
}
