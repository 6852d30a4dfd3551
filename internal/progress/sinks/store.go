package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/progress"
	"github.com/JakeFAU/web-presence-auditor/internal/store"
)

// StoreSink persists run bookkeeping via a store.RunRepository. Outcome
// counts are collapsed per (run, category) within a batch before writing.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards lifecycle events and collapsed category deltas to the
// repository. Repository errors are returned wrapped.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	deltas := make(map[categoryKey]*categoryDelta)

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.repo.UpsertRunStart(ctx, runID, evt.TS, evt.Count); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.StageBatchDone, progress.StageBatchFailed:
			if err := s.repo.RecordBatch(ctx, runID, evt.Batch, evt.TS); err != nil {
				return fmt.Errorf("record batch: %w", err)
			}
		case progress.StageBusinessDone:
			recordCategory(deltas, runID, evt)
		case progress.StageRunDone, progress.StageRunAborted:
			// Flush pending counts first so a finished run is complete.
			if err := s.flush(ctx, deltas); err != nil {
				return err
			}
			if err := s.complete(ctx, runID, evt); err != nil {
				return err
			}
		}
	}
	return s.flush(ctx, deltas)
}

func (s *StoreSink) complete(ctx context.Context, runID uuid.UUID, evt progress.Event) error {
	status := store.RunCompleted
	if evt.Stage == progress.StageRunAborted {
		status = store.RunAborted
	}
	var note *string
	if evt.Note != "" {
		note = &evt.Note
	}
	if err := s.repo.CompleteRun(ctx, runID, evt.TS, status, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func (s *StoreSink) flush(ctx context.Context, deltas map[categoryKey]*categoryDelta) error {
	for key, delta := range deltas {
		if err := s.repo.UpsertCategoryStats(ctx, key.runID, key.category, delta.count, delta.at); err != nil {
			return fmt.Errorf("upsert category stats: %w", err)
		}
		delete(deltas, key)
	}
	return nil
}

func recordCategory(deltas map[categoryKey]*categoryDelta, runID uuid.UUID, evt progress.Event) {
	key := categoryKey{runID: runID, category: string(evt.Category)}
	d := deltas[key]
	if d == nil {
		d = &categoryDelta{}
		deltas[key] = d
	}
	d.count++
	if evt.TS.After(d.at) {
		d.at = evt.TS
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type categoryKey struct {
	runID    uuid.UUID
	category string
}

type categoryDelta struct {
	count int64
	at    time.Time
}
