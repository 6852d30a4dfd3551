// Package checkpoint persists accumulated outcome buckets during a run and
// restores them when an interrupted run is resumed.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/web-presence-auditor/internal/aggregate"
	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

// Checkpoint is a snapshot of a run after a completed batch.
type Checkpoint struct {
	RunID   string
	Batch   int
	SavedAt time.Time
	// Final is set on the last flush of a run, whether it completed or was
	// aborted.
	Final   bool
	Aborted bool
	Mapping audit.ColumnMapping
	// Total is the number of input records, including dropped ones.
	Total   int
	Dropped map[string]int
	// Rejects lists rows audited without any actionable signal.
	Rejects []int
	Buckets aggregate.Buckets
}

// Resumable reports whether a later run should pick up where this one
// stopped.
func (c Checkpoint) Resumable() bool {
	return !c.Final || c.Aborted
}

// Sink persists checkpoints.
type Sink interface {
	Save(ctx context.Context, cp Checkpoint) error
}

// Multi fans a checkpoint out to several sinks. Every sink is attempted.
type Multi []Sink

// Save implements Sink.
func (m Multi) Save(ctx context.Context, cp Checkpoint) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Save(ctx, cp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every checkpoint.
type Discard struct{}

// Save implements Sink.
func (Discard) Save(context.Context, Checkpoint) error { return nil }
