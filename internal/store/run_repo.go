package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the runs table status column.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// ParseRunStatus validates a status filter.
func ParseRunStatus(s string) (RunStatus, error) {
	switch st := RunStatus(s); st {
	case RunRunning, RunCompleted, RunAborted:
		return st, nil
	default:
		return "", errors.New("invalid run status")
	}
}

// Run models one audit run for API responses.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time
	// FinishedAt is nil until the run completes or aborts.
	FinishedAt *time.Time
	Status     RunStatus
	// Total is the number of businesses queued after screening.
	Total       int
	Batches     int
	LastBatchAt *time.Time
	Note        *string
}

// CategoryStats counts outcomes per category for a run.
type CategoryStats struct {
	RunID      uuid.UUID
	Category   string
	Outcomes   int64
	LastUpdate time.Time
}

// RunRepository persists incremental run progress.
type RunRepository interface {
	// UpsertRunStart inserts the run or resets it to running on resume.
	UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time, total int) error
	// RecordBatch stores the highest completed batch number.
	RecordBatch(ctx context.Context, runID uuid.UUID, batch int, at time.Time) error
	// UpsertCategoryStats applies an outcome delta for one category.
	UpsertCategoryStats(ctx context.Context, runID uuid.UUID, category string, delta int64, at time.Time) error
	// CompleteRun marks the run finished.
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, note *string) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs filtered by optional status plus limit/offset.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
	// ListRunCategories returns per-category counts for one run.
	ListRunCategories(ctx context.Context, runID uuid.UUID) ([]CategoryStats, error)
}
