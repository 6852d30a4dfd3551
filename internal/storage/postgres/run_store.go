package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/web-presence-auditor/internal/store"
)

// DefaultRunsTable is the table RunStore writes when none is configured.
const DefaultRunsTable = "audit_runs"

// RunStore implements store.RunRepository. Category counts live in
// <table>_categories.
type RunStore struct {
	pool       Pool
	runs       string
	categories string
}

// NewRunStore builds a RunStore over an existing pool.
func NewRunStore(pool Pool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultRunsTable
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, runs: table, categories: table + "_categories"}, nil
}

// EnsureSchema creates the run tables when they do not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id uuid PRIMARY KEY,
	started_at timestamptz NOT NULL,
	finished_at timestamptz,
	status text NOT NULL,
	total integer NOT NULL DEFAULT 0,
	batches integer NOT NULL DEFAULT 0,
	last_batch_at timestamptz,
	note text
)`, s.runs),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id uuid NOT NULL,
	category text NOT NULL,
	outcomes bigint NOT NULL DEFAULT 0,
	last_update timestamptz NOT NULL,
	PRIMARY KEY (run_id, category)
)`, s.categories),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure run schema: %w", err)
		}
	}
	return nil
}

// UpsertRunStart inserts a run, or marks a resumed run running again.
func (s *RunStore) UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time, total int) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, started_at, status, total)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status, finished_at = NULL, total = EXCLUDED.total`, s.runs)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, store.RunRunning, total); err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// RecordBatch stores the highest batch number seen.
func (s *RunStore) RecordBatch(ctx context.Context, runID uuid.UUID, batch int, at time.Time) error {
	query := fmt.Sprintf(`
UPDATE %s SET batches = GREATEST(batches, $1), last_batch_at = $2
WHERE id = $3`, s.runs)
	if _, err := s.pool.Exec(ctx, query, batch, at, runID); err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	return nil
}

// UpsertCategoryStats adds delta to a category counter.
func (s *RunStore) UpsertCategoryStats(
	ctx context.Context,
	runID uuid.UUID,
	category string,
	delta int64,
	at time.Time,
) error {
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, category, outcomes, last_update)
VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id, category) DO UPDATE
SET outcomes = %s.outcomes + EXCLUDED.outcomes,
	last_update = GREATEST(%s.last_update, EXCLUDED.last_update)`, s.categories, s.categories, s.categories)
	if _, err := s.pool.Exec(ctx, query, runID, category, delta, at); err != nil {
		return fmt.Errorf("upsert category stats: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished.
func (s *RunStore) CompleteRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	note *string,
) error {
	query := fmt.Sprintf(`UPDATE %s SET finished_at = $1, status = $2, note = $3 WHERE id = $4`, s.runs)
	if _, err := s.pool.Exec(ctx, query, finishedAt, status, note, runID); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func (s *RunStore) selectRuns() string {
	return fmt.Sprintf(`SELECT id, started_at, finished_at, status, total, batches, last_batch_at, note FROM %s`, s.runs)
}

func scanRun(row pgx.Row) (store.Run, error) {
	var run store.Run
	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.Total,
		&run.Batches,
		&run.LastBatchAt,
		&run.Note,
	)
	return run, err
}

// GetRun retrieves one run.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, s.selectRuns()+` WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Run{}, store.ErrNotFound
	}
	if err != nil {
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs newest first with an optional status filter.
func (s *RunStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	query := s.selectRuns() + `
WHERE ($1::text IS NULL OR status = $1)
ORDER BY started_at DESC
LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListRunCategories returns the category counters of one run.
func (s *RunStore) ListRunCategories(ctx context.Context, runID uuid.UUID) ([]store.CategoryStats, error) {
	query := fmt.Sprintf(`
SELECT run_id, category, outcomes, last_update FROM %s
WHERE run_id = $1
ORDER BY category`, s.categories)
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list run categories: %w", err)
	}
	defer rows.Close()

	var stats []store.CategoryStats
	for rows.Next() {
		var st store.CategoryStats
		if err := rows.Scan(&st.RunID, &st.Category, &st.Outcomes, &st.LastUpdate); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list run categories: %w", err)
	}
	return stats, nil
}
