package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/checkpoint"
)

// DefaultOutcomesTable is the table OutcomeStore writes when none is configured.
const DefaultOutcomesTable = "audit_outcomes"

// OutcomeStore is a checkpoint sink that upserts one row per audited
// business. Rows already written with the same category are skipped on later
// checkpoints.
type OutcomeStore struct {
	pool   Pool
	table  string
	logger *zap.Logger

	mu      sync.Mutex
	written map[outcomeKey]audit.Category
}

type outcomeKey struct {
	run string
	row int
}

// NewOutcomeStore builds an OutcomeStore over an existing pool.
func NewOutcomeStore(pool Pool, table string, logger *zap.Logger) (*OutcomeStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultOutcomesTable
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutcomeStore{
		pool:    pool,
		table:   table,
		logger:  logger.Named("outcome_store"),
		written: make(map[outcomeKey]audit.Category),
	}, nil
}

// EnsureSchema creates the outcomes table when it does not exist.
func (s *OutcomeStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id uuid NOT NULL,
	row_number integer NOT NULL,
	business text NOT NULL,
	city text,
	website text,
	category text NOT NULL,
	priority text,
	score double precision NOT NULL DEFAULT 0,
	reason text,
	issues jsonb NOT NULL DEFAULT '[]',
	accessible boolean NOT NULL DEFAULT false,
	technology text,
	listing_found boolean NOT NULL DEFAULT false,
	listing_active boolean NOT NULL DEFAULT false,
	confidence text,
	source_url text,
	audited_at timestamptz,
	PRIMARY KEY (run_id, row_number)
)`, s.table)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure outcome schema: %w", err)
	}
	return nil
}

// Save implements checkpoint.Sink.
func (s *OutcomeStore) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	runID, err := uuid.Parse(cp.RunID)
	if err != nil {
		return fmt.Errorf("parse run id: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	upserted := 0
	for _, c := range audit.Categories {
		for _, o := range cp.Buckets.Bucket(c) {
			key := outcomeKey{run: cp.RunID, row: o.Record.Row}
			if prev, ok := s.written[key]; ok && prev == o.Category {
				continue
			}
			if err := s.upsert(ctx, runID, o); err != nil {
				return err
			}
			s.written[key] = o.Category
			upserted++
		}
	}
	s.logger.Debug("outcomes persisted", zap.String("run_id", cp.RunID), zap.Int("rows", upserted))
	return nil
}

func (s *OutcomeStore) upsert(ctx context.Context, runID uuid.UUID, o audit.Outcome) error {
	issues, err := json.Marshal(nonNil(o.Issues))
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	technology := ""
	if o.Quality != nil {
		technology = o.Quality.Technology
	}
	var auditedAt any
	if !o.AuditedAt.IsZero() {
		auditedAt = o.AuditedAt
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	row_number,
	business,
	city,
	website,
	category,
	priority,
	score,
	reason,
	issues,
	accessible,
	technology,
	listing_found,
	listing_active,
	confidence,
	source_url,
	audited_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
ON CONFLICT (run_id, row_number) DO UPDATE SET
	category = EXCLUDED.category,
	priority = EXCLUDED.priority,
	score = EXCLUDED.score,
	reason = EXCLUDED.reason,
	issues = EXCLUDED.issues,
	accessible = EXCLUDED.accessible,
	technology = EXCLUDED.technology,
	listing_found = EXCLUDED.listing_found,
	listing_active = EXCLUDED.listing_active,
	confidence = EXCLUDED.confidence,
	source_url = EXCLUDED.source_url,
	audited_at = EXCLUDED.audited_at`, s.table)

	args := []any{
		runID,
		o.Record.Row,
		o.Record.Name,
		o.Record.City,
		o.Website,
		string(o.Category),
		string(o.Priority),
		o.Score,
		o.Reason,
		issues,
		o.WebsiteAccessible(),
		technology,
		o.Presence.Found,
		o.Presence.Active,
		string(o.Presence.Confidence),
		o.Presence.SourceURL,
		auditedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert outcome row %d: %w", o.Record.Row, err)
	}
	return nil
}

func nonNil(issues []string) []string {
	if issues == nil {
		return []string{}
	}
	return issues
}
