package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/aggregate"
	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/report"
)

const (
	latestFile   = "latest.json"
	manifestFile = "manifest.json"
	dirLayout    = "20060102T150405Z"

	contentTypeCSV  = "text/csv"
	contentTypeJSON = "application/json"
)

// Result files written by the final flush.
const (
	FileQualified    = "qualified_businesses.csv"
	FileActiveOnline = "active_online_businesses.csv"
	FileInactive     = "inactive_businesses.csv"
	FileClosed       = "closed_businesses.csv"
	FileLowPriority  = "low_priority_businesses.csv"
	FileFailed       = "failed_businesses.csv"
)

type manifest struct {
	RunID   string                    `json:"run_id"`
	Batch   int                       `json:"batch"`
	SavedAt time.Time                 `json:"saved_at"`
	Final   bool                      `json:"final"`
	Aborted bool                      `json:"aborted"`
	Mapping audit.ColumnMapping       `json:"mapping"`
	Total   int                       `json:"total"`
	Dropped map[string]int            `json:"dropped,omitempty"`
	Rejects []int                     `json:"rejects,omitempty"`
	Counts  map[audit.Category]int    `json:"counts"`
	Files   map[audit.Category]string `json:"files"`
}

type pointer struct {
	RunID    string    `json:"run_id"`
	Manifest string    `json:"manifest"`
	Batch    int       `json:"batch"`
	Final    bool      `json:"final"`
	Aborted  bool      `json:"aborted"`
	SavedAt  time.Time `json:"saved_at"`
}

// BlobSink writes checkpoints as delimited-text buckets plus a JSON manifest
// through a BlobStore. Every save also rewrites <prefix>/latest.json.
type BlobSink struct {
	store  audit.BlobStore
	prefix string
	logger *zap.Logger
}

// NewBlobSink creates a sink rooted at prefix ("" for the store root).
func NewBlobSink(store audit.BlobStore, prefix string, logger *zap.Logger) (*BlobSink, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobSink{store: store, prefix: prefix, logger: logger.Named("checkpoint")}, nil
}

// Save implements Sink.
func (s *BlobSink) Save(ctx context.Context, cp Checkpoint) error {
	if cp.RunID == "" {
		return errors.New("checkpoint run id is required")
	}
	dir := path.Join(s.prefix, cp.RunID, fmt.Sprintf("%s_batch_%d", cp.SavedAt.UTC().Format(dirLayout), cp.Batch))

	m := manifest{
		RunID:   cp.RunID,
		Batch:   cp.Batch,
		SavedAt: cp.SavedAt.UTC(),
		Final:   cp.Final,
		Aborted: cp.Aborted,
		Mapping: cp.Mapping,
		Total:   cp.Total,
		Dropped: cp.Dropped,
		Rejects: cp.Rejects,
		Counts:  cp.Buckets.Counts(),
		Files:   make(map[audit.Category]string, len(audit.Categories)),
	}
	for _, c := range audit.Categories {
		p := path.Join(dir, string(c)+".csv")
		if err := s.putCSV(ctx, p, cp.Buckets.Bucket(c)); err != nil {
			return err
		}
		m.Files[c] = p
	}
	manifestPath := path.Join(dir, manifestFile)
	if err := s.putJSON(ctx, manifestPath, m); err != nil {
		return err
	}

	if cp.Final {
		if err := s.writeResults(ctx, path.Join(s.prefix, cp.RunID), cp.Buckets); err != nil {
			return err
		}
	}

	ptr := pointer{
		RunID:    cp.RunID,
		Manifest: manifestPath,
		Batch:    cp.Batch,
		Final:    cp.Final,
		Aborted:  cp.Aborted,
		SavedAt:  m.SavedAt,
	}
	if err := s.putJSON(ctx, path.Join(s.prefix, latestFile), ptr); err != nil {
		return err
	}
	s.logger.Info("checkpoint saved",
		zap.String("run_id", cp.RunID),
		zap.Int("batch", cp.Batch),
		zap.String("dir", dir),
		zap.Bool("final", cp.Final),
		zap.Int("outcomes", cp.Buckets.Total()),
	)
	return nil
}

func (s *BlobSink) writeResults(ctx context.Context, dir string, b aggregate.Buckets) error {
	qualified := aggregate.SortQualified(b.Qualified)
	active, inactive := aggregate.SplitActive(qualified)
	files := []struct {
		name     string
		outcomes []audit.Outcome
	}{
		{FileQualified, qualified},
		{FileActiveOnline, active},
		{FileInactive, inactive},
		{FileClosed, b.Closed},
		{FileLowPriority, b.LowPriority},
		{FileFailed, b.Failed},
	}
	for _, f := range files {
		if err := s.putCSV(ctx, path.Join(dir, f.name), f.outcomes); err != nil {
			return err
		}
	}
	return nil
}

func (s *BlobSink) putCSV(ctx context.Context, p string, outcomes []audit.Outcome) error {
	var buf bytes.Buffer
	if err := report.Encode(&buf, outcomes); err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	if _, err := s.store.PutObject(ctx, p, contentTypeCSV, &buf); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (s *BlobSink) putJSON(ctx context.Context, p string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", p, err)
	}
	if _, err := s.store.PutObject(ctx, p, contentTypeJSON, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// LoadLatest restores the checkpoint named by <prefix>/latest.json. It
// reports false when there is nothing to resume: no pointer yet, or the last
// run completed.
func LoadLatest(ctx context.Context, reader audit.BlobReader, prefix string) (Checkpoint, bool, error) {
	var ptr pointer
	if err := readJSON(ctx, reader, path.Join(prefix, latestFile), &ptr); err != nil {
		if errors.Is(err, audit.ErrObjectNotFound) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, err
	}
	if ptr.Final && !ptr.Aborted {
		return Checkpoint{}, false, nil
	}

	var m manifest
	if err := readJSON(ctx, reader, ptr.Manifest, &m); err != nil {
		return Checkpoint{}, false, err
	}
	cp := Checkpoint{
		RunID:   m.RunID,
		Batch:   m.Batch,
		SavedAt: m.SavedAt,
		Final:   m.Final,
		Aborted: m.Aborted,
		Mapping: m.Mapping,
		Total:   m.Total,
		Dropped: m.Dropped,
		Rejects: m.Rejects,
	}
	for _, c := range audit.Categories {
		p, ok := m.Files[c]
		if !ok {
			continue
		}
		outcomes, err := readCSV(ctx, reader, p, m.Mapping)
		if err != nil {
			return Checkpoint{}, false, err
		}
		for _, o := range outcomes {
			o.Category = c
			cp.Buckets.Add(o)
		}
	}
	return cp, true, nil
}

func readJSON(ctx context.Context, reader audit.BlobReader, p string, v any) error {
	rc, err := reader.GetObject(ctx, p)
	if err != nil {
		return fmt.Errorf("read %s: %w", p, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", p, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", p, err)
	}
	return nil
}

func readCSV(ctx context.Context, reader audit.BlobReader, p string, mapping audit.ColumnMapping) ([]audit.Outcome, error) {
	rc, err := reader.GetObject(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	defer func() { _ = rc.Close() }()
	outcomes, err := report.Decode(rc, mapping)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	return outcomes, nil
}
