package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Count: 3},
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Count: 3},
		{RunID: runID, TS: now, Stage: progress.StageBatchStart, Batch: 1, Count: 3},
		{
			RunID:       runID,
			TS:          now.Add(5 * time.Second),
			Stage:       progress.StageBusinessDone,
			Batch:       1,
			Row:         1,
			Category:    audit.CategoryQualified,
			Priority:    audit.PriorityHigh,
			StatusClass: progress.Status2xx,
			Dur:         4 * time.Second,
		},
		{RunID: runID, TS: now, Stage: progress.StageBusinessDone, Batch: 1, Row: 2, Category: audit.CategoryClosed},
		{RunID: runID, TS: now, Stage: progress.StageBatchDone, Batch: 1, Dur: 30 * time.Second},
		{RunID: runID, TS: now, Stage: progress.StageBatchFailed, Batch: 2, Count: 1},
		{RunID: runID, TS: now, Stage: progress.StageCheckpoint, Count: 3},
		{RunID: runID, TS: now, Stage: progress.StageRunDone, Dur: time.Minute},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.InDelta(t, 2.0, testutil.ToFloat64(sink.runsStarted), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("completed")), 1e-9)
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.runsRunning), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.batches.WithLabelValues("done")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.batches.WithLabelValues("failed")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.checkpoints), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("qualified", "HIGH")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.outcomes.WithLabelValues("closed", "none")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.siteStatus.WithLabelValues("2xx")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.businessDuration, "auditor_business_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.batchDuration, "auditor_batch_duration_seconds"))
}

func TestPrometheusSinkAbortedRun(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)
	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart},
	}))
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.runsRunning), 1e-9)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunAborted},
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunAborted},
	}))
	require.InDelta(t, 0.0, testutil.ToFloat64(sink.runsRunning), 1e-9)
	require.InDelta(t, 2.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("aborted")), 1e-9)
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
