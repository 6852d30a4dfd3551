package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-presence-auditor/internal/aggregate"
	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/checkpoint"
	"github.com/JakeFAU/web-presence-auditor/internal/store"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestNewStoresValidateTables(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	_, err := NewRunStore(nil, "")
	require.Error(t, err)
	_, err = NewRunStore(mock, "runs; DROP TABLE x")
	require.Error(t, err)
	_, err = NewOutcomeStore(mock, "bad-name", nil)
	require.Error(t, err)

	runs, err := NewRunStore(mock, "")
	require.NoError(t, err)
	require.Equal(t, "audit_runs_categories", runs.categories)
}

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	runs, err := NewRunStore(mock, "audit_runs")
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Unix(1772355600, 0).UTC()
	note := "interrupted"

	mock.ExpectExec("INSERT INTO audit_runs").
		WithArgs(runID, now, store.RunRunning, 12).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE audit_runs SET batches").
		WithArgs(2, now, runID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO audit_runs_categories").
		WithArgs(runID, "qualified", int64(3), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE audit_runs SET finished_at").
		WithArgs(now, store.RunAborted, &note, runID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := context.Background()
	require.NoError(t, runs.UpsertRunStart(ctx, runID, now, 12))
	require.NoError(t, runs.RecordBatch(ctx, runID, 2, now))
	require.NoError(t, runs.UpsertCategoryStats(ctx, runID, "qualified", 3, now))
	require.NoError(t, runs.CompleteRun(ctx, runID, now, store.RunAborted, &note))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreEnsureSchema(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	runs, err := NewRunStore(mock, "")
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_runs_categories").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, runs.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreGetRunNotFound(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	runs, err := NewRunStore(mock, "")
	require.NoError(t, err)

	runID := uuid.New()
	mock.ExpectQuery("SELECT id, started_at").WithArgs(runID).WillReturnError(pgx.ErrNoRows)
	_, err = runs.GetRun(context.Background(), runID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStoreQueryErrors(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	runs, err := NewRunStore(mock, "")
	require.NoError(t, err)
	boom := errors.New("connection reset")

	status := store.RunRunning
	mock.ExpectQuery("SELECT id, started_at").WithArgs(&status, 10, 0).WillReturnError(boom)
	_, err = runs.ListRuns(context.Background(), &status, 10, 0)
	require.ErrorIs(t, err, boom)

	runID := uuid.New()
	mock.ExpectQuery("SELECT run_id, category").WithArgs(runID).WillReturnError(boom)
	_, err = runs.ListRunCategories(context.Background(), runID)
	require.ErrorIs(t, err, boom)

	mock.ExpectExec("INSERT INTO audit_runs").WillReturnError(boom)
	require.ErrorIs(t, runs.UpsertRunStart(context.Background(), runID, time.Now(), 1), boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func outcomeCheckpoint(runID string, outcomes ...audit.Outcome) checkpoint.Checkpoint {
	var b aggregate.Buckets
	for _, o := range outcomes {
		b.Add(o)
	}
	return checkpoint.Checkpoint{RunID: runID, Batch: 1, Buckets: b}
}

func TestOutcomeStoreUpsertsOnlyChangedRows(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	outcomes, err := NewOutcomeStore(mock, "audit_outcomes", nil)
	require.NoError(t, err)

	runID := uuid.New()
	rec := audit.BusinessRecord{Row: 4, Name: "Acme Plumbing", City: "Tulsa"}
	presence := audit.PresenceResult{Found: true, Active: true, Confidence: audit.ConfidenceHigh, SourceURL: "https://maps.test/acme"}
	lead := audit.Qualified(rec, audit.PriorityHigh, audit.ReasonNoWebsite, nil, presence)
	lead.Website = "http://acme.test/"

	mock.ExpectExec("INSERT INTO audit_outcomes").
		WithArgs(
			runID,
			4,
			"Acme Plumbing",
			"Tulsa",
			"http://acme.test/",
			"qualified",
			"HIGH",
			0.0,
			audit.ReasonNoWebsite,
			[]byte(`[]`),
			false,
			"",
			true,
			true,
			"high",
			"https://maps.test/acme",
			nil,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	cp := outcomeCheckpoint(runID.String(), lead)
	require.NoError(t, outcomes.Save(context.Background(), cp))
	// Unchanged rows are not rewritten.
	require.NoError(t, outcomes.Save(context.Background(), cp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeStoreRejectsBadRunID(t *testing.T) {
	t.Parallel()

	outcomes, err := NewOutcomeStore(newMock(t), "", nil)
	require.NoError(t, err)
	require.Error(t, outcomes.Save(context.Background(), outcomeCheckpoint("not-a-uuid")))
}

func TestOutcomeStoreSurfacesExecErrors(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	outcomes, err := NewOutcomeStore(mock, "", nil)
	require.NoError(t, err)
	boom := errors.New("disk full")
	mock.ExpectExec("INSERT INTO audit_outcomes").WillReturnError(boom)

	failed := audit.Failed(audit.BusinessRecord{Row: 9, Name: "Broken"}, audit.ReasonBatchFailure)
	err = outcomes.Save(context.Background(), outcomeCheckpoint(uuid.NewString(), failed))
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}
