package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageBatchStart   Stage = "BATCH_START"
	StageBatchDone    Stage = "BATCH_DONE"
	StageBatchFailed  Stage = "BATCH_FAILED"
	StageBusinessDone Stage = "BUSINESS_DONE"
	StageCheckpoint   Stage = "CHECKPOINT"
	StageRunDone      Stage = "RUN_DONE"
	StageRunAborted   Stage = "RUN_ABORTED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// HTTP status classes recorded for probed websites.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of an audit run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Batch is the 1-based batch number for batch and business events.
	Batch int
	// Row, Business and Site describe the audited record for BUSINESS_DONE.
	Row      int
	Business string
	Site     string
	Category audit.Category
	Priority audit.Priority
	// StatusClass groups the website's HTTP status when one was probed.
	StatusClass StatusClass
	// Count carries the stage's size: queued businesses for RUN_START and
	// BATCH_START, saved outcomes for CHECKPOINT, failed items for BATCH_FAILED.
	Count int
	// Dur captures elapsed time for businesses, batches and runs.
	Dur time.Duration
	// Note lets emitters attach low-volume context such as an outcome reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunAborted, StageCheckpoint:
	case StageBatchStart, StageBatchDone, StageBatchFailed:
		if e.Batch < 1 {
			return fmt.Errorf("%s requires batch", e.Stage)
		}
	case StageBusinessDone:
		if e.Row < 1 {
			return errors.New("business done requires row")
		}
		if e.Category == "" {
			return errors.New("business done requires category")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Count < 0 {
		return errors.New("count must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for business events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}

// Discard is an Emitter that drops every event.
type Discard struct{}

// Emit implements Emitter.
func (Discard) Emit(Event) {}
