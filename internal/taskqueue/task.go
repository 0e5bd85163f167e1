package taskqueue

import (
	"time"

	"github.com/google/uuid"

	"github.com/mispesos/engine/constants"
	"github.com/mispesos/engine/internal/recognize"
	"github.com/mispesos/engine/internal/record"
)

// Progress steps a task moves through, in order.
const (
	StepPreprocessing  = "preprocessing"  // 10%
	StepRecognition    = "recognition"    // 30%
	StepInterpretation = "interpretation" // 70%
	StepPersistence    = "persistence"    // 90%
	StepDone           = "done"           // 100%
)

// Params controls one extraction job.
type Params struct {
	// CreateRecord hands the structured record to the storage
	// collaborator when extraction succeeds.
	CreateRecord bool
	// TaskID lets callers assign their own id; empty means
	// system-assigned. Must be unique.
	TaskID string
}

// Result carries the output of a finished task.
type Result struct {
	Record         record.Record
	RecognizedText string
	Metadata       recognize.Metadata
	RecordID       *uuid.UUID
}

// Task is a status snapshot. The queue owns the live state; callers only
// ever see copies referenced by id.
type Task struct {
	ID              string
	State           constants.TaskState
	ProgressStep    string
	ProgressPercent int
	Result          *Result
	Err             string
	CreatedAt       time.Time
}

// taskEntry is the queue-internal live task.
type taskEntry struct {
	task      Task
	imagePath string
	params    Params
	cancel    func() // set while running
	cancelled bool
}
