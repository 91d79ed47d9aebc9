package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Pipeline State
// ============================================================================

// PipelineState is the state machine position of a run.
// A run starts in PipelineStateChecking and ends in Done or Aborted.
type PipelineState string

const (
	PipelineStateChecking        PipelineState = "checking"
	PipelineStateFetching        PipelineState = "fetching"
	PipelineStateUploading       PipelineState = "uploading"
	PipelineStateInferringSchema PipelineState = "inferring_schema"
	PipelineStateCreatingTable   PipelineState = "creating_table"
	PipelineStateLoading         PipelineState = "loading"
	PipelineStateValidating      PipelineState = "validating"
	PipelineStateDone            PipelineState = "done"
	PipelineStateAborted         PipelineState = "aborted"
)

// ValidPipelineStates contains all valid pipeline states.
var ValidPipelineStates = []PipelineState{
	PipelineStateChecking,
	PipelineStateFetching,
	PipelineStateUploading,
	PipelineStateInferringSchema,
	PipelineStateCreatingTable,
	PipelineStateLoading,
	PipelineStateValidating,
	PipelineStateDone,
	PipelineStateAborted,
}

// IsValidPipelineState checks if the given state is valid.
func IsValidPipelineState(s PipelineState) bool {
	for _, v := range ValidPipelineStates {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal returns true for Done and Aborted.
func (s PipelineState) IsTerminal() bool {
	return s == PipelineStateDone || s == PipelineStateAborted
}

// ============================================================================
// Stage Status
// ============================================================================

// StageStatus represents the execution status of a single stage.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// IsTerminal returns true if the stage status is terminal.
func (s StageStatus) IsTerminal() bool {
	return s == StageStatusCompleted || s == StageStatusFailed || s == StageStatusSkipped
}

// ============================================================================
// Stage Names
// ============================================================================

// StageName identifies one of the seven pipeline stages.
type StageName string

const (
	StageAvailability StageName = "availability"
	StageFetch        StageName = "fetch"
	StageUpload       StageName = "upload"
	StageInferSchema  StageName = "infer_schema"
	StageCreateTable  StageName = "create_table"
	StageLoad         StageName = "load"
	StageValidate     StageName = "validate"
)

// StageOrder defines the execution order for each stage.
var StageOrder = map[StageName]int{
	StageAvailability: 1,
	StageFetch:        2,
	StageUpload:       3,
	StageInferSchema:  4,
	StageCreateTable:  5,
	StageLoad:         6,
	StageValidate:     7,
}

// StageState maps each stage to the pipeline state it runs in.
var StageState = map[StageName]PipelineState{
	StageAvailability: PipelineStateChecking,
	StageFetch:        PipelineStateFetching,
	StageUpload:       PipelineStateUploading,
	StageInferSchema:  PipelineStateInferringSchema,
	StageCreateTable:  PipelineStateCreatingTable,
	StageLoad:         PipelineStateLoading,
	StageValidate:     PipelineStateValidating,
}

// AllStages returns all stage names in execution order.
func AllStages() []StageName {
	return []StageName{
		StageAvailability,
		StageFetch,
		StageUpload,
		StageInferSchema,
		StageCreateTable,
		StageLoad,
		StageValidate,
	}
}

// ============================================================================
// Run Model
// ============================================================================

// Run is a single invocation of the ingestion pipeline.
type Run struct {
	ID        uuid.UUID `json:"id"`
	SourceURL string    `json:"source_url"`
	TableName string    `json:"table_name"`
	LocalPath string    `json:"local_path"`
	HDFSPath  string    `json:"hdfs_path"`

	// Execution state
	State        PipelineState `json:"state"`
	CurrentStage *string       `json:"current_stage,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`

	// Produced along the way
	ArtifactBytes  int64             `json:"artifact_bytes,omitempty"`
	ArtifactSHA256 string            `json:"artifact_sha256,omitempty"`
	Schema         *TableSchema      `json:"schema,omitempty"`
	Validation     *ValidationResult `json:"validation,omitempty"`

	// Timing
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Stages []StageRecord `json:"stages,omitempty"`
}

// IsDone returns true if every stage ran to completion (or was skipped by design).
func (r *Run) IsDone() bool {
	return r.State == PipelineStateDone
}

// IsAborted returns true if the run stopped on a failure.
func (r *Run) IsAborted() bool {
	return r.State == PipelineStateAborted
}

// Stage returns the record for a stage, or nil.
func (r *Run) Stage(name StageName) *StageRecord {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i]
		}
	}
	return nil
}

// FailedStage returns the first failed stage, or nil.
func (r *Run) FailedStage() *StageRecord {
	for i := range r.Stages {
		if r.Stages[i].Status == StageStatusFailed {
			return &r.Stages[i]
		}
	}
	return nil
}

// CompletedStageCount returns the number of completed stages.
func (r *Run) CompletedStageCount() int {
	count := 0
	for _, s := range r.Stages {
		if s.Status == StageStatusCompleted {
			count++
		}
	}
	return count
}

// ============================================================================
// Stage Record
// ============================================================================

// StageRecord tracks one stage within a run.
type StageRecord struct {
	Name   StageName   `json:"name"`
	Order  int         `json:"order"`
	Status StageStatus `json:"status"`

	// Message is the human-readable outcome reported by the stage.
	Message      string  `json:"message,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  *int       `json:"duration_ms,omitempty"`
}

// ValidationResult holds the rows returned by the smoke-test query.
type ValidationResult struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}
