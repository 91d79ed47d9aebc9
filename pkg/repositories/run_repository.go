package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/database"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// RunRepository persists pipeline runs and their stage records in the ledger.
type RunRepository interface {
	// Run operations
	Create(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error)
	Update(ctx context.Context, run *models.Run) error
	List(ctx context.Context, limit int) ([]*models.Run, error)

	// Load bookkeeping
	MarkLoaded(ctx context.Context, id uuid.UUID) error
	FindLoadedDigest(ctx context.Context, tableName, sha256 string) (*models.Run, error)

	// Stage operations
	SaveStage(ctx context.Context, runID uuid.UUID, stage *models.StageRecord) error
	GetStagesByRun(ctx context.Context, runID uuid.UUID) ([]models.StageRecord, error)
}

type runRepository struct {
	db *database.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *database.DB) RunRepository {
	return &runRepository{db: db}
}

var _ RunRepository = (*runRepository)(nil)

// ============================================================================
// Run Operations
// ============================================================================

const runColumns = `id, source_url, table_name, local_path, hdfs_path,
		       state, current_stage, error_message,
		       artifact_bytes, artifact_sha256, schema_json,
		       started_at, completed_at`

func (r *runRepository) Create(ctx context.Context, run *models.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	schemaJSON, err := marshalSchema(run.Schema)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ingest_runs (
			id, source_url, table_name, local_path, hdfs_path,
			state, current_stage, error_message,
			artifact_bytes, artifact_sha256, schema_json,
			started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, r.db.Rebind(query),
		run.ID.String(), run.SourceURL, run.TableName, run.LocalPath, run.HDFSPath,
		string(run.State), run.CurrentStage, run.ErrorMessage,
		run.ArtifactBytes, run.ArtifactSHA256, schemaJSON,
		toMillis(&run.StartedAt), toMillis(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

func (r *runRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM ingest_runs WHERE id = ?`

	run, err := scanRunRow(r.db.QueryRowContext(ctx, r.db.Rebind(query), id.String()))
	if err != nil {
		return nil, err
	}

	stages, err := r.GetStagesByRun(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Stages = stages

	return run, nil
}

func (r *runRepository) Update(ctx context.Context, run *models.Run) error {
	schemaJSON, err := marshalSchema(run.Schema)
	if err != nil {
		return err
	}

	query := `
		UPDATE ingest_runs
		SET state = ?,
		    current_stage = ?,
		    error_message = ?,
		    artifact_bytes = ?,
		    artifact_sha256 = ?,
		    schema_json = ?,
		    completed_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		string(run.State), run.CurrentStage, run.ErrorMessage,
		run.ArtifactBytes, run.ArtifactSHA256, schemaJSON,
		toMillis(run.CompletedAt), run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, apperrors.ErrNotFound)
	}

	return nil
}

// List returns the most recent runs first, without stage records.
func (r *runRepository) List(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM ingest_runs ORDER BY started_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// ============================================================================
// Load Bookkeeping
// ============================================================================

func (r *runRepository) MarkLoaded(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE ingest_runs SET loaded = 1 WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark run loaded: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// FindLoadedDigest returns the most recent run that loaded content with the
// given digest into tableName, or apperrors.ErrNotFound.
func (r *runRepository) FindLoadedDigest(ctx context.Context, tableName, sha256 string) (*models.Run, error) {
	if sha256 == "" {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + runColumns + `
		FROM ingest_runs
		WHERE table_name = ? AND artifact_sha256 = ? AND loaded = 1
		ORDER BY started_at DESC
		LIMIT 1`

	return scanRunRow(r.db.QueryRowContext(ctx, r.db.Rebind(query), tableName, sha256))
}

// ============================================================================
// Stage Operations
// ============================================================================

// SaveStage inserts or replaces the record for one stage of a run.
func (r *runRepository) SaveStage(ctx context.Context, runID uuid.UUID, stage *models.StageRecord) error {
	query := `
		INSERT INTO ingest_stages (
			run_id, name, stage_order, status, message, error_message,
			started_at, completed_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, name) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			error_message = excluded.error_message,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			duration_ms = excluded.duration_ms`

	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		runID.String(), string(stage.Name), stage.Order, string(stage.Status),
		stage.Message, stage.ErrorMessage,
		toMillis(stage.StartedAt), toMillis(stage.CompletedAt), stage.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to save stage %s: %w", stage.Name, err)
	}

	return nil
}

func (r *runRepository) GetStagesByRun(ctx context.Context, runID uuid.UUID) ([]models.StageRecord, error) {
	query := `
		SELECT name, stage_order, status, message, error_message,
		       started_at, completed_at, duration_ms
		FROM ingest_stages
		WHERE run_id = ?
		ORDER BY stage_order`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer rows.Close()

	var stages []models.StageRecord
	for rows.Next() {
		var (
			s                      models.StageRecord
			name, status           string
			errMsg                 sql.NullString
			startedAt, completedAt sql.NullInt64
			durationMs             sql.NullInt64
		)
		if err := rows.Scan(&name, &s.Order, &status, &s.Message, &errMsg,
			&startedAt, &completedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		s.Name = models.StageName(name)
		s.Status = models.StageStatus(status)
		s.ErrorMessage = nullString(errMsg)
		s.StartedAt = fromMillis(startedAt)
		s.CompletedAt = fromMillis(completedAt)
		if durationMs.Valid {
			d := int(durationMs.Int64)
			s.DurationMs = &d
		}
		stages = append(stages, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stages: %w", err)
	}

	return stages, nil
}

// ============================================================================
// Helpers
// ============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRow(row rowScanner) (*models.Run, error) {
	var (
		run                    models.Run
		id, state              string
		currentStage, errMsg   sql.NullString
		schemaJSON             sql.NullString
		startedAt, completedAt sql.NullInt64
	)

	err := row.Scan(
		&id, &run.SourceURL, &run.TableName, &run.LocalPath, &run.HDFSPath,
		&state, &currentStage, &errMsg,
		&run.ArtifactBytes, &run.ArtifactSHA256, &schemaJSON,
		&startedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	run.State = models.PipelineState(state)
	if !models.IsValidPipelineState(run.State) {
		return nil, fmt.Errorf("run %s has unknown state %q", id, state)
	}
	run.CurrentStage = nullString(currentStage)
	run.ErrorMessage = nullString(errMsg)
	if t := fromMillis(startedAt); t != nil {
		run.StartedAt = *t
	}
	run.CompletedAt = fromMillis(completedAt)

	if schemaJSON.Valid && schemaJSON.String != "" {
		var schema models.TableSchema
		if err := json.Unmarshal([]byte(schemaJSON.String), &schema); err != nil {
			return nil, fmt.Errorf("failed to decode schema: %w", err)
		}
		run.Schema = &schema
	}

	return &run, nil
}

func marshalSchema(schema *models.TableSchema) (*string, error) {
	if schema == nil {
		return nil, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	s := string(data)
	return &s, nil
}

// Timestamps are stored as unix milliseconds so both backends share one schema.
func toMillis(t *time.Time) *int64 {
	if t == nil || t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
