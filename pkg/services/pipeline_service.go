package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/repositories"
	"github.com/ekaya-inc/ekaya-ingest/pkg/retry"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services/dag"
)

// PipelineService runs the seven ingestion stages in order.
// A failed stage aborts the run; the remaining stages are recorded as skipped.
type PipelineService interface {
	// Run executes one pipeline run. Pipeline failures are reported through
	// the returned run's State; the error is reserved for wiring mistakes.
	Run(ctx context.Context) (*models.Run, error)
}

type pipelineService struct {
	cfg     *config.Config
	runRepo repositories.RunRepository // nil when the ledger is disabled

	// Adapted service methods for dag package
	availabilityMethods dag.AvailabilityMethods
	fetchMethods        dag.FetchMethods
	uploadMethods       dag.UploadMethods
	inferSchemaMethods  dag.InferSchemaMethods
	createTableMethods  dag.CreateTableMethods
	loadMethods         dag.LoadMethods
	stagedFileMethods   dag.StagedFileMethods
	validateMethods     dag.ValidateMethods

	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewPipelineService creates a pipeline. Stage methods are supplied with the
// Set*Methods setters; runRepo may be nil.
func NewPipelineService(cfg *config.Config, runRepo repositories.RunRepository, logger *zap.Logger) *pipelineService {
	return &pipelineService{
		cfg:      cfg,
		runRepo:  runRepo,
		retryCfg: retry.WithMaxRetries(cfg.Retry.MaxRetries),
		logger:   logger.Named("pipeline"),
	}
}

var _ PipelineService = (*pipelineService)(nil)

// SetAvailabilityMethods sets the reachability probe.
func (s *pipelineService) SetAvailabilityMethods(methods dag.AvailabilityMethods) {
	s.availabilityMethods = methods
}

// SetFetchMethods sets the downloader.
func (s *pipelineService) SetFetchMethods(methods dag.FetchMethods) {
	s.fetchMethods = methods
}

// SetHDFSMethods sets the HDFS client used by the upload and load stages.
func (s *pipelineService) SetHDFSMethods(upload dag.UploadMethods, staged dag.StagedFileMethods) {
	s.uploadMethods = upload
	s.stagedFileMethods = staged
}

// SetInferSchemaMethods sets the schema inferencer.
func (s *pipelineService) SetInferSchemaMethods(methods dag.InferSchemaMethods) {
	s.inferSchemaMethods = methods
}

// SetHiveMethods sets the Hive client used by the create, load and validate stages.
func (s *pipelineService) SetHiveMethods(create dag.CreateTableMethods, load dag.LoadMethods, validate dag.ValidateMethods) {
	s.createTableMethods = create
	s.loadMethods = load
	s.validateMethods = validate
}

// SetRetryConfig replaces the per-stage retry policy.
func (s *pipelineService) SetRetryConfig(cfg *retry.Config) {
	s.retryCfg = cfg
}

// Run executes every stage in order, stopping at the first failure.
func (s *pipelineService) Run(ctx context.Context) (*models.Run, error) {
	run := s.newRun()
	s.createRun(ctx, run)

	s.logger.Debug("Starting pipeline run",
		zap.String("run_id", run.ID.String()),
		zap.String("url", logging.SanitizeURL(run.SourceURL)),
		zap.String("table", run.TableName))

	for _, stageName := range models.AllStages() {
		// Check for cancellation
		if err := ctx.Err(); err != nil {
			s.markRunFailed(run, stageName, "Pipeline cancelled", err)
			return run, nil
		}

		node, err := s.getNodeExecutor(stageName)
		if err != nil {
			s.markRunFailed(run, stageName, "Pipeline misconfigured", err)
			return run, err
		}

		if err := s.executeNode(ctx, run, node); err != nil {
			s.markRunFailed(run, stageName, node.FailureMessage(), err)
			return run, nil
		}
	}

	s.markRunCompleted(run)
	return run, nil
}

// newRun creates the run record with every stage pending.
func (s *pipelineService) newRun() *models.Run {
	allStages := models.AllStages()
	stages := make([]models.StageRecord, len(allStages))
	for i, name := range allStages {
		stages[i] = models.StageRecord{
			Name:   name,
			Order:  models.StageOrder[name],
			Status: models.StageStatusPending,
		}
	}

	return &models.Run{
		ID:        uuid.New(),
		SourceURL: s.cfg.Source.URL,
		TableName: s.cfg.Hive.Table,
		LocalPath: s.cfg.Source.LocalPath,
		HDFSPath:  s.cfg.HDFSFilePath(),
		State:     models.PipelineStateChecking,
		StartedAt: time.Now(),
		Stages:    stages,
	}
}

// executeNode runs a single stage with retry logic and records its outcome.
func (s *pipelineService) executeNode(ctx context.Context, run *models.Run, node dag.NodeExecutor) error {
	name := node.Name()
	record := run.Stage(name)
	currentStage := string(name)

	s.logger.Debug("Executing stage",
		zap.String("run_id", run.ID.String()),
		zap.String("stage", currentStage))

	startedAt := time.Now()
	run.State = models.StageState[name]
	run.CurrentStage = &currentStage
	record.Status = models.StageStatusRunning
	record.StartedAt = &startedAt
	s.saveProgress(ctx, run, record)

	var message string
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		var execErr error
		message, execErr = node.Execute(ctx, run)
		return execErr
	})

	completedAt := time.Now()
	durationMs := int(completedAt.Sub(startedAt).Milliseconds())
	record.CompletedAt = &completedAt
	record.DurationMs = &durationMs

	switch {
	case errors.Is(err, dag.ErrSkipped):
		record.Status = models.StageStatusSkipped
		record.Message = err.Error()
		s.saveProgress(ctx, run, record)
		return nil

	case err != nil:
		errMsg := err.Error()
		record.Status = models.StageStatusFailed
		record.ErrorMessage = &errMsg
		if retry.IsRetryable(err) {
			s.logger.Debug("Stage failed after retries",
				zap.String("stage", currentStage),
				zap.Error(err))
		}
		return err
	}

	record.Status = models.StageStatusCompleted
	record.Message = message
	s.saveProgress(ctx, run, record)

	s.logger.Debug("Stage completed",
		zap.String("stage", currentStage),
		zap.Int("duration_ms", durationMs))
	return nil
}

// getNodeExecutor returns the node for a stage.
func (s *pipelineService) getNodeExecutor(stageName models.StageName) (dag.NodeExecutor, error) {
	switch stageName {
	case models.StageAvailability:
		if s.availabilityMethods == nil {
			return nil, fmt.Errorf("availability methods not set")
		}
		return dag.NewAvailabilityNode(s.availabilityMethods, s.logger), nil

	case models.StageFetch:
		if s.fetchMethods == nil {
			return nil, fmt.Errorf("fetch methods not set")
		}
		return dag.NewFetchNode(s.fetchMethods, s.logger), nil

	case models.StageUpload:
		if s.uploadMethods == nil {
			return nil, fmt.Errorf("upload methods not set")
		}
		return dag.NewUploadNode(s.uploadMethods, s.cfg.HDFS.Overwrite, s.logger), nil

	case models.StageInferSchema:
		if s.inferSchemaMethods == nil {
			return nil, fmt.Errorf("infer schema methods not set")
		}
		return dag.NewInferSchemaNode(s.inferSchemaMethods, s.logger), nil

	case models.StageCreateTable:
		if s.createTableMethods == nil {
			return nil, fmt.Errorf("create table methods not set")
		}
		return dag.NewCreateTableNode(s.createTableMethods, s.logger), nil

	case models.StageLoad:
		if s.loadMethods == nil || s.stagedFileMethods == nil {
			return nil, fmt.Errorf("load methods not set")
		}
		var ledger dag.LoadLedger
		if s.runRepo != nil {
			ledger = s.runRepo
		}
		return dag.NewLoadNode(s.loadMethods, s.stagedFileMethods, ledger,
			s.cfg.Load.Overwrite, s.cfg.Load.SkipDuplicates, s.logger), nil

	case models.StageValidate:
		if s.validateMethods == nil {
			return nil, fmt.Errorf("validate methods not set")
		}
		return dag.NewValidateNode(s.validateMethods, s.cfg.Validate.Columns, s.cfg.Validate.Limit, s.logger), nil

	default:
		return nil, fmt.Errorf("unknown stage: %s", stageName)
	}
}

// markRunFailed aborts the run at stageName, skips every stage that has not
// run, and logs failureMessage as the single line describing the failure.
func (s *pipelineService) markRunFailed(run *models.Run, stageName models.StageName, failureMessage string, cause error) {
	if run.State.IsTerminal() {
		return
	}

	errMsg := fmt.Sprintf("%s: %v", failureMessage, cause)
	now := time.Now()

	run.State = models.PipelineStateAborted
	run.ErrorMessage = &errMsg
	run.CompletedAt = &now

	for i := range run.Stages {
		st := &run.Stages[i]
		switch {
		case st.Name == stageName && st.Status != models.StageStatusFailed:
			st.Status = models.StageStatusFailed
			causeMsg := cause.Error()
			st.ErrorMessage = &causeMsg
		case st.Status == models.StageStatusPending:
			st.Status = models.StageStatusSkipped
		}
	}

	s.persistRun(run)

	s.logger.Error(failureMessage,
		zap.String("run_id", run.ID.String()),
		zap.String("stage", string(stageName)),
		zap.Error(cause))
}

// markRunCompleted marks the run as done.
func (s *pipelineService) markRunCompleted(run *models.Run) {
	now := time.Now()
	run.State = models.PipelineStateDone
	run.CurrentStage = nil
	run.CompletedAt = &now

	s.persistRun(run)

	s.logger.Info("Pipeline completed successfully",
		zap.String("run_id", run.ID.String()),
		zap.String("table", run.TableName),
		zap.Duration("elapsed", now.Sub(run.StartedAt)))
}

// ============================================================================
// Ledger bookkeeping. Failures are logged and never fail the run.
// ============================================================================

func (s *pipelineService) createRun(ctx context.Context, run *models.Run) {
	if s.runRepo == nil {
		return
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		s.logger.Warn("Failed to record run in ledger", zap.Error(err))
		return
	}
	for i := range run.Stages {
		if err := s.runRepo.SaveStage(ctx, run.ID, &run.Stages[i]); err != nil {
			s.logger.Warn("Failed to record stage in ledger", zap.Error(err))
			return
		}
	}
}

func (s *pipelineService) saveProgress(ctx context.Context, run *models.Run, record *models.StageRecord) {
	if s.runRepo == nil {
		return
	}
	if err := s.runRepo.Update(ctx, run); err != nil {
		s.logger.Warn("Failed to update run in ledger", zap.Error(err))
	}
	if err := s.runRepo.SaveStage(ctx, run.ID, record); err != nil {
		s.logger.Warn("Failed to update stage in ledger", zap.Error(err))
	}
}

// persistRun writes the final run and stage states. It uses a fresh context
// so a cancelled run is still recorded.
func (s *pipelineService) persistRun(run *models.Run) {
	if s.runRepo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.runRepo.Update(ctx, run); err != nil {
		s.logger.Warn("Failed to update run in ledger", zap.Error(err))
	}
	for i := range run.Stages {
		if err := s.runRepo.SaveStage(ctx, run.ID, &run.Stages[i]); err != nil {
			s.logger.Warn("Failed to update stage in ledger", zap.Error(err))
		}
	}
}
