package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/executor"
	"github.com/ekaya-inc/ekaya-ingest/pkg/hive"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services/dag"
)

// HiveService submits HiveQL through beeline inside the container.
type HiveService struct {
	exec   executor.Executor
	cfg    config.HiveConfig
	logger *zap.Logger
}

var (
	_ dag.CreateTableMethods = (*HiveService)(nil)
	_ dag.LoadMethods        = (*HiveService)(nil)
	_ dag.ValidateMethods    = (*HiveService)(nil)
)

// NewHiveService creates a HiveService for the configured HiveServer2.
func NewHiveService(exec executor.Executor, cfg config.HiveConfig, logger *zap.Logger) *HiveService {
	if cfg.Beeline == "" {
		cfg.Beeline = "beeline"
	}
	return &HiveService{
		exec:   exec,
		cfg:    cfg,
		logger: logger.Named("hive"),
	}
}

// beelineCommand builds `beeline -u <jdbc> [-n user] [-p password] [extra...] -e <stmt>`.
func (s *HiveService) beelineCommand(stmt string, extra ...string) []string {
	cmd := []string{s.cfg.Beeline, "-u", s.cfg.JDBCURL}
	if s.cfg.User != "" {
		cmd = append(cmd, "-n", s.cfg.User)
	}
	if s.cfg.Password != "" {
		cmd = append(cmd, "-p", s.cfg.Password)
	}
	cmd = append(cmd, extra...)
	return append(cmd, "-e", stmt)
}

// Execute submits one statement and returns beeline's stdout.
func (s *HiveService) Execute(ctx context.Context, stmt string, extra ...string) ([]byte, error) {
	s.logger.Debug("Submitting statement",
		zap.String("jdbc_url", logging.SanitizeConnectionString(s.cfg.JDBCURL)),
		zap.String("sql", logging.SanitizeStatement(stmt)))

	res, err := executor.Run(ctx, s.exec, s.beelineCommand(stmt, extra...))
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

// CreateTable creates table if it does not already exist.
func (s *HiveService) CreateTable(ctx context.Context, table string, schema *models.TableSchema) error {
	stmt, err := hive.CreateTableStatement(table, schema, hive.CreateTableOptions{SkipHeader: s.cfg.SkipHeader})
	if err != nil {
		return err
	}
	if _, err := s.Execute(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// LoadData moves hdfsPath into table.
func (s *HiveService) LoadData(ctx context.Context, hdfsPath, table string, overwrite bool) error {
	stmt, err := hive.LoadDataStatement(hdfsPath, table, overwrite)
	if err != nil {
		return err
	}
	if _, err := s.Execute(ctx, stmt); err != nil {
		return fmt.Errorf("load %s: %w", table, err)
	}
	return nil
}

// Validate selects up to limit rows of columns from table.
func (s *HiveService) Validate(ctx context.Context, table string, columns []string, limit int) (*models.ValidationResult, error) {
	stmt, err := hive.SelectStatement(table, columns, limit)
	if err != nil {
		return nil, err
	}

	out, err := s.Execute(ctx, stmt, "--outputformat=csv2", "--showHeader=true", "--silent=true")
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}

	result, err := hive.ParseCSV2(out)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	return result, nil
}
