package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/database"
	"github.com/ekaya-inc/ekaya-ingest/pkg/executor"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/repositories"
)

// Constructors replaced in tests.
var (
	newExecutor = executor.New
	newLogger   = logging.NewLogger
)

// app holds the dependencies a command needs. Fields a command did not ask
// for stay nil.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	exec    executor.Executor
	db      *database.DB
	runRepo repositories.RunRepository
}

type appOption func(ctx context.Context, a *app) error

// withExecutor connects to the target container.
func withExecutor() appOption {
	return func(ctx context.Context, a *app) error {
		exec, err := newExecutor(a.cfg.Container, a.logger)
		if err != nil {
			return fmt.Errorf("container executor: %w", err)
		}
		a.exec = exec
		return nil
	}
}

// withLedger opens the run ledger when it is enabled. A ledger that cannot be
// opened is logged and the command continues without it, unless required.
func withLedger(required bool) appOption {
	return func(ctx context.Context, a *app) error {
		if !a.cfg.LedgerEnabled() {
			if required {
				return fmt.Errorf("run ledger is disabled (ledger.driver=none)")
			}
			return nil
		}

		db, err := database.Open(ctx, a.cfg.Ledger.Driver, a.cfg.Ledger.DSN, a.logger)
		if err != nil {
			if required {
				return fmt.Errorf("open ledger: %w", err)
			}
			a.logger.Warn("Run ledger unavailable; continuing without it",
				zap.String("driver", a.cfg.Ledger.Driver),
				zap.String("dsn", logging.SanitizeConnectionString(a.cfg.Ledger.DSN)),
				zap.Error(err))
			return nil
		}
		a.db = db
		a.runRepo = repositories.NewRunRepository(db)
		return nil
	}
}

// newApp loads configuration, builds the logger and applies opts.
func newApp(ctx context.Context, o *rootOptions, opts ...appOption) (*app, error) {
	cfg, err := config.Load(o.configPath, o.version)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	for _, opt := range opts {
		if err := opt(ctx, a); err != nil {
			a.Close()
			return nil, err
		}
	}

	logger.Debug("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("container", cfg.Container.Name),
		zap.String("mode", cfg.Container.Mode),
		zap.String("jdbc_url", logging.SanitizeConnectionString(cfg.Hive.JDBCURL)),
		zap.String("table", cfg.Hive.Table),
		zap.String("ledger", cfg.Ledger.Driver))

	return a, nil
}

// Close releases the executor and ledger connections.
func (a *app) Close() {
	if a.exec != nil {
		if err := a.exec.Close(); err != nil {
			a.logger.Debug("Failed to close executor", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Debug("Failed to close ledger", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
