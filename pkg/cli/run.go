package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-ingest/pkg/probe"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full ingestion pipeline",
		Long: `Runs the seven pipeline stages in order: availability, fetch, upload,
infer_schema, create_table, load and validate. The first failing stage aborts
the run and the remaining stages are skipped.

The command exits 0 even when the run aborts unless strict_exit is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, cmd, opts)
		},
	}
}

func runPipeline(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	a, err := newApp(ctx, opts, withExecutor(), withLedger(false))
	if err != nil {
		return err
	}
	defer a.Close()

	pipeline := services.NewPipelineService(a.cfg, a.runRepo, a.logger)

	hdfsSvc := services.NewHDFSService(a.exec, a.cfg.HDFS.Binary, a.logger)
	hiveSvc := services.NewHiveService(a.exec, a.cfg.Hive, a.logger)

	pipeline.SetAvailabilityMethods(probe.NewChecker(a.cfg.Probe, a.logger))
	pipeline.SetFetchMethods(services.NewFetchService(a.exec, a.cfg.Fetch.Tool, a.logger))
	pipeline.SetHDFSMethods(hdfsSvc, hdfsSvc)
	pipeline.SetInferSchemaMethods(services.NewSchemaService(a.exec, a.logger))
	pipeline.SetHiveMethods(hiveSvc, hiveSvc, hiveSvc)

	run, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	if run.IsDone() {
		printValidation(cmd.OutOrStdout(), run.Validation)
		return nil
	}

	if run.IsAborted() && a.cfg.StrictExit {
		if failed := run.FailedStage(); failed != nil {
			return fmt.Errorf("%w at stage %s", ErrPipelineAborted, failed.Name)
		}
		return ErrPipelineAborted
	}
	return nil
}
