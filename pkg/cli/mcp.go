package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/mcp"
	"github.com/ekaya-inc/ekaya-ingest/pkg/probe"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve check, schema and history as MCP tools over stdio",
		Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
read-only operations: health, check_source, infer_schema and list_runs.
The pipeline itself is not exposed. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, withLedger(false))
			if err != nil {
				return err
			}
			defer a.Close()

			srv := newMCPServer(ctx, a)
			return srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// newMCPServer registers the tools against whatever a could connect to.
// A container that cannot be reached only disables infer_schema.
func newMCPServer(ctx context.Context, a *app) *mcp.Server {
	deps := mcp.ToolDeps{
		Config:  a.cfg,
		Checker: probe.NewChecker(a.cfg.Probe, a.logger),
	}

	if a.exec == nil {
		if err := withExecutor()(ctx, a); err != nil {
			a.logger.Warn("Container unavailable; infer_schema disabled", zap.Error(err))
		}
	}
	if a.exec != nil {
		deps.Schema = services.NewSchemaService(a.exec, a.logger)
	}
	if a.runRepo != nil {
		deps.Runs = a.runRepo
	}

	srv := mcp.NewServer("ekaya-ingest", a.cfg.Version, a.logger)
	mcp.RegisterTools(srv, deps)
	return srv
}
