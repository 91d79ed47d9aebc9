package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/probe"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the source URL is reachable",
		Long: `Sends a HEAD request to the configured source URL and reports whether it
answered with a 2xx status. Nothing runs inside the container.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			checker := probe.NewChecker(a.cfg.Probe, a.logger)
			url := a.cfg.Source.URL
			if err := checker.Check(cmd.Context(), url); err != nil {
				a.logger.Debug("Probe failed", zap.Error(err))
				printFailure(cmd.OutOrStdout(), "URL is not accessible")
				return fmt.Errorf("%s: %w", logging.SanitizeURL(url), err)
			}

			printSuccess(cmd.OutOrStdout(), "URL is accessible: %s", logging.SanitizeURL(url))
			return nil
		},
	}
}
