// Package cli implements the ingest command line.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
)

// ErrPipelineAborted is returned by `ingest run` when strict_exit is set and
// the run did not finish.
var ErrPipelineAborted = errors.New("pipeline aborted")

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
	version    string
}

// NewRootCommand builds the ingest command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	rootCmd := &cobra.Command{
		Use:     "ingest",
		Short:   "Load a remote CSV file into a Hive table",
		Version: version,
		Long: `Downloads a CSV file into a running Hadoop/Hive container, stages it in HDFS,
infers a table schema, creates and loads the Hive table, and reads a few rows
back to confirm the load.`,
		Example: `  # Run the full pipeline with config.yaml from the current directory
  $ ingest run

  # Check only that the source URL answers
  $ ingest check

  # Preview the schema of a local file as YAML
  $ ingest schema --file ./population_data.csv --format yaml

  # Show the last 10 runs recorded in the ledger
  $ ingest history --limit 10

  # Serve check, schema and history to an MCP client over stdio
  $ ingest mcp`,
		SilenceUsage: true,
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the YAML config file")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newSchemaCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newMCPCmd(opts))

	return rootCmd
}

// Execute runs the root command.
func Execute(version string) error {
	return NewRootCommand(version).Execute()
}
