package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-ingest/pkg/hive"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/schema"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services"
)

// Output formats of `ingest schema`.
const (
	formatDDL  = "ddl"
	formatYAML = "yaml"
)

func newSchemaCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Infer and print the table schema",
		Long: `Infers the Hive schema of the source file and prints it. Without --file the
container-local copy at source.local_path is read; with --file a file on this
host is read instead and no container is needed.`,
		Example: `  $ ingest schema
  $ ingest schema --file ./population_data.csv --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatDDL && format != formatYAML {
				return fmt.Errorf("unsupported format %q (want %s or %s)", format, formatDDL, formatYAML)
			}

			var appOpts []appOption
			if file == "" {
				appOpts = append(appOpts, withExecutor())
			}
			a, err := newApp(cmd.Context(), opts, appOpts...)
			if err != nil {
				return err
			}
			defer a.Close()

			inferred, err := inferSchema(cmd.Context(), a, file)
			if err != nil {
				return err
			}
			return printSchema(cmd.OutOrStdout(), a.cfg.Hive.Table, inferred, format, a.cfg.Hive.SkipHeader)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read a CSV file from this host instead of the container")
	cmd.Flags().StringVar(&format, "format", formatDDL, "output format: ddl or yaml")
	return cmd
}

func inferSchema(ctx context.Context, a *app, file string) (*models.TableSchema, error) {
	if file == "" {
		res, err := services.NewSchemaService(a.exec, a.logger).InferSchema(ctx, a.cfg.Source.LocalPath)
		if err != nil {
			return nil, err
		}
		return res.Schema, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := schema.Infer(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	if res.RowsSkipped > 0 {
		a.logger.Warn("Skipped malformed rows",
			zap.String("file", file),
			zap.Int("rows_skipped", res.RowsSkipped))
	}
	return res.Schema, nil
}

func printSchema(w io.Writer, table string, s *models.TableSchema, format string, skipHeader bool) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}

	stmt, err := hive.CreateTableStatement(table, s, hive.CreateTableOptions{SkipHeader: skipHeader})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, stmt)
	return err
}
