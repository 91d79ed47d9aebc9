package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/hive"
	"github.com/ekaya-inc/ekaya-ingest/pkg/logging"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/services/dag"
)

// DefaultRunLimit is the number of runs list_runs returns when no limit is given.
const DefaultRunLimit = 20

// SourceChecker probes a source URL.
type SourceChecker interface {
	Check(ctx context.Context, url string) error
}

// RunLister reads recent runs from the ledger.
type RunLister interface {
	List(ctx context.Context, limit int) ([]*models.Run, error)
}

// ToolDeps holds what the tools read from. Schema and Runs may be nil when no
// container or ledger is available; the matching tools then report an error.
type ToolDeps struct {
	Config  *config.Config
	Checker SourceChecker
	Schema  dag.InferSchemaMethods
	Runs    RunLister
}

// RegisterTools adds every ingest tool to s.
func RegisterTools(s *Server, deps ToolDeps) {
	registerHealthTool(s, deps.Config.Version)
	registerCheckSourceTool(s, deps)
	registerInferSchemaTool(s, deps)
	registerListRunsTool(s, deps)
}

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func registerHealthTool(s *Server, version string) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(healthResult{Status: "ok", Version: version})
	})
}

type checkSourceResult struct {
	URL        string `json:"url"`
	Accessible bool   `json:"accessible"`
	Error      string `json:"error,omitempty"`
}

func registerCheckSourceTool(s *Server, deps ToolDeps) {
	tool := mcp.NewTool(
		"check_source",
		mcp.WithDescription("Sends a HEAD request to the source URL and reports whether it answered with a 2xx status"),
		mcp.WithString(
			"url",
			mcp.Description("URL to check; defaults to the configured source.url"),
		),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url := req.GetString("url", deps.Config.Source.URL)
		result := checkSourceResult{URL: logging.SanitizeURL(url), Accessible: true}

		if err := deps.Checker.Check(ctx, url); err != nil {
			s.logger.Debug("Source check failed", zap.String("url", result.URL), zap.Error(err))
			result.Accessible = false
			result.Error = err.Error()
		}
		return jsonResult(result)
	})
}

type inferSchemaResult struct {
	Path        string              `json:"path"`
	Table       string              `json:"table"`
	Columns     []models.ColumnSpec `json:"columns"`
	DDL         string              `json:"ddl"`
	RowsRead    int                 `json:"rows_read"`
	RowsSkipped int                 `json:"rows_skipped,omitempty"`
}

func registerInferSchemaTool(s *Server, deps ToolDeps) {
	tool := mcp.NewTool(
		"infer_schema",
		mcp.WithDescription("Infers the Hive schema of a CSV file inside the container and returns the columns and CREATE TABLE statement"),
		mcp.WithString(
			"path",
			mcp.Description("Container-local CSV path; defaults to the configured source.local_path"),
		),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Schema == nil {
			return mcp.NewToolResultError("no container executor is configured"), nil
		}

		path := req.GetString("path", deps.Config.Source.LocalPath)
		res, err := deps.Schema.InferSchema(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("infer schema of %s: %v", path, err)), nil
		}

		table := deps.Config.Hive.Table
		ddl, err := hive.CreateTableStatement(table, res.Schema, hive.CreateTableOptions{SkipHeader: deps.Config.Hive.SkipHeader})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(inferSchemaResult{
			Path:        path,
			Table:       table,
			Columns:     res.Schema.Columns,
			DDL:         ddl,
			RowsRead:    res.RowsRead,
			RowsSkipped: res.RowsSkipped,
		})
	})
}

type runSummary struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Table       string     `json:"table"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Stage       string     `json:"stage,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func registerListRunsTool(s *Server, deps ToolDeps) {
	tool := mcp.NewTool(
		"list_runs",
		mcp.WithDescription("Lists recent pipeline runs from the run ledger, newest first"),
		mcp.WithNumber(
			"limit",
			mcp.Description(fmt.Sprintf("Maximum number of runs to return (default %d)", DefaultRunLimit)),
		),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Runs == nil {
			return mcp.NewToolResultError("run ledger is disabled (ledger.driver=none)"), nil
		}

		limit := req.GetInt("limit", DefaultRunLimit)
		if limit <= 0 {
			return mcp.NewToolResultError(fmt.Sprintf("limit must be positive, got %d", limit)), nil
		}

		runs, err := deps.Runs.List(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}

		summaries := make([]runSummary, 0, len(runs))
		for _, r := range runs {
			sum := runSummary{
				ID:          r.ID.String(),
				State:       string(r.State),
				Table:       r.TableName,
				StartedAt:   r.StartedAt,
				CompletedAt: r.CompletedAt,
			}
			if r.CurrentStage != nil {
				sum.Stage = *r.CurrentStage
			}
			if r.ErrorMessage != nil {
				sum.Error = *r.ErrorMessage
			}
			summaries = append(summaries, sum)
		}
		return jsonResult(summaries)
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
