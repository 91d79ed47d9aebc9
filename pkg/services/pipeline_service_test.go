package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/database"
	"github.com/ekaya-inc/ekaya-ingest/pkg/executor"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/probe"
	"github.com/ekaya-inc/ekaya-ingest/pkg/repositories"
	"github.com/ekaya-inc/ekaya-ingest/pkg/retry"
	"github.com/ekaya-inc/ekaya-ingest/pkg/testhelpers"
)

const validationOutput = `region,division,state,name
0,0,0,United States
1,0,0,Northeast Region
2,0,0,Midwest Region
3,0,0,South Region
4,0,0,West Region
`

func pipelineConfig(sourceURL string) *config.Config {
	return &config.Config{
		Source: config.SourceConfig{
			URL:       sourceURL,
			Filename:  "population_data.csv",
			LocalPath: "/opt/sample/population_data.csv",
		},
		Container: config.ContainerConfig{Name: "docker-hive-hive-server-1", Mode: "api"},
		HDFS:      config.HDFSConfig{Dir: "/user/hadoop/population_data/", Binary: "hdfs"},
		Hive:      config.HiveConfig{JDBCURL: testJDBC, Beeline: "beeline", Table: "population_data", SkipHeader: true},
		Probe:     config.ProbeConfig{Timeout: 2 * time.Second},
		Fetch:     config.FetchConfig{Tool: "wget"},
		Load:      config.LoadConfig{SkipDuplicates: true},
		Validate:  config.ValidateConfig{Columns: []string{"REGION", "DIVISION", "STATE", "NAME"}, Limit: 5},
		Ledger:    config.LedgerConfig{Driver: "none"},
	}
}

// healthyContainer answers the commands of a successful run.
func healthyContainer() *testhelpers.FakeExecutor {
	return testhelpers.NewFakeExecutor(
		testhelpers.FakeResponse{Match: "stat", Stdout: "4096\n"},
		testhelpers.FakeResponse{Match: "cat", Stdout: censusCSV},
		testhelpers.FakeResponse{Match: "beeline -u " + testJDBC + " --outputformat=csv2", Stdout: validationOutput},
	)
}

func sourceServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// wirePipeline builds a pipeline the way the run command does.
func wirePipeline(cfg *config.Config, exec *testhelpers.FakeExecutor, runRepo repositories.RunRepository, logger *zap.Logger) *pipelineService {
	svc := NewPipelineService(cfg, runRepo, logger)
	hdfs := NewHDFSService(exec, cfg.HDFS.Binary, logger)
	hive := NewHiveService(exec, cfg.Hive, logger)

	svc.SetAvailabilityMethods(probe.NewChecker(cfg.Probe, logger))
	svc.SetFetchMethods(NewFetchService(exec, cfg.Fetch.Tool, logger))
	svc.SetHDFSMethods(hdfs, hdfs)
	svc.SetInferSchemaMethods(NewSchemaService(exec, logger))
	svc.SetHiveMethods(hive, hive, hive)
	svc.SetRetryConfig(retry.NoRetry())
	return svc
}

func sqliteRunRepo(t *testing.T) repositories.RunRepository {
	t.Helper()
	db, err := database.Open(context.Background(), database.DriverSQLite,
		filepath.Join(t.TempDir(), "ledger.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repositories.NewRunRepository(db)
}

func stageStatuses(run *models.Run) map[models.StageName]models.StageStatus {
	out := make(map[models.StageName]models.StageStatus, len(run.Stages))
	for _, st := range run.Stages {
		out[st.Name] = st.Status
	}
	return out
}

func TestPipeline_HappyPath(t *testing.T) {
	srv := sourceServer(t, http.StatusOK)
	exec := healthyContainer()
	svc := wirePipeline(pipelineConfig(srv.URL+"/data.csv"), exec, nil, zap.NewNop())

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.PipelineStateDone, run.State)
	assert.Nil(t, run.ErrorMessage)
	assert.Equal(t, 7, run.CompletedStageCount())
	assert.Equal(t, int64(4096), run.ArtifactBytes)
	assert.Len(t, run.ArtifactSHA256, 64)

	assert.Equal(t, []string{
		"mkdir", "wget", "stat",
		"hdfs", "hdfs",
		"cat",
		"beeline",
		"hdfs", "beeline",
		"beeline",
	}, exec.Programs())

	puts := exec.CallsTo("hdfs dfs -put")
	require.Len(t, puts, 1)
	assert.Equal(t, []string{"hdfs", "dfs", "-put", "/opt/sample/population_data.csv", "/user/hadoop/population_data/population_data.csv"}, puts[0])

	beeline := exec.CallsTo("beeline")
	require.Len(t, beeline, 3)
	ddl := beeline[0][len(beeline[0])-1]
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS population_data (")
	assert.Contains(t, ddl, "`REGION` INT")
	assert.Contains(t, ddl, "`NAME` STRING")
	assert.Contains(t, ddl, "FIELDS TERMINATED BY ','")
	assert.Equal(t,
		"LOAD DATA INPATH '/user/hadoop/population_data/population_data.csv' INTO TABLE population_data;",
		beeline[1][len(beeline[1])-1])
	assert.Equal(t, "SELECT REGION, DIVISION, STATE, NAME FROM population_data LIMIT 5;", beeline[2][len(beeline[2])-1])

	require.NotNil(t, run.Validation)
	assert.Len(t, run.Validation.Rows, 5)
	assert.Equal(t, []string{"region", "division", "state", "name"}, run.Validation.Header)
}

func TestPipeline_UnreachableURLLogsOneLine(t *testing.T) {
	srv := sourceServer(t, http.StatusNotFound)
	exec := healthyContainer()

	core, logs := observer.New(zapcore.InfoLevel)
	svc := wirePipeline(pipelineConfig(srv.URL+"/missing.csv"), exec, nil, zap.New(core))

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.PipelineStateAborted, run.State)
	assert.Zero(t, exec.CallCount(), "no container command may run when the source is unreachable")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "URL is not accessible", entries[0].Message)

	statuses := stageStatuses(run)
	assert.Equal(t, models.StageStatusFailed, statuses[models.StageAvailability])
	for _, name := range models.AllStages()[1:] {
		assert.Equal(t, models.StageStatusSkipped, statuses[name], "stage %s", name)
	}
}

func TestPipeline_ClosedPortIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/data.csv"
	srv.Close()

	exec := healthyContainer()
	svc := wirePipeline(pipelineConfig(url), exec, nil, zap.NewNop())

	run, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStateAborted, run.State)
	assert.Zero(t, exec.CallCount())
	require.NotNil(t, run.ErrorMessage)
	assert.True(t, strings.HasPrefix(*run.ErrorMessage, "URL is not accessible"))
}

func TestPipeline_AbortsOnStageFailure(t *testing.T) {
	tests := []struct {
		name        string
		response    testhelpers.FakeResponse
		failedStage models.StageName
		logMessage  string
	}{
		{
			name:        "download fails",
			response:    testhelpers.FakeResponse{Match: "wget", Stderr: "ERROR 403: Forbidden.", ExitCode: 8},
			failedStage: models.StageFetch,
			logMessage:  "Failed to download data",
		},
		{
			name:        "put fails",
			response:    testhelpers.FakeResponse{Match: "hdfs dfs -put", Stderr: "put: File exists", ExitCode: 1},
			failedStage: models.StageUpload,
			logMessage:  "Failed to upload data to HDFS",
		},
		{
			name:        "create table fails",
			response:    testhelpers.FakeResponse{Match: "beeline -u " + testJDBC + " -e CREATE", Stdout: "FAILED: ParseException", ExitCode: 2},
			failedStage: models.StageCreateTable,
			logMessage:  "Failed to create Hive table",
		},
		{
			name:        "staged file already consumed",
			response:    testhelpers.FakeResponse{Match: "hdfs dfs -test", ExitCode: 1},
			failedStage: models.StageLoad,
			logMessage:  "Failed to load data into Hive table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := sourceServer(t, http.StatusOK)
			exec := healthyContainer()
			exec.Responses = append([]testhelpers.FakeResponse{tt.response}, exec.Responses...)

			core, logs := observer.New(zapcore.ErrorLevel)
			svc := wirePipeline(pipelineConfig(srv.URL), exec, nil, zap.New(core))

			run, err := svc.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, models.PipelineStateAborted, run.State)

			failed := run.FailedStage()
			require.NotNil(t, failed)
			assert.Equal(t, tt.failedStage, failed.Name)
			require.NotNil(t, failed.ErrorMessage)

			seenFailure := false
			for _, st := range run.Stages {
				if st.Name == tt.failedStage {
					seenFailure = true
					continue
				}
				if seenFailure {
					assert.Equal(t, models.StageStatusSkipped, st.Status, "stage %s", st.Name)
				} else {
					assert.Equal(t, models.StageStatusCompleted, st.Status, "stage %s", st.Name)
				}
			}

			require.Equal(t, 1, logs.Len())
			assert.Equal(t, tt.logMessage, logs.All()[0].Message)
			assert.Empty(t, exec.CallsTo("beeline -u "+testJDBC+" --outputformat"), "validation must not run")
		})
	}
}

func TestPipeline_MissingContainer(t *testing.T) {
	srv := sourceServer(t, http.StatusOK)
	exec := &testhelpers.FakeExecutor{Err: apperrors.ErrContainerNotRunning}
	svc := wirePipeline(pipelineConfig(srv.URL), exec, nil, zap.NewNop())

	run, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStateAborted, run.State)

	failed := run.FailedStage()
	require.NotNil(t, failed)
	assert.Equal(t, models.StageFetch, failed.Name)
	assert.Contains(t, *failed.ErrorMessage, apperrors.ErrContainerNotRunning.Error())
	assert.Equal(t, 1, exec.CallCount())
}

func TestPipeline_Cancelled(t *testing.T) {
	srv := sourceServer(t, http.StatusOK)
	exec := healthyContainer()
	svc := wirePipeline(pipelineConfig(srv.URL), exec, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStateAborted, run.State)
	assert.Zero(t, exec.CallCount())
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "Pipeline cancelled")
}

func TestPipeline_MissingMethods(t *testing.T) {
	svc := NewPipelineService(pipelineConfig("https://example.com/x.csv"), nil, zap.NewNop())

	run, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "availability methods not set")
	assert.Equal(t, models.PipelineStateAborted, run.State)
}

func TestPipeline_AbortedRunIsNotFailedAgain(t *testing.T) {
	srv := sourceServer(t, http.StatusNotFound)
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := wirePipeline(pipelineConfig(srv.URL+"/data.csv"), healthyContainer(), nil, zap.New(core))

	run, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.PipelineStateAborted, run.State)
	firstError := *run.ErrorMessage

	svc.markRunFailed(run, models.StageLoad, "Failed to load data", context.Canceled)

	assert.Equal(t, firstError, *run.ErrorMessage)
	assert.Equal(t, models.StageStatusSkipped, stageStatuses(run)[models.StageLoad])
	assert.Equal(t, 1, logs.Len())
}

func TestPipeline_RetriesTransientFailure(t *testing.T) {
	srv := sourceServer(t, http.StatusOK)
	exec := healthyContainer()
	flaky := &flakyExecutor{FakeExecutor: exec, failures: 1, prefix: "beeline"}
	cfg := pipelineConfig(srv.URL)

	svc := NewPipelineService(cfg, nil, zap.NewNop())
	hdfs := NewHDFSService(flaky, "hdfs", zap.NewNop())
	hive := NewHiveService(flaky, cfg.Hive, zap.NewNop())
	svc.SetAvailabilityMethods(probe.NewChecker(cfg.Probe, zap.NewNop()))
	svc.SetFetchMethods(NewFetchService(flaky, "wget", zap.NewNop()))
	svc.SetHDFSMethods(hdfs, hdfs)
	svc.SetInferSchemaMethods(NewSchemaService(flaky, zap.NewNop()))
	svc.SetHiveMethods(hive, hive, hive)
	svc.SetRetryConfig(&retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 1})

	run, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStateDone, run.State)
	assert.Len(t, exec.CallsTo("beeline -u "+testJDBC+" -e CREATE"), 2)
}

func TestPipeline_RecordsRunInLedger(t *testing.T) {
	srv := sourceServer(t, http.StatusOK)
	repo := sqliteRunRepo(t)
	cfg := pipelineConfig(srv.URL)
	cfg.Ledger = config.LedgerConfig{Driver: "sqlite", DSN: "unused"}

	run, err := wirePipeline(cfg, healthyContainer(), repo, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.PipelineStateDone, run.State)

	stored, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStateDone, stored.State)
	assert.Equal(t, run.ArtifactSHA256, stored.ArtifactSHA256)
	require.Len(t, stored.Stages, 7)
	for _, st := range stored.Stages {
		assert.Equal(t, models.StageStatusCompleted, st.Status, "stage %s", st.Name)
	}
	require.NotNil(t, stored.Schema)
	assert.Len(t, stored.Schema.Columns, 6)
}

func TestPipeline_SkipsDuplicateLoad(t *testing.T) {
	srv := sourceServer(t, http.StatusOK)
	repo := sqliteRunRepo(t)
	cfg := pipelineConfig(srv.URL)

	first, err := wirePipeline(cfg, healthyContainer(), repo, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.PipelineStateDone, first.State)

	exec := healthyContainer()
	second, err := wirePipeline(cfg, exec, repo, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.PipelineStateDone, second.State)
	assert.Equal(t, models.StageStatusSkipped, second.Stage(models.StageLoad).Status)
	assert.Contains(t, second.Stage(models.StageLoad).Message, first.ID.String())
	assert.Empty(t, exec.CallsTo("beeline -u "+testJDBC+" -e LOAD"), "duplicate content must not be loaded twice")
	assert.Len(t, exec.CallsTo("hdfs dfs -rm -f /user/hadoop/population_data/population_data.csv"), 1)
	assert.Equal(t, models.StageStatusCompleted, second.Stage(models.StageValidate).Status)
}

func TestPipeline_OverwriteLoadsDuplicate(t *testing.T) {
	srv := sourceServer(t, http.StatusOK)
	repo := sqliteRunRepo(t)
	cfg := pipelineConfig(srv.URL)

	_, err := wirePipeline(cfg, healthyContainer(), repo, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	cfg.Load.Overwrite = true
	exec := healthyContainer()
	run, err := wirePipeline(cfg, exec, repo, zap.NewNop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StageStatusCompleted, run.Stage(models.StageLoad).Status)
	loads := exec.CallsTo("beeline -u " + testJDBC + " -e LOAD")
	require.Len(t, loads, 1)
	assert.Contains(t, loads[0][len(loads[0])-1], "OVERWRITE INTO TABLE")
}

// flakyExecutor fails the first commands matching prefix with a transient error.
type flakyExecutor struct {
	*testhelpers.FakeExecutor
	prefix   string
	failures int
}

func (f *flakyExecutor) Exec(ctx context.Context, cmd []string) (*executor.Result, error) {
	res, err := f.FakeExecutor.Exec(ctx, cmd)
	if err != nil || f.failures == 0 || !strings.HasPrefix(strings.Join(cmd, " "), f.prefix) {
		return res, err
	}
	f.failures--
	res.ExitCode = 1
	res.Stderr = []byte("Could not open client transport with JDBC Uri: connection refused")
	return res, nil
}
