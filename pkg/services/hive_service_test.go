package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/config"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/testhelpers"
)

const testJDBC = "jdbc:hive2://localhost:10000/default"

func hiveConfig() config.HiveConfig {
	return config.HiveConfig{JDBCURL: testJDBC, Beeline: "beeline", Table: "population_data"}
}

func TestHiveService_CreateTable(t *testing.T) {
	fake := testhelpers.NewFakeExecutor()
	svc := NewHiveService(fake, hiveConfig(), zap.NewNop())
	schema := &models.TableSchema{Columns: []models.ColumnSpec{{Name: "REGION", Type: models.SemanticInteger}}}

	require.NoError(t, svc.CreateTable(context.Background(), "population_data", schema))
	require.Len(t, fake.Calls, 1)

	cmd := fake.Calls[0]
	assert.Equal(t, []string{"beeline", "-u", testJDBC, "-e"}, cmd[:4])
	assert.Contains(t, cmd[4], "CREATE TABLE IF NOT EXISTS population_data")
	assert.NotContains(t, cmd[4], "TBLPROPERTIES")
}

func TestHiveService_CreateTableSkipHeader(t *testing.T) {
	fake := testhelpers.NewFakeExecutor()
	cfg := hiveConfig()
	cfg.SkipHeader = true
	svc := NewHiveService(fake, cfg, zap.NewNop())
	schema := &models.TableSchema{Columns: []models.ColumnSpec{{Name: "REGION", Type: models.SemanticInteger}}}

	require.NoError(t, svc.CreateTable(context.Background(), "population_data", schema))
	assert.Contains(t, fake.Calls[0][len(fake.Calls[0])-1], `"skip.header.line.count"="1"`)
}

func TestHiveService_CreateTableWithoutSchema(t *testing.T) {
	fake := testhelpers.NewFakeExecutor()
	svc := NewHiveService(fake, hiveConfig(), zap.NewNop())

	err := svc.CreateTable(context.Background(), "population_data", nil)
	require.ErrorIs(t, err, apperrors.ErrSchemaAbsent)
	assert.Zero(t, fake.CallCount())
}

func TestHiveService_Credentials(t *testing.T) {
	fake := testhelpers.NewFakeExecutor()
	cfg := hiveConfig()
	cfg.User = "hive"
	cfg.Password = "s3cret"
	svc := NewHiveService(fake, cfg, zap.NewNop())

	_, err := svc.Execute(context.Background(), "SHOW TABLES;")
	require.NoError(t, err)
	assert.Equal(t, []string{"beeline", "-u", testJDBC, "-n", "hive", "-p", "s3cret", "-e", "SHOW TABLES;"}, fake.Calls[0])
}

func TestHiveService_LoadData(t *testing.T) {
	fake := testhelpers.NewFakeExecutor()
	svc := NewHiveService(fake, hiveConfig(), zap.NewNop())

	require.NoError(t, svc.LoadData(context.Background(), "/user/hadoop/population_data/population_data.csv", "population_data", false))
	assert.Equal(t,
		"LOAD DATA INPATH '/user/hadoop/population_data/population_data.csv' INTO TABLE population_data;",
		fake.Calls[0][len(fake.Calls[0])-1])
}

func TestHiveService_LoadFailure(t *testing.T) {
	fake := testhelpers.NewFakeExecutor(testhelpers.FakeResponse{
		Match:    "beeline",
		Stdout:   "Error: Error while compiling statement: FAILED: SemanticException Line 1:17 Invalid path",
		ExitCode: 2,
	})
	svc := NewHiveService(fake, hiveConfig(), zap.NewNop())

	err := svc.LoadData(context.Background(), "/user/x.csv", "population_data", false)
	require.ErrorIs(t, err, apperrors.ErrProcessFailed)
	assert.Contains(t, err.Error(), "Invalid path")
}

func TestHiveService_Validate(t *testing.T) {
	out := "region,division,state,name\n0,0,0,United States\n1,0,0,Northeast Region\n"
	fake := testhelpers.NewFakeExecutor(testhelpers.FakeResponse{Match: "beeline", Stdout: out})
	svc := NewHiveService(fake, hiveConfig(), zap.NewNop())

	result, err := svc.Validate(context.Background(), "custom_table", []string{"REGION", "DIVISION", "STATE", "NAME"}, 5)
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)

	cmd := fake.Calls[0]
	assert.Contains(t, cmd, "--outputformat=csv2")
	assert.Contains(t, cmd, "--showHeader=true")
	assert.Equal(t, "SELECT REGION, DIVISION, STATE, NAME FROM custom_table LIMIT 5;", cmd[len(cmd)-1])
}

func TestHiveService_ValidateMissingContainer(t *testing.T) {
	fake := &testhelpers.FakeExecutor{Err: apperrors.ErrContainerNotRunning}
	svc := NewHiveService(fake, hiveConfig(), zap.NewNop())

	_, err := svc.Validate(context.Background(), "population_data", []string{"NAME"}, 5)
	require.ErrorIs(t, err, apperrors.ErrContainerNotRunning)
}
