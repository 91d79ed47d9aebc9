package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/database"
)

const (
	// LedgerImage is the PostgreSQL image used for the shared ledger.
	LedgerImage = "postgres:16-alpine"
	// ExecTargetImage is a small image standing in for the Hive container.
	ExecTargetImage = "alpine:3.20"
)

// LedgerDB holds a shared PostgreSQL ledger with migrations applied.
type LedgerDB struct {
	Container testcontainers.Container
	DB        *database.DB
	DSN       string
}

var (
	sharedLedgerDB     *LedgerDB
	sharedLedgerDBOnce sync.Once
	sharedLedgerDBErr  error
)

// GetLedgerDB returns a shared PostgreSQL ledger for integration tests.
// The container is created once and reused across all tests in the run.
func GetLedgerDB(t *testing.T) *LedgerDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedLedgerDBOnce.Do(func() {
		sharedLedgerDB, sharedLedgerDBErr = setupLedgerDB()
	})

	if sharedLedgerDBErr != nil {
		t.Fatalf("Failed to setup ledger database: %v", sharedLedgerDBErr)
	}

	return sharedLedgerDB
}

func setupLedgerDB() (*LedgerDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        LedgerImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "ingest_ledger",
			"POSTGRES_USER":     "ingest",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start ledger container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://ingest:test_password@%s:%s/ingest_ledger?sslmode=disable",
		host, port.Port())

	// Verify connection with retry
	var db *database.DB
	for i := 0; i < 10; i++ {
		db, err = database.Open(ctx, database.DriverPostgres, dsn, zap.NewNop())
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	return &LedgerDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}, nil
}

// ExecTarget is a running container that commands can be exec'd into.
type ExecTarget struct {
	Container testcontainers.Container
	// ID is accepted anywhere the Docker API expects a container name.
	ID string
}

var (
	sharedExecTarget     *ExecTarget
	sharedExecTargetOnce sync.Once
	sharedExecTargetErr  error
)

// GetExecTarget returns a shared long-running alpine container.
func GetExecTarget(t *testing.T) *ExecTarget {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedExecTargetOnce.Do(func() {
		sharedExecTarget, sharedExecTargetErr = setupExecTarget()
	})

	if sharedExecTargetErr != nil {
		t.Fatalf("Failed to setup exec target: %v", sharedExecTargetErr)
	}

	return sharedExecTarget
}

func setupExecTarget() (*ExecTarget, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:      ExecTargetImage,
		Cmd:        []string{"sleep", "infinity"},
		WaitingFor: wait.ForExec([]string{"true"}).WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start exec target: %w", err)
	}

	return &ExecTarget{
		Container: container,
		ID:        container.GetContainerID(),
	}, nil
}
