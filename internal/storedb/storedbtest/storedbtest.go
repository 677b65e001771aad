// Package storedbtest spins up a disposable Postgres instance for
// integration tests, adapted from the teacher's test/util.SetupTestDatabase
// shared-testcontainer pattern but pointed at storedb.NewClient's own
// migration runner instead of ent's schema creation.
package storedbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sessionwave/orchestrator/internal/config"
	"github.com/sessionwave/orchestrator/internal/storedb"
)

var (
	container     *postgres.PostgresContainer
	containerOnce sync.Once
	containerErr  error
)

// NewClient starts (once per test binary) a shared postgres:17-alpine
// container, applies every embedded migration, and returns a ready
// *storedb.Client. Every table is truncated when the calling test finishes,
// so tests run on one shared container but never see each other's rows.
func NewClient(t *testing.T) *storedb.Client {
	t.Helper()
	ctx := context.Background()

	containerOnce.Do(func() {
		container, containerErr = postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("orchestrator_test"),
			postgres.WithUsername("orchestrator"),
			postgres.WithPassword("orchestrator"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
	})
	require.NoError(t, containerErr, "start shared postgres testcontainer")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "orchestrator",
		Password:        "orchestrator",
		Database:        "orchestrator_test",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}

	client, err := storedb.NewClient(ctx, cfg)
	require.NoError(t, err, "connect to test container and apply migrations")

	t.Cleanup(func() {
		truncateAll(t, client)
		_ = client.Close()
	})

	return client
}

// truncateAll clears every table between tests so the shared container
// stays cheap while keeping each test isolated, mirroring the teacher's
// per-test schema reset without paying for a fresh schema per test.
func truncateAll(t *testing.T, client *storedb.Client) {
	t.Helper()
	tables := []string{
		"bridge_latest", "bridge_versions", "journey_latest", "journey_versions",
		"generation_metadata", "pipeline_events", "generation_cost_entries",
		"processing_log_entries", "sessions", "patients",
	}
	_, err := client.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE",
		joinTables(tables)))
	if err != nil {
		t.Logf("truncate tables: %v", err)
	}
}

func joinTables(tables []string) string {
	out := ""
	for i, tbl := range tables {
		if i > 0 {
			out += ", "
		}
		out += tbl
	}
	return out
}
