package state

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupSnapshotStore starts a PostgreSQL testcontainer and opens a
// SnapshotStore against it, running the embedded migrations.
func setupSnapshotStore(ctx context.Context, t *testing.T) *SnapshotStore {
	t.Helper()

	postgresContainer, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("tap_facebook_test"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(120*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() { _ = postgresContainer.Terminate(ctx) })

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	cfg := &Config{
		databaseURL:     connStr,
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		ConnMaxIdleTime: defaultConnMaxIdleTime,
	}

	store, err := NewSnapshotStore(cfg, slog.Default())
	if err != nil {
		t.Fatalf("failed to create snapshot store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	store := setupSnapshotStore(ctx, t)
	runID := uuid.NewString()

	t.Run("empty table loads empty snapshot", func(t *testing.T) {
		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap)
	})

	t.Run("save and reload", func(t *testing.T) {
		err := store.Save(ctx, Snapshot{
			"ads_insights": "2021-01-10",
			"campaigns":    "2021-02-01",
		}, runID)
		require.NoError(t, err)

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, Snapshot{
			"ads_insights": "2021-01-10",
			"campaigns":    "2021-02-01",
		}, snap)
	})

	t.Run("newer snapshot advances", func(t *testing.T) {
		err := store.Save(ctx, Snapshot{"ads_insights": "2021-01-15"}, runID)
		require.NoError(t, err)

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2021-01-15", snap["ads_insights"])
	})

	t.Run("stale snapshot does not move cursor backwards", func(t *testing.T) {
		err := store.Save(ctx, Snapshot{"ads_insights": "2021-01-03"}, runID)
		require.NoError(t, err)

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2021-01-15", snap["ads_insights"])
	})
}
