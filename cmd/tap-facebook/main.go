// Package main provides the tap-facebook sync binary.
//
// Each run drains the configured streams from one ad account: entity
// listings synced in full, insights variants synced incrementally from
// their persisted watermarks. Records and checkpoints flow to Kafka and
// PostgreSQL when configured, stdout otherwise.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"golang.org/x/time/rate"

	"github.com/bonobos/tap-facebook/internal/facebook"
	"github.com/bonobos/tap-facebook/internal/insights"
	"github.com/bonobos/tap-facebook/internal/schema"
	"github.com/bonobos/tap-facebook/internal/sink"
	"github.com/bonobos/tap-facebook/internal/state"
	"github.com/bonobos/tap-facebook/internal/streams"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "tap-facebook"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	cfg := loadAppConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.logLevel,
	}))

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	runID := uuid.NewString()

	logger = logger.With(slog.String("run_id", runID))
	logger.Info("Starting sync run",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("account_id", cfg.accountID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := schema.LoadCatalog(cfg.catalogPath, logger)
	if err != nil {
		logger.Error("Failed to load catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	streamNames := cfg.streams
	if len(streamNames) == 0 {
		streamNames = catalog.StreamNames()
	}

	stdout := sink.NewWriterSink(os.Stdout, runID)

	// Checkpoints persist to PostgreSQL when configured, stdout otherwise.
	var (
		persisted   state.Snapshot
		checkpoints sink.CheckpointSink = stdout
	)

	stateConfig := state.LoadConfig()
	if stateConfig.Configured() {
		snapshotStore, err := state.NewSnapshotStore(stateConfig, logger)
		if err != nil {
			logger.Error("Failed to connect to checkpoint store", slog.String("error", err.Error()))
			os.Exit(1)
		}

		defer func() {
			_ = snapshotStore.Close()
		}()

		persisted, err = snapshotStore.Load(ctx)
		if err != nil {
			logger.Error("Failed to load persisted watermarks", slog.String("error", err.Error()))

			_ = snapshotStore.Close() // defer won't run with os.Exit
			os.Exit(1)
		}

		checkpoints = sink.NewSnapshotSink(snapshotStore, runID)

		logger.Info("Checkpoint store initialized",
			slog.String("database_url", stateConfig.MaskDatabaseURL()),
			slog.Int("persisted_watermarks", len(persisted)),
		)
	} else {
		logger.Warn("No checkpoint database configured",
			slog.String("note", "watermarks restart from FB_START_DATE every run; set CHECKPOINT_DATABASE_URL to persist them"),
		)
	}

	// Records flow to Kafka when configured, stdout otherwise.
	var records sink.RecordSink = stdout

	if cfg.kafkaBrokers != "" {
		kafkaSink := sink.NewKafkaRecordSink(cfg.kafkaBrokers, cfg.kafkaTopic, runID, logger)

		defer func() {
			_ = kafkaSink.Close()
		}()

		records = kafkaSink
	}

	store, err := state.NewStore(cfg.startDate, persisted)
	if err != nil {
		logger.Error("Failed to restore watermarks", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client := facebook.NewClient(cfg.accountID, cfg.accessToken, logger,
		facebook.WithPageSize(cfg.pageSize))

	deps := streams.Deps{
		Account: client,
		Schemas: catalog,
		State:   store,
		Runner: insights.NewRunner(client, logger,
			insights.WithBudget(rate.NewLimiter(rate.Every(cfg.submitInterval), 1)),
			insights.WithDeadlines(cfg.maxWaitToStart, cfg.maxWaitToEnd, cfg.pollInterval),
		),
		Scheduler: &insights.Scheduler{Clock: insights.SystemClock{}, MaxWindows: cfg.maxWindows},
		Logger:    logger,
		PageSize:  cfg.pageSize,
	}

	emitter := &sink.Mux{Records: records, Checkpoints: checkpoints}

	// One stream failing must not sink the rest of the run.
	failed := 0

	for _, streamName := range streamNames {
		if ctx.Err() != nil {
			logger.Warn("Sync run interrupted", slog.String("error", ctx.Err().Error()))

			break
		}

		stream, err := streams.New(streamName, deps)
		if err != nil {
			logger.Error("Failed to build stream",
				slog.String("stream", streamName),
				slog.String("error", err.Error()),
			)

			failed++

			continue
		}

		logger.Info("Syncing stream",
			slog.String("stream", stream.Name()),
			slog.Any("key_properties", stream.KeyProperties()),
		)

		if err := stream.Sync(ctx, emitter); err != nil {
			logger.Error("Stream sync failed",
				slog.String("stream", streamName),
				slog.String("error", err.Error()),
			)

			failed++

			continue
		}
	}

	if failed > 0 {
		logger.Error("Sync run finished with failures",
			slog.Int("failed_streams", failed),
			slog.Int("total_streams", len(streamNames)),
		)
		os.Exit(1)
	}

	logger.Info("Sync run finished", slog.Int("streams", len(streamNames)))
}
