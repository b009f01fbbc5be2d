package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bonobos/tap-facebook/migrations"
)

// Sentinel errors for checkpoint persistence.
var (
	// ErrNoDatabaseConnection is returned when a SnapshotStore is used
	// without an open connection.
	ErrNoDatabaseConnection = errors.New("no checkpoint database connection")

	// ErrSnapshotSaveFailed is returned when persisting a snapshot fails.
	ErrSnapshotSaveFailed = errors.New("checkpoint snapshot save failed")
)

// SnapshotStore persists watermark snapshots to PostgreSQL, one row per
// stream, upserted on every save. It is the durable side of the checkpoint
// sink: Load feeds the Store at startup, Save records every advance.
type SnapshotStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSnapshotStore opens the checkpoint database, verifies connectivity,
// and brings the schema up to date from the embedded migrations.
func NewSnapshotStore(cfg *Config, logger *slog.Logger) (*SnapshotStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping checkpoint database: %w", err)
	}

	if err := migrations.Up(db, logger); err != nil {
		_ = db.Close()

		return nil, err
	}

	logger.Info("Checkpoint store ready",
		slog.String("database_url", cfg.MaskDatabaseURL()),
	)

	return &SnapshotStore{db: db, logger: logger}, nil
}

// Load reads the persisted snapshot: every stream's watermark date.
// An empty table yields an empty snapshot, which the Store treats as
// "start from the configured global start date".
func (s *SnapshotStore) Load(ctx context.Context) (Snapshot, error) {
	if s.db == nil {
		return nil, ErrNoDatabaseConnection
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT stream, to_char(synced_through, 'YYYY-MM-DD') FROM watermarks`)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap := make(Snapshot)

	for rows.Next() {
		var stream, date string
		if err := rows.Scan(&stream, &date); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}

		snap[stream] = date
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint rows: %w", err)
	}

	return snap, nil
}

// Save upserts the full snapshot in a single transaction, tagged with the
// sync run that produced it. Saving snapshots in emission order preserves
// the never-stale-after-newer guarantee; the database trigger additionally
// refuses any backward cursor move.
func (s *SnapshotStore) Save(ctx context.Context, snap Snapshot, runID string) error {
	if s.db == nil {
		return ErrNoDatabaseConnection
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrSnapshotSaveFailed, err)
	}

	const upsert = `
		INSERT INTO watermarks (stream, synced_through, run_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (stream) DO UPDATE
		SET synced_through = EXCLUDED.synced_through,
		    run_id         = EXCLUDED.run_id,
		    updated_at     = now()
		WHERE watermarks.synced_through < EXCLUDED.synced_through`

	for stream, date := range snap {
		if _, err := tx.ExecContext(ctx, upsert, stream, date, runID); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("%w: stream %s: %v", ErrSnapshotSaveFailed, stream, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSnapshotSaveFailed, err)
	}

	return nil
}

// Close releases the underlying database connection.
func (s *SnapshotStore) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}
