package sink

import (
	"context"

	"github.com/bonobos/tap-facebook/internal/state"
)

// SnapshotSink persists checkpoints through a state.SnapshotStore, tagging
// each saved snapshot with the sync run that produced it.
type SnapshotSink struct {
	store *state.SnapshotStore
	runID string
}

var _ CheckpointSink = (*SnapshotSink)(nil)

// NewSnapshotSink wraps a snapshot store as a checkpoint sink.
func NewSnapshotSink(store *state.SnapshotStore, runID string) *SnapshotSink {
	return &SnapshotSink{store: store, runID: runID}
}

// WriteCheckpoint implements CheckpointSink. The stream tag is not needed
// here: the store upserts the full snapshot row by row.
func (s *SnapshotSink) WriteCheckpoint(ctx context.Context, _ string, snapshot state.Snapshot) error {
	return s.store.Save(ctx, snapshot, s.runID)
}
