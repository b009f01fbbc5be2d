// Package sink provides the output ports of the sync engine — record and
// checkpoint sinks — plus the Kafka, database, and in-memory adapters
// behind them.
package sink

import (
	"context"
	"sync"

	"github.com/bonobos/tap-facebook/internal/state"
)

type (
	// RecordSink receives each validated record tagged with its stream
	// name. Ordering within a stream must be preserved by callers writing
	// from a single goroutine per stream.
	RecordSink interface {
		WriteRecord(ctx context.Context, stream string, record map[string]any) error
	}

	// CheckpointSink receives each watermark snapshot for durable
	// persistence, tagged with the stream whose records it subsumes.
	// Writes are fire-and-forget but ordered: a stale snapshot is never
	// written after a newer one.
	CheckpointSink interface {
		WriteCheckpoint(ctx context.Context, stream string, snapshot state.Snapshot) error
	}

	// Mux fans a stream's output to a record sink and a checkpoint sink.
	// It satisfies the streams.Emitter contract.
	Mux struct {
		Records     RecordSink
		Checkpoints CheckpointSink
	}
)

// Record implements the emitter contract by forwarding to the record sink.
func (m *Mux) Record(ctx context.Context, stream string, record map[string]any) error {
	return m.Records.WriteRecord(ctx, stream, record)
}

// Checkpoint implements the emitter contract by forwarding to the
// checkpoint sink.
func (m *Mux) Checkpoint(ctx context.Context, stream string, snapshot state.Snapshot) error {
	return m.Checkpoints.WriteCheckpoint(ctx, stream, snapshot)
}

// MemoryRecordSink buffers records in memory. Intended for tests.
type MemoryRecordSink struct {
	mu      sync.Mutex
	records []TaggedRecord
}

// TaggedRecord is a buffered record with its stream name.
type TaggedRecord struct {
	Stream string
	Record map[string]any
}

// Compile-time interface assertions.
var (
	_ RecordSink     = (*MemoryRecordSink)(nil)
	_ CheckpointSink = (*MemoryCheckpointSink)(nil)
)

// WriteRecord implements RecordSink.
func (s *MemoryRecordSink) WriteRecord(_ context.Context, stream string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, TaggedRecord{Stream: stream, Record: record})

	return nil
}

// Records returns a copy of everything written so far.
func (s *MemoryRecordSink) Records() []TaggedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaggedRecord, len(s.records))
	copy(out, s.records)

	return out
}

// MemoryCheckpointSink buffers snapshots in memory. Intended for tests.
type MemoryCheckpointSink struct {
	mu        sync.Mutex
	snapshots []TaggedSnapshot
}

// TaggedSnapshot is a buffered snapshot with the stream that produced it.
type TaggedSnapshot struct {
	Stream   string
	Snapshot state.Snapshot
}

// WriteCheckpoint implements CheckpointSink.
func (s *MemoryCheckpointSink) WriteCheckpoint(_ context.Context, stream string, snapshot state.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, TaggedSnapshot{Stream: stream, Snapshot: snapshot})

	return nil
}

// Snapshots returns a copy of everything written so far.
func (s *MemoryCheckpointSink) Snapshots() []TaggedSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaggedSnapshot, len(s.snapshots))
	copy(out, s.snapshots)

	return out
}
