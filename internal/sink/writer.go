package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bonobos/tap-facebook/internal/state"
)

// WriterSink emits records and checkpoints as JSON lines on an io.Writer.
// It is the default sink when no Kafka topic or checkpoint database is
// configured, and what wires the binary into a shell pipeline.
type WriterSink struct {
	mu    sync.Mutex
	out   io.Writer
	enc   *json.Encoder
	runID string
}

var (
	_ RecordSink     = (*WriterSink)(nil)
	_ CheckpointSink = (*WriterSink)(nil)
)

// NewWriterSink creates a sink writing JSON lines to out.
func NewWriterSink(out io.Writer, runID string) *WriterSink {
	return &WriterSink{out: out, enc: json.NewEncoder(out), runID: runID}
}

// WriteRecord implements RecordSink.
func (s *WriterSink) WriteRecord(_ context.Context, stream string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.enc.Encode(envelope{
		Type:      messageTypeRecord,
		Stream:    stream,
		Record:    record,
		RunID:     s.runID,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return nil
}

// WriteCheckpoint implements CheckpointSink.
func (s *WriterSink) WriteCheckpoint(_ context.Context, stream string, snapshot state.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.enc.Encode(envelope{
		Type:      messageTypeCheckpoint,
		Stream:    stream,
		State:     snapshot,
		RunID:     s.runID,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	return nil
}
