package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/bonobos/tap-facebook/internal/state"
)

// KafkaRecordSink publishes records and checkpoints as JSON messages.
// Every message is keyed by stream name, records and the checkpoints that
// subsume them alike, so they share a partition and per-stream ordering
// survives partitioning.
type KafkaRecordSink struct {
	writer *kafka.Writer
	runID  string
	logger *slog.Logger
}

// Envelope types on the wire.
const (
	messageTypeRecord     = "RECORD"
	messageTypeCheckpoint = "STATE"
)

// envelope is the wire format of one published message.
type envelope struct {
	Type      string         `json:"type"`
	Stream    string         `json:"stream,omitempty"`
	Record    map[string]any `json:"record,omitempty"`
	State     state.Snapshot `json:"state,omitempty"`
	RunID     string         `json:"run_id"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// Compile-time interface assertions: the Kafka sink serves both ports so a
// single topic carries the interleaved record/checkpoint sequence.
var (
	_ RecordSink     = (*KafkaRecordSink)(nil)
	_ CheckpointSink = (*KafkaRecordSink)(nil)
)

// NewKafkaRecordSink creates a sink writing to the given topic.
// brokersCSV is a comma-separated broker list.
func NewKafkaRecordSink(brokersCSV, topic, runID string, logger *slog.Logger) *KafkaRecordSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(splitCSV(brokersCSV)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // key by stream → stable partition per stream
		RequiredAcks: kafka.RequireAll,
	}

	logger.Info("Kafka sink initialized",
		slog.String("topic", topic),
		slog.String("brokers", brokersCSV),
	)

	return &KafkaRecordSink{writer: writer, runID: runID, logger: logger}
}

// WriteRecord implements RecordSink.
func (s *KafkaRecordSink) WriteRecord(ctx context.Context, stream string, record map[string]any) error {
	return s.publish(ctx, stream, envelope{
		Type:      messageTypeRecord,
		Stream:    stream,
		Record:    record,
		RunID:     s.runID,
		EmittedAt: time.Now().UTC(),
	})
}

// WriteCheckpoint implements CheckpointSink. The snapshot shares its
// stream's message key, so it lands on the same partition as the records
// it subsumes and is consumed strictly after them.
func (s *KafkaRecordSink) WriteCheckpoint(ctx context.Context, stream string, snapshot state.Snapshot) error {
	return s.publish(ctx, stream, envelope{
		Type:      messageTypeCheckpoint,
		Stream:    stream,
		State:     snapshot,
		RunID:     s.runID,
		EmittedAt: time.Now().UTC(),
	})
}

func (s *KafkaRecordSink) publish(ctx context.Context, key string, msg envelope) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish %s message: %w", msg.Type, err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaRecordSink) Close() error {
	return s.writer.Close()
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
