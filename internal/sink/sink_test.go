package sink

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonobos/tap-facebook/internal/state"
)

func TestMuxForwardsToBothSinks(t *testing.T) {
	ctx := t.Context()

	records := &MemoryRecordSink{}
	checkpoints := &MemoryCheckpointSink{}
	mux := &Mux{Records: records, Checkpoints: checkpoints}

	require.NoError(t, mux.Record(ctx, "campaigns", map[string]any{"id": "c1"}))
	require.NoError(t, mux.Record(ctx, "ads", map[string]any{"id": "a1"}))
	require.NoError(t, mux.Checkpoint(ctx, "ads_insights", state.Snapshot{"ads_insights": "2021-01-05"}))

	got := records.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "campaigns", got[0].Stream)
	assert.Equal(t, "c1", got[0].Record["id"])
	assert.Equal(t, "ads", got[1].Stream)

	snaps := checkpoints.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "ads_insights", snaps[0].Stream)
	assert.Equal(t, "2021-01-05", snaps[0].Snapshot["ads_insights"])
}

func TestMemorySinksReturnCopies(t *testing.T) {
	ctx := t.Context()

	records := &MemoryRecordSink{}
	require.NoError(t, records.WriteRecord(ctx, "campaigns", map[string]any{"id": "c1"}))

	first := records.Records()
	first[0] = TaggedRecord{Stream: "mutated"}

	assert.Equal(t, "campaigns", records.Records()[0].Stream,
		"accessor returns a copy, not the internal slice")
}

func TestWriterSinkEmitsJSONLines(t *testing.T) {
	ctx := t.Context()

	var buf bytes.Buffer
	sink := NewWriterSink(&buf, "run-42")

	require.NoError(t, sink.WriteRecord(ctx, "campaigns", map[string]any{"id": "c1", "name": "Launch"}))
	require.NoError(t, sink.WriteCheckpoint(ctx, "campaigns", state.Snapshot{"campaigns": "2021-03-01"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "one JSON line per write")

	var record envelope
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, messageTypeRecord, record.Type)
	assert.Equal(t, "campaigns", record.Stream)
	assert.Equal(t, "c1", record.Record["id"])
	assert.Equal(t, "run-42", record.RunID)
	assert.False(t, record.EmittedAt.IsZero())

	var checkpoint envelope
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &checkpoint))
	assert.Equal(t, messageTypeCheckpoint, checkpoint.Type)
	assert.Equal(t, "campaigns", checkpoint.Stream)
	assert.Equal(t, state.Snapshot{"campaigns": "2021-03-01"}, checkpoint.State)
	assert.Equal(t, "run-42", checkpoint.RunID)
}

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single broker", "localhost:9092", []string{"localhost:9092"}},
		{"multiple with spaces", "a:9092, b:9092 ,c:9092", []string{"a:9092", "b:9092", "c:9092"}},
		{"empty segments dropped", "a:9092,,", []string{"a:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitCSV(tt.input))
		})
	}
}
