package streams

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonobos/tap-facebook/internal/insights"
	"github.com/bonobos/tap-facebook/internal/schema"
	"github.com/bonobos/tap-facebook/internal/state"
)

// ---- shared fakes ----

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time        { return c.now }
func (c *fixedClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// slicePager pages over a fixed id slice.
type slicePager struct {
	ids []string
	pos int
	err error
}

func (p *slicePager) Next(_ context.Context) bool {
	if p.err != nil || p.pos >= len(p.ids) {
		return false
	}

	p.pos++

	return true
}

func (p *slicePager) ID() string { return p.ids[p.pos-1] }
func (p *slicePager) Err() error { return p.err }

// fakeAccount serves entity listings and node reads from fixtures.
type fakeAccount struct {
	campaigns   []string
	adsets      []string
	ads         []string
	creatives   []string
	campaignAds map[string][]string
	nodes       map[string]map[string]any
	readFields  map[string][]string // records the fields requested per node
}

func (a *fakeAccount) ListCampaigns(_ context.Context) (Pager, error) {
	return &slicePager{ids: a.campaigns}, nil
}

func (a *fakeAccount) ListAdSets(_ context.Context) (Pager, error) {
	return &slicePager{ids: a.adsets}, nil
}

func (a *fakeAccount) ListAds(_ context.Context) (Pager, error) {
	return &slicePager{ids: a.ads}, nil
}

func (a *fakeAccount) ListAdCreatives(_ context.Context) (Pager, error) {
	return &slicePager{ids: a.creatives}, nil
}

func (a *fakeAccount) ListCampaignAds(_ context.Context, campaignID string) (Pager, error) {
	return &slicePager{ids: a.campaignAds[campaignID]}, nil
}

func (a *fakeAccount) ReadNode(_ context.Context, id string, fields []string) (map[string]any, error) {
	node, ok := a.nodes[id]
	if !ok {
		return nil, fmt.Errorf("no such node %s", id)
	}

	if a.readFields == nil {
		a.readFields = make(map[string][]string)
	}

	a.readFields[id] = fields

	return node, nil
}

// event is one emitted record or checkpoint, in emission order.
type event struct {
	kind     string // "record" or "checkpoint"
	stream   string
	record   map[string]any
	snapshot state.Snapshot
}

// captureEmitter records the exact interleaving of records and checkpoints.
type captureEmitter struct {
	events []event
}

func (e *captureEmitter) Record(_ context.Context, stream string, record map[string]any) error {
	e.events = append(e.events, event{kind: "record", stream: stream, record: record})

	return nil
}

func (e *captureEmitter) Checkpoint(_ context.Context, stream string, snapshot state.Snapshot) error {
	e.events = append(e.events, event{kind: "checkpoint", stream: stream, snapshot: snapshot})

	return nil
}

// fakeInsightsService completes every job immediately, serving scripted row
// sets one per submitted window. Submitted params are retained in order.
type fakeInsightsService struct {
	windows   [][]map[string]any
	submitted []insights.Params
	jobs      int
}

func (s *fakeInsightsService) SubmitJob(_ context.Context, params insights.Params) (insights.JobHandle, error) {
	s.jobs++
	s.submitted = append(s.submitted, params)

	return insights.JobHandle(fmt.Sprintf("job-%d", s.jobs)), nil
}

func (s *fakeInsightsService) PollJob(_ context.Context, _ insights.JobHandle) (insights.JobState, error) {
	return insights.JobState{Status: insights.JobCompleted, PercentComplete: 100}, nil
}

func (s *fakeInsightsService) JobResults(_ context.Context, _ insights.JobHandle) (insights.ResultPager, error) {
	rows := s.windows[s.jobs-1]

	return &rowPager{rows: rows}, nil
}

type rowPager struct {
	rows []map[string]any
	pos  int
}

func (p *rowPager) Next(_ context.Context) bool {
	if p.pos >= len(p.rows) {
		return false
	}

	p.pos++

	return true
}

func (p *rowPager) Row() map[string]any { return p.rows[p.pos-1] }
func (p *rowPager) Err() error          { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubProvider map[string]schema.Schema

func (p stubProvider) Schema(stream string) (schema.Schema, error) {
	sch, ok := p[stream]
	if !ok {
		return schema.Schema{}, fmt.Errorf("%w: %s", schema.ErrUnknownStream, stream)
	}

	return sch, nil
}

// ---- factory ----

func TestNew(t *testing.T) {
	store, err := state.NewStore("2021-01-01", nil)
	require.NoError(t, err)

	idOnly := schema.Schema{Fields: map[string]schema.Field{
		"id": {Types: schema.TypeSet{"string"}, Selected: true},
	}}

	deps := Deps{
		Account: &fakeAccount{},
		Schemas: stubProvider{
			"campaigns":           idOnly,
			"adsets":              idOnly,
			"ads":                 idOnly,
			"adcreative":          idOnly,
			"ads_insights":        idOnly,
			"ads_insights_country": idOnly,
		},
		State:     store,
		Runner:    insights.NewRunner(&fakeInsightsService{}, discardLogger()),
		Scheduler: &insights.Scheduler{Clock: &fixedClock{now: time.Now()}},
		Logger:    discardLogger(),
	}

	t.Run("all cataloged names construct", func(t *testing.T) {
		for name, wantKeys := range map[string][]string{
			"campaigns":            {"id"},
			"adsets":               {"id", "updated_time"},
			"ads":                  {"id", "updated_time"},
			"adcreative":           {"id"},
			"ads_insights":         {"id", "updated_time"},
			"ads_insights_country": {"id", "updated_time"},
		} {
			stream, err := New(name, deps)
			require.NoError(t, err, name)
			assert.Equal(t, name, stream.Name())
			assert.Equal(t, wantKeys, stream.KeyProperties(), name)
		}
	})

	t.Run("insights variants use the breakdown table", func(t *testing.T) {
		stream, err := New("ads_insights_country", deps)
		require.NoError(t, err)

		insightsStream, ok := stream.(*InsightsStream)
		require.True(t, ok)
		assert.Equal(t, []string{"country"}, insightsStream.breakdowns)
	})

	t.Run("unknown stream is a configuration error", func(t *testing.T) {
		_, err := New("ads_insights_dma", deps)
		assert.ErrorIs(t, err, schema.ErrUnknownStream)

		// Cataloged but unimplemented names fail with ErrUnknownStream.
		deps := deps
		deps.Schemas = stubProvider{"leads": idOnly}

		_, err = New("leads", deps)
		assert.ErrorIs(t, err, ErrUnknownStream)
	})
}
