// Package streams defines the extracted record streams: the four entity
// listings and the insights report variants, all behind one Stream
// interface so the sync loop treats them uniformly.
package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bonobos/tap-facebook/internal/insights"
	"github.com/bonobos/tap-facebook/internal/schema"
	"github.com/bonobos/tap-facebook/internal/state"
)

// ErrUnknownStream is returned when a stream name has no implementation.
// This is a configuration error: fail hard, do not retry.
var ErrUnknownStream = errors.New("unknown stream")

type (
	// Stream produces a sequence of validated records plus interleaved
	// checkpoints for one logical stream.
	Stream interface {
		// Name returns the stream name records are tagged with.
		Name() string

		// KeyProperties returns the primary-key field names downstream
		// consumers de-duplicate on.
		KeyProperties() []string

		// Sync drains the stream, emitting every record and checkpoint.
		// Ordering within the stream is preserved: records always precede
		// the checkpoint that subsumes them.
		Sync(ctx context.Context, emit Emitter) error
	}

	// Emitter receives the output sequence of a syncing stream.
	Emitter interface {
		// Record receives one validated record tagged with its stream name.
		Record(ctx context.Context, stream string, record map[string]any) error

		// Checkpoint receives a full watermark snapshot, safe to resume
		// from, tagged with the stream whose records it subsumes. Never
		// called with a stale snapshot after a newer one.
		Checkpoint(ctx context.Context, stream string, snapshot state.Snapshot) error
	}

	// Pager iterates a paginated remote entity listing, yielding ids.
	Pager interface {
		// Next advances to the next entity, fetching pages as needed.
		Next(ctx context.Context) bool

		// ID returns the current entity's remote id.
		ID() string

		// Err returns the first error encountered while paging, if any.
		Err() error
	}

	// Account is the already-authenticated ad account handle the entity
	// streams read from. Implementations paginate entity listings and
	// resolve individual nodes to flat attribute mappings.
	Account interface {
		ListCampaigns(ctx context.Context) (Pager, error)
		ListAdSets(ctx context.Context) (Pager, error)
		ListAds(ctx context.Context) (Pager, error)
		ListAdCreatives(ctx context.Context) (Pager, error)

		// ListCampaignAds lists the ads belonging to one campaign.
		ListCampaignAds(ctx context.Context, campaignID string) (Pager, error)

		// ReadNode fetches the requested fields of a single entity as a
		// flat attribute mapping.
		ReadNode(ctx context.Context, id string, fields []string) (map[string]any, error)
	}

	// Deps bundles the collaborators stream construction needs.
	Deps struct {
		Account   Account
		Schemas   schema.Provider
		State     *state.Store
		Runner    *insights.Runner
		Scheduler *insights.Scheduler
		Logger    *slog.Logger

		// PageSize caps result rows per report page and is also the
		// submitted report's limit. Zero uses insights.DefaultPageSize.
		PageSize int
	}
)

// New constructs the named stream. Insights variants are recognized by the
// breakdown table; everything else must be one of the four entity streams.
func New(name string, deps Deps) (Stream, error) {
	sch, err := deps.Schemas.Schema(name)
	if err != nil {
		return nil, err
	}

	if breakdowns, ok := insights.Breakdowns[name]; ok {
		return NewInsightsStream(name, sch, breakdowns, deps), nil
	}

	switch name {
	case "campaigns":
		return newCampaignStream(sch, deps), nil
	case "adsets":
		return newEntityStream(name, sch, deps, deps.Account.ListAdSets, []string{"id", "updated_time"}), nil
	case "ads":
		return newEntityStream(name, sch, deps, deps.Account.ListAds, []string{"id", "updated_time"}), nil
	case "adcreative":
		return newEntityStream(name, sch, deps, deps.Account.ListAdCreatives, []string{"id"}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStream, name)
	}
}
