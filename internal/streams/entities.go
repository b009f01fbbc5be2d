package streams

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bonobos/tap-facebook/internal/schema"
	"github.com/bonobos/tap-facebook/internal/transform"
)

// entityStream is the shared list-and-transform loop behind adsets, ads,
// and adcreative: page through the listing, remote-read each entity's
// selected fields, validate, emit. Entity streams carry no watermark —
// they are full-table extracts on every run.
type entityStream struct {
	name    string
	sch     schema.Schema
	account Account
	list    func(ctx context.Context) (Pager, error)
	keys    []string
	logger  *slog.Logger
}

func newEntityStream(
	name string,
	sch schema.Schema,
	deps Deps,
	list func(ctx context.Context) (Pager, error),
	keys []string,
) *entityStream {
	return &entityStream{
		name:    name,
		sch:     sch,
		account: deps.Account,
		list:    list,
		keys:    keys,
		logger:  deps.Logger,
	}
}

func (s *entityStream) Name() string { return s.name }

func (s *entityStream) KeyProperties() []string { return s.keys }

func (s *entityStream) Sync(ctx context.Context, emit Emitter) error {
	selected := s.sch.Selected()
	fields := s.sch.SelectedFields()

	s.logger.Info("Syncing stream",
		slog.String("stream", s.name),
		slog.Any("fields", fields),
	)

	pager, err := s.list(ctx)
	if err != nil {
		return fmt.Errorf("list %s: %w", s.name, err)
	}

	for pager.Next(ctx) {
		row, err := s.account.ReadNode(ctx, pager.ID(), fields)
		if err != nil {
			return fmt.Errorf("read %s %s: %w", s.name, pager.ID(), err)
		}

		record, err := transform.Transform(row, selected)
		if err != nil {
			s.logger.Error("Record failed validation",
				slog.String("stream", s.name),
				slog.String("id", pager.ID()),
				slog.String("error", err.Error()),
			)

			return fmt.Errorf("stream %s entity %s: %w", s.name, pager.ID(), err)
		}

		if err := emit.Record(ctx, s.name, record); err != nil {
			return err
		}
	}

	return pager.Err()
}

// campaignStream is the campaigns listing with one extra behavior: when the
// "ads" pseudo-field is selected, each campaign record carries the ids of
// its ads, pulled through a second listing per campaign.
type campaignStream struct {
	sch     schema.Schema
	account Account
	logger  *slog.Logger
}

func newCampaignStream(sch schema.Schema, deps Deps) *campaignStream {
	return &campaignStream{sch: sch, account: deps.Account, logger: deps.Logger}
}

func (s *campaignStream) Name() string { return "campaigns" }

func (s *campaignStream) KeyProperties() []string { return []string{"id"} }

func (s *campaignStream) Sync(ctx context.Context, emit Emitter) error {
	selected := s.sch.Selected("ads")
	fields := selected.SelectedFields()

	pullAds := false
	if field, ok := s.sch.Fields["ads"]; ok && field.Selected {
		pullAds = true
	}

	s.logger.Info("Syncing stream",
		slog.String("stream", s.Name()),
		slog.Any("fields", fields),
		slog.Bool("pull_ads", pullAds),
	)

	pager, err := s.account.ListCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("list campaigns: %w", err)
	}

	for pager.Next(ctx) {
		row, err := s.account.ReadNode(ctx, pager.ID(), fields)
		if err != nil {
			return fmt.Errorf("read campaign %s: %w", pager.ID(), err)
		}

		record, err := transform.Transform(row, selected)
		if err != nil {
			s.logger.Error("Record failed validation",
				slog.String("stream", s.Name()),
				slog.String("id", pager.ID()),
				slog.String("error", err.Error()),
			)

			return fmt.Errorf("stream campaigns entity %s: %w", pager.ID(), err)
		}

		if pullAds {
			ads, err := s.campaignAdIDs(ctx, pager.ID())
			if err != nil {
				return err
			}

			record["ads"] = map[string]any{"data": ads}
		}

		if err := emit.Record(ctx, s.Name(), record); err != nil {
			return err
		}
	}

	return pager.Err()
}

func (s *campaignStream) campaignAdIDs(ctx context.Context, campaignID string) ([]map[string]any, error) {
	pager, err := s.account.ListCampaignAds(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list ads for campaign %s: %w", campaignID, err)
	}

	ads := make([]map[string]any, 0)

	for pager.Next(ctx) {
		ads = append(ads, map[string]any{"id": pager.ID()})
	}

	if err := pager.Err(); err != nil {
		return nil, fmt.Errorf("list ads for campaign %s: %w", campaignID, err)
	}

	return ads, nil
}
