package streams

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bonobos/tap-facebook/internal/insights"
	"github.com/bonobos/tap-facebook/internal/schema"
	"github.com/bonobos/tap-facebook/internal/state"
	"github.com/bonobos/tap-facebook/internal/transform"
)

// InsightsStream drives the incremental reporting-job engine for one
// insights variant: pull the next window from the scheduler, run it as a
// remote job, validate every result record, and advance the watermark only
// after the window is fully drained.
type InsightsStream struct {
	name       string
	sch        schema.Schema
	breakdowns []string
	store      *state.Store
	runner     *insights.Runner
	scheduler  *insights.Scheduler
	logger     *slog.Logger
	limit      int
}

// NewInsightsStream builds the insights variant with the given breakdown
// dimensions (see insights.Breakdowns).
func NewInsightsStream(name string, sch schema.Schema, breakdowns []string, deps Deps) *InsightsStream {
	limit := deps.PageSize
	if limit <= 0 {
		limit = insights.DefaultPageSize
	}

	return &InsightsStream{
		name:       name,
		sch:        sch,
		breakdowns: breakdowns,
		store:      deps.State,
		runner:     deps.Runner,
		scheduler:  deps.Scheduler,
		logger:     deps.Logger,
		limit:      limit,
	}
}

// Name implements Stream.
func (s *InsightsStream) Name() string { return s.name }

// KeyProperties implements Stream.
func (s *InsightsStream) KeyProperties() []string { return []string{"id", "updated_time"} }

// Sync implements Stream.
//
// For each window: run the job, emit every validated record while tracking
// the minimum date_start seen, then advance the watermark with that minimum
// and emit the snapshot as a checkpoint — strictly after the window's
// records. A window yielding zero records advances nothing: the watermark
// moves on observed data, not elapsed time, and the 28-day overlap
// guarantees an empty day is revisited.
func (s *InsightsStream) Sync(ctx context.Context, emit Emitter) error {
	fields := s.sch.SelectedFields()
	selected := s.sch.Selected()

	s.logger.Info("Syncing stream",
		slog.String("stream", s.name),
		slog.Any("fields", fields),
		slog.Any("breakdowns", s.breakdowns),
	)

	base := insights.Params{
		Breakdowns:               s.breakdowns,
		ActionBreakdowns:         insights.AllActionBreakdowns,
		ActionAttributionWindows: insights.AllActionAttributionWindows,
		Fields:                   fields,
		TimeIncrement:            insights.DefaultTimeIncrement,
		Limit:                    s.limit,
	}

	windows := s.scheduler.From(s.store.Get(s.name), base)

	for {
		params, ok := windows.Next()
		if !ok {
			return nil
		}

		if err := s.syncWindow(ctx, params, selected, emit); err != nil {
			return err
		}
	}
}

func (s *InsightsStream) syncWindow(
	ctx context.Context,
	params insights.Params,
	selected schema.Schema,
	emit Emitter,
) error {
	window := fmt.Sprintf("%s..%s", state.FormatDate(params.Since), state.FormatDate(params.Until))
	logger := s.logger.With(
		slog.String("stream", s.name),
		slog.String("window", window),
	)

	pager, err := s.runner.Run(ctx, params)
	if err != nil {
		logger.Error("Insights window failed", slog.String("error", err.Error()))

		return fmt.Errorf("stream %s window %s: %w", s.name, window, err)
	}

	var minDateStart string

	records := 0

	for pager.Next(ctx) {
		record, err := transform.Transform(pager.Row(), selected)
		if err != nil {
			logger.Error("Record failed validation", slog.String("error", err.Error()))

			return fmt.Errorf("stream %s window %s: %w", s.name, window, err)
		}

		if dateStart, ok := record["date_start"].(string); ok {
			if minDateStart == "" || dateStart < minDateStart {
				minDateStart = dateStart
			}
		}

		if err := emit.Record(ctx, s.name, record); err != nil {
			return err
		}

		records++
	}

	if err := pager.Err(); err != nil {
		logger.Error("Result paging failed", slog.String("error", err.Error()))

		return fmt.Errorf("stream %s window %s: %w", s.name, window, err)
	}

	if records == 0 || minDateStart == "" {
		logger.Debug("Empty window, watermark unchanged")

		return nil
	}

	minDate, err := state.ParseDate(minDateStart)
	if err != nil {
		return fmt.Errorf("stream %s window %s: malformed date_start %q: %w",
			s.name, window, minDateStart, err)
	}

	snapshot := s.store.Advance(s.name, minDate)

	logger.Info("Window drained",
		slog.Int("records", records),
		slog.String("min_date_start", minDateStart),
		slog.String("watermark", snapshot[s.name]),
	)

	return emit.Checkpoint(ctx, s.name, snapshot)
}
