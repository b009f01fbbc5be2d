package insights

import "time"

// lookbackDays is the fixed trailing context each daily window carries,
// matching the platform's longest attribution window. Re-requesting the
// same trailing range daily picks up late-attributed results without
// reprocessing from scratch; downstream de-duplicates by primary key.
const lookbackDays = 28

// Scheduler produces the ordered, finite sequence of report windows
// covering the gap between a stream's watermark and now.
type Scheduler struct {
	// Clock supplies "now". It is re-evaluated on every iteration, never
	// frozen, so the sequence is guaranteed to terminate.
	Clock Clock

	// MaxWindows caps how many windows a single sync run may produce.
	// Zero means unbounded, matching the reference behavior; a cap only
	// truncates one run — the watermark resumes the next run where this
	// one stopped.
	MaxWindows int
}

// Windows is a lazy iterator over report windows. Each window spans
// [until-28d, until], stepping both bounds forward one day at a time until
// until passes now.
type Windows struct {
	clock      Clock
	since      time.Time
	until      time.Time
	base       Params
	produced   int
	maxWindows int
}

// From starts the window sequence at the given watermark date. The base
// params carry the per-stream query parameters (breakdowns, fields, page
// size); From fills in the time range per window.
func (s *Scheduler) From(watermark time.Time, base Params) *Windows {
	return &Windows{
		clock:      s.Clock,
		since:      watermark.AddDate(0, 0, -lookbackDays),
		until:      watermark,
		base:       base,
		maxWindows: s.MaxWindows,
	}
}

// Next yields the next window, or false when the sequence is exhausted:
// either until has passed now, or the MaxWindows clamp was reached.
func (w *Windows) Next() (Params, bool) {
	if w.maxWindows > 0 && w.produced >= w.maxWindows {
		return Params{}, false
	}

	if w.until.After(w.clock.Now()) {
		return Params{}, false
	}

	params := w.base
	params.Since = w.since
	params.Until = w.until

	w.since = w.since.AddDate(0, 0, 1)
	w.until = w.until.AddDate(0, 0, 1)
	w.produced++

	return params, true
}
