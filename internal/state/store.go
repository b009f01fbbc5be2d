// Package state tracks per-stream watermarks: the furthest calendar date
// through which each stream's data is considered durably synced.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DateLayout is the calendar-date serialization format used everywhere a
// watermark crosses a process boundary.
const DateLayout = "2006-01-02"

// ErrMalformedWatermark is returned when a persisted watermark date cannot
// be parsed. This is fatal at startup: guessing a default would silently
// re-sync or skip data.
var ErrMalformedWatermark = errors.New("malformed persisted watermark")

// Snapshot is an immutable full mapping of stream name to watermark date
// (YYYY-MM-DD), suitable for external persistence. It covers all streams,
// not just the one most recently advanced.
type Snapshot map[string]string

// Store is a keyed, monotonic per-stream date cursor.
//
// A cursor never moves backward: Advance is idempotent against replays of
// already-seen windows. Absence of an entry implies the configured global
// start date. The mutex makes the store safe for the concurrent-streams
// variant, where each stream advances only its own key.
type Store struct {
	mu        sync.RWMutex
	startDate time.Time
	cursors   map[string]time.Time
}

// NewStore creates a Store from the global start date and an optional
// persisted snapshot. Dates use DateLayout; a malformed persisted entry is a
// fatal initialization error (ErrMalformedWatermark).
func NewStore(startDate string, persisted Snapshot) (*Store, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
	}

	cursors := make(map[string]time.Time, len(persisted))

	for stream, value := range persisted {
		date, err := ParseDate(value)
		if err != nil {
			return nil, fmt.Errorf("%w: stream %s: %q", ErrMalformedWatermark, stream, value)
		}

		cursors[stream] = date
	}

	return &Store{startDate: start, cursors: cursors}, nil
}

// Get returns the persisted cursor for the stream, or the global start date
// if none is recorded.
func (s *Store) Get(stream string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if date, ok := s.cursors[stream]; ok {
		return date
	}

	return s.startDate
}

// Advance sets the stream's cursor to candidate only if strictly greater
// than the current cursor, then returns a snapshot of the entire mapping.
// Re-advancing with an older or equal date is a no-op apart from the
// snapshot, which always reflects current state.
func (s *Store) Advance(stream string, candidate time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cursors[stream]
	if !ok {
		current = s.startDate
	}

	if candidate.After(current) {
		s.cursors[stream] = candidate
	}

	return s.snapshotLocked()
}

// Current returns a snapshot of the mapping without advancing anything.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// snapshotLocked copies the cursor map. Caller must hold at least a read lock.
func (s *Store) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(s.cursors))
	for stream, date := range s.cursors {
		snap[stream] = FormatDate(date)
	}

	return snap
}

// ParseDate parses a calendar date in DateLayout.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// FormatDate formats a calendar date in DateLayout.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}
