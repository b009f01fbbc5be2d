package insights

import "time"

// Clock abstracts wall-clock reads and blocking sleeps so the polling loop
// and window scheduler can be driven by simulated time in tests.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time

	// Sleep blocks for the given duration.
	Sleep(d time.Duration)
}

// SystemClock is the real-time Clock used in production.
type SystemClock struct{}

// Compile-time assertion that SystemClock implements Clock.
var _ Clock = SystemClock{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
