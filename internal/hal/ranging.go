package hal

import (
	"math"
	"time"
)

// SoundFactor converts an echo pulse width in seconds to centimeters
// (half the speed of sound, 343 m/s, expressed in cm/s).
const SoundFactor = 17150

// DefaultEchoTimeout bounds each phase of the echo wait.
const DefaultEchoTimeout = 100 * time.Millisecond

// maxEchoPolls caps the busy-wait loop independently of the clock.
const maxEchoPolls = 5_000_000

// Ranging is the outcome of one ranging cycle.
type Ranging struct {
	Pulse    time.Duration
	Distance Distance
	// RiseTimedOut is set when no rising edge arrived within the timeout.
	RiseTimedOut bool
	// FallTimedOut is set when the echo stayed high for the whole timeout.
	FallTimedOut bool
	// TimedOut is set when either phase timed out. Pulse is then derived
	// from stale timestamps.
	TimedOut bool
}

// DistanceFromPulse converts an echo pulse width to a clamped distance,
// rounded to two decimals.
func DistanceFromPulse(pulse time.Duration) Distance {
	cm := pulse.Seconds() * SoundFactor
	if math.IsNaN(cm) || cm < 0 {
		return 0
	}
	cm = math.Round(cm*100) / 100
	if cm > float64(MaxDistance) {
		return MaxDistance
	}
	return Distance(cm)
}

// timeEcho measures the high pulse on the echo line.
//
// Both phases are bounded by timeout and maxPolls. On timeout the start/end
// marks keep whatever was last observed, so a lost echo yields a degenerate
// pulse (often negative or near zero) rather than an error.
func timeEcho(level func() int, now func() time.Time, timeout time.Duration) Ranging {
	start := now()
	end := now()

	rose := waitWhile(level, 0, now, timeout, &start)
	fell := waitWhile(level, 1, now, timeout, &end)

	pulse := end.Sub(start)
	return Ranging{
		Pulse:        pulse,
		Distance:     DistanceFromPulse(pulse),
		RiseTimedOut: !rose,
		FallTimedOut: !fell,
		TimedOut:     !rose || !fell,
	}
}

// waitWhile polls until level differs from want, updating mark on every poll.
// Returns false if the deadline or poll cap was hit first.
func waitWhile(level func() int, want int, now func() time.Time, timeout time.Duration, mark *time.Time) bool {
	deadline := now().Add(timeout)
	for i := 0; i < maxEchoPolls; i++ {
		if level() != want {
			return true
		}
		t := now()
		if !t.Before(deadline) {
			return false
		}
		*mark = t
	}
	return false
}
