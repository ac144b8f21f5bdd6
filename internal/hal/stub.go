//go:build !linux

package hal

import (
	"errors"

	"github.com/rs/zerolog"
)

// Driver is not available on non-Linux platforms.
type Driver struct{}

// NewDriver returns an error on non-Linux platforms.
func NewDriver(pins Pins, timing Timing, log zerolog.Logger) (*Driver, error) {
	return nil, errors.New("hal: not supported on this platform (requires Linux)")
}

// MeasureDistance is not implemented on non-Linux platforms.
func (d *Driver) MeasureDistance() Distance {
	return MaxDistance
}

// ReadFlames is not implemented on non-Linux platforms.
func (d *Driver) ReadFlames() FlameState {
	return FlameState{}
}

// Drive is not implemented on non-Linux platforms.
func (d *Driver) Drive(cmd MotionCommand) {}

// Pump is not implemented on non-Linux platforms.
func (d *Driver) Pump(on bool) {}

// Buzz is not implemented on non-Linux platforms.
func (d *Driver) Buzz(pulses int) {}

// Close is not implemented on non-Linux platforms.
func (d *Driver) Close() error {
	return nil
}
