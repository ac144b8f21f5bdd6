// Package hal is the hardware abstraction layer between the decision loop and
// the robot's pins. It exposes ranging, flame sensing, differential drive,
// pump and buzzer primitives and contains no decision logic.
//
// The real implementation drives Linux GPIO character device lines.
// The fake implementation records every call for tests.
package hal

import "fmt"

// HAL is the set of primitives the controller depends on.
// All methods are called from the decision loop goroutine only.
type HAL interface {
	// MeasureDistance fires one ranging pulse and returns the clamped distance.
	// A lost echo degrades to a best-effort reading rather than an error.
	MeasureDistance() Distance

	// ReadFlames returns the logical flame state of the three sensors.
	// Raw lines are active-low: raw 0 = flame present.
	ReadFlames() FlameState

	// Drive applies a motion command to both wheels.
	Drive(cmd MotionCommand)

	// Pump switches the water pump.
	Pump(on bool)

	// Buzz sounds the buzzer for the given number of on/off pulses.
	// It blocks until the sequence completes.
	Buzz(pulses int)

	// Close stops PWM and releases hardware resources.
	Close() error
}

// MaxDistance is the sentinel reading for "no echo / out of range", in cm.
const MaxDistance Distance = 400

// Distance is a range reading in centimeters, always within [0, MaxDistance].
type Distance float64

// FlameState holds one flame signature per sensor.
type FlameState struct {
	Left   bool
	Center bool
	Right  bool
}

// Any reports whether any sensor sees a flame.
func (f FlameState) Any() bool {
	return f.Left || f.Center || f.Right
}

func (f FlameState) String() string {
	return fmt.Sprintf("L:%t C:%t R:%t", f.Left, f.Center, f.Right)
}
