package hal

import (
	"fmt"
	"time"
)

// Op identifies a recorded Fake call.
type Op string

const (
	OpMeasure Op = "MEASURE"
	OpFlames  Op = "FLAMES"
	OpDrive   Op = "DRIVE"
	OpPump    Op = "PUMP"
	OpBuzz    Op = "BUZZ"
	OpWait    Op = "WAIT"
	OpClose   Op = "CLOSE"
)

// Call is one recorded interaction with the Fake.
type Call struct {
	Op      Op
	Command MotionCommand // OpDrive
	On      bool          // OpPump
	Pulses  int           // OpBuzz
	Wait    time.Duration // OpWait
}

func (c Call) String() string {
	switch c.Op {
	case OpDrive:
		return c.Command.String()
	case OpPump:
		if c.On {
			return "PUMP_ON"
		}
		return "PUMP_OFF"
	case OpBuzz:
		return fmt.Sprintf("BUZZ(%d)", c.Pulses)
	case OpWait:
		return fmt.Sprintf("WAIT(%v)", c.Wait)
	}
	return string(c.Op)
}

// PinState is the simulated level of every actuator line.
type PinState struct {
	Left   Wheel
	Right  Wheel
	Pump   bool
	Closed bool
}

// Fake is a test double that returns scripted readings and records calls.
// It is not safe for concurrent use.
type Fake struct {
	// Flames contains scripted flame readings. Each ReadFlames consumes the
	// next one; once exhausted the last one repeats.
	Flames []FlameState

	// Distances contains scripted distance readings, consumed like Flames.
	Distances []Distance

	// Calls is the ordered log of every call, including Sleep.
	Calls []Call

	// State mirrors what the real lines would hold.
	State PinState

	flameIdx    int
	distanceIdx int
}

// NewFake creates a Fake with a single repeating reading.
func NewFake(flames FlameState, distance Distance) *Fake {
	return &Fake{
		Flames:    []FlameState{flames},
		Distances: []Distance{distance},
	}
}

// MeasureDistance returns the next scripted distance, clamped like the real
// driver. With no script it reports MaxDistance.
func (f *Fake) MeasureDistance() Distance {
	f.Calls = append(f.Calls, Call{Op: OpMeasure})
	if len(f.Distances) == 0 {
		return MaxDistance
	}
	d := f.Distances[f.distanceIdx]
	if f.distanceIdx < len(f.Distances)-1 {
		f.distanceIdx++
	}
	switch {
	case d < 0:
		return 0
	case d > MaxDistance:
		return MaxDistance
	}
	return d
}

// ReadFlames returns the next scripted flame state.
func (f *Fake) ReadFlames() FlameState {
	f.Calls = append(f.Calls, Call{Op: OpFlames})
	if len(f.Flames) == 0 {
		return FlameState{}
	}
	s := f.Flames[f.flameIdx]
	if f.flameIdx < len(f.Flames)-1 {
		f.flameIdx++
	}
	return s
}

// Drive records the command and recomputes both wheels.
func (f *Fake) Drive(cmd MotionCommand) {
	f.Calls = append(f.Calls, Call{Op: OpDrive, Command: cmd})
	f.State.Left, f.State.Right = cmd.Wheels()
}

// Pump records the pump switch.
func (f *Fake) Pump(on bool) {
	f.Calls = append(f.Calls, Call{Op: OpPump, On: on})
	f.State.Pump = on
}

// Buzz records the pulse count without blocking.
func (f *Fake) Buzz(pulses int) {
	f.Calls = append(f.Calls, Call{Op: OpBuzz, Pulses: pulses})
}

// Close marks the fake as closed and zeroes every actuator.
func (f *Fake) Close() error {
	f.Calls = append(f.Calls, Call{Op: OpClose})
	f.State = PinState{Closed: true}
	return nil
}

// Sleep records a wait instead of blocking. Pass it to the controller as its
// sleep function to capture maneuver timing in the same call log.
func (f *Fake) Sleep(d time.Duration) {
	f.Calls = append(f.Calls, Call{Op: OpWait, Wait: d})
}

// Actuations returns the recorded calls that change hardware or wait,
// dropping sensor reads.
func (f *Fake) Actuations() []Call {
	var out []Call
	for _, c := range f.Calls {
		if c.Op == OpMeasure || c.Op == OpFlames {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Reset clears recorded calls and rewinds the scripts.
func (f *Fake) Reset() {
	f.Calls = nil
	f.flameIdx = 0
	f.distanceIdx = 0
}
