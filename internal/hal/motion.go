package hal

import "fmt"

// Motion is the kind of a MotionCommand.
type Motion int

const (
	MotionStop Motion = iota
	MotionForward
	MotionBackward
	MotionTurnLeft
	MotionTurnRight
)

func (m Motion) String() string {
	switch m {
	case MotionStop:
		return "STOP"
	case MotionForward:
		return "FORWARD"
	case MotionBackward:
		return "BACKWARD"
	case MotionTurnLeft:
		return "TURN_LEFT"
	case MotionTurnRight:
		return "TURN_RIGHT"
	}
	return fmt.Sprintf("MOTION(%d)", int(m))
}

// MotionCommand is the single drive instruction issued per actuation.
// Speed is a duty cycle percentage; it is ignored for MotionStop.
type MotionCommand struct {
	Motion Motion
	Speed  int
}

// Forward drives both wheels forward at speed percent.
func Forward(speed int) MotionCommand {
	return MotionCommand{Motion: MotionForward, Speed: clampSpeed(speed)}
}

// Backward drives both wheels backward at speed percent.
func Backward(speed int) MotionCommand {
	return MotionCommand{Motion: MotionBackward, Speed: clampSpeed(speed)}
}

// TurnLeft spins in place to the left.
func TurnLeft(speed int) MotionCommand {
	return MotionCommand{Motion: MotionTurnLeft, Speed: clampSpeed(speed)}
}

// TurnRight spins in place to the right.
func TurnRight(speed int) MotionCommand {
	return MotionCommand{Motion: MotionTurnRight, Speed: clampSpeed(speed)}
}

// Stop zeroes both duty cycles and clears all direction lines.
func Stop() MotionCommand {
	return MotionCommand{Motion: MotionStop}
}

func (c MotionCommand) String() string {
	if c.Motion == MotionStop {
		return c.Motion.String()
	}
	return fmt.Sprintf("%s(%d)", c.Motion, c.Speed)
}

// Wheel is the H-bridge state of one side: two direction lines and a duty cycle.
type Wheel struct {
	Fwd  bool
	Bwd  bool
	Duty int
}

// Wheels maps a command onto both sides of the H-bridge.
// Turning spins the wheels in opposite directions.
func (c MotionCommand) Wheels() (left, right Wheel) {
	duty := clampSpeed(c.Speed)
	fwd := Wheel{Fwd: true, Duty: duty}
	bwd := Wheel{Bwd: true, Duty: duty}

	switch c.Motion {
	case MotionForward:
		return fwd, fwd
	case MotionBackward:
		return bwd, bwd
	case MotionTurnLeft:
		return bwd, fwd
	case MotionTurnRight:
		return fwd, bwd
	}
	return Wheel{}, Wheel{}
}

func clampSpeed(speed int) int {
	if speed < 0 {
		return 0
	}
	if speed > 100 {
		return 100
	}
	return speed
}
