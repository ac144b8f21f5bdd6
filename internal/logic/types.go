// Package logic contains the robot's decision loop: priority arbitration
// between extinguishing, obstacle avoidance, fire seeking and patrol.
// All hardware access goes through hal.HAL and all waiting through an
// injectable sleep function, so tests run without hardware or real time.
package logic

import (
	"fmt"
	"time"

	"github.com/firebot/firebot/internal/hal"
)

// Mode gates whether the controller actuates.
type Mode int32

const (
	ModeAutonomous Mode = iota
	ModeIdle
)

func (m Mode) String() string {
	switch m {
	case ModeAutonomous:
		return "AUTONOMOUS"
	case ModeIdle:
		return "IDLE"
	}
	return fmt.Sprintf("MODE(%d)", int32(m))
}

// Behavior is the branch chosen by one tick.
type Behavior string

const (
	BehaviorIdle       Behavior = "IDLE"
	BehaviorExtinguish Behavior = "EXTINGUISH"
	BehaviorAvoid      Behavior = "AVOID"
	BehaviorSeek       Behavior = "SEEK"
	BehaviorPatrol     Behavior = "PATROL"
)

// EventType names a telemetry event emitted by the controller.
type EventType string

const (
	EventFireDetected EventType = "FIRE_DETECTED"
	EventExtinguish   EventType = "EXTINGUISH"
	EventObstacle     EventType = "OBSTACLE"
	EventModeChanged  EventType = "MODE_CHANGED"
)

// Event is a notable moment in the robot's life, published as telemetry.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Behavior  Behavior
	Mode      Mode
	Flames    hal.FlameState
	Distance  hal.Distance
}

// Decision is the outcome of one tick.
type Decision struct {
	Behavior Behavior
	Flames   hal.FlameState
	Distance hal.Distance
	// Command is the steady drive command left running after the tick
	// (Seek and Patrol only). Maneuvers always end stopped.
	Command hal.MotionCommand
}

// Counts tracks tick outcomes since startup.
type Counts struct {
	Ticks        int
	Fires        int // rising edges of "any flame"
	Extinguishes int
	Avoids       int
}

// Settings holds the thresholds, speeds and durations the controller uses.
// It is immutable once the controller is built.
type Settings struct {
	ObstacleDistance hal.Distance
	FireNearDistance hal.Distance
	PumpDuration     time.Duration

	SpeedNormal int // seek forward, reversing
	SpeedTurn   int // seek turns, avoid turn
	SpeedPatrol int

	Tick              time.Duration
	AvoidPause        time.Duration
	AvoidReverse      time.Duration
	AvoidTurn         time.Duration
	ExtinguishReverse time.Duration

	AlertPulses      int
	ExtinguishPulses int
}

// DefaultSettings matches the reference robot.
func DefaultSettings() Settings {
	return Settings{
		ObstacleDistance:  20,
		FireNearDistance:  15,
		PumpDuration:      3 * time.Second,
		SpeedNormal:       70,
		SpeedTurn:         60,
		SpeedPatrol:       60,
		Tick:              50 * time.Millisecond,
		AvoidPause:        300 * time.Millisecond,
		AvoidReverse:      500 * time.Millisecond,
		AvoidTurn:         500 * time.Millisecond,
		ExtinguishReverse: time.Second,
		AlertPulses:       1,
		ExtinguishPulses:  3,
	}
}
