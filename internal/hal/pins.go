package hal

import (
	"fmt"
	"time"
)

// Pins holds BCM line offsets for every device the robot drives or reads.
type Pins struct {
	Chip string

	MotorLeftFwd  int
	MotorLeftBwd  int
	MotorRightFwd int
	MotorRightBwd int
	MotorLeftEn   int
	MotorRightEn  int

	FlameLeft   int
	FlameCenter int
	FlameRight  int

	Trig int
	Echo int

	Pump   int
	Buzzer int
}

// DefaultPins matches the reference wiring (BCM numbering).
var DefaultPins = Pins{
	Chip:          "gpiochip0",
	MotorLeftFwd:  17,
	MotorLeftBwd:  27,
	MotorRightFwd: 23,
	MotorRightBwd: 24,
	MotorLeftEn:   12,
	MotorRightEn:  13,
	FlameLeft:     5,
	FlameCenter:   6,
	FlameRight:    26,
	Trig:          20,
	Echo:          21,
	Pump:          16,
	Buzzer:        19,
}

// Validate rejects negative or duplicated offsets.
func (p Pins) Validate() error {
	named := []struct {
		name   string
		offset int
	}{
		{"motor-left-fwd", p.MotorLeftFwd},
		{"motor-left-bwd", p.MotorLeftBwd},
		{"motor-right-fwd", p.MotorRightFwd},
		{"motor-right-bwd", p.MotorRightBwd},
		{"motor-left-en", p.MotorLeftEn},
		{"motor-right-en", p.MotorRightEn},
		{"flame-left", p.FlameLeft},
		{"flame-center", p.FlameCenter},
		{"flame-right", p.FlameRight},
		{"trig", p.Trig},
		{"echo", p.Echo},
		{"pump", p.Pump},
		{"buzzer", p.Buzzer},
	}

	seen := make(map[int]string, len(named))
	for _, n := range named {
		if n.offset < 0 {
			return fmt.Errorf("pin %s: negative offset %d", n.name, n.offset)
		}
		if other, ok := seen[n.offset]; ok {
			return fmt.Errorf("pin %s: offset %d already used by %s", n.name, n.offset, other)
		}
		seen[n.offset] = n.name
	}
	return nil
}

// Timing holds the fixed durations used inside HAL primitives.
type Timing struct {
	EchoTimeout  time.Duration
	BuzzPhase    time.Duration
	PWMFrequency int // Hz
}

// DefaultTiming matches the reference firmware.
var DefaultTiming = Timing{
	EchoTimeout:  DefaultEchoTimeout,
	BuzzPhase:    100 * time.Millisecond,
	PWMFrequency: 1000,
}
