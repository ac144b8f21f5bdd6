//go:build linux

package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warthog618/go-gpiocdev"
)

// Driver drives the robot through the Linux GPIO character device.
type Driver struct {
	chip *gpiocdev.Chip

	leftFwd, leftBwd   *gpiocdev.Line
	rightFwd, rightBwd *gpiocdev.Line
	leftPWM, rightPWM  *softPWM

	flameLeft, flameCenter, flameRight *gpiocdev.Line

	trig, echo *gpiocdev.Line
	pump       *gpiocdev.Line
	buzzer     *gpiocdev.Line

	// every requested line, in request order, for Close
	lines []*gpiocdev.Line

	timing    Timing
	log       zerolog.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewDriver claims all lines, starts both PWM channels at 0% duty and
// switches the pump off. Any failure releases what was already claimed.
func NewDriver(pins Pins, timing Timing, log zerolog.Logger) (*Driver, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", pins.Chip, err)
	}

	d := &Driver{
		chip:   chip,
		timing: timing,
		log:    log.With().Str("component", "hal").Logger(),
	}

	req := &lineRequest{chip: chip, d: d}
	d.leftFwd = req.output("motor-left-fwd", pins.MotorLeftFwd)
	d.leftBwd = req.output("motor-left-bwd", pins.MotorLeftBwd)
	d.rightFwd = req.output("motor-right-fwd", pins.MotorRightFwd)
	d.rightBwd = req.output("motor-right-bwd", pins.MotorRightBwd)
	leftEn := req.output("motor-left-en", pins.MotorLeftEn)
	rightEn := req.output("motor-right-en", pins.MotorRightEn)
	d.flameLeft = req.input("flame-left", pins.FlameLeft)
	d.flameCenter = req.input("flame-center", pins.FlameCenter)
	d.flameRight = req.input("flame-right", pins.FlameRight)
	d.trig = req.output("trig", pins.Trig)
	d.echo = req.input("echo", pins.Echo)
	d.pump = req.output("pump", pins.Pump)
	d.buzzer = req.output("buzzer", pins.Buzzer)
	if req.err != nil {
		d.release()
		return nil, req.err
	}

	d.leftPWM = newSoftPWM(leftEn, timing.PWMFrequency, "motor-left-en", d.log)
	d.rightPWM = newSoftPWM(rightEn, timing.PWMFrequency, "motor-right-en", d.log)
	d.leftPWM.Start()
	d.rightPWM.Start()

	d.Pump(false)
	return d, nil
}

// MeasureDistance pulses the trigger line and times the echo.
func (d *Driver) MeasureDistance() Distance {
	d.set(d.trig, 0, "trig")
	time.Sleep(10 * time.Microsecond)
	d.set(d.trig, 1, "trig")
	time.Sleep(10 * time.Microsecond)
	d.set(d.trig, 0, "trig")

	r := timeEcho(d.echoLevel, time.Now, d.timing.EchoTimeout)
	if r.TimedOut {
		d.log.Debug().
			Bool("rise", r.RiseTimedOut).
			Bool("fall", r.FallTimedOut).
			Dur("pulse", r.Pulse).
			Float64("distance_cm", float64(r.Distance)).
			Msg("echo timeout, using stale timestamps")
	}
	return r.Distance
}

func (d *Driver) echoLevel() int {
	v, err := d.echo.Value()
	if err != nil {
		// Reads as low; the wait then ends on its deadline.
		d.log.Warn().Err(err).Msg("read echo pin")
		return 0
	}
	return v
}

// ReadFlames reads and inverts the three active-low sensor lines.
func (d *Driver) ReadFlames() FlameState {
	return FlameState{
		Left:   d.flame(d.flameLeft, "flame-left"),
		Center: d.flame(d.flameCenter, "flame-center"),
		Right:  d.flame(d.flameRight, "flame-right"),
	}
}

func (d *Driver) flame(l *gpiocdev.Line, name string) bool {
	v, err := l.Value()
	if err != nil {
		d.log.Warn().Err(err).Str("pin", name).Msg("read flame sensor")
		return false
	}
	return v == 0
}

// Drive sets both duty cycles then the four direction lines.
func (d *Driver) Drive(cmd MotionCommand) {
	left, right := cmd.Wheels()
	d.leftPWM.SetDuty(left.Duty)
	d.rightPWM.SetDuty(right.Duty)
	d.set(d.leftFwd, b2i(left.Fwd), "motor-left-fwd")
	d.set(d.leftBwd, b2i(left.Bwd), "motor-left-bwd")
	d.set(d.rightFwd, b2i(right.Fwd), "motor-right-fwd")
	d.set(d.rightBwd, b2i(right.Bwd), "motor-right-bwd")
}

// Pump switches the pump relay.
func (d *Driver) Pump(on bool) {
	d.set(d.pump, b2i(on), "pump")
}

// Buzz blocks for pulses * 2 * BuzzPhase.
func (d *Driver) Buzz(pulses int) {
	for i := 0; i < pulses; i++ {
		d.set(d.buzzer, 1, "buzzer")
		time.Sleep(d.timing.BuzzPhase)
		d.set(d.buzzer, 0, "buzzer")
		time.Sleep(d.timing.BuzzPhase)
	}
}

// Close stops both PWM channels, drives every output low and releases all
// lines. Lines are reconfigured as inputs with pull-down first to match the
// Pi boot defaults. Calling Close again returns the first result.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.leftPWM.Stop()
		d.rightPWM.Stop()
		d.Drive(Stop())
		d.Pump(false)
		d.set(d.buzzer, 0, "buzzer")
		d.closeErr = d.release()
	})
	return d.closeErr
}

func (d *Driver) release() error {
	var errs []error
	for _, l := range d.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", l.Offset(), err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", l.Offset(), err))
		}
	}
	d.lines = nil
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		d.chip = nil
	}
	return errors.Join(errs...)
}

// lineRequest claims lines until the first failure; later calls are no-ops.
type lineRequest struct {
	chip *gpiocdev.Chip
	d    *Driver
	err  error
}

func (r *lineRequest) output(name string, offset int) *gpiocdev.Line {
	return r.request(name, offset, gpiocdev.AsOutput(0))
}

func (r *lineRequest) input(name string, offset int) *gpiocdev.Line {
	return r.request(name, offset, gpiocdev.AsInput)
}

func (r *lineRequest) request(name string, offset int, opt gpiocdev.LineReqOption) *gpiocdev.Line {
	if r.err != nil {
		return nil
	}
	l, err := r.chip.RequestLine(offset, opt)
	if err != nil {
		r.err = fmt.Errorf("request %s pin %d: %w", name, offset, err)
		return nil
	}
	r.d.lines = append(r.d.lines, l)
	return l
}

func (d *Driver) set(l *gpiocdev.Line, v int, name string) {
	if err := l.SetValue(v); err != nil {
		d.log.Warn().Err(err).Str("pin", name).Int("value", v).Msg("set line")
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
