package hal

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// lineSetter is the subset of a GPIO output line used by softPWM.
type lineSetter interface {
	SetValue(value int) error
}

// softPWM toggles an output line in a goroutine to emulate a PWM channel.
// Duty is read atomically on every period, so SetDuty never blocks.
type softPWM struct {
	line   lineSetter
	period time.Duration
	duty   atomic.Int32
	log    zerolog.Logger
	failed atomic.Bool // a write error was already logged

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func newSoftPWM(line lineSetter, freqHz int, name string, log zerolog.Logger) *softPWM {
	if freqHz <= 0 {
		freqHz = 1000
	}
	return &softPWM{
		line:   line,
		period: time.Second / time.Duration(freqHz),
		log:    log.With().Str("line", name).Logger(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins toggling at 0% duty.
func (p *softPWM) Start() {
	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.run()
	})
}

// SetDuty sets the duty cycle in percent, clamped to [0, 100].
func (p *softPWM) SetDuty(pct int) {
	p.duty.Store(int32(clampSpeed(pct)))
}

// Duty returns the current duty cycle in percent.
func (p *softPWM) Duty() int {
	return int(p.duty.Load())
}

// Stop halts the goroutine and leaves the line low. Safe to call twice.
func (p *softPWM) Stop() {
	p.stopOnce.Do(func() {
		p.duty.Store(0)
		close(p.stop)
		if p.started.Load() {
			<-p.done
		}
		p.set(0)
	})
}

// set writes v and logs only the first failure.
func (p *softPWM) set(v int) {
	err := p.line.SetValue(v)
	if err != nil && p.failed.CompareAndSwap(false, true) {
		p.log.Warn().Err(err).Int("value", v).Msg("pwm write failed")
	}
}

func (p *softPWM) run() {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		duty := p.Duty()
		switch {
		case duty <= 0:
			p.set(0)
			time.Sleep(p.period)
		case duty >= 100:
			p.set(1)
			time.Sleep(p.period)
		default:
			on := p.period * time.Duration(duty) / 100
			p.set(1)
			time.Sleep(on)
			p.set(0)
			time.Sleep(p.period - on)
		}
	}
}
