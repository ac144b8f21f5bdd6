package logic

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/firebot/firebot/internal/hal"
)

// EventSink receives telemetry events. Publish must not block for long;
// it is called from the decision loop.
type EventSink interface {
	Publish(event Event) error
}

// Recorder receives the outcome of every tick.
type Recorder interface {
	Record(d Decision, mode Mode, counts Counts)
}

// Controller runs the decision loop against a HAL.
//
// Mode and the run flag may be written from any goroutine and are read at
// tick boundaries only. Everything else belongs to the loop goroutine.
type Controller struct {
	hal      hal.HAL
	set      Settings
	sleep    func(time.Duration)
	now      func() time.Time
	log      zerolog.Logger
	sink     EventSink
	recorder Recorder
	metrics  *metrics

	mode    atomic.Int32
	running atomic.Bool

	counts   Counts
	lastFire bool
	lastMode Mode
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleep replaces time.Sleep for every wait in the loop and maneuvers.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = sleep }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the controller's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log.With().Str("component", "controller").Logger() }
}

// WithEventSink publishes telemetry events to sink.
func WithEventSink(sink EventSink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithRecorder reports every tick to r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithMode sets the initial mode.
func WithMode(m Mode) Option {
	return func(c *Controller) {
		c.mode.Store(int32(m))
		c.lastMode = m
	}
}

// New creates a controller in autonomous mode with the run flag set.
func New(h hal.HAL, set Settings, opts ...Option) *Controller {
	c := &Controller{
		hal:     h,
		set:     set,
		sleep:   time.Sleep,
		now:     time.Now,
		log:     zerolog.Nop(),
		metrics: newMetrics(),
	}
	c.running.Store(true)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetMode switches between autonomous and idle. Takes effect on the next tick.
func (c *Controller) SetMode(m Mode) {
	c.mode.Store(int32(m))
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	return Mode(c.mode.Load())
}

// Running reports whether the run flag is still set.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Shutdown clears the run flag. Run returns after the current tick,
// including any maneuver in flight, completes.
func (c *Controller) Shutdown() {
	c.running.Store(false)
}

// Counts returns the tick counters. Only meaningful from the loop goroutine
// or after Run has returned.
func (c *Controller) Counts() Counts {
	return c.counts
}

// Run ticks until the run flag is cleared, sleeping Settings.Tick between
// ticks.
func (c *Controller) Run() {
	c.log.Info().Str("mode", c.Mode().String()).Dur("tick", c.set.Tick).Msg("decision loop started")
	for c.running.Load() {
		c.Tick()
		c.sleep(c.set.Tick)
	}
	c.log.Info().
		Int("ticks", c.counts.Ticks).
		Int("fires", c.counts.Fires).
		Int("extinguishes", c.counts.Extinguishes).
		Int("avoids", c.counts.Avoids).
		Msg("decision loop stopped")
}

// Tick runs one arbitration step. The first matching branch wins:
// idle, then fire (extinguish / avoid / seek by distance), then patrol.
func (c *Controller) Tick() Decision {
	mode := c.Mode()
	if mode != c.lastMode {
		c.log.Info().Str("from", c.lastMode.String()).Str("to", mode.String()).Msg("mode changed")
		c.lastMode = mode
		c.emit(EventModeChanged, Decision{})
	}

	c.counts.Ticks++
	c.metrics.tick()

	if mode == ModeIdle {
		// Idle ticks do not touch the HAL at all.
		c.lastFire = false
		return c.finish(Decision{Behavior: BehaviorIdle}, mode)
	}

	flames := c.hal.ReadFlames()
	distance := c.hal.MeasureDistance()
	d := Decision{Flames: flames, Distance: distance}

	if !flames.Any() {
		c.lastFire = false
		return c.finish(c.patrol(flames), mode)
	}

	if !c.lastFire {
		c.counts.Fires++
		c.metrics.fire()
		c.log.Info().Stringer("flames", flames).Float64("distance_cm", float64(distance)).Msg("fire detected")
		c.emit(EventFireDetected, d)
	}
	c.lastFire = true

	c.hal.Buzz(c.set.AlertPulses)

	switch {
	case distance < c.set.FireNearDistance:
		d.Behavior = BehaviorExtinguish
		c.hal.Drive(hal.Stop())
		c.extinguish(d)
	case distance < c.set.ObstacleDistance:
		d.Behavior = BehaviorAvoid
		c.avoid(d)
	default:
		d.Behavior = BehaviorSeek
		d.Command = c.seek(flames)
	}
	return c.finish(d, mode)
}

func (c *Controller) finish(d Decision, mode Mode) Decision {
	if c.recorder != nil {
		c.recorder.Record(d, mode, c.counts)
	}
	return d
}

func (c *Controller) emit(t EventType, d Decision) {
	if c.sink == nil {
		return
	}
	event := Event{
		Timestamp: c.now(),
		Type:      t,
		Behavior:  d.Behavior,
		Mode:      c.Mode(),
		Flames:    d.Flames,
		Distance:  d.Distance,
	}
	if err := c.sink.Publish(event); err != nil {
		c.log.Warn().Err(err).Str("event", string(t)).Msg("publish event")
	}
}
