// Package config loads the robot's static configuration once at startup.
// Sources, highest precedence first: command-line flags, FIREBOT_* environment
// variables, an optional config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/firebot/firebot/internal/hal"
	"github.com/firebot/firebot/internal/logic"
)

// EnvPrefix is prepended to every environment variable key.
const EnvPrefix = "FIREBOT"

// Config is the complete, immutable robot configuration.
type Config struct {
	Pins       Pins       `mapstructure:"pins"`
	Thresholds Thresholds `mapstructure:"thresholds"`
	Speeds     Speeds     `mapstructure:"speeds"`
	Timing     Timing     `mapstructure:"timing"`
	Telemetry  Telemetry  `mapstructure:"telemetry"`
	HTTPAddr   string     `mapstructure:"http"`
	LogLevel   string     `mapstructure:"log_level"`
	LogGELF    string     `mapstructure:"log_gelf"`
	StartIdle  bool       `mapstructure:"idle"`
}

// Pins are BCM line offsets on Chip.
type Pins struct {
	Chip          string `mapstructure:"chip"`
	MotorLeftFwd  int    `mapstructure:"motor_left_fwd"`
	MotorLeftBwd  int    `mapstructure:"motor_left_bwd"`
	MotorRightFwd int    `mapstructure:"motor_right_fwd"`
	MotorRightBwd int    `mapstructure:"motor_right_bwd"`
	MotorLeftEn   int    `mapstructure:"motor_left_en"`
	MotorRightEn  int    `mapstructure:"motor_right_en"`
	FlameLeft     int    `mapstructure:"flame_left"`
	FlameCenter   int    `mapstructure:"flame_center"`
	FlameRight    int    `mapstructure:"flame_right"`
	Trig          int    `mapstructure:"trig"`
	Echo          int    `mapstructure:"echo"`
	Pump          int    `mapstructure:"pump"`
	Buzzer        int    `mapstructure:"buzzer"`
}

// Thresholds are the distances and durations that drive arbitration.
type Thresholds struct {
	ObstacleCM   float64       `mapstructure:"obstacle_cm"`
	FireNearCM   float64       `mapstructure:"fire_near_cm"`
	PumpDuration time.Duration `mapstructure:"pump_duration"`
}

// Speeds are duty cycle presets in percent.
type Speeds struct {
	Fast   int `mapstructure:"fast"`
	Normal int `mapstructure:"normal"`
	Slow   int `mapstructure:"slow"`
	Turn   int `mapstructure:"turn"`
	Patrol int `mapstructure:"patrol"`
}

// Timing holds loop, maneuver and HAL durations.
type Timing struct {
	Tick              time.Duration `mapstructure:"tick"`
	EchoTimeout       time.Duration `mapstructure:"echo_timeout"`
	BuzzPhase         time.Duration `mapstructure:"buzz_phase"`
	AvoidPause        time.Duration `mapstructure:"avoid_pause"`
	AvoidReverse      time.Duration `mapstructure:"avoid_reverse"`
	AvoidTurn         time.Duration `mapstructure:"avoid_turn"`
	ExtinguishReverse time.Duration `mapstructure:"extinguish_reverse"`
	PWMFrequency      int           `mapstructure:"pwm_frequency"`
}

// Telemetry configures MQTT publishing. An empty Broker disables it.
type Telemetry struct {
	Broker    string        `mapstructure:"broker"`
	ClientID  string        `mapstructure:"client_id"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`
	Buffer    int           `mapstructure:"buffer"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := hal.DefaultPins
	s := logic.DefaultSettings()
	ht := hal.DefaultTiming
	return Config{
		Pins: Pins{
			Chip:          p.Chip,
			MotorLeftFwd:  p.MotorLeftFwd,
			MotorLeftBwd:  p.MotorLeftBwd,
			MotorRightFwd: p.MotorRightFwd,
			MotorRightBwd: p.MotorRightBwd,
			MotorLeftEn:   p.MotorLeftEn,
			MotorRightEn:  p.MotorRightEn,
			FlameLeft:     p.FlameLeft,
			FlameCenter:   p.FlameCenter,
			FlameRight:    p.FlameRight,
			Trig:          p.Trig,
			Echo:          p.Echo,
			Pump:          p.Pump,
			Buzzer:        p.Buzzer,
		},
		Thresholds: Thresholds{
			ObstacleCM:   float64(s.ObstacleDistance),
			FireNearCM:   float64(s.FireNearDistance),
			PumpDuration: s.PumpDuration,
		},
		Speeds: Speeds{
			Fast:   90,
			Normal: s.SpeedNormal,
			Slow:   50,
			Turn:   s.SpeedTurn,
			Patrol: s.SpeedPatrol,
		},
		Timing: Timing{
			Tick:              s.Tick,
			EchoTimeout:       ht.EchoTimeout,
			BuzzPhase:         ht.BuzzPhase,
			AvoidPause:        s.AvoidPause,
			AvoidReverse:      s.AvoidReverse,
			AvoidTurn:         s.AvoidTurn,
			ExtinguishReverse: s.ExtinguishReverse,
			PWMFrequency:      ht.PWMFrequency,
		},
		Telemetry: Telemetry{
			ClientID:  "firebot",
			Heartbeat: 15 * time.Minute,
			Buffer:    100,
		},
		LogLevel: "info",
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"chip":          "pins.chip",
	"obstacle-cm":   "thresholds.obstacle_cm",
	"fire-near-cm":  "thresholds.fire_near_cm",
	"pump-duration": "thresholds.pump_duration",
	"tick":          "timing.tick",
	"broker":        "telemetry.broker",
	"client-id":     "telemetry.client_id",
	"heartbeat":     "telemetry.heartbeat",
	"http":          "http",
	"log-level":     "log_level",
	"log-gelf":      "log_gelf",
	"idle":          "idle",
}

// RegisterFlags adds the overridable settings to fs with default values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("chip", d.Pins.Chip, "GPIO chip device name")
	fs.Float64("obstacle-cm", d.Thresholds.ObstacleCM, "Obstacle distance threshold in cm")
	fs.Float64("fire-near-cm", d.Thresholds.FireNearCM, "Distance in cm at which a fire is extinguished")
	fs.Duration("pump-duration", d.Thresholds.PumpDuration, "How long the pump runs per extinguish")
	fs.Duration("tick", d.Timing.Tick, "Decision loop interval")
	fs.String("broker", d.Telemetry.Broker, "MQTT broker address for telemetry (empty to disable)")
	fs.String("client-id", d.Telemetry.ClientID, "MQTT client ID")
	fs.Duration("heartbeat", d.Telemetry.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.String("http", d.HTTPAddr, "HTTP status address (empty to disable)")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-gelf", d.LogGELF, "Graylog GELF UDP address to copy logs to (empty to disable)")
	fs.Bool("idle", d.StartIdle, "Start in idle mode")
}

// Load builds a Config from defaults, the optional file at path, the
// environment and any flags in fs that were set.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("pins.chip", d.Pins.Chip)
	v.SetDefault("pins.motor_left_fwd", d.Pins.MotorLeftFwd)
	v.SetDefault("pins.motor_left_bwd", d.Pins.MotorLeftBwd)
	v.SetDefault("pins.motor_right_fwd", d.Pins.MotorRightFwd)
	v.SetDefault("pins.motor_right_bwd", d.Pins.MotorRightBwd)
	v.SetDefault("pins.motor_left_en", d.Pins.MotorLeftEn)
	v.SetDefault("pins.motor_right_en", d.Pins.MotorRightEn)
	v.SetDefault("pins.flame_left", d.Pins.FlameLeft)
	v.SetDefault("pins.flame_center", d.Pins.FlameCenter)
	v.SetDefault("pins.flame_right", d.Pins.FlameRight)
	v.SetDefault("pins.trig", d.Pins.Trig)
	v.SetDefault("pins.echo", d.Pins.Echo)
	v.SetDefault("pins.pump", d.Pins.Pump)
	v.SetDefault("pins.buzzer", d.Pins.Buzzer)

	v.SetDefault("thresholds.obstacle_cm", d.Thresholds.ObstacleCM)
	v.SetDefault("thresholds.fire_near_cm", d.Thresholds.FireNearCM)
	v.SetDefault("thresholds.pump_duration", d.Thresholds.PumpDuration)

	v.SetDefault("speeds.fast", d.Speeds.Fast)
	v.SetDefault("speeds.normal", d.Speeds.Normal)
	v.SetDefault("speeds.slow", d.Speeds.Slow)
	v.SetDefault("speeds.turn", d.Speeds.Turn)
	v.SetDefault("speeds.patrol", d.Speeds.Patrol)

	v.SetDefault("timing.tick", d.Timing.Tick)
	v.SetDefault("timing.echo_timeout", d.Timing.EchoTimeout)
	v.SetDefault("timing.buzz_phase", d.Timing.BuzzPhase)
	v.SetDefault("timing.avoid_pause", d.Timing.AvoidPause)
	v.SetDefault("timing.avoid_reverse", d.Timing.AvoidReverse)
	v.SetDefault("timing.avoid_turn", d.Timing.AvoidTurn)
	v.SetDefault("timing.extinguish_reverse", d.Timing.ExtinguishReverse)
	v.SetDefault("timing.pwm_frequency", d.Timing.PWMFrequency)

	v.SetDefault("telemetry.broker", d.Telemetry.Broker)
	v.SetDefault("telemetry.client_id", d.Telemetry.ClientID)
	v.SetDefault("telemetry.heartbeat", d.Telemetry.Heartbeat)
	v.SetDefault("telemetry.buffer", d.Telemetry.Buffer)

	v.SetDefault("http", d.HTTPAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_gelf", d.LogGELF)
	v.SetDefault("idle", d.StartIdle)
}

// Validate rejects configurations the robot cannot run safely with.
func (c Config) Validate() error {
	var errs []error

	if err := c.HALPins().Validate(); err != nil {
		errs = append(errs, err)
	}

	for _, d := range []struct {
		name string
		cm   float64
	}{
		{"thresholds.obstacle_cm", c.Thresholds.ObstacleCM},
		{"thresholds.fire_near_cm", c.Thresholds.FireNearCM},
	} {
		if d.cm < 0 || d.cm > float64(hal.MaxDistance) {
			errs = append(errs, fmt.Errorf("%s: %v outside [0, %v]", d.name, d.cm, hal.MaxDistance))
		}
	}

	for _, s := range []struct {
		name string
		pct  int
	}{
		{"speeds.fast", c.Speeds.Fast},
		{"speeds.normal", c.Speeds.Normal},
		{"speeds.slow", c.Speeds.Slow},
		{"speeds.turn", c.Speeds.Turn},
		{"speeds.patrol", c.Speeds.Patrol},
	} {
		if s.pct < 0 || s.pct > 100 {
			errs = append(errs, fmt.Errorf("%s: %d outside [0, 100]", s.name, s.pct))
		}
	}

	for _, d := range []struct {
		name string
		dur  time.Duration
	}{
		{"thresholds.pump_duration", c.Thresholds.PumpDuration},
		{"timing.tick", c.Timing.Tick},
		{"timing.echo_timeout", c.Timing.EchoTimeout},
		{"timing.buzz_phase", c.Timing.BuzzPhase},
		{"timing.avoid_pause", c.Timing.AvoidPause},
		{"timing.avoid_reverse", c.Timing.AvoidReverse},
		{"timing.avoid_turn", c.Timing.AvoidTurn},
		{"timing.extinguish_reverse", c.Timing.ExtinguishReverse},
	} {
		if d.dur <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %v", d.name, d.dur))
		}
	}

	if c.Timing.PWMFrequency <= 0 {
		errs = append(errs, fmt.Errorf("timing.pwm_frequency: must be positive, got %d", c.Timing.PWMFrequency))
	}
	if c.Telemetry.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("telemetry.heartbeat: negative interval %v", c.Telemetry.Heartbeat))
	}
	if c.Telemetry.Broker != "" && c.Telemetry.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("telemetry.buffer: must be positive, got %d", c.Telemetry.Buffer))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	return errors.Join(errs...)
}

// HALPins converts the pin map for the HAL driver.
func (c Config) HALPins() hal.Pins {
	return hal.Pins{
		Chip:          c.Pins.Chip,
		MotorLeftFwd:  c.Pins.MotorLeftFwd,
		MotorLeftBwd:  c.Pins.MotorLeftBwd,
		MotorRightFwd: c.Pins.MotorRightFwd,
		MotorRightBwd: c.Pins.MotorRightBwd,
		MotorLeftEn:   c.Pins.MotorLeftEn,
		MotorRightEn:  c.Pins.MotorRightEn,
		FlameLeft:     c.Pins.FlameLeft,
		FlameCenter:   c.Pins.FlameCenter,
		FlameRight:    c.Pins.FlameRight,
		Trig:          c.Pins.Trig,
		Echo:          c.Pins.Echo,
		Pump:          c.Pins.Pump,
		Buzzer:        c.Pins.Buzzer,
	}
}

// HALTiming returns the durations used inside HAL primitives.
func (c Config) HALTiming() hal.Timing {
	return hal.Timing{
		EchoTimeout:  c.Timing.EchoTimeout,
		BuzzPhase:    c.Timing.BuzzPhase,
		PWMFrequency: c.Timing.PWMFrequency,
	}
}

// Settings returns the controller settings.
func (c Config) Settings() logic.Settings {
	s := logic.DefaultSettings()
	s.ObstacleDistance = hal.Distance(c.Thresholds.ObstacleCM)
	s.FireNearDistance = hal.Distance(c.Thresholds.FireNearCM)
	s.PumpDuration = c.Thresholds.PumpDuration
	s.SpeedNormal = c.Speeds.Normal
	s.SpeedTurn = c.Speeds.Turn
	s.SpeedPatrol = c.Speeds.Patrol
	s.Tick = c.Timing.Tick
	s.AvoidPause = c.Timing.AvoidPause
	s.AvoidReverse = c.Timing.AvoidReverse
	s.AvoidTurn = c.Timing.AvoidTurn
	s.ExtinguishReverse = c.Timing.ExtinguishReverse
	return s
}

// InitialMode is the mode the controller starts in.
func (c Config) InitialMode() logic.Mode {
	if c.StartIdle {
		return logic.ModeIdle
	}
	return logic.ModeAutonomous
}
