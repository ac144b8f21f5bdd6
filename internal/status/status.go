// Package status provides a thread-safe status tracker for the firebot daemon.
// It is read by HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/firebot/firebot/internal/hal"
	"github.com/firebot/firebot/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	SessionID   string // unique per process start
	TickMs      int64
	ObstacleCM  float64
	FireNearCM  float64
	PumpMs      int64
	SpeedNormal int
	SpeedTurn   int
	SpeedPatrol int
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode          logic.Mode
	Behavior      logic.Behavior
	Flames        hal.FlameState
	Distance      hal.Distance
	Sensed        bool // at least one tick has read the sensors
	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Record stores the outcome of a tick. Idle ticks don't read the sensors,
// so the last readings are kept.
func (t *Tracker) Record(d logic.Decision, mode logic.Mode, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.Behavior = d.Behavior
	t.snap.Counts = counts
	if d.Behavior != logic.BehaviorIdle {
		t.snap.Flames = d.Flames
		t.snap.Distance = d.Distance
		t.snap.Sensed = true
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
