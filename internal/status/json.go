package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Behavior      string       `json:"behavior"`
	Flames        *FlamesJSON  `json:"flames"`
	DistanceCM    *float64     `json:"distance_cm"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// FlamesJSON is one flag per flame sensor.
type FlamesJSON struct {
	Left   bool `json:"left"`
	Center bool `json:"center"`
	Right  bool `json:"right"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of tick counters.
type CountsJSON struct {
	Ticks        int `json:"ticks"`
	Fires        int `json:"fires"`
	Extinguishes int `json:"extinguishes"`
	Avoids       int `json:"avoids"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SessionID   string  `json:"session_id,omitempty"`
	TickMs      int64   `json:"tick_ms"`
	ObstacleCM  float64 `json:"obstacle_cm"`
	FireNearCM  float64 `json:"fire_near_cm"`
	PumpMs      int64   `json:"pump_ms"`
	SpeedNormal int     `json:"speed_normal"`
	SpeedTurn   int     `json:"speed_turn"`
	SpeedPatrol int     `json:"speed_patrol"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	Broker      string  `json:"broker"`
	HTTPAddr    string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	behavior := string(snap.Behavior)
	if behavior == "" {
		behavior = "UNKNOWN"
	}

	inner := StatusInner{
		Mode:          snap.Mode.String(),
		Behavior:      behavior,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Ticks:        snap.Counts.Ticks,
			Fires:        snap.Counts.Fires,
			Extinguishes: snap.Counts.Extinguishes,
			Avoids:       snap.Counts.Avoids,
		},
		Config: ConfigJSON{
			SessionID:   snap.Config.SessionID,
			TickMs:      snap.Config.TickMs,
			ObstacleCM:  snap.Config.ObstacleCM,
			FireNearCM:  snap.Config.FireNearCM,
			PumpMs:      snap.Config.PumpMs,
			SpeedNormal: snap.Config.SpeedNormal,
			SpeedTurn:   snap.Config.SpeedTurn,
			SpeedPatrol: snap.Config.SpeedPatrol,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	// Readings stay null until a tick has sensed.
	if snap.Sensed {
		d := float64(snap.Distance)
		inner.DistanceCM = &d
		inner.Flames = &FlamesJSON{
			Left:   snap.Flames.Left,
			Center: snap.Flames.Center,
			Right:  snap.Flames.Right,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
