// Package mqtt publishes robot telemetry with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/firebot/firebot/internal/logic"
)

// Topic is the MQTT topic for robot events.
const Topic = "firebot/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "firebot/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a robot event to the broker.
	// Called from the decision loop; must not block on the network.
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Robot RobotPayload `json:"robot"`
}

// RobotPayload contains the robot event details.
type RobotPayload struct {
	Timestamp  string        `json:"timestamp"`
	Event      string        `json:"event"`
	Behavior   string        `json:"behavior,omitempty"`
	Mode       string        `json:"mode"`
	Flames     FlamesPayload `json:"flames"`
	DistanceCM float64       `json:"distance_cm"`
}

// FlamesPayload is one flag per flame sensor.
type FlamesPayload struct {
	Left   bool `json:"left"`
	Center bool `json:"center"`
	Right  bool `json:"right"`
}

// FormatPayload creates the JSON payload for a robot event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Robot: RobotPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Behavior:  string(event.Behavior),
			Mode:      event.Mode.String(),
			Flames: FlamesPayload{
				Left:   event.Flames.Left,
				Center: event.Flames.Center,
				Right:  event.Flames.Right,
			},
			DistanceCM: float64(event.Distance),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Nop is the Publisher used when telemetry is disabled.
type Nop struct{}

// Publish discards the event.
func (Nop) Publish(logic.Event) error {
	return nil
}

// PublishSystem discards the event.
func (Nop) PublishSystem(SystemEvent) error {
	return nil
}

// Close is a no-op.
func (Nop) Close() error {
	return nil
}

// IsConnected always reports false.
func (Nop) IsConnected() bool {
	return false
}
