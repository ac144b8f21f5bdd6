package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firebot/firebot/internal/hal"
	"github.com/firebot/firebot/internal/logic"
)

var ts = time.Date(2026, 1, 3, 12, 30, 0, 0, time.UTC)

func fireEvent() logic.Event {
	return logic.Event{
		Timestamp: ts,
		Type:      logic.EventFireDetected,
		Behavior:  logic.BehaviorSeek,
		Mode:      logic.ModeAutonomous,
		Flames:    hal.FlameState{Left: true},
		Distance:  42.5,
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	got, err := FormatPayload(fireEvent())
	require.NoError(t, err)

	want := `{"robot":{"timestamp":"2026-01-03T12:30:00Z","event":"FIRE_DETECTED","behavior":"SEEK","mode":"AUTONOMOUS","flames":{"left":true,"center":false,"right":false},"distance_cm":42.5}}`
	assert.JSONEq(t, want, string(got))
}

func TestFormatPayloadAllEventTypes(t *testing.T) {
	for _, typ := range []logic.EventType{
		logic.EventFireDetected,
		logic.EventExtinguish,
		logic.EventObstacle,
		logic.EventModeChanged,
	} {
		t.Run(string(typ), func(t *testing.T) {
			ev := fireEvent()
			ev.Type = typ
			got, err := FormatPayload(ev)
			require.NoError(t, err)

			var p Payload
			require.NoError(t, json.Unmarshal(got, &p))
			assert.Equal(t, string(typ), p.Robot.Event)
		})
	}
}

func TestFormatPayloadOmitsEmptyBehavior(t *testing.T) {
	got, err := FormatPayload(logic.Event{Timestamp: ts, Type: logic.EventModeChanged, Mode: logic.ModeIdle})
	require.NoError(t, err)
	assert.NotContains(t, string(got), `"behavior"`)
	assert.Contains(t, string(got), `"mode":"IDLE"`)
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	ev := fireEvent()
	ev.Timestamp = time.Date(2026, 1, 3, 13, 30, 0, 0, loc)

	got, err := FormatPayload(ev)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"timestamp":"2026-01-03T12:30:00Z"`)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "firebot/events", Topic)
	assert.Equal(t, "firebot/system", TopicSystem)
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	got, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "SHUTDOWN", Reason: "SIGTERM"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"system":{"timestamp":"2026-01-03T12:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`, string(got))
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	got, err := FormatSystemPayload(SystemEvent{Timestamp: ts, Event: "RECONNECTED"})
	require.NoError(t, err)
	assert.NotContains(t, string(got), "reason")
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"system":{"event":"HEARTBEAT"}}`)
	got, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestFakePublisher(t *testing.T) {
	pub := NewFakePublisher()
	require.NoError(t, pub.Publish(fireEvent()))
	require.NoError(t, pub.PublishSystem(SystemEvent{Timestamp: ts, Event: "STARTUP", Retained: true}))

	require.Len(t, pub.Events, 1)
	require.Len(t, pub.Payloads, 1)
	assert.Equal(t, []string{"STARTUP"}, pub.SystemEventNames())
	assert.True(t, pub.SystemEvents[0].Retained)
	assert.Contains(t, string(pub.SystemPayloads[0]), "STARTUP")
}

func TestFakePublisherErrors(t *testing.T) {
	pub := NewFakePublisher()
	pub.PublishError = errors.New("boom")
	pub.PublishSystemError = errors.New("bang")

	assert.EqualError(t, pub.Publish(fireEvent()), "boom")
	assert.EqualError(t, pub.PublishSystem(SystemEvent{Event: "STARTUP"}), "bang")
	assert.Empty(t, pub.Events)
	assert.Empty(t, pub.SystemEvents)
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	pub := NewFakePublisher()
	pub.Connected = true
	require.NoError(t, pub.Publish(fireEvent()))
	require.NoError(t, pub.Close())
	assert.True(t, pub.Closed)
	assert.True(t, pub.IsConnected())

	pub.Reset()
	assert.False(t, pub.Closed)
	assert.False(t, pub.IsConnected())
	assert.Empty(t, pub.Events)

	require.NoError(t, pub.Publish(fireEvent()))
	assert.Len(t, pub.Events, 1, "reusable after reset")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(fireEvent()))
	assert.NoError(t, p.PublishSystem(SystemEvent{Event: "STARTUP"}))
	assert.NoError(t, p.Close())
	assert.False(t, Nop{}.IsConnected())
}

func TestInterfaces(t *testing.T) {
	var _ Publisher = (*RealPublisher)(nil)
	var _ ConnectionStatus = (*RealPublisher)(nil)
	var _ Publisher = (*FakePublisher)(nil)
	var _ ConnectionStatus = (*FakePublisher)(nil)
	var _ logic.EventSink = (*FakePublisher)(nil)
}
