package main

import (
	"bytes"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firebot/firebot/internal/config"
	"github.com/firebot/firebot/internal/hal"
	"github.com/firebot/firebot/internal/logic"
	"github.com/firebot/firebot/internal/mqtt"
	"github.com/firebot/firebot/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		assert.Equal(t, canonical, got)
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}, *info)
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, readNetworkInfo())
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, "connected", info.Status)
	assert.Empty(t, info.IP)
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "UNKNOWN", signalName(syscall.SIGHUP))
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.Broker = "tcp://broker:1883"
	cfg.HTTPAddr = ":8080"

	sc := statusConfig(cfg, "session-1")
	assert.Equal(t, "session-1", sc.SessionID)
	assert.Equal(t, int64(50), sc.TickMs)
	assert.Equal(t, 20.0, sc.ObstacleCM)
	assert.Equal(t, 15.0, sc.FireNearCM)
	assert.Equal(t, int64(3000), sc.PumpMs)
	assert.Equal(t, 70, sc.SpeedNormal)
	assert.Equal(t, "tcp://broker:1883", sc.Broker)
	assert.Equal(t, ":8080", sc.HTTPAddr)
}

func TestInitFailedClosesHAL(t *testing.T) {
	initErr := errors.New("init mqtt: bad broker")

	h := &hookHAL{Fake: hal.NewFake(hal.FlameState{}, 100)}
	err := initFailed(initErr, h)
	assert.Same(t, initErr, err)
	assert.True(t, h.State.Closed)

	h = &hookHAL{Fake: hal.NewFake(hal.FlameState{}, 100), closeErr: errors.New("line busy")}
	err = initFailed(initErr, h)
	require.ErrorIs(t, err, initErr)
	assert.Contains(t, err.Error(), "close hal: line busy")
	assert.True(t, h.State.Closed)
}

func TestPrintState(t *testing.T) {
	var buf bytes.Buffer
	printState(&buf, hal.NewFake(hal.FlameState{Center: true}, 42.5))
	assert.Equal(t, "Flames: L:false C:true R:false, Distance: 42.50cm\n", buf.String())
}

// --- runLoop tests ---

// hookHAL wraps hal.Fake with callbacks that let a test act from inside the
// decision loop goroutine.
type hookHAL struct {
	*hal.Fake
	measures      int
	afterMeasure  func(n int)
	onPumpOn      func()
	panicOnFlames bool
	closeErr      error
}

func (h *hookHAL) MeasureDistance() hal.Distance {
	d := h.Fake.MeasureDistance()
	h.measures++
	if h.afterMeasure != nil {
		h.afterMeasure(h.measures)
	}
	return d
}

func (h *hookHAL) ReadFlames() hal.FlameState {
	if h.panicOnFlames {
		panic("flame sensor exploded")
	}
	return h.Fake.ReadFlames()
}

func (h *hookHAL) Pump(on bool) {
	h.Fake.Pump(on)
	if on && h.onPumpOn != nil {
		h.onPumpOn()
	}
}

func (h *hookHAL) Close() error {
	h.Fake.Close()
	return h.closeErr
}

type harness struct {
	d       *daemon
	hal     *hookHAL
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	sig     chan os.Signal
	hb      chan time.Time
	refresh chan time.Time
	errc    chan error
}

func newHarness(flames hal.FlameState, distance hal.Distance) *harness {
	h := &hookHAL{Fake: hal.NewFake(flames, distance)}
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{})
	controller := logic.New(h, logic.DefaultSettings(),
		logic.WithSleep(h.Sleep),
		logic.WithEventSink(pub),
		logic.WithRecorder(tracker),
	)
	return &harness{
		d: &daemon{
			hal:        h,
			controller: controller,
			publisher:  pub,
			mqttStatus: pub,
			tracker:    tracker,
			log:        zerolog.Nop(),
			now:        time.Now,
		},
		hal:     h,
		pub:     pub,
		tracker: tracker,
		sig:     make(chan os.Signal, 1),
		hb:      make(chan time.Time),
		refresh: make(chan time.Time),
		errc:    make(chan error, 1),
	}
}

func (h *harness) start() {
	done := h.d.start()
	go func() {
		h.errc <- h.d.runLoop(loopChans{
			sig:       h.sig,
			heartbeat: h.hb,
			refresh:   h.refresh,
			done:      done,
		})
	}()
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

// signalAfter sends s from inside the loop once n distance reads happened.
func (h *harness) signalAfter(n int, s os.Signal) {
	h.hal.afterMeasure = func(got int) {
		if got == n {
			h.sig <- s
		}
	}
}

func tail(calls []hal.Call, n int) []string {
	if len(calls) < n {
		n = len(calls)
	}
	out := make([]string, 0, n)
	for _, c := range calls[len(calls)-n:] {
		out = append(out, c.String())
	}
	return out
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	h := newHarness(hal.FlameState{}, 200)
	h.signalAfter(4, syscall.SIGTERM)
	h.start()

	require.NoError(t, h.wait(t))

	assert.Equal(t, []string{"STOP", "PUMP_OFF", "CLOSE"}, tail(h.hal.Actuations(), 3))
	assert.True(t, h.hal.State.Closed)
	assert.False(t, h.hal.State.Pump)

	require.Equal(t, []string{"SHUTDOWN"}, h.pub.SystemEventNames())
	ev := h.pub.SystemEvents[0]
	assert.Equal(t, "SIGTERM", ev.Reason)
	assert.True(t, ev.Retained)
	assert.Contains(t, string(ev.RawPayload), `"reason":"SIGTERM"`)
	assert.True(t, h.pub.Closed)
	assert.False(t, h.d.controller.Running())
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	h := newHarness(hal.FlameState{}, 200)
	h.signalAfter(2, syscall.SIGINT)
	h.start()

	require.NoError(t, h.wait(t))
	require.Len(t, h.pub.SystemEvents, 1)
	assert.Equal(t, "SIGINT", h.pub.SystemEvents[0].Reason)
}

func TestRunLoopShutdownCompletesManeuver(t *testing.T) {
	h := newHarness(hal.FlameState{Center: true}, 5)
	h.hal.onPumpOn = func() {
		h.sig <- syscall.SIGTERM
		for h.d.controller.Running() {
			time.Sleep(time.Millisecond)
		}
	}
	h.start()

	require.NoError(t, h.wait(t))

	calls := h.hal.Actuations()
	var pumpOn int
	for _, c := range calls {
		if c.Op == hal.OpPump && c.On {
			pumpOn++
		}
	}
	assert.Equal(t, 1, pumpOn, "exactly one extinguish")
	assert.Equal(t, []string{
		"PUMP_ON", "BUZZ(3)", "WAIT(3s)", "PUMP_OFF",
		"BACKWARD(70)", "WAIT(1s)", "STOP",
		"WAIT(50ms)",
		"STOP", "PUMP_OFF", "CLOSE",
	}, tail(calls, 11))

	assert.Equal(t, 1, h.tracker.Snapshot().Counts.Extinguishes)
	require.Len(t, h.pub.Events, 2)
	assert.Equal(t, logic.EventFireDetected, h.pub.Events[0].Type)
	assert.Equal(t, logic.EventExtinguish, h.pub.Events[1].Type)
}

func TestRunLoopHeartbeat(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.0.0.7")

	h := newHarness(hal.FlameState{}, 200)
	h.start()

	h.hb <- time.Now()
	h.sig <- syscall.SIGTERM
	require.NoError(t, h.wait(t))

	assert.Equal(t, []string{"HEARTBEAT", "SHUTDOWN"}, h.pub.SystemEventNames())
	hb := h.pub.SystemEvents[0]
	assert.False(t, hb.Retained)
	assert.Contains(t, string(hb.RawPayload), `"event":"HEARTBEAT"`)
	assert.Contains(t, string(hb.RawPayload), `"ip":"10.0.0.7"`)
}

func TestRunLoopRefreshUpdatesMQTTStatus(t *testing.T) {
	h := newHarness(hal.FlameState{}, 200)
	h.pub.Connected = true
	h.start()

	h.refresh <- time.Now()
	assert.Eventually(t, func() bool {
		return h.tracker.Snapshot().MQTTConnected
	}, time.Second, time.Millisecond)

	h.sig <- syscall.SIGTERM
	require.NoError(t, h.wait(t))
}

func TestRunLoopPanicCleansUp(t *testing.T) {
	h := newHarness(hal.FlameState{}, 200)
	h.hal.panicOnFlames = true
	h.start()

	err := h.wait(t)
	require.ErrorIs(t, err, errLoopPanic)
	assert.True(t, h.hal.State.Closed)
	require.Len(t, h.pub.SystemEvents, 1)
	assert.Equal(t, "FAULT", h.pub.SystemEvents[0].Reason)
}

func TestRunLoopPublishErrorDoesNotBlockShutdown(t *testing.T) {
	h := newHarness(hal.FlameState{}, 200)
	h.pub.PublishSystemError = errors.New("broker gone")
	h.signalAfter(2, syscall.SIGTERM)
	h.start()

	require.NoError(t, h.wait(t))
	assert.True(t, h.hal.State.Closed)
	assert.True(t, h.pub.Closed)
}

func TestRunLoopCloseErrorReturned(t *testing.T) {
	h := newHarness(hal.FlameState{}, 200)
	h.hal.closeErr = errors.New("line busy")
	h.signalAfter(2, syscall.SIGTERM)
	h.start()

	err := h.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close hal: line busy")
	assert.True(t, h.pub.Closed, "publisher closed despite hal error")
}

func TestCleanupRunsOnce(t *testing.T) {
	h := newHarness(hal.FlameState{}, 200)

	require.NoError(t, h.d.cleanup("SIGTERM"))
	require.NoError(t, h.d.cleanup("SIGINT"))

	var closes int
	for _, c := range h.hal.Calls {
		if c.Op == hal.OpClose {
			closes++
		}
	}
	assert.Equal(t, 1, closes)
	assert.Equal(t, []string{"SHUTDOWN"}, h.pub.SystemEventNames())
	assert.Equal(t, "SIGTERM", h.pub.SystemEvents[0].Reason)
}

func TestAnnounceStartup(t *testing.T) {
	h := newHarness(hal.FlameState{}, 200)
	h.d.announce("STARTUP", "")

	require.Len(t, h.pub.SystemEvents, 1)
	ev := h.pub.SystemEvents[0]
	assert.Equal(t, "STARTUP", ev.Event)
	assert.True(t, ev.Retained)
	assert.NotContains(t, string(ev.RawPayload), "reason")
	assert.Empty(t, h.hal.Calls, "announcing touches no hardware")
}
