// Command firebot drives a fire-fighting robot: it seeks flames, avoids
// obstacles, extinguishes with a water pump, and publishes telemetry to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/firebot/firebot/internal/config"
	"github.com/firebot/firebot/internal/hal"
	"github.com/firebot/firebot/internal/logging"
	"github.com/firebot/firebot/internal/logic"
	"github.com/firebot/firebot/internal/mqtt"
	"github.com/firebot/firebot/internal/status"
	"github.com/firebot/firebot/internal/web"
)

const (
	readyPulses     = 2
	refreshInterval = time.Second
	shutdownTimeout = 2 * time.Second
)

var (
	flagConfig     string
	flagPrintState bool
	flagConsole    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "firebot",
		Short:        "Autonomous fire-fighting robot controller",
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a YAML, JSON or TOML config file")
	rootCmd.Flags().BoolVar(&flagPrintState, "print-state", false, "Print current sensor readings and exit")
	rootCmd.Flags().BoolVar(&flagConsole, "console", false, "Human-readable log output instead of JSON")
	config.RegisterFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig, cmd.Flags())
	if err != nil {
		return err
	}

	var sinks []io.Writer
	if cfg.LogGELF != "" {
		g, err := logging.GELF(cfg.LogGELF)
		if err != nil {
			return err
		}
		defer g.Close()
		sinks = append(sinks, g)
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel, flagConsole, sinks...)
	if err != nil {
		return err
	}
	session := uuid.NewString()
	log = log.With().Str("session", session).Logger()

	// Hardware init failure is fatal: there is nothing to drive.
	driver, err := hal.NewDriver(cfg.HALPins(), cfg.HALTiming(), log)
	if err != nil {
		log.Error().Err(err).Msg("init hal")
		return fmt.Errorf("init hal: %w", err)
	}

	if flagPrintState {
		printState(cmd.OutOrStdout(), driver)
		return driver.Close()
	}

	var publisher mqtt.Publisher = mqtt.Nop{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.Nop{}
	if cfg.Telemetry.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.Telemetry.Broker,
			ClientID:   cfg.Telemetry.ClientID,
			BufferSize: cfg.Telemetry.Buffer,
		}, log)
		if err != nil {
			return initFailed(fmt.Errorf("init mqtt: %w", err), driver)
		}
		publisher, mqttStatus = p, p
	} else {
		log.Info().Msg("telemetry disabled")
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, session))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	controller := logic.New(driver, cfg.Settings(),
		logic.WithLogger(log),
		logic.WithEventSink(publisher),
		logic.WithRecorder(tracker),
		logic.WithMode(cfg.InitialMode()),
	)

	d := &daemon{
		hal:        driver,
		controller: controller,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		log:        log,
		now:        time.Now,
	}

	d.announce("STARTUP", "")

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http status server listening")
	}

	driver.Buzz(readyPulses)
	log.Info().
		Str("mode", cfg.InitialMode().String()).
		Str("broker", cfg.Telemetry.Broker).
		Dur("heartbeat", cfg.Telemetry.Heartbeat).
		Msg("started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var heartbeat <-chan time.Time
	if cfg.Telemetry.Heartbeat > 0 {
		t := time.NewTicker(cfg.Telemetry.Heartbeat)
		defer t.Stop()
		heartbeat = t.C
	}
	refresh := time.NewTicker(refreshInterval)
	defer refresh.Stop()

	return d.runLoop(loopChans{
		sig:       sigCh,
		heartbeat: heartbeat,
		refresh:   refresh.C,
		done:      d.start(),
	})
}

// initFailed releases the HAL after a later init step failed.
func initFailed(err error, h hal.HAL) error {
	if cerr := h.Close(); cerr != nil {
		return errors.Join(err, fmt.Errorf("close hal: %w", cerr))
	}
	return err
}

func statusConfig(cfg config.Config, session string) status.Config {
	return status.Config{
		SessionID:   session,
		TickMs:      cfg.Timing.Tick.Milliseconds(),
		ObstacleCM:  cfg.Thresholds.ObstacleCM,
		FireNearCM:  cfg.Thresholds.FireNearCM,
		PumpMs:      cfg.Thresholds.PumpDuration.Milliseconds(),
		SpeedNormal: cfg.Speeds.Normal,
		SpeedTurn:   cfg.Speeds.Turn,
		SpeedPatrol: cfg.Speeds.Patrol,
		HeartbeatMs: cfg.Telemetry.Heartbeat.Milliseconds(),
		Broker:      cfg.Telemetry.Broker,
		HTTPAddr:    cfg.HTTPAddr,
	}
}

func printState(w io.Writer, h hal.HAL) {
	flames := h.ReadFlames()
	distance := h.MeasureDistance()
	fmt.Fprintf(w, "Flames: %s, Distance: %.2fcm\n", flames, float64(distance))
}

// daemon owns the process-level resources around the decision loop.
type daemon struct {
	hal        hal.HAL
	controller *logic.Controller
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	log        zerolog.Logger
	now        func() time.Time

	cleanupOnce sync.Once
	cleanupErr  error
}

type loopChans struct {
	sig       <-chan os.Signal
	heartbeat <-chan time.Time // nil disables
	refresh   <-chan time.Time
	done      <-chan error // decision loop finished
}

var errLoopPanic = errors.New("decision loop panicked")

// start runs the decision loop on its own goroutine. The returned channel
// receives once when the loop returns.
func (d *daemon) start() <-chan error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error().Interface("panic", r).Msg("decision loop")
				done <- fmt.Errorf("%w: %v", errLoopPanic, r)
				return
			}
			done <- nil
		}()
		d.controller.Run()
	}()
	return done
}

func (d *daemon) runLoop(ch loopChans) error {
	for {
		select {
		case s := <-ch.sig:
			reason := signalName(s)
			d.log.Info().Str("signal", reason).Msg("shutting down")
			d.controller.Shutdown()
			// The in-flight maneuver completes before the loop returns.
			loopErr := <-ch.done
			return errors.Join(loopErr, d.cleanup(reason))

		case err := <-ch.done:
			reason := "LOOP_EXIT"
			if err != nil {
				reason = "FAULT"
			}
			return errors.Join(err, d.cleanup(reason))

		case <-ch.heartbeat:
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			d.announce("HEARTBEAT", "")

		case <-ch.refresh:
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
	}
}

// announce publishes a system event carrying a full status snapshot.
func (d *daemon) announce(event, reason string) {
	d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.log.Warn().Err(err).Str("event", event).Msg("publish system event")
		return
	}
	d.log.Debug().Str("event", event).Msg("published system event")
}

// cleanup leaves the hardware safe and closes telemetry. Only the first call
// has any effect.
func (d *daemon) cleanup(reason string) error {
	d.cleanupOnce.Do(func() {
		d.hal.Drive(hal.Stop())
		d.hal.Pump(false)
		var errs []error
		if err := d.hal.Close(); err != nil {
			d.log.Error().Err(err).Msg("close hal")
			errs = append(errs, fmt.Errorf("close hal: %w", err))
		}
		d.announce("SHUTDOWN", reason)
		if err := d.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
		d.cleanupErr = errors.Join(errs...)
		d.log.Info().Str("reason", reason).Msg("stopped")
	})
	return d.cleanupErr
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
