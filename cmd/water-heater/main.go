// Command water-heater reads a thermocouple, drives the heater servo with a
// median-filtered hysteresis controller and publishes transitions to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/sweeney/water-heater/internal/actuator"
	"github.com/sweeney/water-heater/internal/config"
	"github.com/sweeney/water-heater/internal/display"
	"github.com/sweeney/water-heater/internal/kafkabus"
	"github.com/sweeney/water-heater/internal/logic"
	"github.com/sweeney/water-heater/internal/metrics"
	"github.com/sweeney/water-heater/internal/mqtt"
	"github.com/sweeney/water-heater/internal/sensor"
	"github.com/sweeney/water-heater/internal/status"
	"github.com/sweeney/water-heater/internal/web"
)

const (
	mirrorTimeout   = time.Second
	shutdownTimeout = 2 * time.Second
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(cfg.Level())

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	sessionID := uuid.NewString()

	// Initialize sensor
	var reader sensor.Reader
	var slider *sensor.Slider
	if cfg.Simulate {
		s, err := sensor.NewSlider(sensor.SliderMin, sensor.SliderMax, sensor.SliderInitial)
		if err != nil {
			return fmt.Errorf("init slider: %w", err)
		}
		slider, reader = s, s
	} else {
		r, err := sensor.NewRealReader(cfg.Pins.CS, cfg.Pins.SCK, cfg.Pins.MISO)
		if err != nil {
			return fmt.Errorf("init sensor: %w", err)
		}
		reader = r
	}
	defer reader.Close()

	// Print state mode
	if cfg.PrintState {
		s, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		if s.Faulted() {
			fmt.Printf("Sensor Fault! (%s)\n", s.Fault)
			return nil
		}
		fmt.Printf("Current: %.1f°C\n", s.TempC)
		return nil
	}

	// Initialize servo
	var servo actuator.Servo
	if cfg.Simulate {
		servo = actuator.NewFakeServo()
		log.Info("simulation mode: servo moves are not driven")
	} else {
		s, err := actuator.NewRealServo(cfg.Pins.Servo)
		if err != nil {
			return fmt.Errorf("init servo: %w", err)
		}
		servo = s
	}
	heater := actuator.NewHeater(servo, cfg.DetachDelay)
	if err := heater.Init(time.Now()); err != nil {
		return fmt.Errorf("init heater: %w", err)
	}
	defer heater.Close()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(cfg.Broker, "water-heater-"+sessionID[:8])
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Kafka mirror is optional
	var mirror readingMirror
	if len(cfg.KafkaBrokers) > 0 {
		m := kafkabus.NewMirror(cfg.KafkaBrokers, cfg.KafkaTopic, sessionID)
		defer m.Close()
		q := kafkabus.NewQueue(m, kafkabus.DefaultQueueSize, mirrorTimeout)
		defer q.Close()
		mirror = q
		log.WithFields(log.Fields{"brokers": cfg.KafkaBrokers, "topic": cfg.KafkaTopic}).Info("kafka mirror enabled")
	}

	collectors := metrics.New()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), sessionID, cfg.Status())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetServoAttached(heater.Attached())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, collectors.Handler(), slider)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer stopServer(srv, shutdownTimeout)
		log.WithField("addr", cfg.HTTP).Info("http status server listening")
	}

	var console *display.Console
	if cfg.Display {
		console = display.NewConsole(os.Stdout, true)
		console.Splash()
	}

	log.WithFields(log.Fields{
		"on":        cfg.OnTemp,
		"off":       cfg.OffTemp,
		"window":    cfg.WindowSize,
		"poll":      cfg.Poll,
		"broker":    cfg.Broker,
		"heartbeat": cfg.Heartbeat,
		"session":   sessionID,
	}).Info("started")

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		reader:     reader,
		heater:     heater,
		publisher:  publisher,
		mqttStatus: publisher,
		mirror:     mirror,
		tracker:    tracker,
		metrics:    collectors,
		console:    console,
		logic:      cfg.Logic(),
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
	}
	return d.runLoop(ticker.C, sigCh)
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// stopServer gives in-flight requests at most timeout to finish.
func stopServer(srv shutdowner, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
}

// readingMirror is the Kafka side channel. Nil disables it. Implementations
// must return without waiting on the broker.
type readingMirror interface {
	PublishReading(ctx context.Context, ts time.Time, raw float64, res logic.Result) error
	PublishTransition(ctx context.Context, e logic.Event) error
}

// daemon holds what the run loop drives. Only publisher, heater, logic and
// now are required.
type daemon struct {
	reader     sensor.Reader
	heater     *actuator.Heater
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	mirror     readingMirror
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	console    *display.Console
	logic      logic.Config
	heartbeat  time.Duration
	now        func() time.Time

	lastFault sensor.Fault
	lastView  *display.View
}

func (d *daemon) runLoop(tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := d.now()
	ctrl, err := logic.NewController(d.logic, startTime)
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	for {
		select {
		case s := <-sig:
			log.WithField("signal", s).Info("shutting down")
			d.shutdown(s)
			return nil

		case <-tick:
			d.step(ctrl, d.now())
		}
	}
}

func (d *daemon) shutdown(s os.Signal) {
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if d.tracker != nil {
		d.refreshConnection()
		snap := d.tracker.Snapshot()
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
	}
	if err := d.publisher.PublishSystem(event); err != nil {
		log.WithError(err).Warn("failed to publish shutdown event")
	} else {
		log.Info("published shutdown event")
	}
}

// step handles one poll: read, decide, actuate, publish.
func (d *daemon) step(ctrl *logic.Controller, t time.Time) {
	defer d.manageServo(t)

	sample, err := d.reader.Read()
	if err != nil {
		log.WithError(err).Warn("sensor read error")
		return
	}

	if sample.Faulted() {
		if sample.Fault != d.lastFault {
			log.WithField("fault", sample.Fault).Warn("thermocouple fault")
		}
		d.lastFault = sample.Fault
		if d.metrics != nil {
			d.metrics.ObserveFault(sample.Fault.String())
		}
		if d.tracker != nil {
			d.tracker.SetReading(0, sample.Fault.String())
		}
		d.show(display.View{Fault: true})
		d.checkHeartbeat(ctrl, t)
		return
	}
	if d.lastFault != sensor.FaultNone {
		log.Info("thermocouple fault cleared")
		d.lastFault = sensor.FaultNone
	}

	res, err := ctrl.SubmitReading(sample.TempC, t)
	if err != nil {
		log.WithError(err).Warn("reading rejected")
		if d.metrics != nil {
			d.metrics.ObserveRejected()
		}
		d.updateTracker(ctrl)
		return
	}
	if d.tracker != nil {
		d.tracker.SetReading(sample.TempC, "")
	}
	if d.metrics != nil {
		d.metrics.ObserveReading(sample.TempC, res)
	}

	if res.Event != nil {
		e := *res.Event
		log.WithFields(log.Fields{
			"smoothed": e.Smoothed,
			"raw":      e.Raw,
		}).Infof("event: %s", e.Type)
		if err := d.publisher.Publish(e); err != nil {
			// Don't crash on publish failure
			log.WithError(err).Warn("publish error")
		}
		d.mirrorTransition(e)
	}

	// A failed servo move is retried on the next poll.
	if d.heater != nil && d.heater.On() != res.HeaterOn {
		if err := d.heater.Apply(res.HeaterOn, t); err != nil {
			log.WithError(err).Error("heater move failed")
		}
	}

	d.mirrorReading(t, sample.TempC, res)
	d.checkHeartbeat(ctrl, t)
	d.updateTracker(ctrl)
	d.show(display.View{TempC: sample.TempC, HeaterOn: res.HeaterOn})
}

func (d *daemon) manageServo(t time.Time) {
	if d.heater == nil {
		return
	}
	detached, err := d.heater.Tick(t)
	if err != nil {
		log.WithError(err).Warn("servo detach failed")
	}
	if detached {
		log.Debug("servo detached")
	}
	if d.tracker != nil {
		d.tracker.SetServoAttached(d.heater.Attached())
	}
	if d.metrics != nil {
		d.metrics.SetServoAttached(d.heater.Attached())
	}
}

func (d *daemon) checkHeartbeat(ctrl *logic.Controller, t time.Time) {
	hbData := ctrl.CheckHeartbeat(t, d.heartbeat)
	if hbData == nil {
		return
	}
	log.WithFields(log.Fields{
		"uptime":     hbData.Uptime,
		"heater_on":  hbData.Counts.HeaterOn,
		"heater_off": hbData.Counts.HeaterOff,
	}).Info("heartbeat")

	hbEvent := mqtt.SystemEvent{
		Timestamp: hbData.Timestamp,
		Event:     "HEARTBEAT",
	}
	if d.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			d.tracker.SetNetwork(net)
		}
		d.updateTracker(ctrl)
		snap := d.tracker.Snapshot()
		hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
	}
	if err := d.publisher.PublishSystem(hbEvent); err != nil {
		log.WithError(err).Warn("heartbeat publish error")
	}
}

// updateTracker refreshes state for HTTP consumers.
func (d *daemon) updateTracker(ctrl *logic.Controller) {
	if d.tracker == nil {
		return
	}
	d.tracker.Update(ctrl)
	d.refreshConnection()
}

func (d *daemon) refreshConnection() {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d *daemon) mirrorReading(t time.Time, raw float64, res logic.Result) {
	if d.mirror == nil {
		return
	}
	if err := d.mirror.PublishReading(context.Background(), t, raw, res); err != nil {
		log.WithError(err).Debug("kafka mirror reading")
	}
}

func (d *daemon) mirrorTransition(e logic.Event) {
	if d.mirror == nil {
		return
	}
	if err := d.mirror.PublishTransition(context.Background(), e); err != nil {
		log.WithError(err).Warn("kafka mirror transition")
	}
}

// show redraws the console when the frame changes.
func (d *daemon) show(v display.View) {
	if d.console == nil {
		return
	}
	if d.lastView != nil && *d.lastView == v {
		return
	}
	if err := d.console.Show(v); err != nil {
		log.WithError(err).Debug("display")
		return
	}
	d.lastView = &v
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
