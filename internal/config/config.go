// Package config loads daemon settings from an optional YAML file and
// command-line flags. Flags that are set explicitly win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/water-heater/internal/actuator"
	"github.com/sweeney/water-heater/internal/kafkabus"
	"github.com/sweeney/water-heater/internal/logic"
	"github.com/sweeney/water-heater/internal/sensor"
	"github.com/sweeney/water-heater/internal/status"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Pins are BCM pin numbers.
type Pins struct {
	CS    int `yaml:"cs"`
	SCK   int `yaml:"sck"`
	MISO  int `yaml:"miso"`
	Servo int `yaml:"servo"`
}

// Config holds all daemon settings.
type Config struct {
	OnTemp      float64       `yaml:"on_temp"`
	OffTemp     float64       `yaml:"off_temp"`
	WindowSize  int           `yaml:"window_size"`
	Prefill     bool          `yaml:"prefill"`
	Poll        time.Duration `yaml:"poll"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	DetachDelay time.Duration `yaml:"detach_delay"`

	Broker       string   `yaml:"broker"`
	HTTP         string   `yaml:"http"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	Pins Pins `yaml:"pins"`

	Simulate   bool   `yaml:"simulate"`
	Display    bool   `yaml:"display"`
	PrintState bool   `yaml:"-"`
	LogLevel   string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		OnTemp:      logic.DefaultOnTemp,
		OffTemp:     logic.DefaultOffTemp,
		WindowSize:  logic.DefaultWindowSize,
		Prefill:     true,
		Poll:        500 * time.Millisecond,
		Heartbeat:   15 * time.Minute,
		DetachDelay: actuator.DefaultDetachDelay,
		Broker:      "tcp://192.168.1.200:1883",
		HTTP:        ":80",
		KafkaTopic:  kafkabus.DefaultTopic,
		Pins: Pins{
			CS:    sensor.DefaultPinCS,
			SCK:   sensor.DefaultPinSCK,
			MISO:  sensor.DefaultPinMISO,
			Servo: actuator.DefaultPinServo,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decode(bytes.NewReader(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Parse builds the config from command-line arguments (without the program
// name). A --config file is loaded first and the flags that were actually
// given are applied over it.
func Parse(args []string) (Config, error) {
	// First pass only finds --config; everything else is parsed into scratch.
	scratch := Default()
	first := newFlagSet(&scratch)
	first.SetOutput(io.Discard)
	if err := first.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			newFlagSet(&scratch).PrintDefaults()
		}
		return Config{}, err
	}

	cfg := Default()
	if path, _ := first.GetString("config"); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
		log.WithField("path", path).Debug("loaded config file")
	}

	// Unset flags leave the file values alone.
	if err := newFlagSet(&cfg).Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newFlagSet(c *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("water-heater", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("config", "", "YAML config file")
	fs.Float64Var(&c.OnTemp, "on-temp", c.OnTemp, "Turn the heater on below this smoothed temperature (°C)")
	fs.Float64Var(&c.OffTemp, "off-temp", c.OffTemp, "Turn the heater off above this smoothed temperature (°C)")
	fs.IntVar(&c.WindowSize, "window", c.WindowSize, "Median filter window size")
	fs.BoolVar(&c.Prefill, "prefill", c.Prefill, "Fill the window with the first reading")
	fs.DurationVar(&c.Poll, "poll", c.Poll, "Sensor polling interval")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.DurationVar(&c.DetachDelay, "detach-delay", c.DetachDelay, "Idle time before the servo is detached")
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address")
	fs.StringVar(&c.HTTP, "http", c.HTTP, "HTTP status address (empty to disable)")
	fs.StringSliceVar(&c.KafkaBrokers, "kafka-brokers", c.KafkaBrokers, "Kafka brokers for the readings mirror (empty to disable)")
	fs.StringVar(&c.KafkaTopic, "kafka-topic", c.KafkaTopic, "Kafka topic for the readings mirror")
	fs.IntVar(&c.Pins.CS, "pin-cs", c.Pins.CS, "BCM pin for MAX31855 chip select")
	fs.IntVar(&c.Pins.SCK, "pin-sck", c.Pins.SCK, "BCM pin for MAX31855 clock")
	fs.IntVar(&c.Pins.MISO, "pin-miso", c.Pins.MISO, "BCM pin for MAX31855 data out")
	fs.IntVar(&c.Pins.Servo, "pin-servo", c.Pins.Servo, "BCM pin for the servo signal")
	fs.BoolVar(&c.Simulate, "simulate", c.Simulate, "Read temperatures from the web slider instead of the thermocouple")
	fs.BoolVar(&c.Display, "display", c.Display, "Print the thermostat screen to stdout")
	fs.BoolVar(&c.PrintState, "print-state", c.PrintState, "Print current temperature and exit")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	return fs
}

// Validate checks values the daemon cannot run with.
func (c Config) Validate() error {
	if err := c.Logic().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("%w: poll %v must be positive", ErrInvalid, c.Poll)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("%w: heartbeat %v must not be negative", ErrInvalid, c.Heartbeat)
	}
	if c.DetachDelay < 0 {
		return fmt.Errorf("%w: detach delay %v must not be negative", ErrInvalid, c.DetachDelay)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("%w: kafka topic required with brokers", ErrInvalid)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Logic returns the controller settings.
func (c Config) Logic() logic.Config {
	return logic.Config{
		Thresholds: logic.Thresholds{On: c.OnTemp, Off: c.OffTemp},
		WindowSize: c.WindowSize,
		Prefill:    c.Prefill,
	}
}

// Status returns the settings shown on the status page.
func (c Config) Status() status.Config {
	return status.Config{
		OnTemp:        c.OnTemp,
		OffTemp:       c.OffTemp,
		WindowSize:    c.WindowSize,
		Prefill:       c.Prefill,
		PollMs:        c.Poll.Milliseconds(),
		HeartbeatMs:   c.Heartbeat.Milliseconds(),
		DetachDelayMs: c.DetachDelay.Milliseconds(),
		Broker:        c.Broker,
		HTTPAddr:      c.HTTP,
		KafkaBrokers:  strings.Join(c.KafkaBrokers, ","),
		Simulate:      c.Simulate,
	}
}

// Level returns the parsed log level, defaulting to info.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
