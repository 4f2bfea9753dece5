// Package config reads the service configuration from PULSE_* environment
// variables. Command-line flags override it in cmd/server.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	SensorSim  = "sim"
	SensorNATS = "nats"
	SensorMQTT = "mqtt"
)

type Env struct {
	// Environment is "production" or anything else (PULSE_ENV)
	Environment string

	// Addr is the HTTP listen address (PULSE_ADDR)
	Addr string

	// WearerID labels sessions started without a wearer header (PULSE_WEARER)
	WearerID string

	// Sensor selects the sample source: sim, nats or mqtt (PULSE_SENSOR)
	Sensor string

	NATSURL       string // PULSE_NATS_URL
	NATSSubject   string // PULSE_NATS_SUBJECT
	MQTTBroker    string // PULSE_MQTT_BROKER
	MQTTTopic     string // PULSE_MQTT_TOPIC, see SampleTopic
	MQTTClientID  string // PULSE_MQTT_CLIENT_ID
	NotifySubject string // PULSE_NOTIFY_SUBJECT

	// RestSec is the resting window length (PULSE_REST_SEC)
	RestSec int

	// EndDelaySec is the delay between crossing and the end (PULSE_END_DELAY_SEC)
	EndDelaySec int

	// ThresholdRatio multiplies the baseline (PULSE_THRESHOLD_RATIO)
	ThresholdRatio float64

	// Tick is the countdown step (PULSE_TICK)
	Tick time.Duration

	// SensorAccess and NotifyAccess stand in for the device permission
	// prompts (PULSE_SENSOR_ACCESS, PULSE_NOTIFY_ACCESS)
	SensorAccess bool
	NotifyAccess bool

	NotifyTitle string // PULSE_NOTIFY_TITLE
	NotifyBody  string // PULSE_NOTIFY_BODY

	// Console echoes the display to stdout (PULSE_CONSOLE)
	Console bool

	// WSOrigins lists the browser origins allowed on /ws, comma separated;
	// empty allows any (PULSE_WS_ORIGINS)
	WSOrigins []string
}

var (
	env     *Env
	envErr  error
	envOnce sync.Once
)

// Load returns the environment configuration, read once.
func Load() (*Env, error) {
	envOnce.Do(func() {
		env, envErr = fromEnv()
	})
	return env, envErr
}

// ResetEnv drops the cached configuration (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
	envErr = nil
}

func fromEnv() (*Env, error) {
	var errs []error

	e := &Env{
		Environment:   getEnvDefault("PULSE_ENV", "development"),
		Addr:          getEnvDefault("PULSE_ADDR", ":8080"),
		WearerID:      os.Getenv("PULSE_WEARER"),
		Sensor:        getEnvDefault("PULSE_SENSOR", SensorSim),
		NATSURL:       getEnvDefault("PULSE_NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:   getEnvDefault("PULSE_NATS_SUBJECT", "hr.samples"),
		MQTTBroker:    getEnvDefault("PULSE_MQTT_BROKER", "tcp://127.0.0.1:1883"),
		MQTTTopic:     os.Getenv("PULSE_MQTT_TOPIC"),
		MQTTClientID:  os.Getenv("PULSE_MQTT_CLIENT_ID"),
		NotifySubject: getEnvDefault("PULSE_NOTIFY_SUBJECT", "pulse.experience.end"),
		NotifyTitle:   getEnvDefault("PULSE_NOTIFY_TITLE", "Experience finished"),
		NotifyBody:    getEnvDefault("PULSE_NOTIFY_BODY", "Your heart rate rose above your resting level."),
		WSOrigins:     getEnvList("PULSE_WS_ORIGINS"),
	}

	e.RestSec = getEnvInt("PULSE_REST_SEC", 30, &errs)
	e.EndDelaySec = getEnvInt("PULSE_END_DELAY_SEC", 60, &errs)
	e.ThresholdRatio = getEnvFloat("PULSE_THRESHOLD_RATIO", 1.1, &errs)
	e.Tick = getEnvDuration("PULSE_TICK", time.Second, &errs)
	e.SensorAccess = getEnvBool("PULSE_SENSOR_ACCESS", true, &errs)
	e.NotifyAccess = getEnvBool("PULSE_NOTIFY_ACCESS", true, &errs)
	e.Console = getEnvBool("PULSE_CONSOLE", false, &errs)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return e, nil
}

// Validate rejects settings the state machine cannot run with.
func (e *Env) Validate() error {
	var errs []error

	if e.RestSec <= 0 {
		errs = append(errs, fmt.Errorf("rest duration must be positive, got %d", e.RestSec))
	}
	if e.EndDelaySec <= 0 {
		errs = append(errs, fmt.Errorf("end delay must be positive, got %d", e.EndDelaySec))
	}
	if e.ThresholdRatio <= 0 {
		errs = append(errs, fmt.Errorf("threshold ratio must be positive, got %g", e.ThresholdRatio))
	}
	if e.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick must be positive, got %s", e.Tick))
	}
	switch e.Sensor {
	case SensorSim:
	case SensorNATS:
		if e.WearerID == "" && isWildcard(e.NATSSubject, "*", ">") {
			errs = append(errs, fmt.Errorf("wildcard subject %q needs a wearer", e.NATSSubject))
		}
	case SensorMQTT:
		if e.WearerID == "" && isWildcard(e.SampleTopic(), "+", "#") {
			errs = append(errs, fmt.Errorf("wildcard topic %q needs a wearer", e.SampleTopic()))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sensor %q", e.Sensor))
	}

	return errors.Join(errs...)
}

// SampleTopic is the MQTT topic to read samples from. Unless set, it is the
// wearer's own topic, or every wearer's when no wearer is configured.
func (e *Env) SampleTopic() string {
	if e.MQTTTopic != "" {
		return e.MQTTTopic
	}
	if e.WearerID != "" {
		return "wearable/" + e.WearerID + "/heartrate"
	}
	return "wearable/+/heartrate"
}

func isWildcard(subject string, wildcards ...string) bool {
	for _, token := range strings.FieldsFunc(subject, func(r rune) bool { return r == '.' || r == '/' }) {
		if slices.Contains(wildcards, token) {
			return true
		}
	}
	return false
}

func (e *Env) IsProduction() bool {
	return e.Environment == "production"
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
