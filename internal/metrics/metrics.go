// Package metrics keeps runtime counters for the heart-rate session and
// renders them in the Prometheus text format.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

type Metrics struct {
	SessionsStarted   atomic.Int64
	SessionsCompleted atomic.Int64
	SessionsAborted   atomic.Int64

	SamplesIngested atomic.Int64
	SamplesDropped  atomic.Int64

	ThresholdCrossings     atomic.Int64
	SensorFailures         atomic.Int64
	NotificationsScheduled atomic.Int64

	// Last computed baseline, in milli-bpm
	LastBaselineMilli atomic.Int64

	startTime time.Time
}

func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) RecordBaseline(bpm float64) {
	m.LastBaselineMilli.Store(int64(bpm * 1000))
}

type counter struct {
	name string
	help string
	kind string
	val  func() string
}

func (m *Metrics) counters() []counter {
	n := func(v *atomic.Int64) func() string {
		return func() string { return fmt.Sprintf("%d", v.Load()) }
	}

	return []counter{
		{"pulse_uptime_seconds", "Time since the process started", "gauge", func() string {
			return fmt.Sprintf("%.2f", time.Since(m.startTime).Seconds())
		}},
		{"pulse_sessions_started_total", "Sessions that entered the resting phase", "counter", n(&m.SessionsStarted)},
		{"pulse_sessions_completed_total", "Sessions that ran the end countdown to zero", "counter", n(&m.SessionsCompleted)},
		{"pulse_sessions_aborted_total", "Sessions stopped by the wearer or by a sensor failure", "counter", n(&m.SessionsAborted)},
		{"pulse_samples_ingested_total", "Heart-rate samples applied to a session", "counter", n(&m.SamplesIngested)},
		{"pulse_samples_dropped_total", "Heart-rate samples that arrived with no active session", "counter", n(&m.SamplesDropped)},
		{"pulse_threshold_crossings_total", "Samples that crossed the session threshold", "counter", n(&m.ThresholdCrossings)},
		{"pulse_sensor_failures_total", "Sensor subscriptions that failed mid-session", "counter", n(&m.SensorFailures)},
		{"pulse_notifications_scheduled_total", "Experience end notifications handed to the dispatcher", "counter", n(&m.NotificationsScheduled)},
		{"pulse_last_baseline_bpm", "Baseline heart rate of the latest session", "gauge", func() string {
			return fmt.Sprintf("%.3f", float64(m.LastBaselineMilli.Load())/1000)
		}},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		for _, c := range m.counters() {
			fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", c.name, c.kind)
			fmt.Fprintf(w, "%s %s\n\n", c.name, c.val())
		}
	}
}
