package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hperssn/pulse/internal/domain"
	"github.com/hperssn/pulse/internal/metrics"
)

const (
	ControlStart = "START"
	ControlStop  = "STOP"

	MessageIdle       = "push button"
	MessageMeasuring  = "Measuring..."
	MessageCountdown  = "Count down..."
	MessageRestAgain  = "no heart rate yet\nresting again"
	MessageNoSensor   = "sensor unavailable"
	MessageDenied     = "sensor access denied"
	MessageSensorLost = "sensor session failed"

	heartRatePlaceholder = "---"
)

type Config struct {
	RestDuration   int // seconds
	EndDelay       int // seconds
	ThresholdRatio float64
	TickInterval   time.Duration

	NotificationTitle string
	NotificationBody  string
	NotificationSound bool
}

func DefaultConfig() Config {
	return Config{
		RestDuration:      30,
		EndDelay:          60,
		ThresholdRatio:    1.1,
		TickInterval:      time.Second,
		NotificationTitle: "Experience finished",
		NotificationBody:  "Your heart rate rose above your resting level.",
		NotificationSound: true,
	}
}

type Option func(*Machine)

func WithTimer(t Timer) Option {
	return func(m *Machine) { m.timer = t }
}

func WithMetrics(s *metrics.Metrics) Option {
	return func(m *Machine) { m.stats = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// Machine is the session state machine. Every sample, tick and command is
// handled by the goroutine running Run, one at a time; callers block until
// their event has been handled.
type Machine struct {
	cfg      Config
	source   Source
	display  Display
	notifier Notifier
	timer    Timer
	stats    *metrics.Metrics
	log      *slog.Logger

	events chan envelope
	done   chan struct{}

	// Owned by the Run goroutine.
	session       *domain.Session
	handle        Handle
	gen           uint64
	timerSeq      uint64
	alertID       string
	sensorAllowed bool
	notifyAllowed bool
}

func New(cfg Config, source Source, display Display, notifier Notifier, opts ...Option) *Machine {
	m := &Machine{
		cfg:           cfg,
		source:        source,
		display:       display,
		notifier:      notifier,
		events:        make(chan envelope),
		done:          make(chan struct{}),
		session:       domain.NewSession("", ""),
		sensorAllowed: true,
		notifyAllowed: true,
	}
	m.session.Reset()

	for _, opt := range opts {
		opt(m)
	}
	if m.timer == nil {
		m.timer = NewTicker()
	}
	if m.stats == nil {
		m.stats = metrics.New()
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With("component", "runner")

	return m
}

// Run processes events until ctx is cancelled. An active session is ended
// before Run returns.
func (m *Machine) Run(ctx context.Context) error {
	defer close(m.done)

	m.resetDisplay()

	for {
		select {
		case <-ctx.Done():
			if m.session.Phase != domain.PhaseIdle {
				m.stats.SessionsAborted.Add(1)
				m.cancelAlert()
				m.endSession()
			}
			return nil

		case env := <-m.events:
			env.done <- m.dispatch(env.event)
		}
	}
}

// Load asks for sensor and notification access once. A denied sensor leaves
// the machine in a degraded mode where Start fails; a denied notification
// only disables the alert.
func (m *Machine) Load(ctx context.Context, auth Authorizer) error {
	g := accessGranted{
		sensor: auth.RequestSensorAccess(ctx),
		notify: auth.RequestNotificationAccess(ctx),
	}
	return m.post(ctx, g)
}

func (m *Machine) Start(ctx context.Context) error {
	return m.post(ctx, startCommand{wearer: WearerFrom(ctx)})
}

// Stop ends the current session, if any. After Stop returns no sample or
// tick of that session can change state.
func (m *Machine) Stop(ctx context.Context) error {
	return m.post(ctx, stopCommand{})
}

// Toggle starts a session when idle and stops it otherwise.
func (m *Machine) Toggle(ctx context.Context) error {
	return m.post(ctx, toggleCommand{wearer: WearerFrom(ctx)})
}

func (m *Machine) Snapshot(ctx context.Context) (domain.Session, error) {
	var s domain.Session
	err := m.post(ctx, snapshotQuery{out: &s})
	return s, err
}

func (m *Machine) post(ctx context.Context, ev any) error {
	env := envelope{event: ev, done: make(chan error, 1)}

	select {
	case m.events <- env:
	case <-m.done:
		return ErrMachineStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-env.done
}

func (m *Machine) dispatch(ev any) error {
	switch e := ev.(type) {
	case sampleArrived:
		m.handleSample(e)
	case tickElapsed:
		m.handleTick(e)
	case sensorFailed:
		m.handleFailure(e)
	case startCommand:
		return m.handleStart(e.wearer)
	case stopCommand:
		m.handleStop()
	case toggleCommand:
		if m.session.Phase == domain.PhaseIdle {
			return m.handleStart(e.wearer)
		}
		m.handleStop()
	case accessGranted:
		m.handleAccess(e)
	case snapshotQuery:
		*e.out = m.session.Clone()
	default:
		return fmt.Errorf("unknown event %T", ev)
	}
	return nil
}

func (m *Machine) handleAccess(g accessGranted) {
	m.sensorAllowed = g.sensor
	m.notifyAllowed = g.notify

	if !g.sensor {
		m.log.Warn("sensor access not granted, measurement disabled", "error", ErrAuthorizationDenied)
		m.display.SetMessage(MessageDenied)
	}
	if !g.notify {
		m.log.Warn("notification access not granted, end alert disabled", "error", ErrAuthorizationDenied)
	}
}

func (m *Machine) handleStart(wearer string) error {
	if m.session.Phase != domain.PhaseIdle {
		return ErrAlreadyRunning
	}

	if !m.sensorAllowed {
		m.display.SetMessage(MessageDenied)
		return fmt.Errorf("%w: %w", ErrSensorUnavailable, ErrAuthorizationDenied)
	}

	m.gen++
	ing := &Ingestor{machine: m, gen: m.gen}

	handle, err := m.source.Subscribe(ing.OnSamples, ing.OnError)
	if err != nil {
		m.gen++
		m.log.Error("sensor subscription failed", "error", err)
		m.display.SetMessage(MessageNoSensor)
		return fmt.Errorf("%w: %w", ErrSensorUnavailable, err)
	}

	m.handle = handle
	m.session = domain.NewSession("", wearer)
	m.session.BeginResting(m.cfg.RestDuration)
	m.startTimer()
	m.stats.SessionsStarted.Add(1)

	m.log.Info("session started",
		"session", m.session.ID,
		"wearer", wearer,
		"rest_sec", m.cfg.RestDuration,
	)

	m.display.SetControl(ControlStop)
	m.display.SetMessage(MessageMeasuring)
	m.display.SetCountdown(strconv.Itoa(m.session.Countdown))
	return nil
}

func (m *Machine) handleStop() {
	if m.session.Phase != domain.PhaseIdle {
		m.stats.SessionsAborted.Add(1)
		m.log.Info("session stopped", "session", m.session.ID, "phase", m.session.Phase.String())
	}
	m.cancelAlert()
	m.endSession()
}

func (m *Machine) handleSample(e sampleArrived) {
	if e.gen != m.gen || m.session.Phase == domain.PhaseIdle {
		m.stats.SamplesDropped.Add(1)
		return
	}

	m.ingest(e.sample)

	switch m.session.Phase {
	case domain.PhaseResting:
		m.session.AddRestingSample(e.sample.Value)

	case domain.PhaseMonitoring:
		if m.session.Crossed(e.sample.Value) {
			m.beginEnding(e.sample)
		}
	}
}

func (m *Machine) beginEnding(trigger domain.Sample) {
	m.session.BeginEnding(m.cfg.EndDelay)
	m.stats.ThresholdCrossings.Add(1)

	m.log.Info("threshold crossed",
		"session", m.session.ID,
		"bpm", trigger.Value,
		"threshold", m.session.Threshold,
		"end_delay_sec", m.cfg.EndDelay,
	)

	if m.notifyAllowed {
		m.alertID = m.notifier.ScheduleNotification(
			time.Duration(m.cfg.EndDelay)*time.Second,
			m.cfg.NotificationTitle,
			m.cfg.NotificationBody,
			m.cfg.NotificationSound,
		)
		m.stats.NotificationsScheduled.Add(1)
	}

	m.display.SetMessage(MessageCountdown)
	m.display.SetCountdown(strconv.Itoa(m.session.Countdown))
	m.startTimer()
}

func (m *Machine) handleTick(e tickElapsed) {
	if e.gen != m.gen || e.seq != m.timerSeq {
		return
	}

	switch m.session.Phase {
	case domain.PhaseResting:
		remaining := m.session.CountDown()
		m.display.SetCountdown(strconv.Itoa(remaining))
		if remaining > 0 {
			return
		}
		m.finishResting()

	case domain.PhaseEnding:
		remaining := m.session.CountDown()
		m.display.SetCountdown(strconv.Itoa(remaining))
		if remaining > 0 {
			return
		}
		m.stats.SessionsCompleted.Add(1)
		m.log.Info("session completed", "session", m.session.ID)
		m.endSession()
	}
}

func (m *Machine) finishResting() {
	if err := m.session.ComputeBaseline(m.cfg.ThresholdRatio); err != nil {
		// The resting window is repeated until at least one reading arrives.
		m.log.Warn("resting window ended without samples", "session", m.session.ID, "error", err)
		m.session.BeginResting(m.cfg.RestDuration)
		m.display.SetMessage(MessageRestAgain)
		m.display.SetCountdown(strconv.Itoa(m.session.Countdown))
		return
	}

	m.stopTimer()
	m.stats.RecordBaseline(m.session.Baseline)

	m.log.Info("baseline computed",
		"session", m.session.ID,
		"baseline", m.session.Baseline,
		"threshold", m.session.Threshold,
	)
	m.display.SetMessage(fmt.Sprintf("ave=%.1f\nx%g=%.1f",
		m.session.Baseline, m.cfg.ThresholdRatio, m.session.Threshold))
}

func (m *Machine) handleFailure(e sensorFailed) {
	if e.gen != m.gen || m.session.Phase == domain.PhaseIdle {
		return
	}

	m.stats.SensorFailures.Add(1)
	m.stats.SessionsAborted.Add(1)
	m.log.Error("sensor session failed",
		"session", m.session.ID,
		"phase", m.session.Phase.String(),
		"error", fmt.Errorf("%w: %w", ErrSensorSessionFailure, e.err),
	)

	m.cancelAlert()
	m.endSession()
	m.display.SetMessage(MessageSensorLost)
}

// cancelAlert withdraws the end alert of a session that did not run its
// countdown to the end.
func (m *Machine) cancelAlert() {
	if m.alertID == "" {
		return
	}
	if m.notifier.CancelNotification(m.alertID) {
		m.log.Info("end alert cancelled", "session", m.session.ID, "notification", m.alertID)
	}
	m.alertID = ""
}

func (m *Machine) startTimer() {
	m.timerSeq++
	gen, seq := m.gen, m.timerSeq

	m.timer.Start(m.cfg.TickInterval, func() {
		_ = m.post(context.Background(), tickElapsed{gen: gen, seq: seq})
	})
}

func (m *Machine) stopTimer() {
	m.timer.Stop()
	m.timerSeq++
}

// endSession releases the sensor and timer, invalidates every callback of
// the session and resets to Idle.
func (m *Machine) endSession() {
	m.stopTimer()

	if m.handle != nil {
		if err := m.handle.Unsubscribe(); err != nil {
			m.log.Warn("sensor unsubscribe failed", "session", m.session.ID, "error", err)
		}
		m.handle = nil
	}

	m.gen++
	m.alertID = ""
	m.session.Reset()
	m.resetDisplay()
}

func (m *Machine) resetDisplay() {
	m.display.SetControl(ControlStart)
	m.display.SetHeartRate(heartRatePlaceholder)
	m.display.SetMessage(MessageIdle)
	m.display.SetCountdown("")
	m.display.SetLog("")
}
