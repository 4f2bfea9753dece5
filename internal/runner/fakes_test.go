package runner_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hperssn/pulse/internal/domain"
	"github.com/hperssn/pulse/internal/metrics"
	"github.com/hperssn/pulse/internal/runner"
)

// manualTimer hands ticks to the test instead of the wall clock.
type manualTimer struct {
	mu       sync.Mutex
	onTick   func()
	interval time.Duration
	starts   int
	stops    int
}

func (t *manualTimer) Start(interval time.Duration, onTick func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = onTick
	t.interval = interval
	t.starts++
}

func (t *manualTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = nil
	t.stops++
}

func (t *manualTimer) current() func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.onTick
}

func (t *manualTimer) active() bool {
	return t.current() != nil
}

func (t *manualTimer) fire() {
	if fn := t.current(); fn != nil {
		fn()
	}
}

type fakeHandle struct {
	src *fakeSource
}

func (h *fakeHandle) Unsubscribe() error {
	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	h.src.unsubscribed++
	h.src.live = false
	return nil
}

type fakeSource struct {
	mu           sync.Mutex
	err          error
	onSamples    func([]domain.Sample)
	onError      func(error)
	subscribed   int
	unsubscribed int
	live         bool
	clock        time.Time
}

func (s *fakeSource) Subscribe(onSamples func([]domain.Sample), onError func(error)) (runner.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.onSamples = onSamples
	s.onError = onError
	s.subscribed++
	s.live = true
	if s.clock.IsZero() {
		s.clock = time.Date(2016, 10, 22, 10, 0, 0, 0, time.Local)
	}
	return &fakeHandle{src: s}, nil
}

func (s *fakeSource) callbacks() (func([]domain.Sample), func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onSamples, s.onError
}

func (s *fakeSource) next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// emit delivers each value as its own batch, ignoring whether the
// subscription is still live.
func (s *fakeSource) emit(values ...float64) {
	onSamples, _ := s.callbacks()
	for _, v := range values {
		onSamples([]domain.Sample{{Value: v, Timestamp: s.next()}})
	}
}

func (s *fakeSource) emitBatch(values ...float64) {
	onSamples, _ := s.callbacks()
	batch := make([]domain.Sample, 0, len(values))
	for _, v := range values {
		batch = append(batch, domain.Sample{Value: v, Timestamp: s.next()})
	}
	onSamples(batch)
}

func (s *fakeSource) fail(err error) {
	_, onError := s.callbacks()
	onError(err)
}

type recordingDisplay struct {
	mu         sync.Mutex
	heartRate  string
	message    string
	countdown  string
	log        string
	control    string
	countdowns []string
}

func (d *recordingDisplay) SetHeartRate(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.heartRate = text
}

func (d *recordingDisplay) SetMessage(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.message = text
}

func (d *recordingDisplay) SetCountdown(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.countdown = text
	d.countdowns = append(d.countdowns, text)
}

func (d *recordingDisplay) SetLog(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = text
}

func (d *recordingDisplay) SetControl(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.control = label
}

type panel struct {
	HeartRate, Message, Countdown, Log, Control string
}

func (d *recordingDisplay) panel() panel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return panel{d.heartRate, d.message, d.countdown, d.log, d.control}
}

func (d *recordingDisplay) resetHistory() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.countdowns = nil
}

func (d *recordingDisplay) history() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.countdowns...)
}

type notification struct {
	delay       time.Duration
	title, body string
	sound       bool
}

type recordingNotifier struct {
	mu        sync.Mutex
	sent      []notification
	cancelled []string
}

func (n *recordingNotifier) ScheduleNotification(delay time.Duration, title, body string, sound bool) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{delay, title, body, sound})
	return "alert-" + strconv.Itoa(len(n.sent))
}

func (n *recordingNotifier) CancelNotification(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, id)
	return true
}

func (n *recordingNotifier) cancels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.cancelled...)
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type staticAuth struct {
	sensor bool
	notify bool
}

func (a staticAuth) RequestSensorAccess(context.Context) bool       { return a.sensor }
func (a staticAuth) RequestNotificationAccess(context.Context) bool { return a.notify }

var errLinkLost = errors.New("link lost")

type harness struct {
	t      *testing.T
	m      *runner.Machine
	src    *fakeSource
	timer  *manualTimer
	disp   *recordingDisplay
	notif  *recordingNotifier
	stats  *metrics.Metrics
	cancel context.CancelFunc
	done   chan struct{}
}

func testConfig() runner.Config {
	cfg := runner.DefaultConfig()
	cfg.RestDuration = 30
	cfg.EndDelay = 60
	cfg.ThresholdRatio = 1.1
	return cfg
}

func newHarness(t *testing.T, cfg runner.Config) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		src:   &fakeSource{},
		timer: &manualTimer{},
		disp:  &recordingDisplay{},
		notif: &recordingNotifier{},
		stats: metrics.New(),
		done:  make(chan struct{}),
	}
	h.m = runner.New(cfg, h.src, h.disp, h.notif,
		runner.WithTimer(h.timer),
		runner.WithMetrics(h.stats),
		runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		_ = h.m.Run(ctx)
		close(h.done)
	}()

	t.Cleanup(h.shutdown)
	return h
}

func (h *harness) shutdown() {
	h.cancel()
	<-h.done
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.m.Start(context.Background()); err != nil {
		h.t.Fatalf("start: %v", err)
	}
}

func (h *harness) stop() {
	h.t.Helper()
	if err := h.m.Stop(context.Background()); err != nil {
		h.t.Fatalf("stop: %v", err)
	}
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.timer.fire()
	}
}

func (h *harness) snapshot() domain.Session {
	h.t.Helper()
	s, err := h.m.Snapshot(context.Background())
	if err != nil {
		h.t.Fatalf("snapshot: %v", err)
	}
	return s
}

// toMonitoring runs a full resting window over the given samples.
func (h *harness) toMonitoring(samples ...float64) {
	h.t.Helper()
	h.start()
	h.src.emit(samples...)
	h.tick(30)
	if s := h.snapshot(); s.Phase != domain.PhaseMonitoring {
		h.t.Fatalf("expected monitoring after resting window, got %v", s.Phase)
	}
}
