package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrEmptySampleSet = errors.New("no resting samples collected")

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResting
	PhaseMonitoring
	PhaseEnding
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResting:
		return "resting"
	case PhaseMonitoring:
		return "monitoring"
	case PhaseEnding:
		return "ending"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Session is the state of one wearer's measurement, from the start of the
// resting window until the end countdown runs out or the wearer stops it.
type Session struct {
	ID             string     `json:"id,omitempty"`
	WearerID       string     `json:"wearerId,omitempty"`
	Phase          Phase      `json:"phase"`
	RestingSamples []float64  `json:"restingSamples,omitempty"`
	HasBaseline    bool       `json:"hasBaseline"`
	Baseline       float64    `json:"baseline"`
	Threshold      float64    `json:"threshold"`
	Countdown      int        `json:"countdown"`
	Log            []LogEntry `json:"log,omitempty"`
	StartedAt      time.Time  `json:"startedAt,omitempty"`
}

func NewSession(id string, wearerID string) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	return &Session{
		ID:        id,
		WearerID:  wearerID,
		Phase:     PhaseIdle,
		StartedAt: time.Now(),
	}
}

// Reset returns the session to its idle defaults.
func (s *Session) Reset() {
	*s = Session{Phase: PhaseIdle}
}

func (s *Session) BeginResting(restSec int) {
	s.Phase = PhaseResting
	s.RestingSamples = s.RestingSamples[:0]
	s.HasBaseline = false
	s.Baseline = 0
	s.Threshold = 0
	s.Countdown = restSec
}

func (s *Session) AddRestingSample(v float64) {
	if s.Phase != PhaseResting {
		return
	}
	s.RestingSamples = append(s.RestingSamples, v)
}

// ComputeBaseline sets the baseline to the mean of the resting samples and
// the threshold to baseline*ratio, then moves the session to Monitoring.
// With no samples the session is left untouched.
func (s *Session) ComputeBaseline(ratio float64) error {
	mean, err := Mean(s.RestingSamples)
	if err != nil {
		return err
	}

	s.Baseline = mean
	s.Threshold = mean * ratio
	s.HasBaseline = true
	s.RestingSamples = nil
	s.Countdown = 0
	s.Phase = PhaseMonitoring
	return nil
}

// Crossed reports whether v is strictly above the threshold.
func (s *Session) Crossed(v float64) bool {
	return s.Phase == PhaseMonitoring && s.HasBaseline && v > s.Threshold
}

func (s *Session) BeginEnding(endSec int) {
	s.Phase = PhaseEnding
	s.Countdown = endSec
}

// CountDown decrements the countdown by one, never below zero, and returns
// the remaining seconds.
func (s *Session) CountDown() int {
	if s.Countdown > 0 {
		s.Countdown--
	}
	return s.Countdown
}

// Record prepends a reading to the running log.
func (s *Session) Record(sample Sample) {
	s.Log = append(s.Log, LogEntry{})
	copy(s.Log[1:], s.Log)
	s.Log[0] = LogEntry{Timestamp: sample.Timestamp, Value: sample.Value}
}

func (s *Session) LogText() string {
	var b strings.Builder
	for i, e := range s.Log {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.String())
	}
	return b.String()
}

func (s *Session) Clone() Session {
	c := *s
	c.RestingSamples = append([]float64(nil), s.RestingSamples...)
	c.Log = append([]LogEntry(nil), s.Log...)
	return c
}

// Mean is the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySampleSet
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}
