package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

const epsilon = 1e-9

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "single value", values: []float64{72}, expected: 72},
		{name: "resting example", values: []float64{60, 62, 58, 60}, expected: 60},
		{name: "fractional mean", values: []float64{61, 62}, expected: 61.5},
		{name: "uneven", values: []float64{55.5, 70.25, 64, 80.75, 59}, expected: 65.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Mean(tt.values)
			if err != nil {
				t.Fatalf("Mean(%v) unexpected error: %v", tt.values, err)
			}
			if math.Abs(got-tt.expected) > epsilon {
				t.Fatalf("Mean(%v) = %v want %v", tt.values, got, tt.expected)
			}
		})
	}
}

func TestMeanEmpty(t *testing.T) {
	if _, err := Mean(nil); !errors.Is(err, ErrEmptySampleSet) {
		t.Fatalf("Mean(nil) error = %v, want ErrEmptySampleSet", err)
	}
}

func TestComputeBaseline(t *testing.T) {
	s := NewSession("", "")
	s.BeginResting(30)
	for _, v := range []float64{60, 62, 58, 60} {
		s.AddRestingSample(v)
	}

	if err := s.ComputeBaseline(1.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Phase != PhaseMonitoring {
		t.Fatalf("phase = %v, want monitoring", s.Phase)
	}
	if math.Abs(s.Baseline-60) > epsilon {
		t.Fatalf("baseline = %v, want 60", s.Baseline)
	}
	if math.Abs(s.Threshold-66) > epsilon {
		t.Fatalf("threshold = %v, want 66", s.Threshold)
	}
	if len(s.RestingSamples) != 0 {
		t.Fatalf("resting samples not cleared: %v", s.RestingSamples)
	}
}

func TestComputeBaselineEmptyKeepsResting(t *testing.T) {
	s := NewSession("", "")
	s.BeginResting(30)
	s.Countdown = 0

	if err := s.ComputeBaseline(1.1); !errors.Is(err, ErrEmptySampleSet) {
		t.Fatalf("error = %v, want ErrEmptySampleSet", err)
	}
	if s.Phase != PhaseResting || s.HasBaseline {
		t.Fatalf("session changed on empty baseline: phase=%v hasBaseline=%v", s.Phase, s.HasBaseline)
	}
}

func TestCrossedIsStrict(t *testing.T) {
	s := NewSession("", "")
	s.BeginResting(30)
	s.AddRestingSample(60)
	if err := s.ComputeBaseline(1.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Crossed(s.Threshold) {
		t.Errorf("value equal to threshold must not cross")
	}
	if !s.Crossed(math.Nextafter(s.Threshold, math.Inf(1))) {
		t.Errorf("value just above threshold must cross")
	}
	if s.Crossed(50) {
		t.Errorf("value below threshold must not cross")
	}
}

func TestCrossedOutsideMonitoring(t *testing.T) {
	s := NewSession("", "")
	s.BeginResting(30)
	if s.Crossed(500) {
		t.Fatalf("resting session must never cross")
	}
}

func TestCountDownNeverNegative(t *testing.T) {
	s := NewSession("", "")
	s.BeginEnding(3)

	want := []int{2, 1, 0, 0, 0}
	for i, w := range want {
		if got := s.CountDown(); got != w {
			t.Fatalf("tick %d: countdown = %d want %d", i+1, got, w)
		}
	}
}

func TestRecordPrependsNewestFirst(t *testing.T) {
	s := NewSession("", "")
	base := time.Date(2016, 10, 22, 13, 4, 5, 0, time.Local)

	s.Record(Sample{Value: 61.9, Timestamp: base})
	s.Record(Sample{Value: 70, Timestamp: base.Add(time.Second)})

	want := "13:04:06\n70\n13:04:05\n61"
	if got := s.LogText(); got != want {
		t.Fatalf("LogText() = %q want %q", got, want)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := NewSession("session-1", "wearer-1")
	s.BeginResting(30)
	s.AddRestingSample(60)
	s.Record(Sample{Value: 60, Timestamp: time.Now()})
	if err := s.ComputeBaseline(1.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Reset()

	if s.Phase != PhaseIdle || s.HasBaseline || s.Baseline != 0 || s.Threshold != 0 {
		t.Fatalf("reset left state behind: %+v", s)
	}
	if len(s.RestingSamples) != 0 || len(s.Log) != 0 || s.Countdown != 0 {
		t.Fatalf("reset left collections behind: %+v", s)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSession("", "")
	s.BeginResting(30)
	s.AddRestingSample(60)
	s.Record(Sample{Value: 60, Timestamp: time.Now()})

	c := s.Clone()
	c.RestingSamples[0] = 99
	c.Log[0].Value = 99

	if s.RestingSamples[0] != 60 || s.Log[0].Value != 60 {
		t.Fatalf("clone shares backing arrays with the session")
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseResting, "resting"},
		{PhaseMonitoring, "monitoring"},
		{PhaseEnding, "ending"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q want %q", int(tt.phase), got, tt.want)
		}
	}
}
