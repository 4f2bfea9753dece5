package sensor

import (
	"math"
	"sync"
	"time"

	"github.com/hperssn/pulse/internal/domain"
	"github.com/hperssn/pulse/internal/runner"
)

// Wearer is a synthetic participant: still at Resting bpm, then climbing
// linearly to Peak over RampTime once ExerciseAfter has elapsed.
type Wearer struct {
	Resting       float64
	Peak          float64
	ExerciseAfter time.Duration
	RampTime      time.Duration
	Noise         float64
}

func DefaultWearer() Wearer {
	return Wearer{
		Resting:       62,
		Peak:          120,
		ExerciseAfter: 40 * time.Second,
		RampTime:      60 * time.Second,
		Noise:         1.5,
	}
}

// At returns the heart rate elapsed into the session.
func (w Wearer) At(elapsed time.Duration) float64 {
	hr := w.Resting
	if elapsed > w.ExerciseAfter {
		f := 1.0
		if w.RampTime > 0 {
			f = math.Min(1, float64(elapsed-w.ExerciseAfter)/float64(w.RampTime))
		}
		hr += (w.Peak - w.Resting) * f
	}

	// cheap deterministic jitter
	t := elapsed.Seconds()
	n := w.Noise * (2*fract(math.Sin(12.9898*t+1)*43758.5453) - 1)
	return hr + n
}

func fract(x float64) float64 { return x - math.Floor(x) }

// SimSource emits one reading of Wearer every Interval, starting from the
// moment of subscription.
type SimSource struct {
	Wearer   Wearer
	Interval time.Duration
}

func NewSimSource(w Wearer, interval time.Duration) *SimSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &SimSource{Wearer: w, Interval: interval}
}

func (s *SimSource) Available() bool { return true }

func (s *SimSource) Subscribe(onSamples func([]domain.Sample), _ func(error)) (runner.Handle, error) {
	h := &simHandle{stop: make(chan struct{})}
	start := time.Now()

	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				sample := domain.Sample{Value: s.Wearer.At(now.Sub(start)), Timestamp: now}
				select {
				case <-h.stop:
					return
				default:
				}
				onSamples([]domain.Sample{sample})

			case <-h.stop:
				return
			}
		}
	}()

	return h, nil
}

type simHandle struct {
	once sync.Once
	stop chan struct{}
}

func (h *simHandle) Unsubscribe() error {
	h.once.Do(func() { close(h.stop) })
	return nil
}
