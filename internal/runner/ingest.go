package runner

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/hperssn/pulse/internal/domain"
)

// Ingestor receives readings for one session and forwards them to the
// machine. It is bound to the session it was created for; readings that
// arrive after that session ended are dropped by the machine.
type Ingestor struct {
	machine *Machine
	gen     uint64
}

// OnSamples takes a batch as delivered by the sensor. Only the newest
// reading is used.
func (i *Ingestor) OnSamples(batch []domain.Sample) {
	if len(batch) == 0 {
		return
	}
	last := batch[len(batch)-1]
	i.OnSample(last.Value, last.Timestamp)
}

func (i *Ingestor) OnSample(value float64, ts time.Time) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	_ = i.machine.post(context.Background(), sampleArrived{
		gen:    i.gen,
		sample: domain.Sample{Value: value, Timestamp: ts},
	})
}

// OnError reports that the sensor subscription broke.
func (i *Ingestor) OnError(err error) {
	_ = i.machine.post(context.Background(), sensorFailed{gen: i.gen, err: err})
}

// ingest runs on the machine goroutine for every accepted reading,
// whatever the phase.
func (m *Machine) ingest(s domain.Sample) {
	m.session.Record(s)
	m.stats.SamplesIngested.Add(1)

	m.display.SetHeartRate(strconv.Itoa(int(s.Value)))
	m.display.SetLog(m.session.LogText())
}
