// Package sensor adapts heart-rate transports to the runner's Source
// interface. Readings arrive as JSON (see Reading) over NATS or MQTT, or are
// generated in-process by SimSource.
package sensor

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/hperssn/pulse/internal/domain"
)

var (
	ErrNotConnected = errors.New("sensor transport not connected")
	ErrDisconnected = errors.New("sensor transport disconnected")
)

// subscription is the part of a handle shared by every transport: it stops
// forwarding as soon as it is closed, even if the transport still delivers
// a message in flight.
type subscription struct {
	id        int
	wearer    string
	closed    atomic.Bool
	onSamples func([]domain.Sample)
	log       *slog.Logger
}

func (s *subscription) deliver(payload []byte) {
	if s.closed.Load() {
		return
	}

	samples, err := DecodeFor(payload, s.wearer)
	if err != nil {
		s.log.Warn("dropping malformed heart-rate payload", "error", err, "bytes", len(payload))
		return
	}
	if len(samples) == 0 {
		return
	}
	s.onSamples(samples)
}

// close reports whether this call closed the subscription.
func (s *subscription) close() bool {
	return s.closed.CompareAndSwap(false, true)
}
