package sensor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hperssn/pulse/internal/domain"
	"github.com/hperssn/pulse/internal/runner"
)

func Connect(url string, extra ...nats.Option) (*nats.Conn, error) {
	opts := append([]nats.Option{
		nats.Name("pulse"),
		nats.Timeout(3 * time.Second),
		nats.ReconnectWait(500 * time.Millisecond),
		nats.MaxReconnects(-1),
	}, extra...)

	return nats.Connect(url, opts...)
}

// NATSSource reads samples published on a subject, one subject per wearer.
type NATSSource struct {
	conn    *nats.Conn
	subject string
	subs    subscribers
	wearer  string
	log     *slog.Logger
}

func NewNATSSource(conn *nats.Conn, subject string) *NATSSource {
	return &NATSSource{
		conn:    conn,
		subject: subject,
		log:     slog.Default().With("component", "sensor", "transport", "nats", "subject", subject),
	}
}

// ForWearer drops readings addressed to any other wearer, for subjects
// shared by several participants.
func (s *NATSSource) ForWearer(id string) *NATSSource {
	s.wearer = id
	return s
}

func (s *NATSSource) Available() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func (s *NATSSource) Subscribe(onSamples func([]domain.Sample), onError func(error)) (runner.Handle, error) {
	if !s.Available() {
		return nil, ErrNotConnected
	}

	sub := &subscription{wearer: s.wearer, onSamples: onSamples, log: s.log}
	sub.id = s.subs.add(onError)

	ns, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		sub.deliver(msg.Data)
	})
	if err != nil {
		s.subs.remove(sub.id)
		return nil, err
	}

	s.log.Info("subscribed")
	return &natsHandle{src: s, sub: sub, ns: ns}, nil
}

// ConnectionLost fails every live subscription. Wire it as the
// connection's disconnect handler.
func (s *NATSSource) ConnectionLost(err error) {
	if err == nil {
		err = ErrDisconnected
	}
	if s.subs.count() > 0 {
		s.log.Error("connection lost", "error", err)
	}
	s.subs.failAll(err)
}

type natsHandle struct {
	src *NATSSource
	sub *subscription
	ns  *nats.Subscription
}

func (h *natsHandle) Unsubscribe() error {
	if !h.sub.close() {
		return nil
	}
	h.src.subs.remove(h.sub.id)

	if err := h.ns.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}
