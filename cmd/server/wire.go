package main

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hperssn/pulse/internal/config"
	"github.com/hperssn/pulse/internal/notify"
	"github.com/hperssn/pulse/internal/runner"
	"github.com/hperssn/pulse/internal/sensor"
)

type source interface {
	runner.Source
	Available() bool
}

// transport holds the sample source and the notification scheduler built
// over the same broker connection.
type transport struct {
	source    source
	scheduler *notify.Scheduler
	closers   []func()
}

func (t *transport) Close() {
	t.scheduler.Close()
	for i := len(t.closers) - 1; i >= 0; i-- {
		t.closers[i]()
	}
}

// lossRelay forwards a connection-lost callback to a source created after
// the connection.
type lossRelay struct {
	mu sync.Mutex
	fn func(error)
}

func (r *lossRelay) set(fn func(error)) {
	r.mu.Lock()
	r.fn = fn
	r.mu.Unlock()
}

func (r *lossRelay) lost(err error) {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func connect(env *config.Env, log *slog.Logger) (*transport, error) {
	switch env.Sensor {
	case config.SensorNATS:
		relay := &lossRelay{}
		nc, err := sensor.Connect(env.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) { relay.lost(err) }),
			nats.ReconnectHandler(func(c *nats.Conn) {
				log.Info("nats reconnected", "url", c.ConnectedUrl())
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}

		src := sensor.NewNATSSource(nc, env.NATSSubject).ForWearer(env.WearerID)
		relay.set(src.ConnectionLost)

		return &transport{
			source:    src,
			scheduler: notify.NewScheduler(nc, env.NotifySubject),
			closers:   []func(){func() { _ = nc.Drain() }},
		}, nil

	case config.SensorMQTT:
		relay := &lossRelay{}
		client, err := sensor.InitClient(env.MQTTBroker, env.MQTTClientID, relay.lost)
		if err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}

		src := sensor.NewMQTTSource(client, env.SampleTopic(), 1).ForWearer(env.WearerID)
		relay.set(src.ConnectionLost)

		pub := notify.MQTTPublisher{Client: client, QoS: 1, Timeout: 3 * time.Second}
		return &transport{
			source:    src,
			scheduler: notify.NewScheduler(pub, env.NotifySubject),
			closers:   []func(){func() { client.Disconnect(250) }},
		}, nil

	default:
		return &transport{
			source:    sensor.NewSimSource(sensor.DefaultWearer(), time.Second),
			scheduler: notify.NewScheduler(notify.LogPublisher{Log: log}, env.NotifySubject),
		}, nil
	}
}
