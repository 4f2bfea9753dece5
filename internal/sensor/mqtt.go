package sensor

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hperssn/pulse/internal/domain"
	"github.com/hperssn/pulse/internal/runner"
)

const mqttAckTimeout = 3 * time.Second

// InitClient connects to an MQTT broker. onLost is called whenever the
// connection drops.
func InitClient(broker, clientID string, onLost func(error)) (mqtt.Client, error) {
	if clientID == "" {
		clientID = fmt.Sprintf("pulse-%d", time.Now().Unix())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	// Handlers block until the state machine took the reading.
	opts.SetOrderMatters(false)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		if onLost != nil {
			onLost(err)
		}
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// MQTTSource reads samples from a topic such as wearable/<id>/heartrate.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	qos    byte
	subs   subscribers
	wearer string
	log    *slog.Logger
}

func NewMQTTSource(client mqtt.Client, topic string, qos byte) *MQTTSource {
	return &MQTTSource{
		client: client,
		topic:  topic,
		qos:    qos,
		log:    slog.Default().With("component", "sensor", "transport", "mqtt", "topic", topic),
	}
}

// ForWearer drops readings addressed to any other wearer, for subjects
// shared by several participants.
func (s *MQTTSource) ForWearer(id string) *MQTTSource {
	s.wearer = id
	return s
}

func (s *MQTTSource) Available() bool {
	return s.client != nil && s.client.IsConnectionOpen()
}

func (s *MQTTSource) Subscribe(onSamples func([]domain.Sample), onError func(error)) (runner.Handle, error) {
	if !s.Available() {
		return nil, ErrNotConnected
	}

	sub := &subscription{wearer: s.wearer, onSamples: onSamples, log: s.log}
	sub.id = s.subs.add(onError)

	token := s.client.Subscribe(s.topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		sub.deliver(msg.Payload())
	})
	if !token.WaitTimeout(mqttAckTimeout) {
		s.subs.remove(sub.id)
		sub.close()
		return nil, fmt.Errorf("subscribe %s: timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		s.subs.remove(sub.id)
		sub.close()
		return nil, err
	}

	s.log.Info("subscribed")
	return &mqttHandle{src: s, sub: sub}, nil
}

func (s *MQTTSource) ConnectionLost(err error) {
	if err == nil {
		err = ErrDisconnected
	}
	if s.subs.count() > 0 {
		s.log.Error("connection lost", "error", err)
	}
	s.subs.failAll(err)
}

type mqttHandle struct {
	src *MQTTSource
	sub *subscription
}

// Unsubscribe returns without waiting for the broker. The subscription
// stops forwarding at once; a missing acknowledgement is only logged.
func (h *mqttHandle) Unsubscribe() error {
	if !h.sub.close() {
		return nil
	}
	h.src.subs.remove(h.sub.id)

	if !h.src.Available() {
		return nil
	}
	token := h.src.client.Unsubscribe(h.src.topic)
	go func() {
		if !token.WaitTimeout(mqttAckTimeout) {
			h.src.log.Warn("unsubscribe not acknowledged", "timeout", mqttAckTimeout)
			return
		}
		if err := token.Error(); err != nil {
			h.src.log.Warn("unsubscribe failed", "error", err)
		}
	}()
	return nil
}
