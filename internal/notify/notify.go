// Package notify delivers the delayed "experience end" alert to the wearer's
// device by publishing it on a message subject once its delay has passed.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/oklog/ulid/v2"
)

// Notification is the payload published when the delay elapses.
type Notification struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Sound       bool      `json:"sound"`
	Vibrate     bool      `json:"vibrate"`
	ScheduledAt time.Time `json:"scheduledAt"`
	FireAt      time.Time `json:"fireAt"`
}

// Publisher is satisfied by *nats.Conn and by MQTTPublisher.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Scheduler holds pending notifications until they are due.
type Scheduler struct {
	pub     Publisher
	subject string
	log     *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

func NewScheduler(pub Publisher, subject string) *Scheduler {
	return &Scheduler{
		pub:     pub,
		subject: subject,
		log:     slog.Default().With("component", "notify", "subject", subject),
		pending: make(map[string]*time.Timer),
	}
}

// ScheduleNotification queues an alert delay from now and returns its id, or
// an empty string once the scheduler is closed. It never blocks and delivery
// failures are only logged.
func (s *Scheduler) ScheduleNotification(delay time.Duration, title, body string, sound bool) string {
	now := time.Now()
	n := Notification{
		ID:          ulid.Make().String(),
		Title:       title,
		Body:        body,
		Sound:       sound,
		Vibrate:     true,
		ScheduledAt: now,
		FireAt:      now.Add(delay),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("scheduler closed, dropping notification", "title", title)
		return ""
	}

	s.pending[n.ID] = time.AfterFunc(delay, func() { s.fire(n) })
	s.log.Info("notification scheduled", "id", n.ID, "fire_at", n.FireAt)
	return n.ID
}

func (s *Scheduler) fire(n Notification) {
	s.mu.Lock()
	delete(s.pending, n.ID)
	s.mu.Unlock()

	data, err := json.Marshal(n)
	if err != nil {
		s.log.Error("encode notification", "id", n.ID, "error", err)
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		s.log.Error("publish notification", "id", n.ID, "error", err)
		return
	}
	s.log.Info("notification delivered", "id", n.ID)
}

// CancelNotification drops a pending alert. It reports false when the
// alert already fired or was never scheduled.
func (s *Scheduler) CancelNotification(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.pending[id]
	if !ok {
		return false
	}
	delete(s.pending, id)
	if !t.Stop() {
		return false
	}
	s.log.Info("notification cancelled", "id", id)
	return true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every notification that has not fired yet.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}

// MQTTPublisher publishes on an MQTT topic named by the subject.
type MQTTPublisher struct {
	Client  mqtt.Client
	QoS     byte
	Timeout time.Duration
}

func (p MQTTPublisher) Publish(topic string, data []byte) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	token := p.Client.Publish(topic, p.QoS, false, data)
	if !token.WaitTimeout(timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// LogPublisher writes notifications to the log. Used when no broker is
// configured.
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) Publish(subject string, data []byte) error {
	l := p.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("experience end", "subject", subject, "payload", string(data))
	return nil
}
