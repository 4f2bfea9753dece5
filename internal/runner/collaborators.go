package runner

import (
	"context"
	"time"

	"github.com/hperssn/pulse/internal/domain"
)

// Source streams heart-rate readings from the wearer's sensor. onSamples may
// be called with several readings at once, or with none.
type Source interface {
	Subscribe(onSamples func([]domain.Sample), onError func(error)) (Handle, error)
}

type Handle interface {
	Unsubscribe() error
}

type Authorizer interface {
	RequestSensorAccess(ctx context.Context) bool
	RequestNotificationAccess(ctx context.Context) bool
}

// Notifier schedules the "experience end" alert and returns an id that can
// cancel it while it is pending. Delivery is not tracked.
type Notifier interface {
	ScheduleNotification(delay time.Duration, title, body string, sound bool) string
	CancelNotification(id string) bool
}

type Display interface {
	SetHeartRate(text string)
	SetMessage(text string)
	SetCountdown(text string)
	SetLog(text string)
	SetControl(label string)
}

// Timer fires onTick once per interval until stopped.
type Timer interface {
	Start(interval time.Duration, onTick func())
	Stop()
}

type wearerKey struct{}

// WithWearer tags a start command with the wearer it is issued for.
func WithWearer(ctx context.Context, wearerID string) context.Context {
	return context.WithValue(ctx, wearerKey{}, wearerID)
}

func WearerFrom(ctx context.Context) string {
	id, _ := ctx.Value(wearerKey{}).(string)
	return id
}
