package sensor

import "context"

// Grants answers the load-time access requests from configuration. When
// Probe is set, sensor access also requires the transport to be reachable.
type Grants struct {
	Sensor       bool
	Notification bool
	Probe        func() bool
}

func (g Grants) RequestSensorAccess(ctx context.Context) bool {
	if !g.Sensor || ctx.Err() != nil {
		return false
	}
	if g.Probe != nil {
		return g.Probe()
	}
	return true
}

func (g Grants) RequestNotificationAccess(ctx context.Context) bool {
	return g.Notification && ctx.Err() == nil
}
