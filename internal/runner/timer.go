package runner

import (
	"sync"
	"time"
)

// Ticker is the wall-clock Timer. At most one tick loop is active; Start
// replaces it and Stop cancels it without waiting for a tick in flight.
type Ticker struct {
	mu     sync.Mutex
	cancel chan struct{}
}

func NewTicker() *Ticker {
	return &Ticker{}
}

func (t *Ticker) Start(interval time.Duration, onTick func()) {
	if interval <= 0 {
		interval = time.Second
	}

	t.mu.Lock()
	t.stopLocked()
	cancel := make(chan struct{})
	t.cancel = cancel
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				select {
				case <-cancel:
					return
				default:
				}
				onTick()

			case <-cancel:
				return
			}
		}
	}()
}

func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Ticker) stopLocked() {
	if t.cancel == nil {
		return
	}
	close(t.cancel)
	t.cancel = nil
}

// Running reports whether a tick loop is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
