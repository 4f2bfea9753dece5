// Package display holds what the wearer's screen shows and fans it out to
// whoever renders it.
package display

import "sync"

// Sink receives screen updates. It has the same method set as the runner's
// Display collaborator.
type Sink interface {
	SetHeartRate(text string)
	SetMessage(text string)
	SetCountdown(text string)
	SetLog(text string)
	SetControl(label string)
}

// Panel is the full content of the screen.
type Panel struct {
	HeartRate string `json:"heartRate"`
	Message   string `json:"message"`
	Countdown string `json:"countdown"`
	Log       string `json:"log"`
	Control   string `json:"control"`
}

// Board keeps the current Panel and pushes a copy to every subscriber on
// each change. Slow subscribers miss intermediate panels.
type Board struct {
	mu     sync.Mutex
	panel  Panel
	nextID int
	subs   map[int]chan Panel
}

func NewBoard() *Board {
	return &Board{subs: make(map[int]chan Panel)}
}

func (b *Board) SetHeartRate(text string) { b.update(func(p *Panel) { p.HeartRate = text }) }
func (b *Board) SetMessage(text string)   { b.update(func(p *Panel) { p.Message = text }) }
func (b *Board) SetCountdown(text string) { b.update(func(p *Panel) { p.Countdown = text }) }
func (b *Board) SetLog(text string)       { b.update(func(p *Panel) { p.Log = text }) }
func (b *Board) SetControl(label string)  { b.update(func(p *Panel) { p.Control = label }) }

func (b *Board) Current() Panel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.panel
}

// Subscribe returns a channel that first receives the current panel and then
// every change, and a func that ends the subscription.
func (b *Board) Subscribe() (<-chan Panel, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Panel, 16)
	ch <- b.panel

	b.nextID++
	id := b.nextID
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Board) update(fn func(*Panel)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fn(&b.panel)
	for _, ch := range b.subs {
		select {
		case ch <- b.panel:
		default:
		}
	}
}
