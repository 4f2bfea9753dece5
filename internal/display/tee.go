package display

type tee []Sink

// Tee forwards every update to all sinks, in order.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) SetHeartRate(text string) {
	for _, s := range t {
		s.SetHeartRate(text)
	}
}

func (t tee) SetMessage(text string) {
	for _, s := range t {
		s.SetMessage(text)
	}
}

func (t tee) SetCountdown(text string) {
	for _, s := range t {
		s.SetCountdown(text)
	}
}

func (t tee) SetLog(text string) {
	for _, s := range t {
		s.SetLog(text)
	}
}

func (t tee) SetControl(label string) {
	for _, s := range t {
		s.SetControl(label)
	}
}
