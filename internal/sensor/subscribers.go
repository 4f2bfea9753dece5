package sensor

import "sync"

// subscribers tracks the error callbacks of live subscriptions so that a
// broken transport can fail every session reading from it.
type subscribers struct {
	mu     sync.Mutex
	nextID int
	active map[int]func(error)
}

func (s *subscribers) add(onError func(error)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		s.active = make(map[int]func(error))
	}
	s.nextID++
	s.active[s.nextID] = onError
	return s.nextID
}

func (s *subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// failAll removes every subscriber and calls its error callback outside the
// lock.
func (s *subscribers) failAll(err error) {
	s.mu.Lock()
	callbacks := make([]func(error), 0, len(s.active))
	for id, fn := range s.active {
		callbacks = append(callbacks, fn)
		delete(s.active, id)
	}
	s.mu.Unlock()

	for _, fn := range callbacks {
		if fn != nil {
			go fn(err)
		}
	}
}
