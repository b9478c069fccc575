package trigger

import "sync"

// EventSource converts discrete press events into button state. Each press
// reads as held for one poll followed by a released poll, so a Poller sees
// exactly one down edge per press.
type EventSource struct {
	mu      sync.Mutex
	pending map[string]int
	held    map[string]bool
}

// NewEventSource creates an empty EventSource.
func NewEventSource() *EventSource {
	return &EventSource{
		pending: make(map[string]int),
		held:    make(map[string]bool),
	}
}

// Press records one press of button.
func (s *EventSource) Press(button string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[button]++
}

// Pressed implements Source.
func (s *EventSource) Pressed(button string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held[button] {
		s.held[button] = false
		return false, nil
	}
	if s.pending[button] > 0 {
		s.pending[button]--
		s.held[button] = true
		return true, nil
	}
	return false, nil
}
