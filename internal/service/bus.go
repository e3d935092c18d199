package service

import "sync"

// Event resources published on the bus.
const (
	ResourceProgress = "progress"
	ResourceLayers   = "layers"
	ResourceCards    = "cards"
	ResourceControl  = "control"
)

// Event represents a state change a viewer may want to redraw.
type Event struct {
	Resource string // e.g. "layers"
	Action   string // "updated", "loaded"
	ID       string // layer name, empty for whole-resource events
}

func (e Event) key() string { return e.Resource + "\x00" + e.ID }

// EventBus is a fan-out pub/sub that never drops and never blocks the
// publisher. A slow subscriber has its pending events coalesced so only the
// latest event per resource and ID is kept.
type EventBus struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*Subscriber]struct{})}
}

// Publish queues e for every subscriber.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		s.push(e)
	}
}

// Subscribe returns a new subscriber.
func (b *EventBus) Subscribe() *Subscriber {
	s := &Subscriber{
		ready: make(chan struct{}, 1),
		index: make(map[string]int),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a subscriber.
func (b *EventBus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscriber holds events not yet drained.
type Subscriber struct {
	ready chan struct{}

	mu      sync.Mutex
	pending []Event
	index   map[string]int
}

func (s *Subscriber) push(e Event) {
	s.mu.Lock()
	if i, ok := s.index[e.key()]; ok {
		s.pending[i] = e
	} else {
		s.index[e.key()] = len(s.pending)
		s.pending = append(s.pending, e)
	}
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Ready fires when events are pending.
func (s *Subscriber) Ready() <-chan struct{} { return s.ready }

// Drain returns pending events in first-published order and clears them.
func (s *Subscriber) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	clear(s.index)
	return out
}
