package layer

import (
	"sort"
	"sync"
)

// MapSurface is an in-process rendering surface: it records which
// renderables are currently drawn.
type MapSurface struct {
	mu       sync.RWMutex
	attached map[string]*Renderable
}

// NewMapSurface creates an empty surface.
func NewMapSurface() *MapSurface {
	return &MapSurface{attached: make(map[string]*Renderable)}
}

// Attach draws r. Attaching twice is a no-op.
func (s *MapSurface) Attach(r *Renderable) error {
	s.mu.Lock()
	s.attached[r.Name] = r
	s.mu.Unlock()
	return nil
}

// Detach removes the renderable called name.
func (s *MapSurface) Detach(name string) error {
	s.mu.Lock()
	delete(s.attached, name)
	s.mu.Unlock()
	return nil
}

// Has reports whether name is drawn.
func (s *MapSurface) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.attached[name]
	return ok
}

// Attached returns the drawn layer names in lexical order.
func (s *MapSurface) Attached() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.attached))
	for n := range s.attached {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the drawn renderable called name.
func (s *MapSurface) Get(name string) (*Renderable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.attached[name]
	return r, ok
}
