package track

import "sync"

// Store holds the live track model. Loads publish a whole new Model in one
// assignment; readers always see either the old or the new model.
type Store struct {
	mu        sync.RWMutex
	model     *Model
	published uint64 // generation of the current model
	issued    uint64 // last generation handed out by Begin
}

// NewStore creates a store holding an empty model.
func NewStore() *Store {
	return &Store{model: Empty()}
}

// Current returns the live model.
func (s *Store) Current() *Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Generation returns the generation of the live model.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.published
}

// Begin hands out the generation token for a new load. Tokens increase
// monotonically.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Publish swaps in m if gen is newer than the live model's generation.
// It returns false when a later load has already been published.
func (s *Store) Publish(m *Model, gen uint64) bool {
	if m == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.published {
		return false
	}
	s.model = m
	s.published = gen
	return true
}

// Superseded reports whether a load holding gen can no longer be published.
func (s *Store) Superseded(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen <= s.published
}
