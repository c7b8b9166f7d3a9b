package order

import "sync"

// Store holds the current State of one order form. Writes are atomic
// whole-state replacements; the last writer wins.
type Store struct {
	mu    sync.RWMutex
	state State
}

func NewStore() *Store {
	return &Store{state: NewState()}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Apply replaces the state with fn(current) and returns the new state.
func (s *Store) Apply(fn func(State) State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	return s.state
}
