package store

import "sync"

// Sessions tracks in-flight session ids so two concurrent builds handed the
// same caller-supplied id cannot share a namespace and overwrite each
// other's artifacts.
type Sessions struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewSessions creates an empty session registry
func NewSessions() *Sessions {
	return &Sessions{active: make(map[string]struct{})}
}

// Reserve claims a session id for one build. It returns false when the id
// is already in flight; the caller must then back off rather than reuse it.
func (s *Sessions) Reserve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; ok {
		return false
	}
	s.active[id] = struct{}{}
	return true
}

// Release frees a session id once its build has finished. The artifacts
// themselves persist; only the in-flight reservation is dropped.
func (s *Sessions) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}
