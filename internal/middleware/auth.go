package middleware

import (
	"crypto/subtle"
	"strings"
	"sync"
)

// ServiceKeys holds static API keys for machine clients such as an external
// scheduler that triggers reconciliation. Keys are compared in constant time.
type ServiceKeys struct {
	mu   sync.RWMutex
	keys []string
}

// NewServiceKeys creates a key set, ignoring blank entries
func NewServiceKeys(keys ...string) *ServiceKeys {
	s := &ServiceKeys{}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add adds a key
func (s *ServiceKeys) Add(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
}

// Remove removes a key
func (s *ServiceKeys) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	s.keys = kept
}

// Len returns the number of configured keys
func (s *ServiceKeys) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Valid reports whether provided matches a configured key
func (s *ServiceKeys) Valid(provided string) bool {
	if s == nil || provided == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := false
	for _, valid := range s.keys {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(valid)) == 1 {
			match = true
		}
	}
	return match
}
