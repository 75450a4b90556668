package reconcile

import "sync"

// marker is the last-known state of one entry. It only lets the reconciler
// reuse work across cycles and never decides what is written.
type marker struct {
	checksum string
	inline   map[string]string
}

// SyncState is what the reconciler last observed. lastTimeline changes only
// after a read or write the reconciler itself performed.
type SyncState struct {
	mu           sync.RWMutex
	lastTimeline string
	markers      map[string]marker
}

// LastTimeline returns the last observed timeline text.
func (s *SyncState) LastTimeline() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTimeline
}

func (s *SyncState) setLastTimeline(text string) {
	s.mu.Lock()
	s.lastTimeline = text
	s.mu.Unlock()
}

func (s *SyncState) marker(id string) (marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markers[id]
	return m, ok
}

func (s *SyncState) setMarker(id string, m marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markers == nil {
		s.markers = make(map[string]marker)
	}
	s.markers[id] = m
}

func (s *SyncState) forget(id string) {
	s.mu.Lock()
	delete(s.markers, id)
	s.mu.Unlock()
}
