package repository

import (
	"context"
	"sort"
	"sync"
)

// MemoryRosterStore keeps room membership in process memory. It is the
// default when Valkey is disabled.
type MemoryRosterStore struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
}

func NewMemoryRosterStore() *MemoryRosterStore {
	return &MemoryRosterStore{rooms: make(map[string]map[string]struct{})}
}

func (s *MemoryRosterStore) Add(_ context.Context, roomKey, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[roomKey]
	if !ok {
		members = make(map[string]struct{})
		s.rooms[roomKey] = members
	}
	if _, exists := members[userID]; exists {
		return false, nil
	}
	members[userID] = struct{}{}
	return true, nil
}

func (s *MemoryRosterStore) Remove(_ context.Context, roomKey, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.rooms[roomKey]
	if !ok {
		return false, nil
	}
	if _, exists := members[userID]; !exists {
		return false, nil
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(s.rooms, roomKey)
	}
	return true, nil
}

func (s *MemoryRosterStore) Members(_ context.Context, roomKey string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms[roomKey]))
	for id := range s.rooms[roomKey] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryRosterStore) Clear(_ context.Context, roomKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomKey)
	return nil
}
