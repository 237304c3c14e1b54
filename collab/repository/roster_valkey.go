package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/AzielCF/az-collab/infrastructure/valkey"
)

// ValkeyRosterStore keeps each room's membership in a Valkey set so the roster
// survives a server restart. Cross-process fan-out is not attempted.
type ValkeyRosterStore struct {
	client *valkey.Client
}

func NewValkeyRosterStore(client *valkey.Client) *ValkeyRosterStore {
	return &ValkeyRosterStore{client: client}
}

func (s *ValkeyRosterStore) key(roomKey string) string {
	return s.client.Key("roster", roomKey)
}

func (s *ValkeyRosterStore) Add(ctx context.Context, roomKey, userID string) (bool, error) {
	inner := s.client.Inner()
	n, err := inner.Do(ctx, inner.B().Sadd().Key(s.key(roomKey)).Member(userID).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("roster add %s: %w", roomKey, err)
	}
	return n == 1, nil
}

func (s *ValkeyRosterStore) Remove(ctx context.Context, roomKey, userID string) (bool, error) {
	inner := s.client.Inner()
	n, err := inner.Do(ctx, inner.B().Srem().Key(s.key(roomKey)).Member(userID).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("roster remove %s: %w", roomKey, err)
	}
	return n == 1, nil
}

func (s *ValkeyRosterStore) Members(ctx context.Context, roomKey string) ([]string, error) {
	inner := s.client.Inner()
	members, err := inner.Do(ctx, inner.B().Smembers().Key(s.key(roomKey)).Build()).AsStrSlice()
	if err != nil {
		if valkey.IsNil(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("roster members %s: %w", roomKey, err)
	}
	sort.Strings(members)
	return members, nil
}

func (s *ValkeyRosterStore) Clear(ctx context.Context, roomKey string) error {
	inner := s.client.Inner()
	return inner.Do(ctx, inner.B().Del().Key(s.key(roomKey)).Build()).Error()
}
