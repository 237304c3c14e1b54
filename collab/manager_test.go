package collab

import (
	"testing"
	"time"

	"github.com/AzielCF/az-collab/collab/application"
	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	"github.com/AzielCF/az-collab/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct {
	opens  int
	closes int
}

func (s *stubChannel) Open(envelope.Room, string, channel.Listener) {
	s.opens++
}

func (s *stubChannel) Send([]byte) error {
	return nil
}

func (s *stubChannel) Close() error {
	s.closes++
	return nil
}

func newTestManager(t *testing.T) (*Manager, map[string]*stubChannel) {
	t.Helper()
	channels := make(map[string]*stubChannel)
	m, err := NewManager(Options{
		Self: identity.Identity{ID: "u-ana", DisplayName: "Ana"},
		Channels: func(room envelope.Room) channel.Channel {
			ch := &stubChannel{}
			channels[room.Key()] = ch
			return ch
		},
		Clock: clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m, channels
}

func TestNewManager_RequiresIdentityAndTransport(t *testing.T) {
	_, err := NewManager(Options{Channels: func(envelope.Room) channel.Channel { return &stubChannel{} }})
	assert.Error(t, err)

	_, err = NewManager(Options{Self: identity.Identity{ID: "u-1"}})
	assert.Error(t, err)
}

func TestManager_JoinIsIdempotentPerRoom(t *testing.T) {
	m, channels := newTestManager(t)
	room := envelope.NewRoom("issue", "42")

	a, err := m.Join(room)
	require.NoError(t, err)
	b, err := m.Join(room)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, channels[room.Key()].opens)
	assert.Equal(t, []envelope.Room{room}, m.Rooms())

	_, err = m.Join(envelope.NewRoom("issue", " "))
	assert.Error(t, err)
}

func TestManager_RoomsShareOneNotificationCenter(t *testing.T) {
	m, _ := newTestManager(t)

	a, _ := m.Join(envelope.NewRoom("issue", "1"))
	b, _ := m.Join(envelope.NewRoom("doc", "2"))

	assert.Same(t, a.Notifications(), b.Notifications())
	assert.Same(t, m.Notifications(), application.GlobalNotificationCenter())
	assert.Equal(t, []envelope.Room{envelope.NewRoom("doc", "2"), envelope.NewRoom("issue", "1")}, m.Rooms())
}

func TestManager_LeaveAndShutdown(t *testing.T) {
	m, _ := newTestManager(t)
	room := envelope.NewRoom("issue", "42")

	_, _ = m.Join(room)
	assert.True(t, m.Leave(room))
	assert.False(t, m.Leave(room))
	_, ok := m.Room(room)
	assert.False(t, ok)

	_, _ = m.Join(envelope.NewRoom("issue", "43"))
	m.Shutdown()
	assert.Empty(t, m.Rooms())
	assert.Nil(t, application.GlobalNotificationCenter())

	_, err := m.Join(room)
	assert.Error(t, err)
}
