package collab

import (
	"fmt"
	"sort"
	"sync"

	"github.com/AzielCF/az-collab/collab/application"
	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	"github.com/AzielCF/az-collab/pkg/clock"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/sirupsen/logrus"
)

// ChannelFactory returns a fresh transport for one room.
type ChannelFactory func(room envelope.Room) channel.Channel

type Options struct {
	Self          identity.Identity
	Directory     identity.Directory
	Channels      ChannelFactory
	Clock         clock.Clock
	Session       application.SessionConfig
	Notifications application.NotificationCenterOptions
}

// Manager is the per-process entry point of a client session. It owns the
// shared Notification Center and one RoomSession per joined room.
type Manager struct {
	opts   Options
	center *application.NotificationCenter

	mu       sync.Mutex
	rooms    map[string]*application.RoomSession
	shutdown bool
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Self.ID == "" {
		return nil, pkgError.ValidationError("local identity id is required")
	}
	if opts.Channels == nil {
		return nil, pkgError.ValidationError("a channel factory is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Notifications.Clock == nil {
		opts.Notifications.Clock = opts.Clock
	}
	if opts.Self.DisplayName == "" && opts.Directory != nil {
		opts.Self.DisplayName = opts.Directory.ResolveDisplayName(opts.Self.ID)
	}

	return &Manager{
		opts:   opts,
		center: application.InitNotificationCenter(opts.Notifications),
		rooms:  make(map[string]*application.RoomSession),
	}, nil
}

func (m *Manager) Self() identity.Identity { return m.opts.Self }

func (m *Manager) Notifications() *application.NotificationCenter { return m.center }

// Join opens room, or returns the already open session for it.
func (m *Manager) Join(room envelope.Room) (*application.RoomSession, error) {
	if room.IsZero() {
		return nil, pkgError.ValidationError("resource type and id are required")
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, fmt.Errorf("collab manager is shut down")
	}
	if rs, ok := m.rooms[room.Key()]; ok {
		m.mu.Unlock()
		rs.Open()
		return rs, nil
	}
	rs := application.NewRoomSession(
		room,
		m.opts.Self,
		m.opts.Channels(room),
		m.opts.Directory,
		m.center,
		m.opts.Clock,
		m.opts.Session,
	)
	m.rooms[room.Key()] = rs
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room":    room.String(),
		"user_id": m.opts.Self.ID,
	}).Info("[COLLAB] Joining room")
	rs.Open()
	return rs, nil
}

// Leave closes room. It reports whether the room was open.
func (m *Manager) Leave(room envelope.Room) bool {
	m.mu.Lock()
	rs, ok := m.rooms[room.Key()]
	delete(m.rooms, room.Key())
	m.mu.Unlock()

	if !ok {
		return false
	}
	rs.Close()
	logrus.WithField("room", room.String()).Info("[COLLAB] Left room")
	return true
}

func (m *Manager) Room(room envelope.Room) (*application.RoomSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.rooms[room.Key()]
	return rs, ok
}

// Rooms lists the open rooms sorted by key.
func (m *Manager) Rooms() []envelope.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]envelope.Room, 0, len(m.rooms))
	for _, rs := range m.rooms {
		out = append(out, rs.Room())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Shutdown closes every room and tears the Notification Center down.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	rooms := m.rooms
	m.rooms = make(map[string]*application.RoomSession)
	m.mu.Unlock()

	for _, rs := range rooms {
		rs.Close()
	}
	application.TeardownNotificationCenter()
	logrus.Infof("[COLLAB] Session ended, closed %d rooms", len(rooms))
}
