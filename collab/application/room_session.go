package application

import (
	"strings"
	"sync"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	domainNotification "github.com/AzielCF/az-collab/collab/domain/notification"
	"github.com/AzielCF/az-collab/pkg/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionConfig tunes the timers of a room subscription.
type SessionConfig struct {
	Reconnect      ReconnectPolicy
	TypingDebounce time.Duration
	TypingExpiry   time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Reconnect:      DefaultReconnectPolicy(),
		TypingDebounce: DefaultTypingDebounce,
		TypingExpiry:   DefaultTypingExpiry,
	}
}

// RoomSession is one client subscription to a room. It owns the room's
// connection, presence, typing state and timers.
type RoomSession struct {
	room      envelope.Room
	self      identity.Identity
	directory identity.Directory
	clock     clock.Clock

	conn     *ConnectionManager
	presence *PresenceTracker
	typing   *TypingAggregator
	emitter  *TypingEmitter
	mentions *MentionResolver
	feed     *NotificationFeed
	center   *NotificationCenter

	mu        sync.Mutex
	observers []func(envelope.Envelope)
	closed    bool
}

func NewRoomSession(
	room envelope.Room,
	self identity.Identity,
	ch channel.Channel,
	directory identity.Directory,
	center *NotificationCenter,
	clk clock.Clock,
	cfg SessionConfig,
) *RoomSession {
	if clk == nil {
		clk = clock.Real()
	}
	rs := &RoomSession{
		room:      room,
		self:      self,
		directory: directory,
		clock:     clk,
		center:    center,
		presence:  NewPresenceTracker(room, self.ID),
		typing:    NewTypingAggregator(room, self.ID, clk, cfg.TypingExpiry),
		mentions:  NewMentionResolver(directory),
		feed:      NewNotificationFeed(self, directory, center),
	}
	rs.conn = NewConnectionManager(room, self.ID, ch, clk, cfg.Reconnect)
	rs.emitter = NewTypingEmitter(clk, cfg.TypingDebounce, rs.sendTyping)

	rs.conn.OnSystem(rs.routeSystem)
	rs.conn.Subscribe(rs.routeDomain)
	rs.conn.OnStateChange(rs.onConnectionState)
	return rs
}

func (rs *RoomSession) Room() envelope.Room                { return rs.room }
func (rs *RoomSession) Self() identity.Identity            { return rs.self }
func (rs *RoomSession) Connection() *ConnectionManager     { return rs.conn }
func (rs *RoomSession) Presence() *PresenceTracker         { return rs.presence }
func (rs *RoomSession) Typing() *TypingAggregator          { return rs.typing }
func (rs *RoomSession) Notifications() *NotificationCenter { return rs.center }

// Open connects the room. Idempotent.
func (rs *RoomSession) Open() {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	rs.mu.Unlock()
	rs.conn.Open()
}

// Close synchronously cancels every timer the room owns and releases the
// channel.
func (rs *RoomSession) Close() {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	rs.closed = true
	rs.mu.Unlock()

	rs.emitter.Close()
	rs.typing.Close()
	rs.conn.Close()
	rs.presence.RemoveSelf()
}

// Subscribe registers an observer for domain envelopes of this room.
func (rs *RoomSession) Subscribe(fn func(envelope.Envelope)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.observers = append(rs.observers, fn)
}

// Keystroke feeds the typing emitter with local input.
func (rs *RoomSession) Keystroke() {
	rs.emitter.Keystroke()
}

// SubmitComment resolves mentions in body and sends a comment_added
// envelope. Persisting the comment is left to the external API; the server
// echoes the envelope to every member, the sender included.
func (rs *RoomSession) SubmitComment(body string) (envelope.CommentPayload, bool) {
	body = strings.TrimSpace(body)
	payload := envelope.CommentPayload{
		CommentID:  uuid.NewString(),
		Body:       body,
		AuthorID:   rs.self.ID,
		AuthorName: rs.self.DisplayName,
	}
	if body == "" {
		return payload, false
	}
	for _, m := range rs.mentions.Resolve(body) {
		payload.Mentions = append(payload.Mentions, envelope.MentionData{
			IdentityID:  m.IdentityID,
			DisplayName: m.DisplayName,
		})
	}

	rs.emitter.Reset()
	delivered := rs.conn.Emit(envelope.KindCommentAdded, payload)
	if !delivered {
		logrus.WithField("room", rs.room.String()).Warn("[SESSION] Comment not delivered, connection is not open")
	}
	return payload, delivered
}

// LogActivity sends an activity_logged envelope for a local action.
func (rs *RoomSession) LogActivity(action, detail string) bool {
	return rs.conn.Emit(envelope.KindActivityLogged, envelope.ActivityPayload{
		ActivityID: uuid.NewString(),
		ActorID:    rs.self.ID,
		ActorName:  rs.self.DisplayName,
		Action:     action,
		Detail:     detail,
	})
}

// DisplayName renders a user id for presence and typing lists.
func (rs *RoomSession) DisplayName(id string) string {
	if rs.directory == nil {
		return id
	}
	return rs.directory.ResolveDisplayName(id)
}

func (rs *RoomSession) sendTyping() bool {
	return rs.conn.Emit(envelope.KindUserTyping, envelope.TypingPayload{DisplayName: rs.self.DisplayName})
}

func (rs *RoomSession) routeSystem(env envelope.Envelope) {
	switch env.Kind {
	case envelope.KindUserTyping:
		rs.typing.Handle(env)
	default:
		rs.presence.Handle(env)
	}
}

func (rs *RoomSession) routeDomain(env envelope.Envelope) {
	if env.Kind == envelope.KindCommentAdded {
		author := env.UserID
		var p envelope.CommentPayload
		if err := env.DecodePayload(&p); err == nil && p.AuthorID != "" {
			author = p.AuthorID
		}
		rs.typing.Clear(author)
	}

	rs.feed.Handle(env)

	rs.mu.Lock()
	observers := rs.observers
	rs.mu.Unlock()
	for _, fn := range observers {
		fn(env)
	}
}

func (rs *RoomSession) onConnectionState(s ConnectionStatus) {
	if s.State != channel.StateConnected {
		rs.presence.RemoveSelf()
	}
	if s.Exhausted && s.State == channel.StateDisconnected && rs.center != nil {
		rs.center.Add(domainNotification.Draft{
			Kind:         domainNotification.KindConnection,
			Title:        "Disconnected, action required",
			Message:      "Live updates for " + rs.room.String() + " stopped after repeated connection failures. Rejoin the room to resume.",
			ResourceType: rs.room.ResourceType,
			ResourceID:   rs.room.ResourceID,
		})
	}
}
