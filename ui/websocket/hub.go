package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	"github.com/AzielCF/az-collab/collab/domain/roster"
	"github.com/AzielCF/az-collab/pkg/clock"
	"github.com/AzielCF/az-collab/pkg/msgworker"
	"github.com/AzielCF/az-collab/validations"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TextMessage matches the websocket text frame opcode.
const TextMessage = 1

// Conn is the write side of an accepted websocket.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dispatcher queues room jobs. Jobs sharing a room key must run in order.
// DispatchContext blocks while the room's queue is full and returns
// msgworker.ErrPoolStopped once the pool no longer accepts work.
type Dispatcher interface {
	DispatchContext(ctx context.Context, job msgworker.RoomJob) error
}

type HubOptions struct {
	Store roster.Store

	// Pool serializes work per room. Nil runs every job inline.
	Pool Dispatcher

	// Directory fills display names on presence envelopes. Optional.
	Directory identity.Directory

	Clock clock.Clock
}

// Client is one accepted connection bound to a single room.
type Client struct {
	conn   Conn
	room   envelope.Room
	userID string

	writeMu sync.Mutex
	joined  bool // guarded by Hub.mu
}

func (c *Client) Room() envelope.Room { return c.room }
func (c *Client) UserID() string      { return c.userID }

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(TextMessage, data)
}

// Hub relays envelopes between the clients of each room and keeps the
// authoritative roster in the Store.
type Hub struct {
	opts HubOptions

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub(opts HubOptions) *Hub {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Hub{
		opts:  opts,
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Connect registers conn for room. The client receives nothing until it
// sends join_room.
func (h *Hub) Connect(conn Conn, room envelope.Room, userID string) *Client {
	c := &Client{conn: conn, room: room, userID: userID}

	h.mu.Lock()
	members, ok := h.rooms[room.Key()]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room.Key()] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{"room": room.String(), "user_id": userID}).Debug("[HUB] Connection registered")
	return c
}

// HandleFrame processes one inbound text frame from c. Invalid frames are
// logged and dropped; the connection stays open.
func (h *Hub) HandleFrame(c *Client, data []byte) {
	log := logrus.WithFields(logrus.Fields{"room": c.room.String(), "user_id": c.userID})

	env, err := envelope.Decode(data)
	if err != nil {
		log.WithError(err).Warn("[HUB] Dropping malformed frame")
		return
	}
	if err := validations.ValidateInboundEnvelope(context.Background(), env); err != nil {
		log.WithError(err).Warn("[HUB] Dropping invalid frame")
		return
	}
	if env.Room() != c.room {
		log.WithField("target", env.Room().String()).Warn("[HUB] Dropping frame addressed to another room")
		return
	}

	env.UserID = c.userID
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = h.opts.Clock.Now().UTC()
	}

	h.run(c, func(ctx context.Context) error {
		return h.process(ctx, c, env)
	})
}

// Disconnect leaves the room on behalf of c and forgets the connection.
func (h *Hub) Disconnect(c *Client) {
	h.run(c, func(ctx context.Context) error {
		err := h.leave(ctx, c)

		h.mu.Lock()
		if members, ok := h.rooms[c.room.Key()]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, c.room.Key())
			}
		}
		h.mu.Unlock()

		logrus.WithFields(logrus.Fields{"room": c.room.String(), "user_id": c.userID}).Debug("[HUB] Connection unregistered")
		return err
	})
}

// Members returns the authoritative roster of room.
func (h *Hub) Members(ctx context.Context, room envelope.Room) ([]string, error) {
	return h.opts.Store.Members(ctx, room.Key())
}

// ConnectionCount returns the number of open connections per room key.
func (h *Hub) ConnectionCount() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.rooms))
	for key, members := range h.rooms {
		out[key] = len(members)
	}
	return out
}

// run hands fn to the pool, waiting for room in the queue so the reader
// goroutine feels backpressure. Inline execution is reserved for a stopped pool.
func (h *Hub) run(c *Client, fn func(ctx context.Context) error) {
	if h.opts.Pool != nil {
		job := msgworker.RoomJob{RoomKey: c.room.Key(), UserID: c.userID, Handler: fn}
		err := h.opts.Pool.DispatchContext(context.Background(), job)
		if err == nil {
			return
		}
		if !errors.Is(err, msgworker.ErrPoolStopped) {
			logrus.WithError(err).WithField("room", c.room.String()).Error("[HUB] Failed to queue room job")
			return
		}
		logrus.WithField("room", c.room.String()).Warn("[HUB] Worker pool stopped, running job inline")
	}
	if err := fn(context.Background()); err != nil {
		logrus.WithError(err).WithField("room", c.room.String()).Error("[HUB] Room job failed")
	}
}

func (h *Hub) process(ctx context.Context, c *Client, env envelope.Envelope) error {
	switch {
	case env.Kind == envelope.KindJoinRoom:
		return h.join(ctx, c)
	case env.Kind == envelope.KindLeaveRoom:
		return h.leave(ctx, c)
	case env.Kind == envelope.KindUserTyping:
		if !h.isJoined(c) {
			return nil
		}
		h.broadcast(c, env, false)
	case env.Kind.IsSystem():
		logrus.WithFields(logrus.Fields{"kind": env.Kind, "user_id": c.userID}).Warn("[HUB] Clients may not send server kinds")
	default:
		if !h.isJoined(c) {
			logrus.WithFields(logrus.Fields{"kind": env.Kind, "user_id": c.userID}).Debug("[HUB] Dropping frame from a connection that has not joined")
			return nil
		}
		h.broadcast(c, env, true)
	}
	return nil
}

func (h *Hub) join(ctx context.Context, c *Client) error {
	h.mu.Lock()
	if c.joined {
		h.mu.Unlock()
		return h.sendSnapshot(ctx, c)
	}
	c.joined = true
	h.mu.Unlock()

	added, err := h.opts.Store.Add(ctx, c.room.Key(), c.userID)
	if err != nil {
		return err
	}
	if err := h.sendSnapshot(ctx, c); err != nil {
		return err
	}
	if !added {
		return nil
	}

	logrus.WithFields(logrus.Fields{"room": c.room.String(), "user_id": c.userID}).Info("[HUB] User joined")
	joined, err := envelope.New(envelope.KindUserJoined, c.room, c.userID, envelope.PresencePayload{DisplayName: h.displayName(c.userID)}, h.opts.Clock.Now())
	if err != nil {
		return err
	}
	h.broadcast(c, joined, false)
	return nil
}

// leave removes the user from the roster only once its last joined
// connection to the room is gone.
func (h *Hub) leave(ctx context.Context, c *Client) error {
	h.mu.Lock()
	if !c.joined {
		h.mu.Unlock()
		return nil
	}
	c.joined = false
	stillThere := false
	for other := range h.rooms[c.room.Key()] {
		if other != c && other.joined && other.userID == c.userID {
			stillThere = true
			break
		}
	}
	h.mu.Unlock()

	if stillThere {
		return nil
	}

	removed, err := h.opts.Store.Remove(ctx, c.room.Key(), c.userID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	logrus.WithFields(logrus.Fields{"room": c.room.String(), "user_id": c.userID}).Info("[HUB] User left")
	left, err := envelope.New(envelope.KindUserLeft, c.room, c.userID, envelope.PresencePayload{DisplayName: h.displayName(c.userID)}, h.opts.Clock.Now())
	if err != nil {
		return err
	}
	h.broadcast(c, left, false)
	return nil
}

func (h *Hub) sendSnapshot(ctx context.Context, c *Client) error {
	members, err := h.opts.Store.Members(ctx, c.room.Key())
	if err != nil {
		return err
	}
	sort.Strings(members)
	snapshot, err := envelope.New(envelope.KindRosterSnapshot, c.room, "", envelope.RosterPayload{UserIDs: members}, h.opts.Clock.Now())
	if err != nil {
		return err
	}
	data, err := envelope.Encode(snapshot)
	if err != nil {
		return err
	}
	if err := c.write(data); err != nil {
		logrus.WithError(err).WithField("user_id", c.userID).Warn("[HUB] Failed to send roster snapshot")
	}
	return nil
}

// broadcast writes env to every joined client of the sender's room.
func (h *Hub) broadcast(from *Client, env envelope.Envelope, includeSender bool) {
	data, err := envelope.Encode(env)
	if err != nil {
		logrus.WithError(err).Error("[HUB] Failed to encode envelope")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[from.room.Key()]))
	for c := range h.rooms[from.room.Key()] {
		if !c.joined || (c == from && !includeSender) {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(data); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{"room": c.room.String(), "user_id": c.userID}).Warn("[HUB] Write failed, closing connection")
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) isJoined(c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.joined
}

func (h *Hub) displayName(userID string) string {
	if h.opts.Directory == nil {
		return ""
	}
	return h.opts.Directory.ResolveDisplayName(userID)
}
