package application

import (
	"sort"
	"sync"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/sirupsen/logrus"
)

// PresenceChange describes one roster mutation.
type PresenceChange struct {
	Joined []string
	Left   []string
	Roster []string
}

// PresenceTracker derives who is in a room purely from the envelope stream.
type PresenceTracker struct {
	room   envelope.Room
	selfID string

	mu        sync.RWMutex
	members   map[string]struct{}
	observers []func(PresenceChange)
}

func NewPresenceTracker(room envelope.Room, selfID string) *PresenceTracker {
	return &PresenceTracker{
		room:    room,
		selfID:  selfID,
		members: make(map[string]struct{}),
	}
}

// OnChange registers an observer called after every effective mutation.
func (pt *PresenceTracker) OnChange(fn func(PresenceChange)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.observers = append(pt.observers, fn)
}

// Handle applies a user_joined, user_left or roster_snapshot envelope.
// Other kinds are ignored.
func (pt *PresenceTracker) Handle(env envelope.Envelope) {
	switch env.Kind {
	case envelope.KindUserJoined:
		pt.Add(env.UserID)
	case envelope.KindUserLeft:
		pt.Remove(env.UserID)
	case envelope.KindRosterSnapshot:
		var roster envelope.RosterPayload
		if err := env.DecodePayload(&roster); err != nil {
			logrus.WithError(err).WithField("room", pt.room.String()).Warn("[PRESENCE] Dropping roster snapshot")
			return
		}
		pt.Replace(roster.UserIDs)
	}
}

// Add is idempotent.
func (pt *PresenceTracker) Add(userID string) {
	if userID == "" {
		return
	}
	pt.mu.Lock()
	if _, ok := pt.members[userID]; ok {
		pt.mu.Unlock()
		return
	}
	pt.members[userID] = struct{}{}
	change := PresenceChange{Joined: []string{userID}, Roster: pt.rosterLocked()}
	observers := pt.observers
	pt.mu.Unlock()

	pt.notify(observers, change)
}

// Remove is idempotent; removing an absent id is a no-op.
func (pt *PresenceTracker) Remove(userID string) {
	pt.mu.Lock()
	if _, ok := pt.members[userID]; !ok {
		pt.mu.Unlock()
		return
	}
	delete(pt.members, userID)
	change := PresenceChange{Left: []string{userID}, Roster: pt.rosterLocked()}
	observers := pt.observers
	pt.mu.Unlock()

	pt.notify(observers, change)
}

// Replace swaps the whole set, discarding any stale local view.
func (pt *PresenceTracker) Replace(userIDs []string) {
	next := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id != "" {
			next[id] = struct{}{}
		}
	}

	pt.mu.Lock()
	var change PresenceChange
	for id := range next {
		if _, ok := pt.members[id]; !ok {
			change.Joined = append(change.Joined, id)
		}
	}
	for id := range pt.members {
		if _, ok := next[id]; !ok {
			change.Left = append(change.Left, id)
		}
	}
	pt.members = next
	change.Roster = pt.rosterLocked()
	observers := pt.observers
	pt.mu.Unlock()

	sort.Strings(change.Joined)
	sort.Strings(change.Left)
	pt.notify(observers, change)
}

// RemoveSelf drops the local user on teardown of its own session. A client
// never evicts anyone else.
func (pt *PresenceTracker) RemoveSelf() {
	pt.Remove(pt.selfID)
}

// Roster returns a sorted copy of every member, the local user included.
func (pt *PresenceTracker) Roster() []string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return pt.rosterLocked()
}

// Others returns the sorted members excluding the local user.
func (pt *PresenceTracker) Others() []string {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	out := make([]string, 0, len(pt.members))
	for id := range pt.members {
		if id != pt.selfID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (pt *PresenceTracker) IsOnline(userID string) bool {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	_, ok := pt.members[userID]
	return ok
}

func (pt *PresenceTracker) rosterLocked() []string {
	out := make([]string, 0, len(pt.members))
	for id := range pt.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (pt *PresenceTracker) notify(observers []func(PresenceChange), change PresenceChange) {
	if len(change.Joined) == 0 && len(change.Left) == 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"room":   pt.room.String(),
		"joined": change.Joined,
		"left":   change.Left,
	}).Debug("[PRESENCE] Roster changed")
	for _, fn := range observers {
		fn(change)
	}
}
