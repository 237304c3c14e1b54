package application

import (
	"sort"
	"sync"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/pkg/clock"
	"github.com/sirupsen/logrus"
)

const DefaultTypingExpiry = 3 * time.Second

type typingEntry struct {
	expiresAt time.Time
	timer     clock.Timer
}

// TypingAggregator tracks which remote users are typing. There is no
// "stopped typing" signal: an entry lives until its expiry timer fires or the
// user's comment arrives.
type TypingAggregator struct {
	room   envelope.Room
	selfID string
	clock  clock.Clock
	expiry time.Duration

	mu        sync.Mutex
	entries   map[string]*typingEntry
	observers []func([]string)
	closed    bool
}

func NewTypingAggregator(room envelope.Room, selfID string, clk clock.Clock, expiry time.Duration) *TypingAggregator {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingAggregator{
		room:    room,
		selfID:  selfID,
		clock:   clk,
		expiry:  expiry,
		entries: make(map[string]*typingEntry),
	}
}

// OnChange registers an observer receiving the sorted typing set.
func (ta *TypingAggregator) OnChange(fn func([]string)) {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	ta.observers = append(ta.observers, fn)
}

// Handle consumes a user_typing envelope.
func (ta *TypingAggregator) Handle(env envelope.Envelope) {
	if env.Kind != envelope.KindUserTyping {
		return
	}
	ta.Touch(env.UserID)
}

// Touch (re)sets userID's expiry to now plus the expiry window.
func (ta *TypingAggregator) Touch(userID string) {
	if userID == "" || userID == ta.selfID {
		return
	}

	ta.mu.Lock()
	if ta.closed {
		ta.mu.Unlock()
		return
	}
	e, existed := ta.entries[userID]
	if existed {
		e.timer.Stop()
	} else {
		e = &typingEntry{}
		ta.entries[userID] = e
	}
	e.expiresAt = ta.clock.Now().Add(ta.expiry)
	entry := e
	e.timer = ta.clock.AfterFunc(ta.expiry, func() {
		ta.expire(userID, entry)
	})
	snapshot, observers := ta.snapshotLocked(), ta.observers
	ta.mu.Unlock()

	if !existed {
		ta.notify(observers, snapshot)
	}
}

// Clear removes userID, used when that user's comment arrives.
func (ta *TypingAggregator) Clear(userID string) {
	ta.mu.Lock()
	e, ok := ta.entries[userID]
	if !ok {
		ta.mu.Unlock()
		return
	}
	e.timer.Stop()
	delete(ta.entries, userID)
	snapshot, observers := ta.snapshotLocked(), ta.observers
	ta.mu.Unlock()

	ta.notify(observers, snapshot)
}

// Typing returns the sorted ids whose expiry has not passed. Expired entries
// are filtered here too, so a delayed timer never shows a stale user.
func (ta *TypingAggregator) Typing() []string {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	return ta.snapshotLocked()
}

func (ta *TypingAggregator) IsTyping(userID string) bool {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	e, ok := ta.entries[userID]
	return ok && ta.clock.Now().Before(e.expiresAt)
}

// Sweep drops every expired entry and returns how many were removed.
func (ta *TypingAggregator) Sweep() int {
	ta.mu.Lock()
	now := ta.clock.Now()
	removed := 0
	for id, e := range ta.entries {
		if !now.Before(e.expiresAt) {
			e.timer.Stop()
			delete(ta.entries, id)
			removed++
		}
	}
	snapshot, observers := ta.snapshotLocked(), ta.observers
	ta.mu.Unlock()

	if removed > 0 {
		ta.notify(observers, snapshot)
	}
	return removed
}

// Close cancels every expiry timer and forgets all entries.
func (ta *TypingAggregator) Close() {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	ta.closed = true
	for id, e := range ta.entries {
		e.timer.Stop()
		delete(ta.entries, id)
	}
}

func (ta *TypingAggregator) expire(userID string, entry *typingEntry) {
	ta.mu.Lock()
	current, ok := ta.entries[userID]
	if !ok || current != entry || ta.clock.Now().Before(current.expiresAt) {
		ta.mu.Unlock()
		return
	}
	delete(ta.entries, userID)
	snapshot, observers := ta.snapshotLocked(), ta.observers
	ta.mu.Unlock()

	logrus.WithFields(logrus.Fields{"room": ta.room.String(), "user_id": userID}).Debug("[TYPING] Indicator expired")
	ta.notify(observers, snapshot)
}

func (ta *TypingAggregator) snapshotLocked() []string {
	now := ta.clock.Now()
	out := make([]string, 0, len(ta.entries))
	for id, e := range ta.entries {
		if now.Before(e.expiresAt) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (ta *TypingAggregator) notify(observers []func([]string), snapshot []string) {
	for _, fn := range observers {
		fn(snapshot)
	}
}
