package application

import (
	"sync"

	domainNotification "github.com/AzielCF/az-collab/collab/domain/notification"
	"github.com/AzielCF/az-collab/pkg/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultNotificationCapacity = 50

// NotificationCenter is the bounded store of user-facing notifications shared
// by every room of a session. The newest entry is first. All mutation goes
// through its methods.
type NotificationCenter struct {
	clock    clock.Clock
	capacity int
	alerter  domainNotification.Alerter

	// publishMu orders a mutation and the delivery of its snapshot. Taken
	// before mu.
	publishMu sync.Mutex

	mu        sync.RWMutex
	items     []domainNotification.Notification
	observers map[uint64]func([]domainNotification.Notification)
	nextObsID uint64
}

type NotificationCenterOptions struct {
	Clock    clock.Clock
	Capacity int
	// Alerter is optional. Alerts are best effort and never block Add.
	Alerter domainNotification.Alerter
}

func NewNotificationCenter(opts NotificationCenterOptions) *NotificationCenter {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultNotificationCapacity
	}
	return &NotificationCenter{
		clock:     opts.Clock,
		capacity:  opts.Capacity,
		alerter:   opts.Alerter,
		observers: make(map[uint64]func([]domainNotification.Notification)),
	}
}

// Add stores a new unread notification and returns it. Entries beyond the
// capacity are evicted oldest first, silently. A draft whose SourceKey is
// already stored returns the stored entry and changes nothing.
func (nc *NotificationCenter) Add(draft domainNotification.Draft) domainNotification.Notification {
	priority := draft.Priority
	if priority == "" {
		priority = domainNotification.PriorityFor(draft.Kind)
	}
	n := domainNotification.Notification{
		ID:           uuid.NewString(),
		Kind:         draft.Kind,
		Title:        draft.Title,
		Message:      draft.Message,
		ResourceType: draft.ResourceType,
		ResourceID:   draft.ResourceID,
		AuthorName:   draft.AuthorName,
		Priority:     priority,
		CreatedAt:    nc.clock.Now(),
		SourceKey:    draft.SourceKey,
	}

	added := false
	nc.mutate(func() bool {
		if existing, ok := nc.findSourceLocked(draft.SourceKey); ok {
			logrus.WithField("source", draft.SourceKey).Debug("[NOTIFY] Duplicate event, keeping stored notification")
			n = existing
			return false
		}
		items := make([]domainNotification.Notification, 0, min(len(nc.items)+1, nc.capacity))
		items = append(items, n)
		items = append(items, nc.items...)
		if len(items) > nc.capacity {
			logrus.Debugf("[NOTIFY] Store over capacity, evicting %d oldest", len(items)-nc.capacity)
			items = items[:nc.capacity]
		}
		nc.items = items
		added = true
		return true
	})

	if added {
		nc.alert(n)
	}
	return n
}

// MarkRead flips id to read. It reports whether the entry exists.
func (nc *NotificationCenter) MarkRead(id string) bool {
	found := false
	nc.mutate(func() bool {
		for i := range nc.items {
			if nc.items[i].ID == id {
				found = true
				if !nc.items[i].Read {
					nc.items[i].Read = true
					return true
				}
				return false
			}
		}
		return false
	})
	return found
}

func (nc *NotificationCenter) MarkAllRead() {
	nc.mutate(func() bool {
		changed := false
		for i := range nc.items {
			if !nc.items[i].Read {
				nc.items[i].Read = true
				changed = true
			}
		}
		return changed
	})
}

// Remove dismisses id. It reports whether the entry existed.
func (nc *NotificationCenter) Remove(id string) bool {
	removed := false
	nc.mutate(func() bool {
		for i := range nc.items {
			if nc.items[i].ID == id {
				nc.items = append(nc.items[:i:i], nc.items[i+1:]...)
				removed = true
				return true
			}
		}
		return false
	})
	return removed
}

func (nc *NotificationCenter) ClearAll() {
	nc.mutate(func() bool {
		hadItems := len(nc.items) > 0
		nc.items = nil
		return hadItems
	})
}

// List returns a copy of the store, newest first.
func (nc *NotificationCenter) List() []domainNotification.Notification {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	out := make([]domainNotification.Notification, len(nc.items))
	copy(out, nc.items)
	return out
}

func (nc *NotificationCenter) Get(id string) (domainNotification.Notification, bool) {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	for _, n := range nc.items {
		if n.ID == id {
			return n, true
		}
	}
	return domainNotification.Notification{}, false
}

// UnreadCount is recomputed from the store on every call.
func (nc *NotificationCenter) UnreadCount() int {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	count := 0
	for _, n := range nc.items {
		if !n.Read {
			count++
		}
	}
	return count
}

func (nc *NotificationCenter) Len() int {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return len(nc.items)
}

// Subscribe registers fn to receive a snapshot after every change. fn runs on
// the mutating goroutine and must not mutate the center. The returned
// function unsubscribes.
func (nc *NotificationCenter) Subscribe(fn func([]domainNotification.Notification)) func() {
	nc.mu.Lock()
	nc.nextObsID++
	id := nc.nextObsID
	nc.observers[id] = fn
	nc.mu.Unlock()

	return func() {
		nc.mu.Lock()
		delete(nc.observers, id)
		nc.mu.Unlock()
	}
}

// mutate runs change under mu. When it reports a change, the snapshot taken
// in the same critical section goes to every observer before the next
// mutation starts, so observers see states in mutation order.
func (nc *NotificationCenter) mutate(change func() bool) {
	nc.publishMu.Lock()
	defer nc.publishMu.Unlock()

	nc.mu.Lock()
	if !change() || len(nc.observers) == 0 {
		nc.mu.Unlock()
		return
	}
	snapshot := make([]domainNotification.Notification, len(nc.items))
	copy(snapshot, nc.items)
	observers := make([]func([]domainNotification.Notification), 0, len(nc.observers))
	for _, fn := range nc.observers {
		observers = append(observers, fn)
	}
	nc.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

func (nc *NotificationCenter) findSourceLocked(key string) (domainNotification.Notification, bool) {
	if key == "" {
		return domainNotification.Notification{}, false
	}
	for _, n := range nc.items {
		if n.SourceKey == key {
			return n, true
		}
	}
	return domainNotification.Notification{}, false
}

func (nc *NotificationCenter) alert(n domainNotification.Notification) {
	if nc.alerter == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.Warnf("[NOTIFY] Platform alert panicked: %v", r)
			}
		}()
		if err := nc.alerter.Alert(n.Title, n.Message); err != nil {
			logrus.WithError(err).Debug("[NOTIFY] Platform alert skipped")
		}
	}()
}
