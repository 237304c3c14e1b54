package application

import (
	"sort"
	"testing"

	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/stretchr/testify/assert"
)

func TestPresenceTracker_FoldsJoinLeaveAndSnapshot(t *testing.T) {
	pt := NewPresenceTracker(testRoom, "me")

	events := []envelope.Envelope{
		mustEnvelope(t, envelope.KindUserJoined, "ana", nil),
		mustEnvelope(t, envelope.KindUserJoined, "bob", nil),
		mustEnvelope(t, envelope.KindUserJoined, "ana", nil),
		mustEnvelope(t, envelope.KindUserLeft, "carl", nil),
		mustEnvelope(t, envelope.KindUserLeft, "bob", nil),
		mustEnvelope(t, envelope.KindUserJoined, "dora", nil),
	}

	// Reference fold: a set with add on join and remove on leave.
	want := map[string]bool{}
	for _, e := range events {
		pt.Handle(e)
		switch e.Kind {
		case envelope.KindUserJoined:
			want[e.UserID] = true
		case envelope.KindUserLeft:
			delete(want, e.UserID)
		}
	}
	var expected []string
	for id := range want {
		expected = append(expected, id)
	}
	sort.Strings(expected)
	assert.Equal(t, expected, pt.Roster())

	pt.Handle(mustEnvelope(t, envelope.KindRosterSnapshot, "", envelope.RosterPayload{UserIDs: []string{"me", "zoe", "ana"}}))
	assert.Equal(t, []string{"ana", "me", "zoe"}, pt.Roster())
	assert.Equal(t, []string{"ana", "zoe"}, pt.Others())
	assert.True(t, pt.IsOnline("zoe"))
	assert.False(t, pt.IsOnline("dora"))
}

func TestPresenceTracker_NotifiesOnlyEffectiveChanges(t *testing.T) {
	pt := NewPresenceTracker(testRoom, "me")

	var changes []PresenceChange
	pt.OnChange(func(c PresenceChange) { changes = append(changes, c) })

	pt.Add("ana")
	pt.Add("ana")
	pt.Remove("ghost")
	pt.Replace([]string{"ana"})
	pt.Replace([]string{"bob", "me"})

	if assert.Len(t, changes, 2) {
		assert.Equal(t, []string{"ana"}, changes[0].Joined)
		assert.Equal(t, []string{"bob", "me"}, changes[1].Joined)
		assert.Equal(t, []string{"ana"}, changes[1].Left)
		assert.Equal(t, []string{"bob", "me"}, changes[1].Roster)
	}
}

func TestPresenceTracker_RemoveSelfOnlyDropsLocalUser(t *testing.T) {
	pt := NewPresenceTracker(testRoom, "me")
	pt.Replace([]string{"me", "ana"})

	pt.RemoveSelf()

	assert.Equal(t, []string{"ana"}, pt.Roster())
}

func TestPresenceTracker_BadSnapshotKeepsRoster(t *testing.T) {
	pt := NewPresenceTracker(testRoom, "me")
	pt.Add("ana")

	bad := mustEnvelope(t, envelope.KindRosterSnapshot, "", nil)
	bad.Payload = rawPayload(t, "not a roster")
	pt.Handle(bad)

	assert.Equal(t, []string{"ana"}, pt.Roster())
}
