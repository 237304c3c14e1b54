package envelope

import (
	"testing"
	"time"

	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_RoundTripKeepsPayload(t *testing.T) {
	room := NewRoom(" task ", "42")
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	env, err := New(KindCommentAdded, room, "u1", CommentPayload{CommentID: "c1", Body: "hi", AuthorID: "u1"}, ts)
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "task", env.ResourceType)

	data, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindCommentAdded, decoded.Kind)
	assert.Equal(t, room, decoded.Room())
	assert.True(t, ts.Equal(decoded.Timestamp))

	var payload CommentPayload
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "hi", payload.Body)
}

func TestDecode_RejectsMalformedFrames(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"kind":`,
		"unknown kind": `{"kind":"explode","resourceType":"task","resourceId":"1"}`,
		"missing room": `{"kind":"user_joined","resourceType":"task"}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			require.Error(t, err)
			assert.True(t, pkgError.IsProtocol(err))
		})
	}
}

func TestDecodePayload_EmptyIsProtocolError(t *testing.T) {
	env := Envelope{Kind: KindRosterSnapshot, ResourceType: "task", ResourceID: "1"}
	var roster RosterPayload
	err := env.DecodePayload(&roster)
	assert.True(t, pkgError.IsProtocol(err))
}

func TestKind_Classification(t *testing.T) {
	for _, k := range []Kind{KindUserJoined, KindUserLeft, KindRosterSnapshot, KindUserTyping} {
		assert.True(t, k.IsSystem(), k)
	}
	for _, k := range []Kind{KindCommentAdded, KindCommentUpdated, KindCommentDeleted, KindActivityLogged} {
		assert.False(t, k.IsSystem(), k)
		assert.False(t, k.IsControl(), k)
	}
	assert.True(t, KindJoinRoom.IsControl())
	assert.False(t, Kind("nope").Valid())
}

func TestRoom_Key(t *testing.T) {
	room := NewRoom("task", "42")
	assert.Equal(t, "task|42", room.Key())
	assert.False(t, room.IsZero())
	assert.True(t, NewRoom("task", " ").IsZero())
}

func TestActivityPayload_IsResolution(t *testing.T) {
	assert.True(t, ActivityPayload{Action: ActionResolved}.IsResolution())
	assert.True(t, ActivityPayload{Action: ActionReopened}.IsResolution())
	assert.False(t, ActivityPayload{Action: ActionAssigned}.IsResolution())
}
