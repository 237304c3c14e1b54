package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/AzielCF/az-collab/collab"
	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	"github.com/AzielCF/az-collab/collab/repository"
	"github.com/AzielCF/az-collab/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var consoleEpoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// loopbackChannel accepts every open and records outgoing frames.
type loopbackChannel struct {
	listener channel.Listener
	sent     []envelope.Envelope
}

func (l *loopbackChannel) Open(_ envelope.Room, _ string, lis channel.Listener) {
	l.listener = lis
	lis.OnOpen()
}

func (l *loopbackChannel) Send(data []byte) error {
	env, err := envelope.Decode(data)
	if err != nil {
		return err
	}
	l.sent = append(l.sent, env)
	return nil
}

func (l *loopbackChannel) Close() error { return nil }

func (l *loopbackChannel) kinds() []envelope.Kind {
	out := make([]envelope.Kind, 0, len(l.sent))
	for _, e := range l.sent {
		out = append(out, e.Kind)
	}
	return out
}

func newTestConsole(t *testing.T) (*console, *loopbackChannel, *bytes.Buffer) {
	t.Helper()
	ch := &loopbackChannel{}
	mgr, err := collab.NewManager(collab.Options{
		Self: identity.Identity{ID: "u-ana", DisplayName: "Ana"},
		Directory: repository.NewStaticDirectory(
			identity.Identity{ID: "u-ana", DisplayName: "Ana"},
			identity.Identity{ID: "u-bjorn", DisplayName: "Björn"},
		),
		Channels: func(envelope.Room) channel.Channel { return ch },
		Clock:    clock.Fake(consoleEpoch),
	})
	require.NoError(t, err)
	t.Cleanup(mgr.Shutdown)

	session, err := mgr.Join(envelope.NewRoom("issue", "42"))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	con := newConsole(out, mgr, session)
	con.now = func() time.Time { return consoleEpoch }
	con.watch()
	return con, ch, out
}

func TestConsole_PlainLinePostsComment(t *testing.T) {
	con, ch, _ := newTestConsole(t)

	assert.True(t, con.handle("hello @Björn"))
	require.Equal(t, []envelope.Kind{envelope.KindJoinRoom, envelope.KindCommentAdded}, ch.kinds())

	var p envelope.CommentPayload
	require.NoError(t, ch.sent[1].DecodePayload(&p))
	assert.Equal(t, "hello @Björn", p.Body)
	require.Len(t, p.Mentions, 1)
	assert.Equal(t, "u-bjorn", p.Mentions[0].IdentityID)
}

func TestConsole_Commands(t *testing.T) {
	con, ch, out := newTestConsole(t)

	assert.True(t, con.handle("   "))
	assert.True(t, con.handle("/typing"))
	assert.True(t, con.handle("/activity resolved fixed in 1.2"))
	assert.True(t, con.handle("/bogus"))
	assert.False(t, con.handle("/quit"))

	assert.Equal(t, []envelope.Kind{envelope.KindJoinRoom, envelope.KindUserTyping, envelope.KindActivityLogged}, ch.kinds())
	assert.Contains(t, out.String(), "unknown command /bogus")
}

func TestConsole_RendersRemoteEvents(t *testing.T) {
	con, ch, out := newTestConsole(t)
	room := envelope.NewRoom("issue", "42")

	joined, err := envelope.New(envelope.KindUserJoined, room, "u-bjorn", envelope.PresencePayload{}, consoleEpoch)
	require.NoError(t, err)
	comment, err := envelope.New(envelope.KindCommentAdded, room, "u-bjorn",
		envelope.CommentPayload{CommentID: "c1", Body: "ping @Ana", AuthorID: "u-bjorn",
			Mentions: []envelope.MentionData{{IdentityID: "u-ana", DisplayName: "Ana"}}}, consoleEpoch)
	require.NoError(t, err)
	for _, env := range []envelope.Envelope{joined, comment} {
		data, err := envelope.Encode(env)
		require.NoError(t, err)
		ch.listener.OnMessage(data)
	}

	assert.Contains(t, out.String(), "* Björn joined")
	assert.Contains(t, out.String(), "<Björn> ping @Ana")

	out.Reset()
	con.handle("/who")
	assert.Contains(t, out.String(), "Björn")

	out.Reset()
	con.handle("/notifications")
	assert.Contains(t, out.String(), "1 notifications, 1 unread")

	con.handle("/read all")
	assert.Equal(t, 0, con.mgr.Notifications().UnreadCount())

	con.handle("/clear")
	assert.Equal(t, 0, con.mgr.Notifications().Len())
}
