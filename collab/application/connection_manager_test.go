package application

import (
	"errors"
	"testing"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/pkg/clock"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDropped = errors.New("connection reset by peer")

func newTestConnection() (*ConnectionManager, *fakeChannel, *clock.FakeClock) {
	clk := newFakeClock()
	ch := &fakeChannel{}
	cm := NewConnectionManager(testRoom, "me", ch, clk, DefaultReconnectPolicy())
	return cm, ch, clk
}

func TestReconnectPolicy_Delay(t *testing.T) {
	p := DefaultReconnectPolicy()

	var got []time.Duration
	for attempt := 0; attempt < 5; attempt++ {
		got = append(got, p.Delay(attempt))
	}
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, got)
	assert.Equal(t, 30*time.Second, p.Delay(5))
	assert.Equal(t, 30*time.Second, p.Delay(12))
}

func TestConnectionManager_OpenIsIdempotent(t *testing.T) {
	cm, ch, _ := newTestConnection()

	cm.Open()
	cm.Open()
	assert.Equal(t, 1, ch.openCount())
	assert.Equal(t, channel.StateConnecting, cm.State())

	ch.accept()
	cm.Open()
	assert.Equal(t, 1, ch.openCount())
	assert.Equal(t, channel.StateConnected, cm.State())
}

func TestConnectionManager_SendsJoinRoomOnEveryOpen(t *testing.T) {
	cm, ch, clk := newTestConnection()

	cm.Open()
	ch.accept()
	ch.fail(errDropped)
	clk.Advance(time.Second)
	ch.accept()

	joins := ch.sentOf(envelope.KindJoinRoom)
	require.Len(t, joins, 2)
	for _, j := range joins {
		assert.Equal(t, "me", j.UserID)
		assert.Equal(t, testRoom, j.Room())
	}
}

func TestConnectionManager_BackoffThenTerminal(t *testing.T) {
	cm, ch, clk := newTestConnection()

	var statuses []ConnectionStatus
	cm.OnStateChange(func(s ConnectionStatus) { statuses = append(statuses, s) })

	cm.Open()
	var delays []time.Duration
	for i := 0; i < 5; i++ {
		ch.fail(errDropped)
		require.Equal(t, channel.StateError, cm.State())
		next, ok := clk.NextDeadline()
		require.True(t, ok)
		delay := next.Sub(clk.Now())
		delays = append(delays, delay)
		clk.Advance(delay)
		require.Equal(t, channel.StateConnecting, cm.State())
	}
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, delays)
	assert.Equal(t, 6, ch.openCount())

	ch.fail(errDropped)

	assert.Equal(t, channel.StateDisconnected, cm.State())
	assert.True(t, cm.Status().Exhausted)
	assert.True(t, pkgError.IsRetryExhausted(cm.Err()))
	assert.Zero(t, clk.Pending(), "no retry may be scheduled after giving up")

	clk.Advance(time.Minute)
	assert.Equal(t, 6, ch.openCount())

	last := statuses[len(statuses)-1]
	assert.Equal(t, channel.StateDisconnected, last.State)
	assert.True(t, last.Exhausted)
	assert.Equal(t, channel.StateError, statuses[len(statuses)-2].State)
}

func TestConnectionManager_SuccessfulOpenResetsAttempts(t *testing.T) {
	cm, ch, clk := newTestConnection()

	cm.Open()
	ch.fail(errDropped)
	clk.Advance(1 * time.Second)
	ch.fail(errDropped)
	clk.Advance(2 * time.Second)
	ch.accept()
	assert.Zero(t, cm.Status().Attempt)

	ch.fail(errDropped)
	next, ok := clk.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, time.Second, next.Sub(clk.Now()))
}

func TestConnectionManager_OpenAfterExhaustionStartsOver(t *testing.T) {
	cm, ch, clk := newTestConnection()

	cm.Open()
	for i := 0; i < 5; i++ {
		ch.fail(errDropped)
		next, _ := clk.NextDeadline()
		clk.Advance(next.Sub(clk.Now()))
	}
	ch.fail(errDropped)
	require.True(t, cm.Status().Exhausted)

	cm.Open()
	assert.Equal(t, channel.StateConnecting, cm.State())
	assert.False(t, cm.Status().Exhausted)
	assert.NoError(t, cm.Err())
	ch.accept()
	assert.Equal(t, channel.StateConnected, cm.State())
}

func TestConnectionManager_OpenWhileRetryPendingIsNoop(t *testing.T) {
	cm, ch, _ := newTestConnection()

	cm.Open()
	ch.fail(errDropped)
	cm.Open()

	assert.Equal(t, 1, ch.openCount())
	assert.Equal(t, channel.StateError, cm.State())
}

func TestConnectionManager_SendWhenNotConnected(t *testing.T) {
	cm, ch, _ := newTestConnection()

	assert.False(t, cm.Emit(envelope.KindUserTyping, nil))
	cm.Open()
	assert.False(t, cm.Emit(envelope.KindUserTyping, nil))

	ch.accept()
	assert.True(t, cm.Emit(envelope.KindUserTyping, nil))

	ch.sendErr = errors.New("broken pipe")
	assert.False(t, cm.Emit(envelope.KindUserTyping, nil))
}

func TestConnectionManager_CloseCancelsRetry(t *testing.T) {
	cm, ch, clk := newTestConnection()

	cm.Open()
	ch.fail(errDropped)
	require.Equal(t, 1, clk.Pending())

	cm.Close()
	assert.Zero(t, clk.Pending())
	assert.Equal(t, channel.StateDisconnected, cm.State())

	clk.Advance(time.Minute)
	assert.Equal(t, 1, ch.openCount())
}

func TestConnectionManager_CloseSendsLeaveRoom(t *testing.T) {
	cm, ch, _ := newTestConnection()

	cm.Open()
	ch.accept()
	cm.Close()

	assert.Equal(t, []envelope.Kind{envelope.KindJoinRoom, envelope.KindLeaveRoom}, ch.sentKinds())
	assert.Equal(t, 1, ch.closes)

	cm.Close()
	assert.Equal(t, 1, ch.closes, "closing twice is a no-op")
}

func TestConnectionManager_CleanCloseIsTerminal(t *testing.T) {
	cm, ch, clk := newTestConnection()

	cm.Open()
	ch.accept()
	ch.fail(nil)

	assert.Equal(t, channel.StateDisconnected, cm.State())
	assert.False(t, cm.Status().Exhausted)
	assert.Zero(t, clk.Pending())
}

func TestConnectionManager_RoutesFrames(t *testing.T) {
	cm, ch, _ := newTestConnection()

	var system, domain []envelope.Kind
	cm.OnSystem(func(e envelope.Envelope) { system = append(system, e.Kind) })
	cm.Subscribe(func(e envelope.Envelope) { domain = append(domain, e.Kind) })

	cm.Open()
	ch.accept()

	ch.deliver([]byte("{not json"))
	ch.deliver([]byte(`{"kind":"teleported","resourceType":"issue","resourceId":"42"}`))
	ch.deliver(frame(t, envelope.KindCommentAdded, envelope.NewRoom("issue", "7"), "bob", envelope.CommentPayload{Body: "elsewhere"}, epoch))
	ch.deliver(frame(t, envelope.KindJoinRoom, testRoom, "bob", nil, epoch))

	ch.deliver(frame(t, envelope.KindUserJoined, testRoom, "bob", nil, epoch))
	ch.deliver(frame(t, envelope.KindUserTyping, testRoom, "bob", nil, epoch))
	ch.deliver(frame(t, envelope.KindCommentAdded, testRoom, "bob", envelope.CommentPayload{Body: "hi"}, epoch))
	ch.deliver(frame(t, envelope.KindActivityLogged, testRoom, "bob", envelope.ActivityPayload{Action: envelope.ActionInfo}, epoch))

	assert.Equal(t, []envelope.Kind{envelope.KindUserJoined, envelope.KindUserTyping}, system)
	assert.Equal(t, []envelope.Kind{envelope.KindCommentAdded, envelope.KindActivityLogged}, domain)
	assert.Equal(t, channel.StateConnected, cm.State(), "malformed frames never drop the connection")
}

func TestConnectionManager_IgnoresStaleAttempt(t *testing.T) {
	cm, ch, clk := newTestConnection()

	var domain int
	cm.Subscribe(func(envelope.Envelope) { domain++ })

	cm.Open()
	ch.accept()
	stale := ch.current()
	ch.fail(errDropped)
	clk.Advance(time.Second)
	ch.accept()

	stale.OnMessage(frame(t, envelope.KindCommentAdded, testRoom, "bob", envelope.CommentPayload{Body: "late"}, epoch))
	stale.OnClose(errDropped)

	assert.Zero(t, domain)
	assert.Equal(t, channel.StateConnected, cm.State())
}
