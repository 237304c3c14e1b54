package application

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/collab/domain/identity"
	"github.com/AzielCF/az-collab/pkg/clock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

var testRoom = envelope.NewRoom("issue", "42")

// fakeChannel records what the Connection Manager does with its transport
// and lets the test play the server side through the captured listener.
type fakeChannel struct {
	mu       sync.Mutex
	opens    int
	closes   int
	listener channel.Listener
	sent     []envelope.Envelope
	sendErr  error
}

func (f *fakeChannel) Open(room envelope.Room, userID string, l channel.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	f.listener = l
}

func (f *fakeChannel) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	env, err := envelope.Decode(data)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeChannel) current() channel.Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener
}

func (f *fakeChannel) accept()          { f.current().OnOpen() }
func (f *fakeChannel) fail(err error)   { f.current().OnClose(err) }
func (f *fakeChannel) deliver(b []byte) { f.current().OnMessage(b) }

func (f *fakeChannel) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeChannel) sentKinds() []envelope.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]envelope.Kind, 0, len(f.sent))
	for _, e := range f.sent {
		out = append(out, e.Kind)
	}
	return out
}

func (f *fakeChannel) sentOf(kind envelope.Kind) []envelope.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []envelope.Envelope
	for _, e := range f.sent {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func frame(t *testing.T, kind envelope.Kind, room envelope.Room, userID string, payload any, ts time.Time) []byte {
	t.Helper()
	env, err := envelope.New(kind, room, userID, payload, ts)
	require.NoError(t, err)
	data, err := envelope.Encode(env)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, kind envelope.Kind, userID string, payload any) envelope.Envelope {
	t.Helper()
	env, err := envelope.New(kind, testRoom, userID, payload, epoch)
	require.NoError(t, err)
	return env
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// staticDirectory keeps the application tests free of the repository package.
type staticDirectory []identity.Identity

func (d staticDirectory) ResolveDisplayName(id string) string {
	for _, ident := range d {
		if ident.ID == id {
			return ident.DisplayName
		}
	}
	return id
}

func (d staticDirectory) Identities() []identity.Identity {
	return append([]identity.Identity(nil), d...)
}

func newFakeClock() *clock.FakeClock {
	return clock.Fake(epoch)
}
