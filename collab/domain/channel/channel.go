package channel

import "github.com/AzielCF/az-collab/collab/domain/envelope"

// ConnState is the lifecycle state of a room connection.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
)

// Listener receives the events of one connection attempt. Calls for a given
// attempt are made sequentially, in receipt order.
type Listener interface {
	OnOpen()
	OnMessage(data []byte)
	// OnClose reports the end of the attempt. err is nil for a clean close.
	OnClose(err error)
}

// Channel is a duplex, message-oriented transport addressed by room.
type Channel interface {
	// Open starts a connection attempt without blocking. The outcome is
	// reported to l.
	Open(room envelope.Room, userID string, l Listener)

	// Send writes one frame on the open connection.
	Send(data []byte) error

	// Close releases the current connection. No Listener calls are made for
	// the closed attempt afterwards.
	Close() error
}
