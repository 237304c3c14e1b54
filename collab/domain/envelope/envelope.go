package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/google/uuid"
)

// Kind identifies the payload carried by an Envelope.
type Kind string

const (
	KindCommentAdded   Kind = "comment_added"
	KindCommentUpdated Kind = "comment_updated"
	KindCommentDeleted Kind = "comment_deleted"
	KindActivityLogged Kind = "activity_logged"
	KindUserTyping     Kind = "user_typing"
	KindUserJoined     Kind = "user_joined"
	KindUserLeft       Kind = "user_left"
	KindRosterSnapshot Kind = "roster_snapshot"

	// Client to server control kinds.
	KindJoinRoom  Kind = "join_room"
	KindLeaveRoom Kind = "leave_room"
)

var knownKinds = map[Kind]bool{
	KindCommentAdded:   true,
	KindCommentUpdated: true,
	KindCommentDeleted: true,
	KindActivityLogged: true,
	KindUserTyping:     true,
	KindUserJoined:     true,
	KindUserLeft:       true,
	KindRosterSnapshot: true,
	KindJoinRoom:       true,
	KindLeaveRoom:      true,
}

// Valid reports whether k is part of the protocol.
func (k Kind) Valid() bool {
	return knownKinds[k]
}

// IsSystem reports whether envelopes of this kind are consumed by the sync
// layer itself instead of being forwarded to observers.
func (k Kind) IsSystem() bool {
	switch k {
	case KindUserJoined, KindUserLeft, KindRosterSnapshot, KindUserTyping:
		return true
	}
	return false
}

// IsControl reports whether k only travels from client to server.
func (k Kind) IsControl() bool {
	return k == KindJoinRoom || k == KindLeaveRoom
}

// Room is the scope presence, typing and notifications are keyed by.
type Room struct {
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
}

func NewRoom(resourceType, resourceID string) Room {
	return Room{
		ResourceType: strings.TrimSpace(resourceType),
		ResourceID:   strings.TrimSpace(resourceID),
	}
}

// Key returns the room identity as "type|id".
func (r Room) Key() string {
	return r.ResourceType + "|" + r.ResourceID
}

func (r Room) String() string {
	return r.ResourceType + "/" + r.ResourceID
}

func (r Room) IsZero() bool {
	return r.ResourceType == "" || r.ResourceID == ""
}

// Envelope is the only unit transmitted on a room channel. Values are
// immutable once built: Payload is copied on construction and must not be
// modified afterwards.
type Envelope struct {
	ID           string          `json:"id,omitempty"`
	Kind         Kind            `json:"kind"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId"`
	UserID       string          `json:"userId,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// New builds an envelope for room, marshalling payload when it is not nil.
func New(kind Kind, room Room, userID string, payload any, ts time.Time) (Envelope, error) {
	env := Envelope{
		ID:           uuid.NewString(),
		Kind:         kind,
		ResourceType: room.ResourceType,
		ResourceID:   room.ResourceID,
		UserID:       userID,
		Timestamp:    ts.UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
		}
		env.Payload = data
	}
	return env, nil
}

// Room returns the room the envelope belongs to.
func (e Envelope) Room() Room {
	return Room{ResourceType: e.ResourceType, ResourceID: e.ResourceID}
}

// DecodePayload unmarshals the payload into v.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return pkgError.ProtocolError(fmt.Sprintf("%s envelope has no payload", e.Kind))
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return pkgError.ProtocolError(fmt.Sprintf("invalid %s payload: %v", e.Kind, err))
	}
	return nil
}

// Encode serializes the envelope for the wire.
func Encode(e Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses a wire frame. Any failure is returned as a ProtocolError.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, pkgError.ProtocolError(fmt.Sprintf("malformed envelope: %v", err))
	}
	if !env.Kind.Valid() {
		return Envelope{}, pkgError.ProtocolError(fmt.Sprintf("unknown envelope kind %q", env.Kind))
	}
	if env.ResourceType == "" || env.ResourceID == "" {
		return Envelope{}, pkgError.ProtocolError("envelope has no room")
	}
	return env, nil
}
