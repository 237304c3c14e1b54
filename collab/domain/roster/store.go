package roster

import "context"

// Store keeps the authoritative member set of every room on the server.
type Store interface {
	// Add reports whether userID was not yet a member.
	Add(ctx context.Context, roomKey, userID string) (bool, error)

	// Remove reports whether userID was a member.
	Remove(ctx context.Context, roomKey, userID string) (bool, error)

	// Members returns the sorted member ids of a room.
	Members(ctx context.Context, roomKey string) ([]string, error)

	// Clear drops the room entirely.
	Clear(ctx context.Context, roomKey string) error
}
