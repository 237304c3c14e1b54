package identity

import "context"

// Identity is a user that can be mentioned or shown in a roster.
type Identity struct {
	ID          string `json:"id" gorm:"primaryKey"`
	DisplayName string `json:"displayName" gorm:"not null;index"`
}

// Directory resolves identities for mention matching and rendering.
type Directory interface {
	// ResolveDisplayName never fails: an unknown id yields the id itself.
	ResolveDisplayName(id string) string

	// Identities lists the known candidates for mention matching.
	Identities() []Identity
}

// IIdentityRepository is the backing store a Directory reads from.
type IIdentityRepository interface {
	Get(ctx context.Context, id string) (*Identity, error)
	List(ctx context.Context) ([]Identity, error)
	Save(ctx context.Context, ident *Identity) error
}

// CreateIdentityRequest is the REST body for registering an identity.
type CreateIdentityRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
