package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no profile exists for the requested id.
var ErrNotFound = errors.New("user: not found")

// PublicProfile is the projection the messaging core is allowed to see.
// Credentials and contact details never leave the directory.
type PublicProfile struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
}

// Directory resolves user ids to public profiles. Owned by the identity
// platform; the messaging core only consumes it.
type Directory interface {
	PublicProfile(ctx context.Context, id string) (*PublicProfile, error)
}
