package client

import (
	"context"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
)

// IdentityProvider is the remote identity service as seen by the session
// lifecycle: one-time codes, the provider-held session, session events and
// credential updates.
type IdentityProvider interface {
	RequestOneTimeCode(ctx context.Context, email string, purpose models.Purpose, allowAccountCreation bool) error
	VerifyOneTimeCode(ctx context.Context, email, code string, purpose models.Purpose) (*models.Session, error)
	// GetCurrentSession returns (nil, nil) when the provider holds no session.
	GetCurrentSession(ctx context.Context) (*models.Session, error)
	SetSession(ctx context.Context, s *models.Session) error
	// SubscribeToSessionEvents delivers events to fn until the returned
	// cancel func is called or ctx is done.
	SubscribeToSessionEvents(ctx context.Context, fn func(models.Event)) (func(), error)
	SignOut(ctx context.Context, scope string) error
	UpdateCredential(ctx context.Context, accessToken, password string) error
}

// ProfileStore reads and writes durable user profiles.
type ProfileStore interface {
	// FetchProfile returns common.ErrNotFound when no record exists.
	FetchProfile(ctx context.Context, id string) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, rec models.ProfileRecord) error
}

// Client is the full remote surface used by the CLI.
type Client interface {
	IdentityProvider
	ProfileStore
	Close() error
}

// SessionStore persists the provider-held session between runs.
type SessionStore interface {
	LoadSession(ctx context.Context) (*models.Session, error)
	SaveSession(ctx context.Context, s *models.Session) error
	ClearSession(ctx context.Context) error
}
