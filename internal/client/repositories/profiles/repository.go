package profiles

import (
	"context"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
)

type Repository interface {
	// FetchProfile returns common.ErrNotFound when no row exists for id.
	FetchProfile(ctx context.Context, id string) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, rec models.ProfileRecord) error
}
