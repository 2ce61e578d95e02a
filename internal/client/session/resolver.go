package session

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/client"
	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
	"github.com/jellydator/ttlcache/v3"
)

// ProfileResolver fetches profiles and never fails: a missing or
// unreachable record yields models.DefaultProfile.
type ProfileResolver struct {
	store client.ProfileStore
	cache *ttlcache.Cache[string, *models.UserProfile]
	log   logging.Logger
	now   func() time.Time
}

func NewProfileResolver(store client.ProfileStore, ttl time.Duration, log logging.Logger) *ProfileResolver {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *models.UserProfile](ttl),
		ttlcache.WithDisableTouchOnHit[string, *models.UserProfile](),
	)
	return &ProfileResolver{store: store, cache: cache, log: log, now: time.Now}
}

func (r *ProfileResolver) Resolve(ctx context.Context, subjectID, fallbackEmail string) *models.UserProfile {
	if item := r.cache.Get(subjectID); item != nil {
		return item.Value().Clone()
	}

	p, err := r.store.FetchProfile(ctx, subjectID)
	switch {
	case err == nil && p != nil:
		r.cache.Set(subjectID, p.Clone(), ttlcache.DefaultTTL)
		return p
	case err == nil || errors.Is(err, common.ErrNotFound):
		r.log.Info(ctx, "no profile record, using default", "subject", subjectID)
	default:
		r.log.Warn(ctx, "profile fetch failed, using default", "subject", subjectID,
			"error", errors.Join(common.ErrProfileFetchFailure, err))
	}

	return models.DefaultProfile(subjectID, fallbackEmail, r.now())
}

// Store replaces the cached profile, e.g. after a local update.
func (r *ProfileResolver) Store(p *models.UserProfile) {
	r.cache.Set(p.ID, p.Clone(), ttlcache.DefaultTTL)
}

func (r *ProfileResolver) Invalidate(subjectID string) {
	r.cache.Delete(subjectID)
}

func (r *ProfileResolver) Purge() {
	r.cache.DeleteAll()
}
