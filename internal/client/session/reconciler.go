package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/client"
	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
)

// Reconciler writes sign-up details captured before verification into the
// profile store once the subject is known.
type Reconciler struct {
	provider client.IdentityProvider
	profiles client.ProfileStore
	storage  *Storage
	grace    time.Duration
	log      logging.Logger

	// sleep waits d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReconciler(provider client.IdentityProvider, profiles client.ProfileStore, storage *Storage, grace time.Duration, log logging.Logger) *Reconciler {
	return &Reconciler{
		provider: provider,
		profiles: profiles,
		storage:  storage,
		grace:    grace,
		log:      log,
		sleep:    sleepCtx,
	}
}

// Apply establishes s with the provider, waits the grace period for any
// provider-side profile trigger, then upserts the profile. The pending key
// is removed whatever the outcome.
func (r *Reconciler) Apply(ctx context.Context, pending models.PendingSignup, s *models.Session) (err error) {
	defer func() {
		if rmErr := r.storage.RemovePending(ctx); rmErr != nil {
			r.log.Warn(ctx, "remove pending signup", "error", rmErr)
		}
	}()

	if err := r.provider.SetSession(ctx, s); err != nil {
		return fmt.Errorf("establish session: %w", err)
	}

	if err := r.sleep(ctx, r.grace); err != nil {
		return err
	}

	if err := r.profiles.UpsertProfile(ctx, pending.Record(s.SubjectID)); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	r.log.Info(ctx, "pending signup reconciled", "subject", s.SubjectID)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
