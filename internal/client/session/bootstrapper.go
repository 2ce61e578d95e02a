package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
)

// Bootstrapper turns redirect-fragment tokens into a provisional session.
type Bootstrapper struct {
	storage    *Storage
	reconciler *Reconciler
	log        logging.Logger
	now        func() time.Time
}

func NewBootstrapper(storage *Storage, reconciler *Reconciler, log logging.Logger) *Bootstrapper {
	return &Bootstrapper{storage: storage, reconciler: reconciler, log: log, now: time.Now}
}

// Bootstrap returns (nil, nil) when loc carries no access token. An
// undecodable token yields common.ErrInvalidOrUndecodableToken; callers fall
// through to the provider paths either way.
func (b *Bootstrapper) Bootstrap(ctx context.Context, loc Location) (*models.Session, error) {
	if loc == nil || loc.Fragment() == "" {
		return nil, nil
	}

	frag, err := ParseFragment(loc.Fragment())
	if err != nil {
		b.log.Debug(ctx, "ignore unparsable fragment", "error", err)
		return nil, nil
	}
	if frag.AccessToken == "" {
		return nil, nil
	}

	claims, err := ParseUnverifiedClaims(frag.AccessToken)
	if err != nil {
		b.log.Warn(ctx, "bootstrap abandoned", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidOrUndecodableToken, err)
	}

	s := &models.Session{
		SubjectID:    claims.Subject,
		Email:        claims.Email,
		AccessToken:  frag.AccessToken,
		RefreshToken: frag.RefreshToken,
		ExpiresAt:    b.expiry(claims, frag),
		TokenType:    frag.TokenType,
	}

	if err := b.storage.SaveSession(ctx, s); err != nil {
		b.log.Warn(ctx, "persist bootstrapped session", "error", err)
	}
	loc.ClearFragment()

	if frag.Type == "recovery" {
		if err := b.storage.SetAuthMode(ctx, common.AuthModePasswordReset); err != nil {
			b.log.Warn(ctx, "persist auth mode", "error", err)
		}
	}

	pending, err := b.storage.LoadPending(ctx)
	if err != nil {
		b.log.Warn(ctx, "load pending signup", "error", err)
	}
	if pending == nil && frag.Type == "signup" {
		pending = pendingFromClaims(claims, b.now())
	}
	if pending != nil && b.reconciler != nil {
		if err := b.reconciler.Apply(ctx, *pending, s); err != nil {
			b.log.Warn(ctx, "reconcile pending signup", "subject", s.SubjectID, "error", err)
		}
	}

	b.log.Info(ctx, "session bootstrapped from fragment", "subject", s.SubjectID)
	return s, nil
}

// pendingFromClaims rebuilds sign-up details from token metadata for a
// sign-up confirmed where no pending sign-up was stored, e.g. on another
// device. It returns nil when the token carries no name.
func pendingFromClaims(c *models.IdentityClaims, now time.Time) *models.PendingSignup {
	if c.Metadata.FullName == "" {
		return nil
	}
	return &models.PendingSignup{
		Email:     c.Email,
		Name:      c.Metadata.FullName,
		Phone:     c.Metadata.Phone,
		Country:   c.Metadata.Country,
		CreatedAt: now,
	}
}

func (b *Bootstrapper) expiry(c *models.IdentityClaims, f Fragment) int64 {
	switch {
	case !c.ExpiresAt.IsZero():
		return c.ExpiresAt.Unix()
	case f.ExpiresAt > 0:
		return f.ExpiresAt
	case f.ExpiresIn > 0:
		return b.now().Add(time.Duration(f.ExpiresIn) * time.Second).Unix()
	}
	return 0
}
