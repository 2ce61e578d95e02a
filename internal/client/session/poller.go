package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/client"
	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
)

// Poller reads the provider session once after a short delay, covering
// environments where no initial-session event arrives.
type Poller struct {
	provider client.IdentityProvider
	delay    time.Duration
	after    func(time.Duration) <-chan time.Time
}

func NewPoller(provider client.IdentityProvider, delay time.Duration) *Poller {
	return &Poller{provider: provider, delay: delay, after: time.After}
}

// Run waits the delay, polls once and reports to sink unless ctx ended.
func (p *Poller) Run(ctx context.Context, sink func(*models.Session, error)) {
	select {
	case <-ctx.Done():
		return
	case <-p.after(p.delay):
	}

	s, err := p.PollOnce(ctx)
	if ctx.Err() != nil {
		return
	}
	sink(s, err)
}

// PollOnce wraps lookup failures in common.ErrSessionLookupFailure.
func (p *Poller) PollOnce(ctx context.Context) (*models.Session, error) {
	s, err := p.provider.GetCurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSessionLookupFailure, err)
	}
	return s, nil
}
