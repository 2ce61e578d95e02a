package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/storefront-auth/internal/client/client"
	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
)

// Listener forwards provider session events. It subscribes at most once;
// after Stop every event is dropped.
type Listener struct {
	provider client.IdentityProvider
	log      logging.Logger

	once    sync.Once
	stopped atomic.Bool

	mu     sync.Mutex
	cancel func()
}

func NewListener(provider client.IdentityProvider, log logging.Logger) *Listener {
	return &Listener{provider: provider, log: log}
}

func (l *Listener) Start(ctx context.Context, sink func(models.Event)) error {
	var err error
	l.once.Do(func() {
		var cancel func()
		cancel, err = l.provider.SubscribeToSessionEvents(ctx, func(ev models.Event) {
			if l.stopped.Load() {
				return
			}
			l.log.Debug(ctx, "session event", "kind", ev.Kind)
			sink(ev)
		})
		if err != nil {
			return
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.stopped.Load() {
			cancel()
			return
		}
		l.cancel = cancel
	})
	return err
}

func (l *Listener) Stop() {
	l.stopped.Store(true)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}
