package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/client"
	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
)

// ErrDisposed is returned by operations on a disposed Coordinator.
var ErrDisposed = errors.New("session coordinator disposed")

// Deps are the collaborators of a Coordinator. Provider, Profiles and
// Storage are required; the components are built from them when nil.
type Deps struct {
	Provider client.IdentityProvider
	Profiles client.ProfileStore
	Storage  *Storage
	Log      logging.Logger

	Resolver     *ProfileResolver
	Reconciler   *Reconciler
	Bootstrapper *Bootstrapper
	Listener     *Listener
	Poller       *Poller
}

type Options struct {
	PollDelay       time.Duration
	GracePeriod     time.Duration
	RequestTimeout  time.Duration
	ProfileCacheTTL time.Duration
	SignOutScope    string
}

// DefaultOptions mirror the client config defaults.
func DefaultOptions() Options {
	return Options{
		PollDelay:       time.Second,
		GracePeriod:     time.Second,
		RequestTimeout:  common.DefaultRequestTimeout,
		ProfileCacheTTL: 5 * time.Minute,
		SignOutScope:    common.DefaultSignOutScope,
	}
}

// Snapshot is an immutable view of the coordinator state.
type Snapshot struct {
	Phase     Phase
	Session   *models.Session
	Profile   *models.UserProfile
	AuthError *models.AuthErrorState
}

func (s Snapshot) IsAuthenticated() bool { return s.Session != nil }
func (s Snapshot) IsLoading() bool       { return s.Phase != PhaseResolved }

// Coordinator is the single owner of session state. Construct it once with
// New, call Init, and Dispose on shutdown.
type Coordinator struct {
	provider     client.IdentityProvider
	profiles     client.ProfileStore
	storage      *Storage
	resolver     *ProfileResolver
	reconciler   *Reconciler
	bootstrapper *Bootstrapper
	listener     *Listener
	poller       *Poller
	log          logging.Logger
	opts         Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	st       state
	disposed bool

	// persistMu serialises writes of the session key so a write always
	// reflects the state current at write time.
	persistMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	initOnce  sync.Once
	dispOnce  sync.Once

	watchMu  sync.Mutex
	watchers map[uint64]func(Snapshot)
	nextW    uint64
}

func New(deps Deps, opts Options) *Coordinator {
	def := DefaultOptions()
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.ProfileCacheTTL <= 0 {
		opts.ProfileCacheTTL = def.ProfileCacheTTL
	}
	if opts.SignOutScope == "" {
		opts.SignOutScope = def.SignOutScope
	}

	log := deps.Log
	if log == nil {
		log = logging.Nop{}
	}

	c := &Coordinator{
		provider:     deps.Provider,
		profiles:     deps.Profiles,
		storage:      deps.Storage,
		resolver:     deps.Resolver,
		reconciler:   deps.Reconciler,
		bootstrapper: deps.Bootstrapper,
		listener:     deps.Listener,
		poller:       deps.Poller,
		log:          log.With("component", "session"),
		opts:         opts,
		ready:        make(chan struct{}),
		watchers:     make(map[uint64]func(Snapshot)),
	}
	if c.resolver == nil {
		c.resolver = NewProfileResolver(c.profiles, opts.ProfileCacheTTL, c.log)
	}
	if c.reconciler == nil {
		c.reconciler = NewReconciler(c.provider, c.profiles, c.storage, opts.GracePeriod, c.log)
	}
	if c.bootstrapper == nil {
		c.bootstrapper = NewBootstrapper(c.storage, c.reconciler, c.log)
	}
	if c.listener == nil {
		c.listener = NewListener(c.provider, c.log)
	}
	if c.poller == nil {
		c.poller = NewPoller(c.provider, opts.PollDelay)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Init runs the bootstrapper against loc (which may be nil) and then starts
// the provider paths. Only the first call has an effect.
func (c *Coordinator) Init(ctx context.Context, loc Location) error {
	first := false
	c.initOnce.Do(func() { first = true })
	if !first {
		return nil
	}
	if c.isDisposed() {
		return ErrDisposed
	}

	c.dispatch(bootstrapStarted{})

	s, err := c.bootstrapper.Bootstrap(ctx, loc)
	if err != nil {
		// non-fatal: the listener and poller still run
		c.log.Info(ctx, "fragment bootstrap failed", "error", err)
	}

	c.dispatch(bootstrapDone{session: s})
	return nil
}

// Dispose stops the listener, drops in-flight results and waits for
// background work. It must not be called from a Watch callback.
func (c *Coordinator) Dispose() {
	c.dispOnce.Do(func() {
		c.listener.Stop()
		c.dispatch(disposed{})

		c.mu.Lock()
		c.disposed = true
		c.mu.Unlock()

		c.cancel()
		c.wg.Wait()
	})
}

func (c *Coordinator) isDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotOf(c.st)
}

func snapshotOf(s state) Snapshot {
	snap := Snapshot{
		Phase:   s.phase,
		Session: s.session.Clone(),
		Profile: s.profile.Clone(),
	}
	if s.authErr != nil {
		e := *s.authErr
		snap.AuthError = &e
	}
	return snap
}

func (c *Coordinator) CurrentSession() *models.Session     { return c.Snapshot().Session }
func (c *Coordinator) CurrentProfile() *models.UserProfile { return c.Snapshot().Profile }
func (c *Coordinator) IsAuthenticated() bool               { return c.Snapshot().IsAuthenticated() }
func (c *Coordinator) IsLoading() bool                     { return c.Snapshot().IsLoading() }
func (c *Coordinator) Phase() Phase                        { return c.Snapshot().Phase }

// Ready is closed once loading first completes.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// HasPermission: superadmin always, admin by permission set, user never.
func (c *Coordinator) HasPermission(tag string) bool {
	return c.CurrentProfile().HasPermission(tag)
}

// SignOut asks the provider to invalidate the session, bounded by the
// request timeout, then clears local state and every persisted key
// regardless of the remote outcome.
func (c *Coordinator) SignOut(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	if err := c.provider.SignOut(rctx, c.opts.SignOutScope); err != nil {
		c.log.Warn(ctx, "remote sign out failed, clearing locally",
			"error", errors.Join(common.ErrSignOutNetworkFailure, err))
	}

	if !c.dispatch(signedOutLocally{}) {
		c.signOutDisposed(ctx)
	}
	return nil
}

// signOutDisposed clears the state and keys of a disposed coordinator.
// Observers are not notified and no background work is started.
func (c *Coordinator) signOutDisposed(ctx context.Context) {
	c.mu.Lock()
	c.st = cleared(c.st)
	c.mu.Unlock()
	c.resolver.Purge()

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if err := c.storage.RemoveAll(context.WithoutCancel(ctx)); err != nil {
		c.log.Warn(ctx, "clear persisted session", "error", err)
	}
}

// CompleteSignIn installs a provider-confirmed session, e.g. after OTP
// verification.
func (c *Coordinator) CompleteSignIn(ctx context.Context, s *models.Session) error {
	if s == nil {
		return common.ErrNotAuthenticated
	}
	if c.isDisposed() {
		return ErrDisposed
	}
	c.log.Info(ctx, "signed in", "subject", s.SubjectID)
	c.dispatch(signedInLocally{session: s.Clone()})
	return nil
}

// HandleRedirect bootstraps from a redirect that arrives after Init, hands
// the session to the provider and installs it.
func (c *Coordinator) HandleRedirect(ctx context.Context, loc Location) error {
	if c.isDisposed() {
		return ErrDisposed
	}

	s, err := c.bootstrapper.Bootstrap(ctx, loc)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("%w: no access token in redirect", common.ErrInvalidOrUndecodableToken)
	}

	rctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	if err := c.provider.SetSession(rctx, s); err != nil {
		return fmt.Errorf("confirm redirect session: %w", err)
	}

	c.dispatch(signedInLocally{session: s})
	return nil
}

// UpdateProfile applies a partial update to the current profile and writes
// it to the profile store.
func (c *Coordinator) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error {
	snap := c.Snapshot()
	if snap.Session == nil {
		return common.ErrNotAuthenticated
	}
	if upd.Empty() {
		return nil
	}

	base := snap.Profile
	if base == nil {
		base = c.resolver.Resolve(ctx, snap.Session.SubjectID, snap.Session.Email)
	}
	next := base.Apply(upd)

	rctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	if err := c.profiles.UpsertProfile(rctx, next.Record()); err != nil {
		// the remote row may or may not have changed
		c.resolver.Invalidate(next.ID)
		return fmt.Errorf("update profile: %w", err)
	}

	c.resolver.Store(next)
	c.dispatch(profileUpdated{profile: next})
	return nil
}

func (c *Coordinator) AuthError() *models.AuthErrorState {
	return c.Snapshot().AuthError
}

// ReportError surfaces e to observers; nil clears it.
func (c *Coordinator) ReportError(e *models.AuthErrorState) {
	c.dispatch(errorReported{err: e})
}

// AuthMode returns the flow marker left by a redirect, e.g.
// common.AuthModePasswordReset.
func (c *Coordinator) AuthMode(ctx context.Context) (string, error) {
	return c.storage.AuthMode(ctx)
}

func (c *Coordinator) ClearAuthMode(ctx context.Context) error {
	return c.storage.ClearAuthMode(ctx)
}

// Watch calls fn with a snapshot after every observable change until the
// returned func is called.
func (c *Coordinator) Watch(fn func(Snapshot)) func() {
	c.watchMu.Lock()
	c.nextW++
	id := c.nextW
	c.watchers[id] = fn
	c.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.watchMu.Lock()
			delete(c.watchers, id)
			c.watchMu.Unlock()
		})
	}
}

// dispatch runs in through reduce and applies the effects. It reports false
// when the coordinator is disposed and in was dropped.
func (c *Coordinator) dispatch(in input) bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return false
	}
	next, fx := reduce(c.st, in)
	c.st = next
	snap := snapshotOf(next)
	c.mu.Unlock()

	c.apply(fx, snap)
	return true
}

func (c *Coordinator) apply(fx []effect, snap Snapshot) {
	for _, e := range fx {
		switch e := e.(type) {
		case effResolveProfile:
			c.goAsync(func(ctx context.Context) {
				p := c.resolver.Resolve(ctx, e.subject, e.email)
				c.dispatch(profileResolved{epoch: e.epoch, subject: e.subject, profile: p})
			})

		case effStartListener:
			c.goAsync(func(ctx context.Context) {
				err := c.listener.Start(ctx, func(ev models.Event) {
					c.dispatch(providerEvent{event: ev})
				})
				if err != nil {
					c.log.Warn(ctx, "subscribe to session events", "error", err)
				}
			})

		case effStartPoller:
			c.goAsync(func(ctx context.Context) {
				c.poller.Run(ctx, func(s *models.Session, err error) {
					if err != nil {
						c.log.Warn(ctx, "fallback poll treated as no session", "error", err)
					}
					c.dispatch(pollResult{session: s, err: err})
				})
			})

		case effPersistSession:
			c.persist()

		case effClearStorage:
			c.clearStorage(e.all)

		case effPurgeProfiles:
			c.resolver.Purge()

		case effMarkReady:
			c.readyOnce.Do(func() { close(c.ready) })

		case effNotify:
			c.notify(snap)
		}
	}
}

func (c *Coordinator) goAsync(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

// persist writes the session current at write time, never a stale one.
func (c *Coordinator) persist() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	s := c.CurrentSession()
	if s == nil {
		return
	}
	if err := c.storage.SaveSession(c.ctx, s); err != nil {
		c.log.Warn(c.ctx, "persist session", "error", err)
	}
}

func (c *Coordinator) clearStorage(all bool) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	// not c.ctx: a sign-out racing Dispose still clears storage
	ctx := context.Background()
	signedOut := c.CurrentSession() == nil

	var err error
	switch {
	case all && signedOut:
		err = c.storage.RemoveAll(ctx)
	case all:
		keys := c.storage.Keys()
		err = c.storage.kv.Remove(ctx, keys.PendingSignup, keys.AuthMode)
	case signedOut:
		err = c.storage.ClearSession(ctx)
	}
	if err != nil {
		c.log.Warn(ctx, "clear persisted session", "error", err)
	}
}

func (c *Coordinator) notify(snap Snapshot) {
	c.watchMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.watchMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
