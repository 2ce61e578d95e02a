package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/client/repositories/kv"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coordFixture struct {
	c     *Coordinator
	prov  *fakeProvider
	profs *fakeProfiles
	st    *Storage
	mem   *kv.MemoryStore
}

func newCoordFixture(t *testing.T, opts Options) *coordFixture {
	t.Helper()
	f := &coordFixture{prov: newFakeProvider(), profs: newFakeProfiles()}
	f.st, f.mem = newTestStorage()
	if opts.PollDelay == 0 {
		opts.PollDelay = time.Hour
	}
	f.c = New(Deps{
		Provider: f.prov,
		Profiles: f.profs,
		Storage:  f.st,
		Log:      logging.Nop{},
	}, opts)
	t.Cleanup(f.c.Dispose)
	return f
}

func waitReady(t *testing.T, c *Coordinator) {
	t.Helper()
	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never became ready")
	}
}

func fragmentFor(t *testing.T, sub string) *StaticLocation {
	t.Helper()
	tok := signToken(t, sub, sub+"@example.com", time.Now().Add(time.Hour), nil)
	return NewStaticLocation("#access_token=" + tok + "&refresh_token=r-" + sub + "&token_type=bearer")
}

func TestCoordinator_InitFromFragment(t *testing.T) {
	f := newCoordFixture(t, Options{})
	f.profs.profiles["u1"] = &models.UserProfile{ID: "u1", Name: "Ann", Role: models.RoleAdmin}
	assert.True(t, f.c.IsLoading())

	loc := fragmentFor(t, "u1")
	require.NoError(t, f.c.Init(context.Background(), loc))

	waitReady(t, f.c)
	assert.True(t, f.c.IsAuthenticated())
	assert.False(t, f.c.IsLoading())
	assert.Equal(t, "u1", f.c.CurrentSession().SubjectID)
	assert.True(t, loc.Cleared())

	require.Eventually(t, func() bool { return f.c.CurrentProfile() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Ann", f.c.CurrentProfile().Name)

	f.prov.waitSubscribed(t)
	assert.Equal(t, 0, f.prov.getCalls, "no poll when the fragment yields a session")
}

func TestCoordinator_InitTwiceIsNoop(t *testing.T) {
	f := newCoordFixture(t, Options{})
	require.NoError(t, f.c.Init(context.Background(), fragmentFor(t, "u1")))
	require.NoError(t, f.c.Init(context.Background(), fragmentFor(t, "u2")))
	assert.Equal(t, "u1", f.c.CurrentSession().SubjectID)
}

func TestCoordinator_InitialSessionEvent(t *testing.T) {
	f := newCoordFixture(t, Options{})
	require.NoError(t, f.c.Init(context.Background(), nil))
	assert.Equal(t, PhaseAwaitingProviderEvent, f.c.Phase())
	assert.True(t, f.c.IsLoading())

	f.prov.waitSubscribed(t)
	f.prov.emit(t, models.Event{Kind: models.EventInitialSession, Session: testSession("u1")})

	waitReady(t, f.c)
	assert.Equal(t, "u1", f.c.CurrentSession().SubjectID)

	stored, err := f.st.LoadSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.SubjectID)

	require.Eventually(t, func() bool { return f.c.CurrentProfile() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, models.RoleUser, f.c.CurrentProfile().Role)
}

func TestCoordinator_FallbackPoll(t *testing.T) {
	f := newCoordFixture(t, Options{PollDelay: 10 * time.Millisecond})
	f.prov.current = testSession("u1")

	require.NoError(t, f.c.Init(context.Background(), nil))
	waitReady(t, f.c)
	assert.Equal(t, "u1", f.c.CurrentSession().SubjectID)
}

func TestCoordinator_FallbackPollFailureResolvesSignedOut(t *testing.T) {
	f := newCoordFixture(t, Options{PollDelay: 10 * time.Millisecond})
	f.prov.getErr = common.ErrUnavailable

	require.NoError(t, f.c.Init(context.Background(), nil))
	waitReady(t, f.c)
	assert.False(t, f.c.IsAuthenticated())
	assert.False(t, f.c.IsLoading())
}

func TestCoordinator_SignOutClearsEverythingOnNetworkFailure(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{RequestTimeout: 20 * time.Millisecond})
	f.prov.signOutHang = true

	require.NoError(t, f.c.Init(ctx, fragmentFor(t, "u1")))
	require.NoError(t, f.st.SavePending(ctx, models.PendingSignup{Email: "u1@example.com"}))
	require.NoError(t, f.st.SetAuthMode(ctx, common.AuthModeSignup))
	require.Equal(t, 3, f.mem.Len())

	start := time.Now()
	require.NoError(t, f.c.SignOut(ctx))
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, []string{common.DefaultSignOutScope}, f.prov.signOuts)
	assert.False(t, f.c.IsAuthenticated())
	assert.Nil(t, f.c.CurrentProfile())
	assert.Equal(t, 0, f.mem.Len())
}

func TestCoordinator_RemoteSignOutEvent(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})
	require.NoError(t, f.c.Init(ctx, fragmentFor(t, "u1")))
	f.prov.waitSubscribed(t)
	require.NoError(t, f.st.SetAuthMode(ctx, common.AuthModePasswordReset))

	f.prov.emit(t, models.Event{Kind: models.EventSignedOut})
	assert.False(t, f.c.IsAuthenticated())

	stored, err := f.st.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)

	mode, err := f.c.AuthMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.AuthModePasswordReset, mode)
	require.NoError(t, f.c.ClearAuthMode(ctx))
}

func TestCoordinator_LateProfileAfterSignOutIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})
	block := make(chan struct{})
	f.profs.block = block
	f.profs.profiles["u1"] = &models.UserProfile{ID: "u1", Role: models.RoleSuperAdmin}

	require.NoError(t, f.c.Init(ctx, fragmentFor(t, "u1")))
	require.NoError(t, f.c.SignOut(ctx))
	close(block)

	require.Eventually(t, func() bool { return f.profs.fetchCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, f.c.CurrentProfile())
	assert.False(t, f.c.HasPermission("anything"))
}

func TestCoordinator_HasPermission(t *testing.T) {
	tests := []struct {
		name  string
		role  models.Role
		perms []string
		tag   string
		want  bool
	}{
		{"superadmin any tag", models.RoleSuperAdmin, nil, "orders:delete", true},
		{"admin granted", models.RoleAdmin, []string{"orders:read"}, "orders:read", true},
		{"admin not granted", models.RoleAdmin, []string{"orders:read"}, "orders:delete", false},
		{"user never", models.RoleUser, []string{"orders:read"}, "orders:read", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCoordFixture(t, Options{})
			f.profs.profiles["u1"] = &models.UserProfile{ID: "u1", Role: tt.role, Permissions: tt.perms}

			require.NoError(t, f.c.Init(context.Background(), fragmentFor(t, "u1")))
			require.Eventually(t, func() bool { return f.c.CurrentProfile() != nil }, 2*time.Second, 5*time.Millisecond)
			assert.Equal(t, tt.want, f.c.HasPermission(tt.tag))
		})
	}
}

func TestCoordinator_HasPermissionSignedOut(t *testing.T) {
	f := newCoordFixture(t, Options{})
	assert.False(t, f.c.HasPermission("orders:read"))
}

func TestCoordinator_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})

	name := "Ann"
	assert.ErrorIs(t, f.c.UpdateProfile(ctx, models.ProfileUpdate{Name: &name}), common.ErrNotAuthenticated)

	f.profs.profiles["u1"] = &models.UserProfile{ID: "u1", Email: "u1@example.com", Role: models.RoleAdmin, Country: "LV"}
	require.NoError(t, f.c.Init(ctx, fragmentFor(t, "u1")))
	require.Eventually(t, func() bool { return f.c.CurrentProfile() != nil }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.c.UpdateProfile(ctx, models.ProfileUpdate{Name: &name}))
	p := f.c.CurrentProfile()
	assert.Equal(t, "Ann", p.Name)
	assert.Equal(t, "LV", p.Country)
	assert.Equal(t, models.RoleAdmin, p.Role)

	require.Len(t, f.profs.upserts, 1)
	assert.Equal(t, models.ProfileRecord{ID: "u1", Email: "u1@example.com", Name: "Ann", Country: "LV"}, f.profs.upserts[0])

	require.NoError(t, f.c.UpdateProfile(ctx, models.ProfileUpdate{}))
	assert.Len(t, f.profs.upserts, 1)
}

func TestCoordinator_UpdateProfileFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})
	require.NoError(t, f.c.Init(ctx, fragmentFor(t, "u1")))
	require.Eventually(t, func() bool { return f.c.CurrentProfile() != nil }, 2*time.Second, 5*time.Millisecond)

	f.profs.mu.Lock()
	f.profs.upsErr = assert.AnError
	f.profs.mu.Unlock()

	phone := "+371"
	assert.ErrorIs(t, f.c.UpdateProfile(ctx, models.ProfileUpdate{Phone: &phone}), assert.AnError)
	assert.Empty(t, f.c.CurrentProfile().Phone)
}

func TestCoordinator_UpdateProfileFailureRefetchesProfile(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})
	f.profs.profiles["u1"] = &models.UserProfile{ID: "u1", Email: "u1@example.com", Role: models.RoleUser}
	require.NoError(t, f.c.Init(ctx, fragmentFor(t, "u1")))
	require.Eventually(t, func() bool { return f.c.CurrentProfile() != nil }, 2*time.Second, 5*time.Millisecond)

	f.c.resolver.Resolve(ctx, "u1", "u1@example.com")
	fetched := f.profs.fetchCount()

	f.profs.mu.Lock()
	f.profs.upsErr = assert.AnError
	f.profs.mu.Unlock()

	name := "Ann"
	assert.Error(t, f.c.UpdateProfile(ctx, models.ProfileUpdate{Name: &name}))

	f.c.resolver.Resolve(ctx, "u1", "u1@example.com")
	assert.Equal(t, fetched+1, f.profs.fetchCount())
}

func TestCoordinator_CompleteSignInAndTokenSource(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})
	require.NoError(t, f.c.Init(ctx, nil))

	_, err := f.c.TokenSource().Token()
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)

	assert.ErrorIs(t, f.c.CompleteSignIn(ctx, nil), common.ErrNotAuthenticated)

	s := testSession("u1")
	require.NoError(t, f.c.CompleteSignIn(ctx, s))
	waitReady(t, f.c)

	tok, err := f.c.TokenSource().Token()
	require.NoError(t, err)
	assert.Equal(t, s.AccessToken, tok.AccessToken)
	assert.Equal(t, s.RefreshToken, tok.RefreshToken)
	assert.Equal(t, s.Expiry(), tok.Expiry)

	stored, err := f.st.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, stored)
}

func TestCoordinator_HandleRedirect(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})
	require.NoError(t, f.c.Init(ctx, nil))

	assert.ErrorIs(t, f.c.HandleRedirect(ctx, NewStaticLocation("type=signup")), common.ErrInvalidOrUndecodableToken)
	assert.ErrorIs(t, f.c.HandleRedirect(ctx, NewStaticLocation("access_token=junk")), common.ErrInvalidOrUndecodableToken)

	require.NoError(t, f.c.HandleRedirect(ctx, fragmentFor(t, "u5")))
	assert.Equal(t, "u5", f.c.CurrentSession().SubjectID)
	require.Len(t, f.prov.setCalls, 1)
	assert.Equal(t, "u5", f.prov.setCalls[0].SubjectID)
}

func TestCoordinator_WatchAndReportError(t *testing.T) {
	f := newCoordFixture(t, Options{})

	var mu sync.Mutex
	var snaps []Snapshot
	stop := f.c.Watch(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	f.c.ReportError(&models.AuthErrorState{Kind: common.ErrDuplicateAccount, AssociatedEmail: "a@example.com"})
	require.NotNil(t, f.c.AuthError())
	assert.ErrorIs(t, f.c.AuthError().Kind, common.ErrDuplicateAccount)

	stop()
	f.c.ReportError(nil)
	assert.Nil(t, f.c.AuthError())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 1)
	assert.Equal(t, "a@example.com", snaps[0].AuthError.AssociatedEmail)
}

func TestCoordinator_DisposeStopsEverything(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})
	require.NoError(t, f.c.Init(ctx, nil))
	f.prov.waitSubscribed(t)

	f.c.Dispose()
	f.c.Dispose()

	f.prov.mu.Lock()
	assert.True(t, f.prov.cancelled)
	f.prov.mu.Unlock()

	f.prov.emit(t, models.Event{Kind: models.EventSignedIn, Session: testSession("u1")})
	assert.False(t, f.c.IsAuthenticated())
	assert.ErrorIs(t, f.c.CompleteSignIn(ctx, testSession("u1")), ErrDisposed)
}

func TestCoordinator_SignOutAfterDisposeClearsKeys(t *testing.T) {
	ctx := context.Background()
	f := newCoordFixture(t, Options{})
	require.NoError(t, f.c.Init(ctx, fragmentFor(t, "u1")))
	require.NoError(t, f.st.SavePending(ctx, models.PendingSignup{Email: "u1@example.com"}))
	require.NoError(t, f.st.SetAuthMode(ctx, common.AuthModeSignup))
	require.True(t, f.c.IsAuthenticated())
	require.Equal(t, 3, f.mem.Len())

	f.c.Dispose()
	require.NoError(t, f.c.SignOut(ctx))

	assert.False(t, f.c.IsAuthenticated())
	assert.Nil(t, f.c.CurrentProfile())
	assert.Equal(t, 0, f.mem.Len())
	assert.Equal(t, []string{common.DefaultSignOutScope}, f.prov.signOuts)
}
