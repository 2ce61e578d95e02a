package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/client/repositories/kv"
	"github.com/dmitrijs2005/storefront-auth/internal/client/session"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
)

func TestApp_GetStatus(t *testing.T) {
	s := &fakeSessions{}
	app, _ := newTestApp(s, newFakeOTP())
	assert.Equal(t, "", app.getStatus())

	s.loading = true
	assert.Equal(t, "(loading)", app.getStatus())

	s.loading = false
	s.session = &models.Session{Email: "a@x.com"}
	assert.Equal(t, "(a@x.com)", app.getStatus())
	assert.True(t, app.isLoggedIn())
}

func TestApp_ResumePendingSignup(t *testing.T) {
	o := newFakeOTP()
	o.resumeCh = challengeFor(models.PurposeSignupVerify, "new@x.com", 8)
	app, out := newTestApp(&fakeSessions{}, o)

	app.resume(context.Background())
	assert.Equal(t, models.PurposeSignupVerify, app.active)
	assert.Contains(t, out.String(), "Pending sign-up for new@x.com")
}

func TestApp_ResumeNothingPending(t *testing.T) {
	app, out := newTestApp(&fakeSessions{}, newFakeOTP())

	app.resume(context.Background())
	assert.Empty(t, app.active)
	assert.Empty(t, out.String())
}

func TestApp_ResumeRecoveryMode(t *testing.T) {
	s := &fakeSessions{session: &models.Session{Email: "a@x.com"}, mode: common.AuthModePasswordReset}
	app, out := newTestApp(s, newFakeOTP())

	app.resume(context.Background())
	assert.Contains(t, out.String(), "Recovery link accepted")
	assert.Equal(t, 1, s.modeClears)
}

func TestApp_StartWaitsForPolledSession(t *testing.T) {
	ctx := context.Background()
	storage := session.NewStorage(kv.NewMemoryStore(), session.NewKeys("test"))
	require.NoError(t, storage.SetAuthMode(ctx, common.AuthModePasswordReset))

	coord := session.New(session.Deps{
		Provider: &stubProvider{current: &models.Session{
			SubjectID:   "u1",
			Email:       "u1@example.com",
			AccessToken: "access-u1",
			ExpiresAt:   time.Now().Add(time.Hour).Unix(),
		}},
		Profiles: stubProfiles{},
		Storage:  storage,
		Log:      logging.Nop{},
	}, session.Options{PollDelay: 50 * time.Millisecond})
	t.Cleanup(coord.Dispose)
	require.NoError(t, coord.Init(ctx, nil))

	o := newFakeOTP()
	var out bytes.Buffer
	app := newApp(coord, o, nil, nil, strings.NewReader(""), &out)

	require.True(t, app.start(ctx))
	assert.True(t, coord.IsAuthenticated())
	assert.Contains(t, out.String(), "Recovery link accepted")

	mode, err := coord.AuthMode(ctx)
	require.NoError(t, err)
	assert.Empty(t, mode)
}

func TestApp_StartStopsWhenContextEnds(t *testing.T) {
	o := newFakeOTP()
	o.resumeCh = challengeFor(models.PurposeSignupVerify, "new@x.com", 8)
	app, out := newTestApp(&fakeSessions{ready: make(chan struct{})}, o)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, app.start(ctx))
	assert.Empty(t, out.String())
}

func TestApp_CloseRunsClosersInReverse(t *testing.T) {
	app, _ := newTestApp(&fakeSessions{}, newFakeOTP())
	var order []int
	boom := errors.New("boom")
	app.closers = []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return boom },
		func() error { order = append(order, 3); return nil },
	}

	assert.ErrorIs(t, app.Close(), boom)
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, app.Close())
}
