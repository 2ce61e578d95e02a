package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/client/otp"
	"github.com/dmitrijs2005/storefront-auth/internal/client/session"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
)

type fakeSessions struct {
	session *models.Session
	profile *models.UserProfile
	loading bool
	perms   map[string]bool

	signOuts   int
	signOutErr error
	updates    []models.ProfileUpdate
	updateErr  error
	redirects  []string
	redirErr   error
	mode       string
	modeClears int
	// ready, when set, replaces the already-closed default.
	ready chan struct{}
}

func (f *fakeSessions) CurrentSession() *models.Session          { return f.session }
func (f *fakeSessions) CurrentProfile() *models.UserProfile      { return f.profile }
func (f *fakeSessions) IsAuthenticated() bool                    { return f.session != nil }
func (f *fakeSessions) IsLoading() bool                          { return f.loading }
func (f *fakeSessions) HasPermission(tag string) bool            { return f.perms[tag] }
func (f *fakeSessions) AuthMode(context.Context) (string, error) { return f.mode, nil }

func (f *fakeSessions) Ready() <-chan struct{} {
	if f.ready != nil {
		return f.ready
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (f *fakeSessions) SignOut(context.Context) error {
	f.signOuts++
	f.session = nil
	return f.signOutErr
}

func (f *fakeSessions) UpdateProfile(_ context.Context, upd models.ProfileUpdate) error {
	f.updates = append(f.updates, upd)
	return f.updateErr
}

func (f *fakeSessions) HandleRedirect(_ context.Context, loc session.Location) error {
	f.redirects = append(f.redirects, loc.Fragment())
	return f.redirErr
}

func (f *fakeSessions) ClearAuthMode(context.Context) error {
	f.modeClears++
	f.mode = ""
	return nil
}

type fakeOTP struct {
	input map[models.Purpose]*otp.CodeInput

	signups   []otp.SignupDetails
	signupErr error
	resumeCh  *models.OTPChallenge
	resets    []string
	changeErr error
	verifyErr error
	resendErr error
	passwords []string
	collectEr error
	submitErr error
	submits   []models.Purpose
	cancelled []models.Purpose
	cooldown  time.Duration
}

func newFakeOTP() *fakeOTP {
	return &fakeOTP{input: map[models.Purpose]*otp.CodeInput{}}
}

func challengeFor(p models.Purpose, email string, n int) *models.OTPChallenge {
	return &models.OTPChallenge{ID: "c1", TargetEmail: email, Purpose: p, CodeLength: n, Status: models.ChallengeIssued}
}

func (f *fakeOTP) StartSignup(_ context.Context, d otp.SignupDetails) (*models.OTPChallenge, error) {
	f.signups = append(f.signups, d)
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	n := 8
	if d.Modal {
		n = 6
	}
	f.input[models.PurposeSignupVerify] = otp.NewCodeInput(n)
	return challengeFor(models.PurposeSignupVerify, d.Email, n), nil
}

func (f *fakeOTP) ResumeSignup(context.Context) (*models.OTPChallenge, error) {
	if f.resumeCh == nil {
		return nil, common.ErrNotFound
	}
	return f.resumeCh, nil
}

func (f *fakeOTP) StartReset(_ context.Context, email string) (*models.OTPChallenge, error) {
	f.resets = append(f.resets, email)
	f.input[models.PurposePasswordReset] = otp.NewCodeInput(8)
	return challengeFor(models.PurposePasswordReset, email, 8), nil
}

func (f *fakeOTP) StartChange(context.Context) (*models.OTPChallenge, error) {
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	f.input[models.PurposePasswordChange] = otp.NewCodeInput(8)
	return challengeFor(models.PurposePasswordChange, "a@x.com", 8), nil
}

func (f *fakeOTP) Verify(_ context.Context, p models.Purpose) error {
	return f.verifyErr
}

func (f *fakeOTP) Resend(_ context.Context, p models.Purpose) (*models.OTPChallenge, error) {
	if f.resendErr != nil {
		return nil, f.resendErr
	}
	return challengeFor(p, "a@x.com", 8), nil
}

func (f *fakeOTP) CollectPassword(_ models.Purpose, password, confirm string) error {
	f.passwords = append(f.passwords, password)
	return f.collectEr
}

func (f *fakeOTP) Submit(_ context.Context, p models.Purpose) error {
	f.submits = append(f.submits, p)
	return f.submitErr
}

func (f *fakeOTP) Cancel(p models.Purpose) { f.cancelled = append(f.cancelled, p) }

func (f *fakeOTP) Stage(models.Purpose) otp.Stage { return otp.StageIdle }

func (f *fakeOTP) Edit(p models.Purpose, fn func(*otp.CodeInput)) error {
	in, ok := f.input[p]
	if !ok {
		return common.ErrNotFound
	}
	fn(in)
	return nil
}

func (f *fakeOTP) CooldownRemaining(models.Purpose) time.Duration { return f.cooldown }

// stubPrompts replaces the interactive prompts with canned answers.
func stubPrompts(t *testing.T, texts []string, passwords []string) {
	t.Helper()
	oldText, oldPw := getSimpleText, getPassword
	t.Cleanup(func() { getSimpleText, getPassword = oldText, oldPw })

	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if len(texts) == 0 {
			return "", context.Canceled
		}
		v := texts[0]
		texts = texts[1:]
		return v, nil
	}
	getPassword = func(_ string, _ io.Writer) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, context.Canceled
		}
		v := passwords[0]
		passwords = passwords[1:]
		return []byte(v), nil
	}
}

func newTestApp(s *fakeSessions, o *fakeOTP) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return newApp(s, o, nil, nil, strings.NewReader(""), &out), &out
}

// stubProvider holds a fixed remote session for driving a real coordinator.
type stubProvider struct {
	current *models.Session
}

func (p *stubProvider) RequestOneTimeCode(context.Context, string, models.Purpose, bool) error {
	return nil
}

func (p *stubProvider) VerifyOneTimeCode(context.Context, string, string, models.Purpose) (*models.Session, error) {
	return nil, common.ErrInvalidOrExpiredCode
}

func (p *stubProvider) GetCurrentSession(context.Context) (*models.Session, error) {
	return p.current.Clone(), nil
}

func (p *stubProvider) SetSession(context.Context, *models.Session) error { return nil }

func (p *stubProvider) SubscribeToSessionEvents(context.Context, func(models.Event)) (func(), error) {
	return func() {}, nil
}

func (p *stubProvider) SignOut(context.Context, string) error { return nil }

func (p *stubProvider) UpdateCredential(context.Context, string, string) error { return nil }

type stubProfiles struct{}

func (stubProfiles) FetchProfile(context.Context, string) (*models.UserProfile, error) {
	return nil, common.ErrNotFound
}

func (stubProfiles) UpsertProfile(context.Context, models.ProfileRecord) error { return nil }
