package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/client/otp"
	"github.com/dmitrijs2005/storefront-auth/internal/client/session"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
)

// sessionService is the coordinator surface used by the commands.
type sessionService interface {
	CurrentSession() *models.Session
	CurrentProfile() *models.UserProfile
	IsAuthenticated() bool
	IsLoading() bool
	// Ready is closed once the persisted or provider session has loaded.
	Ready() <-chan struct{}
	HasPermission(tag string) bool
	SignOut(ctx context.Context) error
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error
	HandleRedirect(ctx context.Context, loc session.Location) error
	AuthMode(ctx context.Context) (string, error)
	ClearAuthMode(ctx context.Context) error
}

// otpService is the one-time-code surface used by the commands.
type otpService interface {
	StartSignup(ctx context.Context, d otp.SignupDetails) (*models.OTPChallenge, error)
	ResumeSignup(ctx context.Context) (*models.OTPChallenge, error)
	StartReset(ctx context.Context, email string) (*models.OTPChallenge, error)
	StartChange(ctx context.Context) (*models.OTPChallenge, error)
	Verify(ctx context.Context, p models.Purpose) error
	Resend(ctx context.Context, p models.Purpose) (*models.OTPChallenge, error)
	CollectPassword(p models.Purpose, password, confirm string) error
	Submit(ctx context.Context, p models.Purpose) error
	Cancel(p models.Purpose)
	Stage(p models.Purpose) otp.Stage
	Edit(p models.Purpose, fn func(*otp.CodeInput)) error
	CooldownRemaining(p models.Purpose) time.Duration
}

// redirectSource delivers redirect fragments, e.g. the callback server.
type redirectSource interface {
	Wait(ctx context.Context) (session.Location, error)
	URL() string
}

type App struct {
	sessions sessionService
	otp      otpService
	redirect redirectSource
	log      logging.Logger

	reader *bufio.Reader
	out    io.Writer

	// active is the purpose of the flow that verify and resend act on.
	active models.Purpose

	closers []func() error
}

func (a *App) isLoggedIn() bool {
	return a.sessions.IsAuthenticated()
}

func (a *App) getStatus() string {
	switch {
	case a.sessions.IsLoading():
		return "(loading)"
	case a.sessions.IsAuthenticated():
		return fmt.Sprintf("(%s)", a.sessions.CurrentSession().Email)
	}
	return ""
}

// Run resumes interrupted flows, follows redirects in the background and
// blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintln(a.out, "Storefront account CLI (type 'help' for commands)")
	if a.redirect != nil {
		fmt.Fprintln(a.out, "Email links redirect to", a.redirect.URL())
		go a.followRedirects(ctx)
	}
	if !a.start(ctx) {
		return
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// start waits for the session to load and then resumes interrupted flows.
// It reports false if ctx ended first.
func (a *App) start(ctx context.Context) bool {
	select {
	case <-a.sessions.Ready():
	case <-ctx.Done():
		return false
	}
	a.resume(ctx)
	return true
}

// resume picks up a sign-up or recovery interrupted by a restart.
func (a *App) resume(ctx context.Context) {
	if a.sessions.IsAuthenticated() {
		a.announceRecovery(ctx)
		return
	}

	ch, err := a.otp.ResumeSignup(ctx)
	if err != nil {
		return
	}
	a.active = models.PurposeSignupVerify
	fmt.Fprintf(a.out, "Pending sign-up for %s. Enter the %d-digit code with 'verify'.\n", ch.TargetEmail, ch.CodeLength)
}

// announceRecovery tells the user a recovery link signed them in and
// consumes the marker.
func (a *App) announceRecovery(ctx context.Context) {
	mode, err := a.sessions.AuthMode(ctx)
	if err != nil || mode != common.AuthModePasswordReset {
		return
	}
	fmt.Fprintln(a.out, "Recovery link accepted. Use 'changepw' to choose a new password.")
	if err := a.sessions.ClearAuthMode(ctx); err != nil {
		a.log.Warn(ctx, "clear auth mode", "error", err)
	}
}

func (a *App) followRedirects(ctx context.Context) {
	for {
		loc, err := a.redirect.Wait(ctx)
		if err != nil {
			return
		}
		if err := a.sessions.HandleRedirect(ctx, loc); err != nil {
			a.log.Warn(ctx, "redirect rejected", "error", err)
			fmt.Fprintln(a.out, common.UserMessage(err))
			continue
		}
		fmt.Fprintln(a.out, "Signed in from email link.")
		a.announceRecovery(ctx)
	}
}

func (a *App) printErr(err error) error {
	msg := common.UserMessage(err)
	if errors.Is(err, errNoActiveFlow) {
		msg = err.Error()
	}
	fmt.Fprintln(a.out, msg)
	return err
}

func newApp(sessions sessionService, flows otpService, redirect redirectSource, log logging.Logger, in io.Reader, out io.Writer) *App {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &App{
		sessions: sessions,
		otp:      flows,
		redirect: redirect,
		log:      log,
		reader:   bufio.NewReader(in),
		out:      out,
	}
}
