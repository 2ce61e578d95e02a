package otp

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/client"
	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
	"github.com/google/uuid"
)

// Sessions is the part of the session coordinator the flows hand back to.
type Sessions interface {
	CurrentSession() *models.Session
	CompleteSignIn(ctx context.Context, s *models.Session) error
	ReportError(e *models.AuthErrorState)
}

// Reconciler writes a pending sign-up into the profile store.
type Reconciler interface {
	Apply(ctx context.Context, pending models.PendingSignup, s *models.Session) error
}

// PendingStore persists sign-up details and the auth-mode marker.
type PendingStore interface {
	LoadPending(ctx context.Context) (*models.PendingSignup, error)
	SavePending(ctx context.Context, p models.PendingSignup) error
	RemovePending(ctx context.Context) error
	SetAuthMode(ctx context.Context, mode string) error
	ClearAuthMode(ctx context.Context) error
}

type Deps struct {
	Provider   client.IdentityProvider
	Sessions   Sessions
	Reconciler Reconciler
	Storage    PendingStore
	Log        logging.Logger
}

type Options struct {
	SignupCodeLength int
	ResetCodeLength  int
	ChangeCodeLength int
	// ModalCodeLength applies to sign-ups started from the compact modal.
	ModalCodeLength int
	ResendCooldown  time.Duration
	TTL             time.Duration
}

func DefaultOptions() Options {
	return Options{
		SignupCodeLength: 8,
		ResetCodeLength:  8,
		ChangeCodeLength: 8,
		ModalCodeLength:  6,
		ResendCooldown:   60 * time.Second,
		TTL:              10 * time.Minute,
	}
}

// SignupDetails are collected before the sign-up code is requested.
type SignupDetails struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Country  string
	// Modal selects the shorter modal code length.
	Modal bool
}

// Controller runs the three OTP flows. Operations are serialised.
type Controller struct {
	provider   client.IdentityProvider
	sessions   Sessions
	reconciler Reconciler
	storage    PendingStore
	log        logging.Logger
	opts       Options

	now   func() time.Time
	newID func() string

	mu    sync.Mutex
	flows map[models.Purpose]*flow
	// signupLength is the code length of the current sign-up challenge.
	signupLength int
}

func NewController(deps Deps, opts Options) *Controller {
	log := deps.Log
	if log == nil {
		log = logging.Nop{}
	}
	c := &Controller{
		provider:   deps.Provider,
		sessions:   deps.Sessions,
		reconciler: deps.Reconciler,
		storage:    deps.Storage,
		log:        log.With("component", "otp"),
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
		flows:      make(map[models.Purpose]*flow),
	}
	for _, p := range []models.Purpose{models.PurposeSignupVerify, models.PurposePasswordReset, models.PurposePasswordChange} {
		c.flows[p] = &flow{
			purpose:  p,
			stage:    StageIdle,
			cooldown: NewCooldown(opts.ResendCooldown, func() time.Time { return c.now() }),
		}
	}
	return c
}

func (c *Controller) flow(p models.Purpose) (*flow, error) {
	f, ok := c.flows[p]
	if !ok {
		return nil, fmt.Errorf("%w: unknown purpose %q", common.ErrInvalidTransition, p)
	}
	return f, nil
}

func (c *Controller) codeLength(p models.Purpose) int {
	switch p {
	case models.PurposeSignupVerify:
		return c.signupLength
	case models.PurposePasswordReset:
		return c.opts.ResetCodeLength
	default:
		return c.opts.ChangeCodeLength
	}
}

// fail surfaces kind to the session observers and returns it as an
// AuthError.
func (c *Controller) fail(kind error, email string, cause error) error {
	c.sessions.ReportError(&models.AuthErrorState{Kind: kind, AssociatedEmail: email})
	return common.NewAuthError(kind, email, cause)
}

// StartSignup validates d, stores it as the pending sign-up and requests a
// code that may create the account.
func (c *Controller) StartSignup(ctx context.Context, d SignupDetails) (*models.OTPChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.flows[models.PurposeSignupVerify]
	f.reset()
	f.stage = StageCollectingDetails

	email, err := validateSignup(d)
	if err != nil {
		return nil, err
	}

	length := c.opts.SignupCodeLength
	if d.Modal {
		length = c.opts.ModalCodeLength
	}

	pending := models.PendingSignup{
		Email:      email,
		Password:   d.Password,
		Name:       strings.TrimSpace(d.Name),
		Phone:      strings.TrimSpace(d.Phone),
		Country:    strings.TrimSpace(d.Country),
		CreatedAt:  c.now(),
		CodeLength: length,
	}
	if err := c.storage.SavePending(ctx, pending); err != nil {
		return nil, fmt.Errorf("store pending signup: %w", err)
	}
	if err := c.storage.SetAuthMode(ctx, common.AuthModeSignup); err != nil {
		c.log.Warn(ctx, "persist auth mode", "error", err)
	}

	if err := c.provider.RequestOneTimeCode(ctx, email, models.PurposeSignupVerify, true); err != nil {
		if errors.Is(err, common.ErrDuplicateAccount) {
			if rmErr := c.storage.RemovePending(ctx); rmErr != nil {
				c.log.Warn(ctx, "remove pending signup", "error", rmErr)
			}
			return nil, c.fail(common.ErrDuplicateAccount, email, err)
		}
		return nil, fmt.Errorf("request signup code: %w", err)
	}

	c.signupLength = length
	f.email = email
	f.pending = &pending
	f.issue(c.newID(), c.signupLength, c.opts.ResendCooldown, c.opts.TTL, pending.CreatedAt)

	c.log.Info(ctx, "signup code requested", "email", email, "challenge", f.challenge.ID)
	return cloneChallenge(f.challenge), nil
}

// ResumeSignup rebuilds the sign-up challenge from the persisted pending
// sign-up after a restart. No new code is requested.
func (c *Controller) ResumeSignup(ctx context.Context) (*models.OTPChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending, err := c.storage.LoadPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending signup: %w", err)
	}
	if pending == nil {
		return nil, fmt.Errorf("%w: no pending signup", common.ErrNotFound)
	}

	f := c.flows[models.PurposeSignupVerify]
	f.reset()
	f.email = pending.Email
	f.pending = pending
	c.signupLength = pending.CodeLength
	if c.signupLength <= 0 {
		c.signupLength = c.opts.SignupCodeLength
	}

	issued := pending.CreatedAt
	if issued.IsZero() {
		issued = c.now()
	}
	f.issue(c.newID(), c.signupLength, c.opts.ResendCooldown, c.opts.TTL, issued)
	if f.challenge.ExpiredAt(c.now()) {
		f.challenge.Status = models.ChallengeExpired
		f.stage = StageExpired
	}

	c.log.Info(ctx, "signup resumed", "email", pending.Email)
	return cloneChallenge(f.challenge), nil
}

// StartReset requests a password-reset code for email. The account must
// already exist.
func (c *Controller) StartReset(ctx context.Context, email string) (*models.OTPChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	addr, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	f := c.flows[models.PurposePasswordReset]
	f.reset()
	f.email = addr
	f.stage = StageRequestIssued

	if err := c.provider.RequestOneTimeCode(ctx, addr, models.PurposePasswordReset, false); err != nil {
		f.reset()
		return nil, fmt.Errorf("request reset code: %w", err)
	}
	if err := c.storage.SetAuthMode(ctx, common.AuthModePasswordReset); err != nil {
		c.log.Warn(ctx, "persist auth mode", "error", err)
	}

	f.issue(c.newID(), c.opts.ResetCodeLength, c.opts.ResendCooldown, c.opts.TTL, c.now())
	c.log.Info(ctx, "reset code requested", "email", addr, "challenge", f.challenge.ID)
	return cloneChallenge(f.challenge), nil
}

// StartChange requests a code for the signed-in user's own email.
func (c *Controller) StartChange(ctx context.Context) (*models.OTPChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.sessions.CurrentSession()
	if cur == nil {
		return nil, common.ErrNotAuthenticated
	}

	f := c.flows[models.PurposePasswordChange]
	f.reset()
	f.email = cur.Email
	f.subject = cur.SubjectID
	f.stage = StageRequestIssued

	if err := c.provider.RequestOneTimeCode(ctx, cur.Email, models.PurposePasswordChange, false); err != nil {
		f.reset()
		return nil, fmt.Errorf("request change code: %w", err)
	}

	f.issue(c.newID(), c.opts.ChangeCodeLength, c.opts.ResendCooldown, c.opts.TTL, c.now())
	c.log.Info(ctx, "change code requested", "subject", cur.SubjectID, "challenge", f.challenge.ID)
	return cloneChallenge(f.challenge), nil
}

// Verify submits the entered code of the purpose's flow. An invalid code
// leaves the challenge issued for another attempt; an expired one must be
// resent.
func (c *Controller) Verify(ctx context.Context, p models.Purpose) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.flow(p)
	if err != nil {
		return err
	}
	if f.stage != StageChallengeIssued {
		return fmt.Errorf("%w: verify in stage %s", common.ErrInvalidTransition, f.stage)
	}
	if !f.input.Complete() {
		return common.ErrIncompleteCode
	}
	if f.challenge.ExpiredAt(c.now()) {
		f.challenge.Status = models.ChallengeExpired
		f.stage = StageExpired
		return c.fail(common.ErrInvalidOrExpiredCode, f.email, nil)
	}

	s, err := c.provider.VerifyOneTimeCode(ctx, f.email, f.input.Code(), p)
	if err != nil {
		if errors.Is(err, common.ErrInvalidOrExpiredCode) {
			f.input.Reset()
			return c.fail(common.ErrInvalidOrExpiredCode, f.email, err)
		}
		return fmt.Errorf("verify code: %w", err)
	}

	if p == models.PurposePasswordChange && s.SubjectID != f.subject {
		c.log.Warn(ctx, "password change verified for another subject", "want", f.subject, "got", s.SubjectID)
		f.reset()
		return c.fail(common.ErrUnauthorized, s.Email, nil)
	}

	f.challenge.Status = models.ChallengeVerified
	f.stage = StageVerified
	f.verified = s
	c.log.Info(ctx, "code verified", "purpose", p, "subject", s.SubjectID)

	if p == models.PurposeSignupVerify {
		return c.finishSignup(ctx, f)
	}
	return nil
}

// finishSignup sets the password, reconciles the profile and signs in. A
// password failure is surfaced after sign-in completes.
func (c *Controller) finishSignup(ctx context.Context, f *flow) error {
	s := f.verified

	pending := f.pending
	if stored, err := c.storage.LoadPending(ctx); err == nil && stored != nil {
		pending = stored
	}

	var credErr error
	if pending != nil && pending.Password != "" {
		if err := c.provider.UpdateCredential(ctx, s.AccessToken, pending.Password); err != nil {
			credErr = err
			c.log.Warn(ctx, "set signup password", "subject", s.SubjectID, "error", err)
		}
	}

	if pending != nil && c.reconciler != nil {
		if err := c.reconciler.Apply(ctx, *pending, s); err != nil {
			c.log.Warn(ctx, "reconcile pending signup", "subject", s.SubjectID, "error", err)
		}
	}

	if err := c.sessions.CompleteSignIn(ctx, s); err != nil {
		return fmt.Errorf("complete sign in: %w", err)
	}
	if err := c.storage.ClearAuthMode(ctx); err != nil {
		c.log.Warn(ctx, "clear auth mode", "error", err)
	}

	f.stage = StageAuthenticated
	f.pending = nil
	if credErr != nil {
		return c.fail(common.ErrCredentialUpdateFailure, f.email, credErr)
	}
	return nil
}

// CollectPassword records the new password of a verified reset or change.
func (c *Controller) CollectPassword(p models.Purpose, password, confirm string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.flow(p)
	if err != nil {
		return err
	}
	if p == models.PurposeSignupVerify || (f.stage != StageVerified && f.stage != StageNewPasswordCollected) {
		return fmt.Errorf("%w: collect password in stage %s", common.ErrInvalidTransition, f.stage)
	}
	if err := validatePassword(password, confirm); err != nil {
		return err
	}

	f.password = password
	f.stage = StageNewPasswordCollected
	return nil
}

// Submit writes the collected password. It is the only step of the reset
// and change flows that touches the credential.
func (c *Controller) Submit(ctx context.Context, p models.Purpose) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.flow(p)
	if err != nil {
		return err
	}
	if f.stage != StageNewPasswordCollected {
		return fmt.Errorf("%w: submit in stage %s", common.ErrInvalidTransition, f.stage)
	}

	if err := c.provider.UpdateCredential(ctx, f.verified.AccessToken, f.password); err != nil {
		return c.fail(common.ErrCredentialUpdateFailure, f.email, err)
	}

	f.password = ""
	f.stage = StageSubmitted
	c.log.Info(ctx, "password updated", "purpose", p, "subject", f.verified.SubjectID)

	if err := c.sessions.CompleteSignIn(ctx, f.verified); err != nil {
		return fmt.Errorf("complete sign in: %w", err)
	}
	if p == models.PurposePasswordReset {
		if err := c.storage.ClearAuthMode(ctx); err != nil {
			c.log.Warn(ctx, "clear auth mode", "error", err)
		}
	}
	return nil
}

// Resend requests a fresh code once the cooldown has run out. The new
// challenge has a new ID and an empty input.
func (c *Controller) Resend(ctx context.Context, p models.Purpose) (*models.OTPChallenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.flow(p)
	if err != nil {
		return nil, err
	}
	if f.stage != StageChallengeIssued && f.stage != StageExpired {
		return nil, fmt.Errorf("%w: resend in stage %s", common.ErrInvalidTransition, f.stage)
	}
	if !f.cooldown.Ready() {
		return nil, fmt.Errorf("%w: %ds left", common.ErrCooldownActive, f.cooldown.Seconds())
	}

	allowCreate := p == models.PurposeSignupVerify
	if err := c.provider.RequestOneTimeCode(ctx, f.email, p, allowCreate); err != nil {
		return nil, fmt.Errorf("resend code: %w", err)
	}

	f.issue(c.newID(), c.codeLength(p), c.opts.ResendCooldown, c.opts.TTL, c.now())
	c.log.Info(ctx, "code resent", "purpose", p, "challenge", f.challenge.ID)
	return cloneChallenge(f.challenge), nil
}

// Cancel abandons the flow. A cancelled sign-up keeps its pending details
// so ResumeSignup still works.
func (c *Controller) Cancel(p models.Purpose) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flows[p]; ok {
		f.reset()
	}
}

func (c *Controller) Stage(p models.Purpose) Stage {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flows[p]; ok {
		return f.stage
	}
	return StageIdle
}

// Challenge returns a copy of the active challenge with the entered digits.
func (c *Controller) Challenge(p models.Purpose) *models.OTPChallenge {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flows[p]
	if !ok || f.challenge == nil {
		return nil
	}
	ch := cloneChallenge(f.challenge)
	ch.EnteredDigits = f.input.Digits()
	return ch
}

// Edit runs fn against the code input of the purpose's active challenge.
func (c *Controller) Edit(p models.Purpose, fn func(*CodeInput)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.flow(p)
	if err != nil {
		return err
	}
	if f.input == nil || f.stage != StageChallengeIssued {
		return fmt.Errorf("%w: no active challenge", common.ErrInvalidTransition)
	}
	fn(f.input)
	return nil
}

// CooldownRemaining is the time until Resend is allowed.
func (c *Controller) CooldownRemaining(p models.Purpose) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flows[p]; ok && f.challenge != nil {
		return f.cooldown.Remaining()
	}
	return 0
}

func cloneChallenge(ch *models.OTPChallenge) *models.OTPChallenge {
	out := *ch
	out.EnteredDigits = append([]rune(nil), ch.EnteredDigits...)
	return &out
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidEmail, email)
	}
	return strings.ToLower(addr.Address), nil
}

func validatePassword(password, confirm string) error {
	if len(password) < common.MinPasswordLength {
		return common.ErrWeakPassword
	}
	if password != confirm {
		return common.ErrPasswordMismatch
	}
	return nil
}

func validateSignup(d SignupDetails) (string, error) {
	email, err := normalizeEmail(d.Email)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(d.Name) == "" {
		return "", fmt.Errorf("%w: name", common.ErrMissingField)
	}
	if len(d.Password) < common.MinPasswordLength {
		return "", common.ErrWeakPassword
	}
	return email, nil
}
