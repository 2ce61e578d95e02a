package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/client/otp"
	"github.com/dmitrijs2005/storefront-auth/internal/client/session"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errNoActiveFlow = errors.New("no code is pending, start with signup, reset or changepw")

// Signup collects account details and requests a sign-up code. "-modal"
// asks for the short code variant.
func (a *App) Signup(ctx context.Context, args []string) error {
	var d otp.SignupDetails
	for _, arg := range args {
		if arg == "-modal" {
			d.Modal = true
		}
	}

	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Enter email", &d.Email},
		{"Enter full name", &d.Name},
		{"Enter phone (optional)", &d.Phone},
		{"Enter country (optional)", &d.Country},
	}
	for _, f := range fields {
		v, err := getSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	pw, err := a.newPassword()
	if err != nil {
		return a.printErr(err)
	}
	d.Password = pw

	ch, err := a.otp.StartSignup(ctx, d)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateAccount) {
			fmt.Fprintln(a.out, "Sign in with your password or use 'reset'.")
		}
		return a.printErr(err)
	}

	a.active = models.PurposeSignupVerify
	a.printChallenge(ch)
	return nil
}

// Verify enters the code (from args or a prompt) for the active flow. A
// verified reset or change continues with the new password.
func (a *App) Verify(ctx context.Context, args []string) error {
	if a.active == "" {
		return a.printErr(errNoActiveFlow)
	}

	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		v, err := getSimpleText(a.reader, "Enter the code from the email", a.out)
		if err != nil {
			return err
		}
		code = v
	}

	if err := a.otp.Edit(a.active, func(in *otp.CodeInput) {
		in.Reset()
		in.Paste(code)
	}); err != nil {
		return a.printErr(err)
	}

	if err := a.otp.Verify(ctx, a.active); err != nil {
		return a.printErr(err)
	}

	switch a.active {
	case models.PurposeSignupVerify:
		fmt.Fprintln(a.out, "Email verified. Welcome!")
		a.active = ""
		return nil
	default:
		return a.submitPassword(ctx, a.active)
	}
}

func (a *App) submitPassword(ctx context.Context, p models.Purpose) error {
	pw, err := a.newPassword()
	if err != nil {
		return a.printErr(err)
	}
	if err := a.otp.CollectPassword(p, pw, pw); err != nil {
		return a.printErr(err)
	}
	if err := a.otp.Submit(ctx, p); err != nil {
		return a.printErr(err)
	}

	fmt.Fprintln(a.out, "Password updated.")
	a.active = ""
	return nil
}

// newPassword prompts twice and checks the pair.
func (a *App) newPassword() (string, error) {
	pw, err := getPassword("Enter password", a.out)
	if err != nil {
		return "", err
	}
	defer wipe(pw)
	confirm, err := getPassword("Repeat password", a.out)
	if err != nil {
		return "", err
	}
	defer wipe(confirm)

	if len(pw) < common.MinPasswordLength {
		return "", common.ErrWeakPassword
	}
	if string(pw) != string(confirm) {
		return "", common.ErrPasswordMismatch
	}
	return string(pw), nil
}

func (a *App) Resend(ctx context.Context) error {
	if a.active == "" {
		return a.printErr(errNoActiveFlow)
	}
	ch, err := a.otp.Resend(ctx, a.active)
	if err != nil {
		if errors.Is(err, common.ErrCooldownActive) {
			fmt.Fprintf(a.out, "You can request a new code in %s.\n", a.otp.CooldownRemaining(a.active).Round(time.Second))
			return err
		}
		return a.printErr(err)
	}
	a.printChallenge(ch)
	return nil
}

func (a *App) Reset(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	ch, err := a.otp.StartReset(ctx, email)
	if err != nil {
		return a.printErr(err)
	}
	a.active = models.PurposePasswordReset
	a.printChallenge(ch)
	return nil
}

func (a *App) ChangePassword(ctx context.Context) error {
	ch, err := a.otp.StartChange(ctx)
	if err != nil {
		return a.printErr(err)
	}
	a.active = models.PurposePasswordChange
	a.printChallenge(ch)
	return nil
}

// Link signs in from a redirect URL pasted by the user.
func (a *App) Link(ctx context.Context, args []string) error {
	if err := a.sessions.HandleRedirect(ctx, session.NewStaticLocation(args[0])); err != nil {
		return a.printErr(err)
	}
	fmt.Fprintln(a.out, "Signed in.")
	a.announceRecovery(ctx)
	return nil
}

// Logout never fails locally; remote errors are logged by the coordinator.
func (a *App) Logout(ctx context.Context) error {
	if a.active != "" {
		a.otp.Cancel(a.active)
		a.active = ""
	}
	if err := a.sessions.SignOut(ctx); err != nil {
		return a.printErr(err)
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) printChallenge(ch *models.OTPChallenge) {
	printChallenge(a.out, ch)
}

func printChallenge(w io.Writer, ch *models.OTPChallenge) {
	fmt.Fprintf(w, "A %d-digit code was sent to %s. Enter it with 'verify'.\n", ch.CodeLength, ch.TargetEmail)
}
