// Package common defines shared constants and sentinel errors used across
// the session client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Transport errors.
	ErrUnavailable  = errors.New("identity service unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")

	// Session lifecycle errors.
	ErrInvalidOrUndecodableToken = errors.New("invalid or undecodable token")
	ErrProfileFetchFailure       = errors.New("profile fetch failure")
	ErrSignOutNetworkFailure     = errors.New("sign out network failure")
	ErrSessionLookupFailure      = errors.New("session lookup failure")
	ErrNotAuthenticated          = errors.New("not authenticated")

	// One-time-code flow errors.
	ErrDuplicateAccount        = errors.New("duplicate account")
	ErrInvalidOrExpiredCode    = errors.New("invalid or expired code")
	ErrCredentialUpdateFailure = errors.New("credential update failure")
	ErrCooldownActive          = errors.New("resend cooldown active")
	ErrInvalidTransition       = errors.New("invalid flow transition")
	ErrIncompleteCode          = errors.New("incomplete code")

	// Validation errors.
	ErrInvalidEmail     = errors.New("invalid email")
	ErrWeakPassword     = errors.New("password too short")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrMissingField     = errors.New("required field missing")
)

// userMessages holds the short, purpose-specific texts shown to users.
// Order matters: the first matching sentinel wins.
var userMessages = []struct {
	err error
	msg string
}{
	{ErrDuplicateAccount, "This email is already registered"},
	{ErrInvalidOrExpiredCode, "Invalid or expired code"},
	{ErrCredentialUpdateFailure, "Could not update password"},
	{ErrCooldownActive, "Please wait before requesting a new code"},
	{ErrIncompleteCode, "Please enter the full code"},
	{ErrInvalidEmail, "Please enter a valid email address"},
	{ErrWeakPassword, "Password must be at least 6 characters"},
	{ErrPasswordMismatch, "Passwords do not match"},
	{ErrMissingField, "Please fill in all required fields"},
	{ErrNotAuthenticated, "Please sign in first"},
	{ErrInvalidOrUndecodableToken, "This sign-in link is invalid"},
	{ErrInvalidTransition, "That step is not available right now"},
	{ErrUnauthorized, "You are not allowed to do that"},
	{ErrUnavailable, "Service is temporarily unavailable"},
}

// AuthError is a surfaced failure: a taxonomy sentinel, the email it
// concerns and, optionally, provider text that is already fit for users.
type AuthError struct {
	Kind            error
	AssociatedEmail string
	ProviderMessage string
	Err             error
}

// NewAuthError wraps cause under the given kind.
func NewAuthError(kind error, email string, cause error) *AuthError {
	return &AuthError{Kind: kind, AssociatedEmail: email, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage returns the text that may be shown to the end user.
func (e *AuthError) UserMessage() string {
	if e.ProviderMessage != "" {
		return e.ProviderMessage
	}
	return UserMessage(e.Kind)
}

// UserMessage maps any error to a short user-facing message. Unknown errors
// collapse to a generic text so raw provider output never leaks.
func UserMessage(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.ProviderMessage != "" {
		return ae.ProviderMessage
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Something went wrong, please try again"
}
