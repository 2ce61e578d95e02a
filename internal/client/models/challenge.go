package models

import "time"

// Purpose identifies which flow a one-time code belongs to.
type Purpose string

const (
	PurposeSignupVerify   Purpose = "signup-verify"
	PurposePasswordReset  Purpose = "password-reset"
	PurposePasswordChange Purpose = "password-change"
)

// ChallengeStatus is the lifecycle state of an OTPChallenge.
type ChallengeStatus string

const (
	ChallengeIssued   ChallengeStatus = "issued"
	ChallengeVerified ChallengeStatus = "verified"
	ChallengeExpired  ChallengeStatus = "expired"
)

// OTPChallenge is an issued one-time code awaiting verification.
type OTPChallenge struct {
	ID                    string
	TargetEmail           string
	Purpose               Purpose
	CodeLength            int
	EnteredDigits         []rune
	ResendCooldownSeconds int
	IssuedAt              time.Time
	ExpiresAt             time.Time
	Status                ChallengeStatus
}

// ExpiredAt reports whether the code can no longer be verified at now.
func (c *OTPChallenge) ExpiredAt(now time.Time) bool {
	return c.Status == ChallengeExpired || (!c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt))
}

// AuthErrorState is the surfaced error shown by the calling UI.
type AuthErrorState struct {
	Kind            error
	AssociatedEmail string
}
