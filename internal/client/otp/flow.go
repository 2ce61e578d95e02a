package otp

import (
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
)

// Stage is the position of a flow in its state machine.
type Stage string

const (
	StageIdle                 Stage = "idle"
	StageCollectingDetails    Stage = "collecting-details"
	StageRequestIssued        Stage = "request-issued"
	StageChallengeIssued      Stage = "challenge-issued"
	StageVerified             Stage = "verified"
	StageExpired              Stage = "expired"
	StageNewPasswordCollected Stage = "new-password-collected"
	StageSubmitted            Stage = "submitted"
	StageAuthenticated        Stage = "authenticated"
)

// flow is the per-purpose state. All access goes through Controller.mu.
type flow struct {
	purpose   models.Purpose
	stage     Stage
	email     string
	challenge *models.OTPChallenge
	input     *CodeInput
	cooldown  *Cooldown

	// verified is the session returned by a successful verification.
	verified *models.Session
	// subject scopes a password change to the signed-in user.
	subject  string
	password string
	pending  *models.PendingSignup
}

func (f *flow) reset() {
	*f = flow{purpose: f.purpose, stage: StageIdle, cooldown: f.cooldown}
}

func (f *flow) issue(id string, length int, cooldown, ttl time.Duration, now time.Time) {
	f.challenge = &models.OTPChallenge{
		ID:                    id,
		TargetEmail:           f.email,
		Purpose:               f.purpose,
		CodeLength:            length,
		ResendCooldownSeconds: int(cooldown / time.Second),
		IssuedAt:              now,
		ExpiresAt:             now.Add(ttl),
		Status:                models.ChallengeIssued,
	}
	f.input = NewCodeInput(length)
	f.cooldown.StartAt(now)
	f.verified = nil
	f.stage = StageChallengeIssued
}
