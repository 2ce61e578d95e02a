package models

import "time"

// Session is the proof of an authenticated identity. A published Session is
// never mutated; holders replace the pointer instead.
type Session struct {
	SubjectID    string `json:"subject_id"`
	Email        string `json:"email"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is the access token expiry in epoch seconds.
	ExpiresAt int64  `json:"expires_at"`
	TokenType string `json:"token_type"`
}

// Expired reports whether the access token has expired at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return s.ExpiresAt > 0 && now.Unix() >= s.ExpiresAt
}

// Expiry returns ExpiresAt as a time.Time (zero when unknown).
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// Clone returns a copy safe to hand to callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// SameIdentity reports whether both sessions belong to the same subject.
func (s *Session) SameIdentity(o *Session) bool {
	if s == nil || o == nil {
		return false
	}
	return s.SubjectID == o.SubjectID
}

// IdentityClaims is the decoded, unverified payload of an access token.
// It is used to bootstrap a provisional session only, never for
// authorization decisions.
type IdentityClaims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	Metadata  SignupMetadata
}

// SignupMetadata is application metadata attached to the identity at sign-up.
type SignupMetadata struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Country  string `json:"country"`
}
