package common

import "time"

const (
	// AccessTokenHeaderName is the gRPC metadata key used to carry the
	// access token on outbound requests.
	AccessTokenHeaderName = "authorization"

	// MinPasswordLength mirrors the identity provider's password policy.
	MinPasswordLength = 6

	// DefaultSignOutScope invalidates only the current device session.
	DefaultSignOutScope = "local"
)

// Auth mode markers persisted across a redirect.
const (
	AuthModeSignup        = "signup"
	AuthModePasswordReset = "password-reset"
)

// DefaultRequestTimeout bounds every remote call made by the client.
const DefaultRequestTimeout = 10 * time.Second
