// Package otp drives the one-time-code flows of the client: sign-up
// verification, password reset and password change.
//
// Each flow owns at most one active challenge, a digit-only CodeInput and a
// resend Cooldown. A verified code never changes a credential by itself; the
// reset and change flows require an explicit CollectPassword and Submit.
package otp
