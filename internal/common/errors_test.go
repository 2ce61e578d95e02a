package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("rpc error: code = AlreadyExists")
	err := NewAuthError(ErrDuplicateAccount, "new@x.com", cause)

	require.ErrorIs(t, err, ErrDuplicateAccount)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "new@x.com", err.AssociatedEmail)
	assert.Contains(t, err.Error(), "duplicate account")
}

func TestAuthError_WithoutCause(t *testing.T) {
	err := NewAuthError(ErrInvalidOrExpiredCode, "", nil)
	assert.Equal(t, "invalid or expired code", err.Error())
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"duplicate", NewAuthError(ErrDuplicateAccount, "a@b.c", nil), "This email is already registered"},
		{"wrapped code", fmt.Errorf("verify: %w", ErrInvalidOrExpiredCode), "Invalid or expired code"},
		{"provider text", &AuthError{Kind: ErrCredentialUpdateFailure, ProviderMessage: "Password is too weak"}, "Password is too weak"},
		{"unknown", errors.New("boom"), "Something went wrong, please try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestAuthError_UserMessagePrefersKind(t *testing.T) {
	err := NewAuthError(ErrInvalidOrExpiredCode, "a@b.c", ErrUnavailable)
	assert.Equal(t, "Invalid or expired code", err.UserMessage())
}
