package session

import (
	"fmt"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
)

type accessTokenClaims struct {
	jwt.RegisteredClaims
	Email        string                `json:"email"`
	UserMetadata models.SignupMetadata `json:"user_metadata"`
}

// ParseUnverifiedClaims decodes the payload of an access token WITHOUT
// checking its signature. The result may only seed a provisional session
// that is handed to the identity provider; never authorize on it.
func ParseUnverifiedClaims(token string) (*models.IdentityClaims, error) {
	var c accessTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("decode access token: missing subject")
	}

	out := &models.IdentityClaims{
		Subject:  c.Subject,
		Email:    c.Email,
		Metadata: c.UserMetadata,
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
