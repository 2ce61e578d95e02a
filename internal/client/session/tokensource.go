package session

import (
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	c *Coordinator
}

// TokenSource exposes the current access token to HTTP API clients built
// with oauth2.NewClient. It fails with common.ErrNotAuthenticated when
// signed out and always reflects the latest refreshed token.
func (c *Coordinator) TokenSource() oauth2.TokenSource {
	return tokenSource{c: c}
}

func (t tokenSource) Token() (*oauth2.Token, error) {
	s := t.c.CurrentSession()
	if s == nil {
		return nil, common.ErrNotAuthenticated
	}
	typ := s.TokenType
	if typ == "" {
		typ = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    typ,
		Expiry:       s.Expiry(),
	}, nil
}
