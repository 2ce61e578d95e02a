package session

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Location is the navigation target the client was opened with. Fragment
// returns the part after '#', without the '#'.
type Location interface {
	Fragment() string
	ClearFragment()
}

// Fragment holds the recognised fields of a redirect fragment.
type Fragment struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// Type is the provider's flow hint, e.g. "signup" or "recovery".
	Type      string
	ExpiresAt int64
	ExpiresIn int64
}

// ParseFragment parses "key=value&..." pairs. Unknown keys are ignored and a
// leading '#' is tolerated.
func ParseFragment(raw string) (Fragment, error) {
	vals, err := url.ParseQuery(strings.TrimPrefix(raw, "#"))
	if err != nil {
		return Fragment{}, fmt.Errorf("parse fragment: %w", err)
	}

	f := Fragment{
		AccessToken:  vals.Get("access_token"),
		RefreshToken: vals.Get("refresh_token"),
		TokenType:    vals.Get("token_type"),
		Type:         vals.Get("type"),
	}
	if v := vals.Get("expires_at"); v != "" {
		if f.ExpiresAt, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Fragment{}, fmt.Errorf("parse fragment expires_at: %w", err)
		}
	}
	if v := vals.Get("expires_in"); v != "" {
		if f.ExpiresIn, err = strconv.ParseInt(v, 10, 64); err != nil {
			return Fragment{}, fmt.Errorf("parse fragment expires_in: %w", err)
		}
	}
	return f, nil
}

// StaticLocation is a Location backed by a string, for callers that already
// hold the fragment (a pasted redirect URL, tests).
type StaticLocation struct {
	fragment string
	cleared  bool
}

// NewStaticLocation accepts either a bare fragment or a full URL.
func NewStaticLocation(s string) *StaticLocation {
	if u, err := url.Parse(s); err == nil && u.Fragment != "" {
		return &StaticLocation{fragment: u.EscapedFragment()}
	}
	return &StaticLocation{fragment: strings.TrimPrefix(s, "#")}
}

func (l *StaticLocation) Fragment() string { return l.fragment }

func (l *StaticLocation) ClearFragment() {
	l.fragment = ""
	l.cleared = true
}

// Cleared reports whether ClearFragment was called.
func (l *StaticLocation) Cleared() bool { return l.cleared }
