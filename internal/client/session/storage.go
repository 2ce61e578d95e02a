package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/client/repositories/kv"
)

// Keys is the persisted key layout for one deployment namespace.
type Keys struct {
	Session       string
	PendingSignup string
	AuthMode      string
}

func NewKeys(namespace string) Keys {
	return Keys{
		Session:       namespace + "-auth-token",
		PendingSignup: namespace + "-pending-signup",
		AuthMode:      namespace + "-auth-mode",
	}
}

// All returns every key in a fixed order.
func (k Keys) All() []string {
	return []string{k.Session, k.PendingSignup, k.AuthMode}
}

// Storage maps session data onto a kv.Store. It also satisfies
// client.SessionStore so the identity client shares the session bundle.
type Storage struct {
	kv   kv.Store
	keys Keys
}

func NewStorage(store kv.Store, keys Keys) *Storage {
	return &Storage{kv: store, keys: keys}
}

func (s *Storage) Keys() Keys {
	return s.keys
}

func (s *Storage) LoadSession(ctx context.Context) (*models.Session, error) {
	var sess models.Session
	ok, err := s.loadJSON(ctx, s.keys.Session, &sess)
	if err != nil || !ok {
		return nil, err
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

func (s *Storage) SaveSession(ctx context.Context, sess *models.Session) error {
	if sess == nil {
		return s.ClearSession(ctx)
	}
	return s.saveJSON(ctx, s.keys.Session, sess)
}

func (s *Storage) ClearSession(ctx context.Context) error {
	return s.kv.Remove(ctx, s.keys.Session)
}

// LoadPending returns the stored PendingSignup or nil.
func (s *Storage) LoadPending(ctx context.Context) (*models.PendingSignup, error) {
	var p models.PendingSignup
	ok, err := s.loadJSON(ctx, s.keys.PendingSignup, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// SavePending overwrites any earlier PendingSignup.
func (s *Storage) SavePending(ctx context.Context, p models.PendingSignup) error {
	return s.saveJSON(ctx, s.keys.PendingSignup, p)
}

func (s *Storage) RemovePending(ctx context.Context) error {
	return s.kv.Remove(ctx, s.keys.PendingSignup)
}

// AuthMode returns the flow marker left before a redirect, or "".
func (s *Storage) AuthMode(ctx context.Context) (string, error) {
	v, err := s.kv.Get(ctx, s.keys.AuthMode)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *Storage) SetAuthMode(ctx context.Context, mode string) error {
	return s.kv.Set(ctx, s.keys.AuthMode, []byte(mode))
}

func (s *Storage) ClearAuthMode(ctx context.Context) error {
	return s.kv.Remove(ctx, s.keys.AuthMode)
}

// RemoveAll deletes the session, pending sign-up and auth-mode keys.
func (s *Storage) RemoveAll(ctx context.Context) error {
	return s.kv.Remove(ctx, s.keys.All()...)
}

func (s *Storage) loadJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Storage) saveJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, raw)
}
