package kv

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/storefront-auth/internal/cryptox"
)

// Sealed encrypts values before handing them to the wrapped Store. The key
// name is bound as associated data, so a value copied under another key
// fails to open.
type Sealed struct {
	inner  Store
	sealer *cryptox.Sealer
}

func NewSealed(inner Store, sealer *cryptox.Sealer) *Sealed {
	return &Sealed{inner: inner, sealer: sealer}
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil || raw == nil {
		return raw, err
	}
	plain, err := s.sealer.Open(raw, key)
	if err != nil {
		return nil, fmt.Errorf("open kv[%s]: %w", key, err)
	}
	return plain, nil
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	ct, err := s.sealer.Seal(value, key)
	if err != nil {
		return fmt.Errorf("seal kv[%s]: %w", key, err)
	}
	return s.inner.Set(ctx, key, ct)
}

func (s *Sealed) Remove(ctx context.Context, keys ...string) error {
	return s.inner.Remove(ctx, keys...)
}
