package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k1", []byte{0x01, 0x02}))

		v, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, []byte{0x01, 0x02}, v)
	})

	t.Run("missing key returns nil nil", func(t *testing.T) {
		s := newStore(t)

		v, err := s.Get(context.Background(), "absent")
		require.NoError(t, err)
		require.Nil(t, v)
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", []byte("old")))
		require.NoError(t, s.Set(ctx, "k", []byte("new")))

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("new"), v)
	})

	t.Run("remove several keys is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "a", []byte("1")))
		require.NoError(t, s.Set(ctx, "b", []byte("2")))
		require.NoError(t, s.Set(ctx, "c", []byte("3")))

		require.NoError(t, s.Remove(ctx, "a", "b", "never-set"))
		require.NoError(t, s.Remove(ctx, "a"))
		require.NoError(t, s.Remove(ctx))

		for _, k := range []string{"a", "b"} {
			v, err := s.Get(ctx, k)
			require.NoError(t, err)
			require.Nil(t, v, k)
		}
		v, err := s.Get(ctx, "c")
		require.NoError(t, err)
		require.Equal(t, []byte("3"), v)
	})
}
