package repository

import (
	"context"
	"testing"

	"clothingrental/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, _, err := kv.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("SetBumpsVersion", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "k", "v1"))
		require.NoError(t, kv.Set(ctx, "k", "v2"))

		value, version, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", value)
		assert.Equal(t, int64(2), version)
	})

	t.Run("SetIfVersion", func(t *testing.T) {
		next, err := kv.SetIfVersion(ctx, "cas", "first", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), next)

		_, err = kv.SetIfVersion(ctx, "cas", "stale", 0)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		next, err = kv.SetIfVersion(ctx, "cas", "second", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), next)

		value, _, err := kv.Get(ctx, "cas")
		require.NoError(t, err)
		assert.Equal(t, "second", value)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "gone", "x"))
		require.NoError(t, kv.Remove(ctx, "gone"))

		_, _, err := kv.Get(ctx, "gone")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
		assert.NoError(t, kv.Remove(ctx, "gone"))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, kv.Ping(ctx))
	})
}
