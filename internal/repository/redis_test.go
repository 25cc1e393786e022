package repository

import (
	"context"
	"testing"

	"clothingrental/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKV(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	kv := NewRedisKV(client, "test:")
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "items", `[{"id":"product-1"}]`))

		value, version, err := kv.Get(ctx, "items")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"product-1"}]`, value)
		assert.Equal(t, int64(1), version)
		assert.True(t, s.Exists("test:items"))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, _, err := kv.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("SetIfVersion", func(t *testing.T) {
		next, err := kv.SetIfVersion(ctx, "bookings", "[]", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), next)

		_, err = kv.SetIfVersion(ctx, "bookings", "[1]", 0)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		next, err = kv.SetIfVersion(ctx, "bookings", "[1]", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), next)

		value, version, err := kv.Get(ctx, "bookings")
		require.NoError(t, err)
		assert.Equal(t, "[1]", value)
		assert.Equal(t, int64(2), version)
	})

	t.Run("SetAfterSetIfVersion", func(t *testing.T) {
		_, err := kv.SetIfVersion(ctx, "mixed", "a", 0)
		require.NoError(t, err)
		require.NoError(t, kv.Set(ctx, "mixed", "b"))

		_, version, err := kv.Get(ctx, "mixed")
		require.NoError(t, err)
		assert.Equal(t, int64(2), version)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "session", "{}"))
		require.NoError(t, kv.Remove(ctx, "session"))

		_, _, err := kv.Get(ctx, "session")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("NilClient", func(t *testing.T) {
		kv := NewRedisKV(nil, "")
		_, _, err := kv.Get(ctx, "items")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, kv.Ping(ctx))
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(client))
	})
}
