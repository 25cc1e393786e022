package database

import (
	"context"
	"path/filepath"
	"testing"

	"clothingrental/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *SQLiteKV {
	t.Helper()
	logger := zerolog.Nop()
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "nested", "rental.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestSQLiteKV_GetMissing(t *testing.T) {
	kv := setupSQLite(t)

	_, version, err := kv.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	assert.Equal(t, int64(0), version)
}

func TestSQLiteKV_SetBumpsVersion(t *testing.T) {
	kv := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "one"))
	require.NoError(t, kv.Set(ctx, "k", "two"))

	value, version, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "two", value)
	assert.Equal(t, int64(2), version)
}

func TestSQLiteKV_SetIfVersion(t *testing.T) {
	kv := setupSQLite(t)
	ctx := context.Background()

	version, err := kv.SetIfVersion(ctx, "k", "first", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = kv.SetIfVersion(ctx, "k", "again", 0)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	version, err = kv.SetIfVersion(ctx, "k", "second", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	_, err = kv.SetIfVersion(ctx, "k", "stale", 1)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	value, _, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestSQLiteKV_Remove(t *testing.T) {
	kv := setupSQLite(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v"))
	require.NoError(t, kv.Remove(ctx, "k"))
	require.NoError(t, kv.Remove(ctx, "k"))

	_, _, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	version, err := kv.SetIfVersion(ctx, "k", "fresh", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestSQLiteKV_Ping(t *testing.T) {
	kv := setupSQLite(t)
	assert.NoError(t, kv.Ping(context.Background()))
	require.NoError(t, kv.Close())
	assert.Error(t, kv.Ping(context.Background()))
}
