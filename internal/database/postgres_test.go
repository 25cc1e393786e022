package database

import (
	"context"
	"os"
	"testing"

	"clothingrental/internal/config"
	"clothingrental/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPostgresKV_RejectsBadTable(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewPostgresKV(context.Background(), config.PostgresConfig{
		Host:   "localhost",
		DBName: "rental",
		Table:  "kv; DROP TABLE users",
	}, &logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid postgres table name")
}

// Запускается только при наличии RENTAL_TEST_POSTGRES_HOST.
func TestPostgresKV_Integration(t *testing.T) {
	host := os.Getenv("RENTAL_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("RENTAL_TEST_POSTGRES_HOST not set")
	}

	logger := zerolog.Nop()
	ctx := context.Background()
	kv, err := NewPostgresKV(ctx, config.PostgresConfig{
		Host:     host,
		Port:     5432,
		User:     os.Getenv("RENTAL_TEST_POSTGRES_USER"),
		Password: os.Getenv("RENTAL_TEST_POSTGRES_PASSWORD"),
		DBName:   "postgres",
		SSLMode:  "disable",
		Table:    "kv_store_test",
	}, &logger)
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Remove(ctx, "k"))

	version, err := kv.SetIfVersion(ctx, "k", "first", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = kv.SetIfVersion(ctx, "k", "stale", 0)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	require.NoError(t, kv.Set(ctx, "k", "second"))
	value, version, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
	assert.Equal(t, int64(2), version)

	require.NoError(t, kv.Remove(ctx, "k"))
	_, _, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}
