package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"clothingrental/internal/config"
	"clothingrental/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	fieldValue   = "value"
	fieldVersion = "version"
)

// RedisKV stores each key as a hash {value, version}.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisKV) key(k string) string {
	return r.prefix + k
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, int64, error) {
	if r.client == nil {
		return "", 0, fmt.Errorf("redis client is nil")
	}
	vals, err := r.client.HMGet(ctx, r.key(key), fieldValue, fieldVersion).Result()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	if len(vals) != 2 || vals[0] == nil {
		return "", 0, domain.ErrKeyNotFound
	}

	value, _ := vals[0].(string)
	version, err := parseVersion(vals[1])
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse version of %s: %w", key, err)
	}
	return value, version, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key(key), fieldValue, value)
		pipe.HIncrBy(ctx, r.key(key), fieldVersion, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
	return nil
}

// SetIfVersion uses WATCH/MULTI so a concurrent writer aborts the transaction.
func (r *RedisKV) SetIfVersion(ctx context.Context, key, value string, version int64) (int64, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	k := r.key(key)
	next := version + 1

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, k, fieldVersion).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := parseVersion(raw)
		if err != nil {
			return err
		}
		if current != version {
			return domain.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldValue, value, fieldVersion, next)
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, domain.ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return 0, domain.ErrVersionConflict
	default:
		return 0, fmt.Errorf("failed to set %s in redis: %w", key, err)
	}
}

func (r *RedisKV) Remove(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Ping(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return Ping(ctx, r.client)
}

func parseVersion(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case string:
		if v == "" {
			return 0, nil
		}
		return strconv.ParseInt(v, 10, 64)
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected version type %T", raw)
	}
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
