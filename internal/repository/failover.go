package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"clothingrental/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverKV routes calls to primary until it fails, then serves from
// fallback and probes primary again once per recoveryInterval.
//
// Data written while failed over stays in fallback; it is not copied back.
type FailoverKV struct {
	primary   domain.KVStore
	fallback  domain.KVStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverKV(primary, fallback domain.KVStore, logger *zerolog.Logger) *FailoverKV {
	return &FailoverKV{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverKV) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return time.Since(last) > recoveryInterval
}

func (r *FailoverKV) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary kv store failed, falling back")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverKV) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary kv store recovered")
	}
}

// primaryFailed treats domain-level outcomes as successful calls.
func primaryFailed(err error) bool {
	return err != nil && !errors.Is(err, domain.ErrKeyNotFound) && !errors.Is(err, domain.ErrVersionConflict)
}

func (r *FailoverKV) Get(ctx context.Context, key string) (string, int64, error) {
	if r.usePrimary() {
		value, version, err := r.primary.Get(ctx, key)
		if !primaryFailed(err) {
			r.markUp()
			return value, version, err
		}
		r.markDown(err)
	}
	return r.fallback.Get(ctx, key)
}

func (r *FailoverKV) Set(ctx context.Context, key, value string) error {
	if r.usePrimary() {
		err := r.primary.Set(ctx, key, value)
		if !primaryFailed(err) {
			r.markUp()
			return err
		}
		r.markDown(err)
	}
	return r.fallback.Set(ctx, key, value)
}

func (r *FailoverKV) SetIfVersion(ctx context.Context, key, value string, version int64) (int64, error) {
	if r.usePrimary() {
		next, err := r.primary.SetIfVersion(ctx, key, value, version)
		if !primaryFailed(err) {
			r.markUp()
			return next, err
		}
		r.markDown(err)
	}
	return r.fallback.SetIfVersion(ctx, key, value, version)
}

func (r *FailoverKV) Remove(ctx context.Context, key string) error {
	if r.usePrimary() {
		err := r.primary.Remove(ctx, key)
		if !primaryFailed(err) {
			r.markUp()
			return err
		}
		r.markDown(err)
	}
	return r.fallback.Remove(ctx, key)
}

// Ping succeeds while either side answers.
func (r *FailoverKV) Ping(ctx context.Context) error {
	if err := r.primary.Ping(ctx); err == nil {
		return nil
	}
	return r.fallback.Ping(ctx)
}
