package worker

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"clothingrental/internal/config"
)

// RetryPolicy describes how the sync worker reschedules a failed sheet write.
// Jitter is the fraction (0..1) by which a delay may be shortened at random,
// so tasks that failed together do not hit the Sheets API together again.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64

	// random returns a value in [0, 1); nil means math/rand.
	random func() float64
}

// RetryPolicyFromConfig builds the policy from the sync section of the config.
func RetryPolicyFromConfig(cfg config.SyncConfig) (RetryPolicy, error) {
	policy := RetryPolicy{MaxRetries: cfg.MaxRetries, BackoffFactor: 2, Jitter: cfg.Jitter}

	var err error
	if cfg.InitialDelay != "" {
		if policy.InitialDelay, err = time.ParseDuration(cfg.InitialDelay); err != nil {
			return RetryPolicy{}, fmt.Errorf("sync.initial_delay: %w", err)
		}
	}
	if cfg.MaxDelay != "" {
		if policy.MaxDelay, err = time.ParseDuration(cfg.MaxDelay); err != nil {
			return RetryPolicy{}, fmt.Errorf("sync.max_delay: %w", err)
		}
	}
	if policy.MaxDelay > 0 && policy.InitialDelay > policy.MaxDelay {
		return RetryPolicy{}, fmt.Errorf("sync.initial_delay %s exceeds sync.max_delay %s", policy.InitialDelay, policy.MaxDelay)
	}
	if policy.Jitter < 0 || policy.Jitter >= 1 {
		return RetryPolicy{}, fmt.Errorf("sync.jitter must be in [0, 1), got %v", policy.Jitter)
	}
	return policy, nil
}

// NextDelay returns the delay before retry number attempt (1-based). The
// result never exceeds MaxDelay; jitter only shortens it.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}
	if r.Jitter > 0 {
		random := r.random
		if random == nil {
			random = rand.Float64
		}
		delay -= delay * math.Min(r.Jitter, 1) * random()
	}

	d := time.Duration(delay)
	if d <= 0 {
		d = time.Second
	}
	return d
}
