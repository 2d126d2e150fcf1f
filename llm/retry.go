package llm

import (
	"math/rand/v2"
	"time"

	"github.com/hassan-khan-web/ScholarForge/model"
)

// RetryConfig holds the retry and fallback policy for one logical call.
type RetryConfig struct {
	// MaxAttempts caps provider calls per logical call across the whole chain.
	MaxAttempts int

	// RateLimitRetries is how many times a rate-limited model is retried
	// before the chain advances.
	RateLimitRetries int

	// MalformedRetries is how many times a model returning empty or
	// unparseable content is retried before the chain advances.
	MalformedRetries int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the exponential part of the backoff.
	MaxBackoff time.Duration

	// JitterMin and JitterMax bound the random delay added to rate-limit backoff.
	JitterMin time.Duration
	JitterMax time.Duration
}

// DefaultRetryConfig returns the retry defaults for report generation.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		RateLimitRetries:  1,
		MalformedRetries:  1,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
		JitterMin:         1 * time.Second,
		JitterMax:         3 * time.Second,
	}
}

// AttemptState is the position of a logical call in its retry walk.
type AttemptState struct {
	// Attempt counts provider calls already made.
	Attempt int
	// Position is the index of the current model in the chain.
	Position int
	// Retries counts retries already spent on the current model.
	Retries int
	// Done is set once no further attempt is permitted.
	Done bool
}

// SelectNextModel returns the endpoint to call for the given state, or false
// when the walk is over.
func SelectNextModel(chain model.ModelChain, st AttemptState) (string, bool) {
	if st.Done {
		return "", false
	}
	return chain.At(st.Position)
}

// NextAttempt advances the retry walk after a failed attempt of the given
// class. Rate-limited and malformed responses stay on the same model within
// their retry budgets; every other class moves to the next model, except
// fatal errors which end the walk.
func NextAttempt(cfg RetryConfig, st AttemptState, class FailureClass) AttemptState {
	st.Attempt++

	switch class {
	case ClassFatal:
		st.Done = true
		return st
	case ClassRateLimited:
		if st.Retries < cfg.RateLimitRetries {
			st.Retries++
		} else {
			st = st.advance()
		}
	case ClassMalformed:
		if st.Retries < cfg.MalformedRetries {
			st.Retries++
		} else {
			st = st.advance()
		}
	default:
		st = st.advance()
	}

	if cfg.MaxAttempts > 0 && st.Attempt >= cfg.MaxAttempts {
		st.Done = true
	}
	return st
}

// SameModel reports whether the state retries the model it was on before.
func (s AttemptState) SameModel(prev AttemptState) bool {
	return !s.Done && s.Position == prev.Position
}

func (s AttemptState) advance() AttemptState {
	s.Position++
	s.Retries = 0
	return s
}

// backoff computes the wait before the n-th retry (1-based) of the same model.
// Rate limits use exponential backoff plus random jitter; malformed responses
// wait the base duration.
func (cfg RetryConfig) backoff(class FailureClass, n int, retryAfter time.Duration) time.Duration {
	if class != ClassRateLimited {
		return cfg.BackoffBase
	}
	if retryAfter > 0 {
		return retryAfter
	}

	multiplier := 1.0
	for i := 1; i < n; i++ {
		multiplier *= cfg.BackoffMultiplier
	}
	wait := time.Duration(float64(cfg.BackoffBase) * multiplier)
	if cfg.MaxBackoff > 0 && wait > cfg.MaxBackoff {
		wait = cfg.MaxBackoff
	}

	if cfg.JitterMax > cfg.JitterMin {
		wait += cfg.JitterMin + time.Duration(rand.Int64N(int64(cfg.JitterMax-cfg.JitterMin)))
	} else {
		wait += cfg.JitterMin
	}
	return wait
}
