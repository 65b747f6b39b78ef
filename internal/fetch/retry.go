package fetch

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
)

// RetryPolicy describes how the fetcher reacts to failed attempts.
// It is part of the fetcher's visible configuration.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts for transient failures,
	// including the first one.
	MaxAttempts int

	// InitialBackoff is the wait after the first transient failure.
	InitialBackoff time.Duration

	// Multiplier grows the wait after each further failure.
	Multiplier float64

	// MaxBackoff caps a single wait.
	MaxBackoff time.Duration

	// RateLimitCooldown is used after a 429 without a usable Retry-After.
	RateLimitCooldown time.Duration

	// MaxRetryAfter caps an honoured Retry-After. Zero means no cap.
	MaxRetryAfter time.Duration
}

// DefaultRetryPolicy returns the policy with the built-in defaults:
// four attempts waiting 4s, 8s and 16s in between.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       config.DefaultMaxAttempts,
		InitialBackoff:    config.DefaultInitialBackoff,
		Multiplier:        config.DefaultBackoffMultiplier,
		MaxBackoff:        config.DefaultMaxBackoff,
		RateLimitCooldown: config.DefaultRateLimitCooldown,
		MaxRetryAfter:     config.DefaultMaxRetryAfter,
	}
}

// RetryPolicyFromConfig builds a policy from the run configuration.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       cfg.MaxAttempts,
		InitialBackoff:    cfg.InitialBackoff,
		Multiplier:        cfg.BackoffMultiplier,
		MaxBackoff:        cfg.MaxBackoff,
		RateLimitCooldown: cfg.RateLimitCooldown,
		MaxRetryAfter:     cfg.MaxRetryAfter,
	}
}

// Backoff returns the wait after the given number of consecutive failures
// (1 for the first failure).
func (p RetryPolicy) Backoff(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(mult, float64(failures-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// RateLimitWait returns how long to wait after a 429. The Retry-After value
// may be delta-seconds or an HTTP date; anything else falls back to the
// cooldown.
func (p RetryPolicy) RateLimitWait(retryAfter string, now time.Time) time.Duration {
	d, ok := parseRetryAfter(retryAfter, now)
	if !ok {
		return p.RateLimitCooldown
	}
	if p.MaxRetryAfter > 0 && d > p.MaxRetryAfter {
		return p.MaxRetryAfter
	}
	return d
}

func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
