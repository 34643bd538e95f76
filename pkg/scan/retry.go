package scan

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// RetryPolicy drives re-attempts of failed scans with capped exponential
// backoff. Jitter spreads the delays of concurrently failing domains so
// they do not retry in lockstep.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	BackoffBase  float64
	Jitter       bool
}

// RetryPolicyFromConfig builds the policy from the retry config block.
func RetryPolicyFromConfig() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   viper.GetInt("retry.max_retries"),
		InitialDelay: viper.GetDuration("retry.initial_delay"),
		MaxDelay:     viper.GetDuration("retry.max_delay"),
		BackoffBase:  viper.GetFloat64("retry.backoff_base"),
		Jitter:       viper.GetBool("retry.jitter"),
	}
}

// WithMaxRetries returns a copy with a different retry budget, used to
// grant bot-protected but alive hosts extra attempts.
func (p RetryPolicy) WithMaxRetries(n int) RetryPolicy {
	p.MaxRetries = n
	return p
}

// Delay computes the backoff before retry k (0-indexed):
// min(initial * base^k, max), scaled by a uniform factor in [0.5, 1.0)
// when jitter is on.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BackoffBase
	if base <= 0 {
		base = 2
	}
	d := float64(p.InitialDelay) * math.Pow(base, float64(attempt))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(d)
}

// Do runs attempt until it succeeds, fails non-retryably, exhausts the
// budget or the context is cancelled. It returns the number of retries
// consumed and the last error.
func (p RetryPolicy) Do(ctx context.Context, attempt func(try int) error) (int, error) {
	var lastErr error
	retries := 0
	for k := 0; k <= p.MaxRetries; k++ {
		if k > 0 {
			retries = k
			delay := p.Delay(k - 1)
			log.Debug().Int("attempt", k).Dur("delay", delay).Err(lastErr).Msg("Retrying after backoff")
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return retries - 1, ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = attempt(k)
		if lastErr == nil {
			return retries, nil
		}
		if !Classify(lastErr).Retryable() {
			return retries, lastErr
		}
	}
	return retries, lastErr
}
