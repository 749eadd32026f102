package trader

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/speedrun-hq/dexpulse/pkg/logger"
	"github.com/speedrun-hq/dexpulse/pkg/metrics"
)

// RetryPolicy bounds the exponential backoff around a submission
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	// OnRetry is called before each wait with the 1-indexed attempt that failed
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns three attempts waiting 2s then 4s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
	}
}

// backOff builds a jitter-free schedule of BaseDelay * Multiplier^(attempt-1)
func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         time.Duration(math.MaxInt64),
	}
}

// ExecuteWithRetry runs fn until it succeeds, fails fatally or runs out of attempts.
// Fatal failures are returned after a single attempt. Exhausting the attempts
// returns an exhausted_retries error carrying the last underlying error.
func ExecuteWithRetry[T any](ctx context.Context, policy RetryPolicy, log logger.Logger, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	attempt := 0
	var lastErr error

	op := func() (T, error) {
		attempt++
		result, err := fn(ctx)
		if err == nil {
			metrics.SubmissionAttempts.WithLabelValues(operation, "success").Inc()
			return result, nil
		}

		lastErr = err
		kind := Classify(err)
		if kind.Fatal() {
			metrics.SubmissionAttempts.WithLabelValues(operation, "fatal").Inc()
			log.Error("%s attempt %d failed with fatal %s error: %v", operation, attempt, kind, err)
			return result, backoff.Permanent(wrapError(operation, err))
		}

		metrics.SubmissionAttempts.WithLabelValues(operation, "retryable").Inc()
		return result, err
	}

	notify := func(err error, delay time.Duration) {
		log.Notice("%s attempt %d/%d failed, retrying in %s: %v", operation, attempt, policy.MaxAttempts, delay, err)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithNotify(notify),
		// attempts are bounded by MaxTries only
		backoff.WithMaxElapsedTime(time.Duration(math.MaxInt64)),
	)
	if err == nil {
		return result, nil
	}

	var te *TradeError
	if errors.As(err, &te) && te.Kind.Fatal() {
		return result, te
	}

	exhausted := newError(KindExhaustedRetries, operation, "giving up after %d of %d attempts", attempt, policy.MaxAttempts)
	exhausted.Err = lastErr
	if ctx.Err() != nil || lastErr == nil {
		exhausted.Err = err
	}
	return result, exhausted
}
