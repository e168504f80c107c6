package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs op until it succeeds, the backoff described by the config
// is exhausted, or the context is cancelled. The final error from op
// is returned on exhaustion.
func Retry(ctx context.Context, config RetryConfig, label string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = config.InitialInterval
	policy.MaxInterval = config.MaxInterval
	policy.MaxElapsedTime = config.MaxElapsedTime

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}

		return err
	}, backoff.WithContext(policy, ctx), func(err error, delay time.Duration) {
		dbLogger.Warnf("%s failed (attempt %d): %v. Retrying in %s\n", label, attempt, err, delay)
	})
}
