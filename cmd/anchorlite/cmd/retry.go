package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
)

// retryExpired runs op and reruns it, with exponential backoff, while it
// fails because the transaction's checkpoint expired before confirmation.
// Every other outcome is final. retries <= 0 runs op once.
func retryExpired(ctx context.Context, logger *slog.Logger, retries int, initial time.Duration, op func() error) error {
	if retries <= 0 {
		return op()
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(backoff.WithInitialInterval(initial)), uint64(retries)),
		ctx,
	)

	return backoff.RetryNotify(func() error {
		err := op()
		if err == nil || anchorerrors.IsExpired(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, next time.Duration) {
		logger.Warn("transaction expired, retrying", "error", err, "next", next)
	})
}
