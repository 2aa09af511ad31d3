// Package retry runs backend calls with a single automatic retry on
// transient failures.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/failure"
)

// DefaultDelay is the pause before retrying a transient failure.
const DefaultDelay = time.Second

// Transient calls op and, if it fails with failure.ErrTransient, calls it
// exactly once more after delay. Any other error is returned immediately.
func Transient[T any](ctx context.Context, delay time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, failure.ErrTransient) {
			zctx.From(ctx).Debug("Transient failure",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return v, err
		}
		return v, backoff.Permanent(err)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return res, err
	}
	return res, nil
}
