package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const defaultRetryWait = 500 * time.Millisecond

// retryPolicy bounds every provider call: each attempt gets its own deadline
// and at most retries further attempts follow a failure.
type retryPolicy struct {
	timeout   time.Duration
	retries   int
	retryWait time.Duration
	retryable func(error) bool
	log       zerolog.Logger
}

// do runs call until it succeeds, fails permanently or the budget is spent.
func (p retryPolicy) do(ctx context.Context, model string, call func(ctx context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		callCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		err := call(callCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if p.retryable != nil && !p.retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	retries := p.retries
	if retries < 0 {
		retries = 0
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.retryWait
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = defaultRetryWait
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
	notify := func(err error, wait time.Duration) {
		p.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Str("model", model).Msg("completion attempt failed")
	}
	return backoff.RetryNotify(op, policy, notify)
}
