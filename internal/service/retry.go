package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/procost/enquiry-api/internal/lock"
	"go.uber.org/zap"
)

// errRetry asks retryOnConflict to re-read state and run again
var errRetry = errors.New("retry after concurrent write")

// ConcurrencyOptions tunes thread locking and optimistic-concurrency
// retries of the services that write conversations
type ConcurrencyOptions struct {
	LockTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// DefaultConcurrencyOptions returns the options used when none are configured
func DefaultConcurrencyOptions() ConcurrencyOptions {
	return ConcurrencyOptions{
		LockTimeout: 10 * time.Second,
		MaxRetries:  3,
		RetryDelay:  50 * time.Millisecond,
	}
}

func (o ConcurrencyOptions) withDefaults() ConcurrencyOptions {
	defaults := DefaultConcurrencyOptions()
	if o.LockTimeout <= 0 {
		o.LockTimeout = defaults.LockTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = defaults.MaxRetries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = defaults.RetryDelay
	}
	return o
}

// retryOnConflict runs attempt until it returns anything but errRetry.
// The n-th retry waits n times RetryDelay. Once MaxRetries retries are
// used up it fails with ErrConcurrentUpdate.
func retryOnConflict(ctx context.Context, opts ConcurrencyOptions, subject string, log *zap.Logger, attempt func() error) error {
	for n := 0; ; n++ {
		err := attempt()
		if !errors.Is(err, errRetry) {
			return err
		}
		if n >= opts.MaxRetries {
			log.Warn("Concurrent update retries exhausted",
				zap.String("subject", subject),
				zap.Int("attempts", n+1))
			return fmt.Errorf("%w: %s", ErrConcurrentUpdate, subject)
		}

		log.Debug("Retrying after concurrent update",
			zap.String("subject", subject),
			zap.Int("attempt", n+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.RetryDelay * time.Duration(n+1)):
		}
	}
}

// lockThread takes the per-thread lock, waiting at most timeout
func lockThread(ctx context.Context, locker lock.Locker, timeout time.Duration, threadKey string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	release, err := locker.Acquire(lockCtx, threadKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lock thread %s: %v", ErrConcurrentUpdate, threadKey, err)
	}
	return release, nil
}
