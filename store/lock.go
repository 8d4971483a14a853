package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long a writer waits for another process.
const DefaultLockTimeout = 10 * time.Second

const (
	lockInitialInterval = 20 * time.Millisecond
	lockMaxInterval     = 250 * time.Millisecond
)

var errLockBusy = errors.New("lock busy")

// WithLock runs fn while holding an exclusive advisory lock on lockPath.
// The lock is released on every return path. A zero or negative timeout
// makes a single attempt.
func WithLock(ctx context.Context, lockPath string, timeout time.Duration, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return ioErr("mkdir", filepath.Dir(lockPath), err)
	}

	fl := flock.New(lockPath)
	if err := acquire(ctx, fl, timeout); err != nil {
		return err
	}
	defer func() {
		_ = fl.Unlock()
	}()

	return fn()
}

func acquire(ctx context.Context, fl *flock.Flock, timeout time.Duration) error {
	try := func() error {
		locked, err := fl.TryLock()
		if err != nil {
			return backoff.Permanent(ioErr("lock", fl.Path(), err))
		}
		if !locked {
			return errLockBusy
		}
		return nil
	}

	var err error
	if timeout <= 0 {
		err = try()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	} else {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = lockInitialInterval
		bo.MaxInterval = lockMaxInterval
		bo.MaxElapsedTime = timeout
		err = backoff.Retry(try, backoff.WithContext(bo, ctx))
	}

	if errors.Is(err, errLockBusy) {
		return &LockedError{Path: fl.Path(), Timeout: timeout}
	}
	return err
}
