package hub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oneconcern/flisthub/pkg/errors"
	"github.com/oneconcern/flisthub/pkg/hub/status"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// locker serializes changes to published archives with advisory file locks.
//
// Locks are held on <dir>/<namespace>/<name>.lock and work across processes
// sharing the same work directory.
type locker struct {
	dir     string
	timeout time.Duration
	l       *zap.Logger
}

type unlockFunc func()

var errBusy = errors.New("lock busy")

func newLocker(dir string, timeout time.Duration, l *zap.Logger) *locker {
	return &locker{dir: dir, timeout: timeout, l: l}
}

// lock acquires the locks of some archives, in a stable order.
//
// The returned func releases them all.
func (k *locker) lock(ctx context.Context, targets ...*Flist) (unlockFunc, error) {
	names := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		key := target.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, key)
	}
	sort.Strings(names)

	unlocks := make([]unlockFunc, 0, len(names))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, name := range names {
		unlock, err := k.lockOne(ctx, name)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}

	return release, nil
}

func (k *locker) lockOne(ctx context.Context, name string) (unlockFunc, error) {
	pth := filepath.Join(k.dir, filepath.FromSlash(name)+".lock")
	if err := os.MkdirAll(filepath.Dir(pth), 0o755); err != nil {
		return nil, status.ErrResource.Wrap(err)
	}

	fi, err := os.OpenFile(pth, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, status.ErrResource.Wrap(err)
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if k.timeout > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 10 * time.Millisecond
		exp.MaxInterval = 500 * time.Millisecond
		exp.MaxElapsedTime = k.timeout
		policy = exp
	}

	err = backoff.Retry(func() error {
		e := unix.Flock(int(fi.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case e == nil:
			return nil
		case errors.Is(e, unix.EWOULDBLOCK), errors.Is(e, unix.EINTR):
			return errBusy
		default:
			return backoff.Permanent(e)
		}
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		_ = fi.Close()
		if errors.Is(err, errBusy) {
			return nil, status.ErrLocked.Wrap(fmt.Errorf("%s: waited %v", name, k.timeout))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, status.ErrResource.Wrap(err)
	}

	k.l.Debug("lock acquired", zap.String("flist", name))
	return func() {
		if e := unix.Flock(int(fi.Fd()), unix.LOCK_UN); e != nil {
			k.l.Warn("could not release lock", zap.String("flist", name), zap.Error(e))
		}
		if e := fi.Close(); e != nil {
			k.l.Warn("could not close lock file", zap.String("flist", name), zap.Error(e))
		}
	}, nil
}
