// Package lock implements the insert-sentinel fallback cross-process lock
// protocol (§4.5) for backends whose DBMS has no native advisory lock.
// Native-advisory-lock backends (postgres, mysql) do not use this package.
package lock

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Row is the single yoyo_lock sentinel row.
type Row struct {
	PID   int
	CTime time.Time
}

// Store is the minimal persistence seam a backend provides for the
// insert-sentinel protocol: an atomic insert that fails on conflict, a
// lookup of the current holder, and a delete keyed by pid.
type Store interface {
	// TryInsert attempts to insert the sentinel row for pid in its own
	// transaction. ok is false on a unique-constraint violation (someone
	// else holds the lock); err is any other failure.
	TryInsert(ctx context.Context, pid int) (ok bool, err error)
	// CurrentHolder reads the existing lock row, if any.
	CurrentHolder(ctx context.Context) (Row, bool, error)
	// Delete removes the sentinel row owned by pid. A no-op if absent.
	Delete(ctx context.Context, pid int) error
	// DeleteAny removes whatever sentinel row exists, regardless of owner
	// (used by break-lock).
	DeleteAny(ctx context.Context) error
}

// ErrTimeout is returned when the lock could not be acquired before the
// deadline. Holder identifies the current owner, when known.
type ErrTimeout struct {
	Holder Row
	Known  bool
}

func (e ErrTimeout) Error() string {
	if e.Known {
		return fmt.Sprintf("lock: timeout waiting for lock held by pid %d since %s", e.Holder.PID, e.Holder.CTime)
	}
	return "lock: timeout waiting for lock"
}

const (
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// Acquire blocks until it owns the lock or timeout elapses (timeout <= 0
// means wait forever), retrying the insert with bounded exponential
// backoff. It returns a release function safe to call on every exit path.
func Acquire(ctx context.Context, store Store, pid int, timeout time.Duration) (release func(context.Context) error, err error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	backoff := initialBackoff
	for {
		ok, err := store.TryInsert(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("lock: acquire: %w", err)
		}
		if ok {
			return func(releaseCtx context.Context) error {
				return store.Delete(releaseCtx, pid)
			}, nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			holder, known, _ := store.CurrentHolder(ctx)
			return nil, ErrTimeout{Holder: holder, Known: known}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitter(backoff)):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Break forcibly removes the lock row, bypassing acquisition entirely. It
// implements the `break-lock` administrative command (§8 boundary
// behavior: lock held by a dead process).
func Break(ctx context.Context, store Store) error {
	if err := store.DeleteAny(ctx); err != nil {
		return fmt.Errorf("lock: break: %w", err)
	}
	return nil
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
