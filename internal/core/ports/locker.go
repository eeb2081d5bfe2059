package ports

import "context"

// ScheduleLocker serialises schedule mutations that share a key. Acquire
// blocks until the lock is held or fails with domain.ErrScheduleBusy; the
// returned release func must be called exactly once.
type ScheduleLocker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}
