package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/api/metrics"
	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

const (
	defaultLockTTL  = 10 * time.Second
	defaultLockWait = 3 * time.Second
	lockRetry       = 25 * time.Millisecond
)

// releaseScript deletes the lock only while it still carries the owner token,
// so an expired holder cannot release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ScheduleLocker is a Redis-backed mutual exclusion lock keyed per clinic
// schedule. Holders expire after ttl so a crashed writer cannot block a clinic.
type ScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	log    zerolog.Logger
}

func NewScheduleLocker(client *redis.Client, ttl, wait time.Duration, log zerolog.Logger) *ScheduleLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &ScheduleLocker{client: client, ttl: ttl, wait: wait, log: log}
}

// Acquire takes the lock named key, polling until it is free. It fails with
// domain.ErrScheduleBusy once the wait budget is spent, or with ctx's error
// when the caller gives up first.
func (l *ScheduleLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	token := uuid.NewString()
	started := time.Now()

	err := poll(ctx, l.wait, lockRetry, func(ctx context.Context) (bool, error) {
		return l.client.SetNX(ctx, key, token, l.ttl).Result()
	})
	if err != nil {
		metrics.ScheduleLockWait.WithLabelValues(lockResult(err)).Observe(time.Since(started).Seconds())
		return nil, err
	}
	metrics.ScheduleLockWait.WithLabelValues("acquired").Observe(time.Since(started).Seconds())

	release := func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("lock", key).Msg("schedule lock release failed")
		}
	}
	return release, nil
}

func lockResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrScheduleBusy):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// poll calls try every interval until it reports success, returns an error,
// or wait elapses. Cancellation of ctx is returned as ctx.Err().
func poll(ctx context.Context, wait, interval time.Duration, try func(context.Context) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := try(waitCtx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if waitCtx.Err() != nil {
				return domain.ErrScheduleBusy
			}
			return fmt.Errorf("schedule lock: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return domain.ErrScheduleBusy
		case <-ticker.C:
		}
	}
}
