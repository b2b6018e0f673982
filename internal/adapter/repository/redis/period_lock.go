package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

const periodLockPrefix = "period-lock:"

// PeriodLocker implements usecase.PeriodLocker with a Redis lease per period.
// A lease expires after ttl so a crashed holder cannot wedge its period.
type PeriodLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewPeriodLocker creates a PeriodLocker. wait bounds how long Acquire retries a held period;
// zero fails immediately.
func NewPeriodLocker(client *redis.Client, ttl, wait time.Duration) *PeriodLocker {
	return &PeriodLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		wait:   wait,
	}
}

// Acquire takes the lease for period or returns domain.ErrPeriodLocked.
func (l *PeriodLocker) Acquire(ctx context.Context, period string) (usecase.PeriodLock, error) {
	opts := &redislock.Options{}
	if l.wait > 0 {
		const step = 100 * time.Millisecond
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(step), int(l.wait/step))
	}

	lock, err := l.locker.Obtain(ctx, periodLockPrefix+period, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPeriodLocked, period)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain period lock: %w", err)
	}
	return &periodLock{lock: lock}, nil
}

type periodLock struct {
	lock *redislock.Lock
}

// Release gives the lease back. A lease that already expired is not an error.
func (p *periodLock) Release(ctx context.Context) error {
	err := p.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
