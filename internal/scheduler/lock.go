package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"authwatch/internal/client"
)

// Locker enforces single-flight execution per job name. Runs of the same job
// must be serialized: the window tracker's read-then-write would otherwise
// skip or duplicate a window.
type Locker interface {
	// Acquire takes the lock for name, returning false when another holder
	// has it. On success the returned release function frees the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, func(), error)
}

// RedisLocker implements Locker with a SET NX lock per job name. The TTL
// bounds how long a crashed holder can block the job.
type RedisLocker struct {
	redis *client.RedisClient
}

func NewRedisLocker(redis *client.RedisClient) *RedisLocker {
	return &RedisLocker{redis: redis}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, func(), error) {
	key := "authwatch:lock:" + name
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, key, token, ttl)
	if err != nil {
		return false, nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil, nil
	}

	release := func() {
		// Best effort, token-checked so an expired lock re-acquired by
		// another run is never released from here.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.redis.ReleaseIfValue(releaseCtx, key, token)
	}

	return true, release, nil
}

// compile-time interface check
var _ Locker = (*RedisLocker)(nil)
