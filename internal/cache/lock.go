package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// ErrLockTimeout is returned when a key stays held past the wait budget.
	ErrLockTimeout = errors.New("timed out waiting for identity lock")
	// ErrLockNotHeld is returned when releasing a lock owned by someone else.
	ErrLockNotHeld = errors.New("lock not held")
)

const (
	minBackoff = 10 * time.Millisecond
	maxBackoff = 500 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker holds SET NX leases on identity keys for the length of a resolution.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	wait      time.Duration
}

func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client:    client,
		keyPrefix: "lock:",
		ttl:       ttl,
		wait:      wait,
	}
}

// Lock takes every key in order. Keys must already be sorted by the caller so
// lock order is global. If redis is unreachable the resolution proceeds
// unlocked and the failure is logged.
func (l *RedisLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	token := uuid.New().String()
	held := make([]string, 0, len(keys))

	release := func() {
		// release with a fresh context so a cancelled request still frees its keys
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := l.release(rctx, held[i], token); err != nil {
				logrus.Warnf("failed to release lock %s: %v", held[i], err)
			}
		}
	}

	for _, key := range keys {
		err := l.acquire(ctx, l.keyPrefix+key, token)
		if errors.Is(err, ErrLockTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			release()
			return nil, err
		}
		if err != nil {
			logrus.Warnf("identity lock unavailable, resolving unlocked: %v", err)
			release()
			return func() {}, nil
		}
		held = append(held, l.keyPrefix+key)
	}

	return release, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	backoff := minBackoff

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			logrus.Debugf("acquired lock: %s", key)
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	result, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	logrus.Debugf("released lock: %s", key)
	return nil
}
