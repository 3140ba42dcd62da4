package cache

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/identity/internal/config"
	"github.com/emrgen/identity/internal/tester"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockAndRelease(t *testing.T) {
	client, mr := tester.Redis(t)
	locker := NewRedisLocker(client, time.Minute, 50*time.Millisecond)

	unlock, err := locker.Lock(context.TODO(), []string{"identity:email:a@x.com", "identity:phone:111"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("lock:identity:email:a@x.com"))
	assert.True(t, mr.Exists("lock:identity:phone:111"))

	unlock()

	assert.False(t, mr.Exists("lock:identity:email:a@x.com"))
	assert.False(t, mr.Exists("lock:identity:phone:111"))
}

func TestRedisLocker_Contention(t *testing.T) {
	client, mr := tester.Redis(t)
	locker := NewRedisLocker(client, time.Minute, 30*time.Millisecond)

	unlock, err := locker.Lock(context.TODO(), []string{"identity:email:a@x.com"})
	require.NoError(t, err)

	_, err = locker.Lock(context.TODO(), []string{"identity:email:a@x.com", "identity:phone:222"})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, mr.Exists("lock:identity:phone:222"), "partial locks are released on failure")

	unlock()

	unlock, err = locker.Lock(context.TODO(), []string{"identity:email:a@x.com"})
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_ReleaseKeepsForeignLease(t *testing.T) {
	client, mr := tester.Redis(t)
	locker := NewRedisLocker(client, time.Second, 30*time.Millisecond)

	unlock, err := locker.Lock(context.TODO(), []string{"identity:phone:111"})
	require.NoError(t, err)

	// the lease expires and another owner takes the key
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:identity:phone:111", "someone-else"))

	unlock()

	got, err := mr.Get("lock:identity:phone:111")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_LeaseOutlivesRetryBudget(t *testing.T) {
	client, mr := tester.Redis(t)
	cfg := &config.Config{ConnectTimeout: 10 * time.Second, RetryAttempts: 3, RetryDelay: 2 * time.Second}
	locker := NewRedisLocker(client, cfg.LockHoldBudget()+config.LockMargin, 30*time.Millisecond)

	unlock, err := locker.Lock(context.TODO(), []string{"identity:email:a@x.com"})
	require.NoError(t, err)

	// every attempt timed out and every retry delay elapsed
	mr.FastForward(cfg.LockHoldBudget())

	_, err = locker.Lock(context.TODO(), []string{"identity:email:a@x.com"})
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	assert.False(t, mr.Exists("lock:identity:email:a@x.com"))
}

func TestRedisLocker_FailsOpenWhenRedisIsDown(t *testing.T) {
	// nothing listens on the discard port
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:9", MaxRetries: -1})
	defer client.Close()
	locker := NewRedisLocker(client, time.Minute, 30*time.Millisecond)

	unlock, err := locker.Lock(context.TODO(), []string{"identity:email:a@x.com"})
	require.NoError(t, err)
	require.NotNil(t, unlock)
	unlock()
}
