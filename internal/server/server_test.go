package server

import (
	"context"
	"testing"
	"time"

	"github.com/emrgen/identity/internal/config"
	"github.com/emrgen/identity/internal/service"
	"github.com/emrgen/identity/internal/store"
	"github.com/emrgen/identity/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentityService_RejectsShortLockTTL(t *testing.T) {
	cfg := &config.Config{
		RedisAddr:      "127.0.0.1:9",
		ConnectTimeout: 10 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     2 * time.Second,
		LockTTL:        10 * time.Second,
		LockWait:       5 * time.Second,
	}

	_, closeService, err := NewIdentityService(cfg, store.NewGormStore(tester.TestDB(t)))
	assert.ErrorIs(t, err, config.ErrLockTTLTooShort)
	require.NotNil(t, closeService)
	closeService()
}

func TestNewIdentityService_WithRedisLock(t *testing.T) {
	_, mr := tester.Redis(t)
	cfg := &config.Config{
		RedisAddr:      mr.Addr(),
		ConnectTimeout: 10 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     time.Millisecond,
		LockTTL:        time.Minute,
		LockWait:       time.Second,
	}

	svc, closeService, err := NewIdentityService(cfg, store.NewGormStore(tester.TestDB(t)))
	require.NoError(t, err)
	defer closeService()

	email := "a@x.com"
	view, err := svc.Identify(context.TODO(), &service.IdentifyRequest{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, []string{email}, view.Emails)
	assert.False(t, mr.Exists("lock:identity:email:a@x.com"), "lock released after resolution")
}
