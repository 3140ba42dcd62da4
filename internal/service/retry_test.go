package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dns", &net.DNSError{Err: "no such host", Name: "db.internal", IsNotFound: true}, true},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, true},
		{"timed out", fmt.Errorf("connect: %w", syscall.ETIMEDOUT), true},
		{"deadline", fmt.Errorf("acquire: %w", context.DeadlineExceeded), true},
		{"io timeout", &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}, true},
		{"flattened", errors.New("failed to connect to `host=db`: dial error (dial tcp: lookup db: no such host)"), true},
		{"canceled", context.Canceled, false},
		{"constraint", &pgconn.PgError{Code: "23514", Message: "violates check constraint"}, false},
		{"other", errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func refused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

func TestRetrier_RetriesTransient(t *testing.T) {
	r := NewRetrier(3, time.Millisecond)

	calls := 0
	err := r.Do(context.TODO(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return refused()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_StopsAfterBudget(t *testing.T) {
	r := NewRetrier(3, time.Millisecond)

	calls := 0
	want := refused()
	err := r.Do(context.TODO(), func(ctx context.Context) error {
		calls++
		return want
	})

	assert.Same(t, want, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_DoesNotRetryPermanent(t *testing.T) {
	r := NewRetrier(3, time.Millisecond)

	calls := 0
	want := &pgconn.PgError{Code: "23502"}
	err := r.Do(context.TODO(), func(ctx context.Context) error {
		calls++
		return want
	})

	assert.Same(t, want, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_StopsOnCancel(t *testing.T) {
	r := NewRetrier(3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return refused()
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
