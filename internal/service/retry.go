package service

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/emrgen/identity/internal/metrics"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 2 * time.Second
)

// transientMessages catches driver errors that arrive flattened to text.
var transientMessages = []string{
	"no such host",
	"connection refused",
	"i/o timeout",
	"connect: connection timed out",
}

// IsTransient reports whether err is a connectivity failure worth retrying:
// name resolution, refused connections and timeouts. Server-side errors
// such as constraint violations are never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if pgconn.Timeout(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}

	return false
}

// Retrier re-runs an operation from scratch after transient failures.
type Retrier struct {
	attempts  int
	delay     time.Duration
	transient func(error) bool
}

func NewRetrier(attempts int, delay time.Duration) *Retrier {
	if attempts < 1 {
		attempts = 1
	}

	return &Retrier{
		attempts:  attempts,
		delay:     delay,
		transient: IsTransient,
	}
}

// Do calls fn until it succeeds, fails with a non-transient error, or the
// attempt budget runs out. The last error is returned unmodified.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			metrics.ResolveAttemptsTotal.WithLabelValues("ok").Inc()
			return nil
		}

		if !r.transient(err) || attempt == r.attempts || ctx.Err() != nil {
			metrics.ResolveAttemptsTotal.WithLabelValues("failed").Inc()
			return err
		}

		metrics.ResolveAttemptsTotal.WithLabelValues("retried").Inc()
		logrus.Warnf("db connection failed, retrying in %v... (attempt %d/%d): %v", r.delay, attempt, r.attempts, err)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(r.delay):
		}
	}

	return err
}
