package config

import "errors"

var (
	// ErrMissingDatabaseURL is returned when postgres is selected without a DATABASE_URL.
	ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")
	// ErrLockTTLTooShort is returned when the lock lease can expire before a resolution ends.
	ErrLockTTLTooShort = errors.New("lock ttl shorter than retry budget")
	// ErrUnboundedLockHold is returned when the lock is enabled without a per-attempt timeout.
	ErrUnboundedLockHold = errors.New("identity lock requires DB_CONNECT_TIMEOUT")
)
