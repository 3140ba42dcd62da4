package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want map[string]string
	}{
		{
			name: "development defaults",
			cfg:  &Config{Env: "development", DatabaseURL: "postgres://u:p@localhost:5432/identity", ConnectTimeout: 10 * time.Second},
			want: map[string]string{"connect_timeout": "10", "sslmode": "disable"},
		},
		{
			name: "production requires tls",
			cfg:  &Config{Env: "production", DatabaseURL: "postgres://u:p@db:5432/identity", ConnectTimeout: 90 * time.Second},
			want: map[string]string{"connect_timeout": "90", "sslmode": "require"},
		},
		{
			name: "explicit params win",
			cfg:  &Config{Env: "production", DatabaseURL: "postgres://u:p@db/identity?sslmode=verify-full&connect_timeout=3", ConnectTimeout: 10 * time.Second},
			want: map[string]string{"connect_timeout": "3", "sslmode": "verify-full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := postgresDSN(tt.cfg)
			require.NoError(t, err)

			u, err := url.Parse(dsn)
			require.NoError(t, err)
			for k, v := range tt.want {
				assert.Equal(t, v, u.Query().Get(k), k)
			}
		})
	}
}

func TestPostgresDSN_MissingURL(t *testing.T) {
	_, err := postgresDSN(&Config{})
	assert.ErrorIs(t, err, ErrMissingDatabaseURL)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("RETRY_ATTEMPTS", "5")

	cfg := LoadConfig()
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, "identity.contacts", cfg.KafkaTopic)
	// 5 attempts of 10s with 4 delays of 2s, plus margin
	assert.Equal(t, 63*time.Second, cfg.LockTTL)
	assert.Equal(t, cfg.LockTTL, cfg.LockWait)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			RedisAddr:      "localhost:6379",
			ConnectTimeout: 10 * time.Second,
			RetryAttempts:  3,
			RetryDelay:     2 * time.Second,
			LockTTL:        34 * time.Second,
		}
	}

	cfg := base()
	assert.Equal(t, 34*time.Second, cfg.LockHoldBudget())
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.LockTTL = 10 * time.Second
	assert.ErrorIs(t, cfg.Validate(), ErrLockTTLTooShort)

	cfg = base()
	cfg.ConnectTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrUnboundedLockHold)

	cfg = base()
	cfg.RedisAddr = ""
	cfg.LockTTL = time.Second
	assert.NoError(t, cfg.Validate(), "no lock, nothing to check")
}

func TestOpenDb_Sqlite(t *testing.T) {
	cfg := &Config{DBDriver: DriverSqlite, DatabaseURL: t.TempDir() + "/identity.db", MaxOpenConns: 10, IdleTimeout: time.Second}

	db, err := OpenDb(cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}
