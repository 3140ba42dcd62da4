package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

// LockMargin is added to the retry budget when LOCK_TTL is not set.
const LockMargin = 5 * time.Second

type Config struct {
	Env      string
	LogLevel string

	DBDriver       string
	DatabaseURL    string
	MaxOpenConns   int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	RedisAddr string
	LockTTL   time.Duration
	LockWait  time.Duration

	KafkaBrokers string
	KafkaTopic   string

	AuditSchedule string

	GrpcPort string
	HttpPort string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LockHoldBudget is the longest a resolution can hold its identity lock:
// every attempt running to its timeout plus the delays between them.
func (c *Config) LockHoldBudget() time.Duration {
	attempts := time.Duration(max(c.RetryAttempts, 1))
	return attempts*c.ConnectTimeout + (attempts-1)*c.RetryDelay
}

// Validate rejects lock settings that would let a lease expire mid resolution.
func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return nil
	}
	if c.ConnectTimeout <= 0 {
		return ErrUnboundedLockHold
	}
	if c.LockTTL < c.LockHoldBudget() {
		return fmt.Errorf("%w: LOCK_TTL %v < %v", ErrLockTTLTooShort, c.LockTTL, c.LockHoldBudget())
	}

	return nil
}

func init() {
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DRIVER", DriverPostgres)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("DB_CONNECT_TIMEOUT", "10s")
	viper.SetDefault("DB_IDLE_TIMEOUT", "30s")
	viper.SetDefault("RETRY_ATTEMPTS", 3)
	viper.SetDefault("RETRY_DELAY", "2s")
	viper.SetDefault("KAFKA_TOPIC", "identity.contacts")
	viper.SetDefault("AUDIT_SCHEDULE", "@every 10m")
	viper.SetDefault("GRPC_PORT", "4000")
	viper.SetDefault("HTTP_PORT", "3000")
	viper.AutomaticEnv()
}

// LoadConfig reads the configuration from the environment (and .env).
func LoadConfig() *Config {
	cfg := &Config{
		Env:            viper.GetString("ENV"),
		LogLevel:       viper.GetString("LOG_LEVEL"),
		DBDriver:       strings.ToLower(viper.GetString("DB_DRIVER")),
		DatabaseURL:    viper.GetString("DATABASE_URL"),
		MaxOpenConns:   viper.GetInt("DB_MAX_OPEN_CONNS"),
		ConnectTimeout: viper.GetDuration("DB_CONNECT_TIMEOUT"),
		IdleTimeout:    viper.GetDuration("DB_IDLE_TIMEOUT"),
		RetryAttempts:  viper.GetInt("RETRY_ATTEMPTS"),
		RetryDelay:     viper.GetDuration("RETRY_DELAY"),
		RedisAddr:      viper.GetString("REDIS_ADDR"),
		LockTTL:        viper.GetDuration("LOCK_TTL"),
		LockWait:       viper.GetDuration("LOCK_WAIT"),
		KafkaBrokers:   viper.GetString("KAFKA_BROKERS"),
		KafkaTopic:     viper.GetString("KAFKA_TOPIC"),
		AuditSchedule:  viper.GetString("AUDIT_SCHEDULE"),
		GrpcPort:       viper.GetString("GRPC_PORT"),
		HttpPort:       viper.GetString("HTTP_PORT"),
	}

	// lock settings default to the retry budget so a waiter outlasts a holder
	if cfg.LockTTL == 0 {
		cfg.LockTTL = cfg.LockHoldBudget() + LockMargin
	}
	if cfg.LockWait == 0 {
		cfg.LockWait = cfg.LockTTL
	}

	configureLogger(cfg)

	return cfg
}

func configureLogger(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// GetDb opens the configured database and sizes its connection pool.
func GetDb(cfg *Config) *gorm.DB {
	db, err := OpenDb(cfg)
	if err != nil {
		logrus.Fatalf("failed to open database: %v", err)
	}

	return db
}

func OpenDb(cfg *Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case DriverSqlite:
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		dsn, err := postgresDSN(cfg)
		if err != nil {
			return nil, err
		}
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(cfg.IdleTimeout)
	if cfg.DBDriver == DriverSqlite {
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// postgresDSN adds the connect timeout and, in production, TLS to the url.
func postgresDSN(cfg *Config) (string, error) {
	if cfg.DatabaseURL == "" {
		return "", ErrMissingDatabaseURL
	}

	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if q.Get("connect_timeout") == "" && cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	if q.Get("sslmode") == "" {
		if cfg.IsProduction() {
			q.Set("sslmode", "require")
		} else {
			q.Set("sslmode", "disable")
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
