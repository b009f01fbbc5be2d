package state

import (
	"errors"
	"strings"
	"time"

	"github.com/bonobos/tap-facebook/internal/config"
)

const (
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
)

// ErrDatabaseURLEmpty is returned when the checkpoint database URL is empty.
var ErrDatabaseURLEmpty = errors.New("checkpoint database URL cannot be empty")

// Config holds checkpoint database connection configuration. The pool is
// deliberately small: the sync engine is a single logical writer.
type Config struct {
	databaseURL     string
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of connections
	ConnMaxIdleTime time.Duration // Maximum idle time for connections
}

// LoadConfig loads checkpoint database configuration from environment
// variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		databaseURL:     config.GetEnvStr("CHECKPOINT_DATABASE_URL", ""), // databaseURL stays private: it may carry credentials.
		MaxOpenConns:    config.GetEnvInt("CHECKPOINT_DB_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:    config.GetEnvInt("CHECKPOINT_DB_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime: config.GetEnvDuration("CHECKPOINT_DB_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("CHECKPOINT_DB_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
	}
}

// Validate checks if the checkpoint database configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.databaseURL) == "" {
		return ErrDatabaseURLEmpty
	}

	return nil
}

// Configured reports whether a checkpoint database URL was provided at all.
// Without one the caller falls back to emitting snapshots downstream only.
func (c *Config) Configured() bool {
	return strings.TrimSpace(c.databaseURL) != ""
}

// MaskDatabaseURL returns the databaseURL with any password replaced, safe
// for logging.
func (c *Config) MaskDatabaseURL() string {
	url := c.databaseURL

	schemeEnd := strings.Index(url, "://")
	if schemeEnd == -1 {
		return url
	}

	afterScheme := url[schemeEnd+3:]

	lastAt := strings.LastIndex(afterScheme, "@")
	if lastAt == -1 {
		return url
	}

	userInfo := afterScheme[:lastAt]

	colon := strings.Index(userInfo, ":")
	if colon == -1 || userInfo[colon+1:] == "" {
		return url
	}

	masked := userInfo[:colon] + ":****"

	return url[:schemeEnd+3] + masked + afterScheme[lastAt:]
}
