package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bonobos/tap-facebook/internal/config"
	"github.com/bonobos/tap-facebook/internal/state"
)

// Sync pacing defaults. Submission spacing keeps a long backfill under the
// platform's async-job rate limits.
const (
	defaultCatalogPath    = "catalog.yaml"
	defaultKafkaTopic     = "tap-facebook"
	defaultSubmitInterval = 10 * time.Second
	defaultMaxWaitToStart = 5 * time.Minute
	defaultMaxWaitToEnd   = 30 * time.Minute
	defaultPollInterval   = 5 * time.Second
)

// Config validation errors.
var (
	ErrAccountIDEmpty   = errors.New("FB_ACCOUNT_ID cannot be empty")
	ErrAccessTokenEmpty = errors.New("FB_ACCESS_TOKEN cannot be empty")
	ErrStartDateEmpty   = errors.New("FB_START_DATE cannot be empty")
)

// appConfig holds the sync run configuration loaded from the environment.
type appConfig struct {
	accountID   string
	accessToken string // never logged
	startDate   string

	catalogPath string
	streams     []string // empty means every stream in the catalog

	kafkaBrokers string
	kafkaTopic   string

	maxWindows     int
	pageSize       int
	submitInterval time.Duration
	maxWaitToStart time.Duration
	maxWaitToEnd   time.Duration
	pollInterval   time.Duration

	logLevel slog.Level
}

// loadAppConfig loads sync configuration from environment variables with
// fallback to defaults.
func loadAppConfig() *appConfig {
	return &appConfig{
		accountID:   config.GetEnvStr("FB_ACCOUNT_ID", ""),
		accessToken: config.GetEnvStr("FB_ACCESS_TOKEN", ""),
		startDate:   config.GetEnvStr("FB_START_DATE", ""),

		catalogPath: config.GetEnvStr("CATALOG_PATH", defaultCatalogPath),
		streams:     splitList(config.GetEnvStr("STREAMS", "")),

		kafkaBrokers: config.GetEnvStr("KAFKA_BROKERS", ""),
		kafkaTopic:   config.GetEnvStr("KAFKA_TOPIC", defaultKafkaTopic),

		maxWindows:     config.GetEnvInt("MAX_WINDOWS", 0),
		pageSize:       config.GetEnvInt("INSIGHTS_PAGE_SIZE", 100),
		submitInterval: config.GetEnvDuration("INSIGHTS_SUBMIT_INTERVAL", defaultSubmitInterval),
		maxWaitToStart: config.GetEnvDuration("INSIGHTS_MAX_WAIT_TO_START", defaultMaxWaitToStart),
		maxWaitToEnd:   config.GetEnvDuration("INSIGHTS_MAX_WAIT_TO_FINISH", defaultMaxWaitToEnd),
		pollInterval:   config.GetEnvDuration("INSIGHTS_POLL_INTERVAL", defaultPollInterval),

		logLevel: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Validate checks the required settings are present and well-formed.
func (c *appConfig) Validate() error {
	if strings.TrimSpace(c.accountID) == "" {
		return ErrAccountIDEmpty
	}

	if strings.TrimSpace(c.accessToken) == "" {
		return ErrAccessTokenEmpty
	}

	if strings.TrimSpace(c.startDate) == "" {
		return ErrStartDateEmpty
	}

	if _, err := state.ParseDate(c.startDate); err != nil {
		return fmt.Errorf("FB_START_DATE: %w", err)
	}

	return nil
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
