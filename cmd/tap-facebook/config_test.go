package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FB_ACCOUNT_ID", "12345")
	t.Setenv("FB_ACCESS_TOKEN", "token")
	t.Setenv("FB_START_DATE", "2021-01-01")
}

func TestLoadAppConfigDefaults(t *testing.T) {
	validEnv(t)

	cfg := loadAppConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultCatalogPath, cfg.catalogPath)
	assert.Equal(t, defaultKafkaTopic, cfg.kafkaTopic)
	assert.Empty(t, cfg.streams)
	assert.Zero(t, cfg.maxWindows)
	assert.Equal(t, defaultSubmitInterval, cfg.submitInterval)
	assert.Equal(t, defaultMaxWaitToStart, cfg.maxWaitToStart)
	assert.Equal(t, defaultMaxWaitToEnd, cfg.maxWaitToEnd)
	assert.Equal(t, defaultPollInterval, cfg.pollInterval)
	assert.Equal(t, slog.LevelInfo, cfg.logLevel)
}

func TestAppConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		unset   string
		wantErr error
	}{
		{"missing account id", "FB_ACCOUNT_ID", ErrAccountIDEmpty},
		{"missing access token", "FB_ACCESS_TOKEN", ErrAccessTokenEmpty},
		{"missing start date", "FB_START_DATE", ErrStartDateEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)
			t.Setenv(tt.unset, "")

			require.ErrorIs(t, loadAppConfig().Validate(), tt.wantErr)
		})
	}

	t.Run("malformed start date", func(t *testing.T) {
		validEnv(t)
		t.Setenv("FB_START_DATE", "01/01/2021")

		require.Error(t, loadAppConfig().Validate())
	})
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList("  "))
	assert.Equal(t, []string{"campaigns", "ads_insights"}, splitList("campaigns, ads_insights"))
	assert.Equal(t, []string{"ads"}, splitList("ads,,"))
}
