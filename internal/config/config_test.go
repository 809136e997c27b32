package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Worker.PollIntervalSecs)
	assert.Equal(t, 3, cfg.Worker.MaxConcurrentJobs)
	assert.Equal(t, 120, cfg.Worker.StallTimeoutSecs)
	assert.Equal(t, 5, cfg.Pipeline.DiscoveryConcurrency)
	assert.Equal(t, 10, cfg.Scrape.SubBatchSize)
	assert.True(t, cfg.Scrape.UseBrowserFallback)
	assert.Equal(t, "memory", cfg.Verify.CacheBackend)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PROSPECTOR_WORKER_MAX_CONCURRENT_JOBS", "7")
	t.Setenv("PROSPECTOR_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Worker.MaxConcurrentJobs)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "verbose-ish", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "console"}))
}
