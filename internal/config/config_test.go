package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLoadgen_Defaults(t *testing.T) {
	cfg := LoadLoadgen()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "mixed", cfg.Class)
	assert.Equal(t, 10, cfg.Users)
	assert.Equal(t, time.Minute, cfg.Duration)
	assert.Equal(t, PacingConstantPacing, cfg.PacingMode)
	assert.False(t, cfg.Redis.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadLoadgen_FromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://svc:9000")
	t.Setenv("LOADGEN_CLASS", "stress")
	t.Setenv("LOADGEN_USERS", "500")
	t.Setenv("LOADGEN_SPAWN_RATE", "2.5")
	t.Setenv("LOADGEN_DURATION", "90s")
	t.Setenv("LOADGEN_SEED", "42")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RESULTS_RETENTION_HOURS", "2")

	cfg := LoadLoadgen()

	assert.Equal(t, "http://svc:9000", cfg.BaseURL)
	assert.Equal(t, "stress", cfg.Class)
	assert.Equal(t, 500, cfg.Users)
	assert.InDelta(t, 2.5, cfg.SpawnRate, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Duration)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 2*time.Hour, cfg.Redis.Retention)
}

func TestLoadLoadgen_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("LOADGEN_USERS", "many")
	t.Setenv("LOADGEN_DURATION", "soon")

	cfg := LoadLoadgen()

	assert.Equal(t, 10, cfg.Users)
	assert.Equal(t, time.Minute, cfg.Duration)
}

func TestLoadgenConfig_Validate(t *testing.T) {
	base := LoadLoadgen()

	tests := []struct {
		name   string
		mutate func(*LoadgenConfig)
	}{
		{"bad scheme", func(c *LoadgenConfig) { c.BaseURL = "ftp://host" }},
		{"no host", func(c *LoadgenConfig) { c.BaseURL = "http://" }},
		{"zero users", func(c *LoadgenConfig) { c.Users = 0 }},
		{"zero spawn rate", func(c *LoadgenConfig) { c.SpawnRate = 0 }},
		{"negative duration", func(c *LoadgenConfig) { c.Duration = -time.Second }},
		{"unknown pacing", func(c *LoadgenConfig) { c.PacingMode = "poisson" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSmokeConfig_Validate(t *testing.T) {
	cfg := LoadSmoke()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sensor_001_radial", cfg.KnownSeries)
	assert.Equal(t, "sensor_999_nonexistent", cfg.UnknownSeries)
	assert.Equal(t, "Staging", cfg.Version)

	cfg.UnknownSeries = cfg.KnownSeries
	assert.Error(t, cfg.Validate())
}

func TestLoadServer_KnownSeries(t *testing.T) {
	cfg := LoadServer()
	assert.Len(t, cfg.KnownSeries, 21)
	assert.Contains(t, cfg.KnownSeries, "sensor_001")
	assert.Contains(t, cfg.KnownSeries, "sensor_020")
	assert.Contains(t, cfg.KnownSeries, "sensor_001_radial")

	t.Setenv("KNOWN_SERIES", " a , ,b ")
	cfg = LoadServer()
	assert.Equal(t, []string{"a", "b"}, cfg.KnownSeries)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOADGEN_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("LOADGEN_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("LOADGEN_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("LOADGEN_TEST_DOTENV"))
}
