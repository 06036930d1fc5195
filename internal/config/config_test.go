package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, 1000, cfg.Session.MaxSessions)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-6)
	assert.True(t, cfg.Archive.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("LLM_TIMEOUT", "45")
	t.Setenv("MAX_SESSIONS", "10")
	t.Setenv("LLM_API_KEY", "secret")
	t.Setenv("ARCHIVE_ENABLED", "off")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("FRONTEND_URL", "https://mpt.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10, cfg.Session.MaxSessions)
	assert.True(t, cfg.GenerationEnabled())
	assert.False(t, cfg.Archive.Enabled)
	assert.InDelta(t, 2.5, cfg.HTTP.RateLimitRPS, 1e-9)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("MAX_SESSIONS", "many")
	t.Setenv("SESSION_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Session.MaxSessions)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", ""},
		{"LOG_LEVEL", "loud"},
		{"LLM_TOP_P", "1.5"},
		{"LLM_MAX_TOKENS", "0"},
		{"MAX_SESSIONS", "-1"},
		{"MAX_REQUEST_BODY_BYTES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		" debug ": slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}
