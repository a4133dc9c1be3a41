package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ASSISTANT_BASE_URL", "http://assistant.local:5000/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://assistant.local:5000", cfg.Assistant.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Assistant.AskTimeout)
	assert.Equal(t, 5*time.Second, cfg.Assistant.HealthTimeout)
	assert.Equal(t, 100, cfg.SSE.QueueSize)
	assert.True(t, cfg.Journal.Enabled)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoadDurationFormats(t *testing.T) {
	t.Setenv("ASSISTANT_ASK_TIMEOUT", "15")
	t.Setenv("ASSISTANT_HEALTH_TIMEOUT", "1500ms")
	t.Setenv("SESSION_IDLE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Assistant.AskTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Assistant.HealthTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("SSE_QUEUE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSE_QUEUE_SIZE")
}

func TestAllowedOriginsSplitsList(t *testing.T) {
	cfg := &Config{FrontendURL: "https://portal.example.ac.id, https://helpdesk.example.ac.id"}

	assert.Equal(t, []string{"https://portal.example.ac.id", "https://helpdesk.example.ac.id"}, cfg.AllowedOrigins())
	assert.False(t, cfg.IsDevelopment())
}
