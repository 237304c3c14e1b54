package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"APP_PORT", "DB_DRIVER", "COLLAB_RECONNECT_MAX_DELAY", "COLLAB_TYPING_EXPIRY_MS", "VALKEY_KEY_PREFIX"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "azcollab:", cfg.Database.ValkeyKeyPrefix)
	assert.Equal(t, time.Second, cfg.Realtime.ReconnectBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Realtime.ReconnectMaxDelay)
	assert.Equal(t, 5, cfg.Realtime.ReconnectMaxAttempts)
	assert.Equal(t, time.Second, cfg.Realtime.TypingDebounce)
	assert.Equal(t, 3*time.Second, cfg.Realtime.TypingExpiry)
	assert.Equal(t, 50, cfg.Realtime.NotificationCapacity)
	assert.Same(t, cfg, Global)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "8081")
	t.Setenv("COLLAB_RECONNECT_MAX_DELAY", "45")
	t.Setenv("COLLAB_TYPING_EXPIRY_MS", "1500")
	t.Setenv("VALKEY_ENABLED", "on")
	t.Setenv("COLLAB_SERVER_URL", "https://collab.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.App.Port)
	assert.Equal(t, 45*time.Second, cfg.Realtime.ReconnectMaxDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Realtime.TypingExpiry)
	assert.True(t, cfg.Database.ValkeyEnabled)
	assert.Equal(t, "https://collab.example.com", cfg.Client.ServerURL)
}

func TestGetEnvDuration_AcceptsGoSyntax(t *testing.T) {
	t.Setenv("X_COLLAB_DELAY", "1m30s")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_COLLAB_DELAY", time.Second))

	t.Setenv("X_COLLAB_DELAY", "garbage")
	assert.Equal(t, time.Second, getEnvDuration("X_COLLAB_DELAY", time.Second))
}
