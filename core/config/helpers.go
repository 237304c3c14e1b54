package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetAllSettings returns the non-secret settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_debug":                      Global.App.Debug,
		"app_version":                    Global.App.Version,
		"db_driver":                      Global.Database.Driver,
		"valkey_enabled":                 Global.Database.ValkeyEnabled,
		"collab_reconnect_max_attempts":  Global.Realtime.ReconnectMaxAttempts,
		"collab_reconnect_max_delay":     Global.Realtime.ReconnectMaxDelay.String(),
		"collab_typing_debounce_ms":      Global.Realtime.TypingDebounce.Milliseconds(),
		"collab_typing_expiry_ms":        Global.Realtime.TypingExpiry.Milliseconds(),
		"collab_notification_capacity":   Global.Realtime.NotificationCapacity,
		"message_worker_pool_size":       Global.WorkerPool.Size,
		"message_worker_pool_queue_size": Global.WorkerPool.QueueSize,
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvMillis reads an integer millisecond count.
func getEnvMillis(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}

// getEnvDuration accepts Go duration syntax ("30s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
