package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Client     ClientConfig
	Database   DatabaseConfig
	Realtime   RealtimeConfig
	WorkerPool WorkerPoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	ServerID           string
	StorageDir         string
}

// ClientConfig is read by the `join` command.
type ClientConfig struct {
	ServerURL     string
	DesktopAlerts bool
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// RealtimeConfig tunes the client session timers.
type RealtimeConfig struct {
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int
	TypingDebounce       time.Duration
	TypingExpiry         time.Duration
	NotificationCapacity int
	WriteTimeout         time.Duration
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration globally
var Global = &Config{}

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	storageDir := getEnv("APP_BASE_DIR", "storages")

	debug := getEnvBool("APP_DEBUG", false) || getEnvBool("DEBUG", false)

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v0.4.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
		StorageDir:         storageDir,
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(storageDir, "collab.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azcollab:"),
	}

	rtCfg := RealtimeConfig{
		ReconnectBaseDelay:   getEnvMillis("COLLAB_RECONNECT_BASE_DELAY_MS", 1000),
		ReconnectMaxDelay:    getEnvDuration("COLLAB_RECONNECT_MAX_DELAY", 30*time.Second),
		ReconnectMaxAttempts: getEnvInt("COLLAB_RECONNECT_MAX_ATTEMPTS", 5),
		TypingDebounce:       getEnvMillis("COLLAB_TYPING_DEBOUNCE_MS", 1000),
		TypingExpiry:         getEnvMillis("COLLAB_TYPING_EXPIRY_MS", 3000),
		NotificationCapacity: getEnvInt("COLLAB_NOTIFICATION_CAPACITY", 50),
		WriteTimeout:         getEnvMillis("COLLAB_WRITE_TIMEOUT_MS", 5000),
	}

	cfg := &Config{
		App: appCfg,
		Client: ClientConfig{
			ServerURL:     getEnv("COLLAB_SERVER_URL", "http://localhost:"+appCfg.Port),
			DesktopAlerts: getEnvBool("COLLAB_DESKTOP_ALERTS", true),
		},
		Database:   dbCfg,
		Realtime:   rtCfg,
		WorkerPool: WorkerPoolConfig{Size: getEnvInt("MESSAGE_WORKER_POOL_SIZE", 8), QueueSize: getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 1000)},
	}

	Global = cfg
	return cfg, nil
}
